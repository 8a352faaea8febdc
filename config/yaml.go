package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SourceKind names a manifest syntax accepted by a ManifestSource.
type SourceKind string

const (
	SourceYAML  SourceKind = "yaml"
	SourceHOCON SourceKind = "hocon"
)

// ManifestSource decodes raw manifest bytes into a Document. Keeping this
// as an interface (rather than a bare function) is what lets a future
// HOCON-backed source sit beside YAMLSource without anything else in this
// package or its callers changing: spec §6 names both syntaxes, but only
// the YAML one has a concrete implementation here.
type ManifestSource interface {
	Kind() SourceKind
	Load(raw []byte) (*Document, error)
}

// YAMLSource decodes the YAML manifest syntax (spec §6's variant 0),
// substituting ${VAR} environment references before decoding.
type YAMLSource struct{}

// Kind implements ManifestSource.
func (YAMLSource) Kind() SourceKind { return SourceYAML }

// Load decodes one YAML document. Multi-document streams (separated by
// "---") are not supported here; a manifest bundle of several documents is
// expected as several files, one ManifestSource.Load call each.
func (YAMLSource) Load(raw []byte) (*Document, error) {
	expanded := expandEnv(raw)
	var doc Document
	if err := yaml.Unmarshal(expanded, &doc); err != nil {
		return nil, fmt.Errorf("config: decode yaml manifest: %w", err)
	}
	if err := doc.validateKind(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// validateKind checks that exactly the document body matching Kind was
// populated, catching a manifest that names one kind but supplies another
// (or none).
func (d *Document) validateKind() error {
	present := map[DocumentKind]bool{
		KindComponent:   d.Component != nil,
		KindApplication: d.Application != nil,
		KindTypes:       d.Types != nil,
		KindTest:        d.Test != nil,
	}
	if !present[d.Kind] {
		return fmt.Errorf("config: manifest declares kind %q but carries no %q body", d.Kind, d.Kind)
	}
	for k, ok := range present {
		if ok && k != d.Kind {
			return fmt.Errorf("config: manifest declares kind %q but also carries a %q body", d.Kind, k)
		}
	}
	return nil
}
