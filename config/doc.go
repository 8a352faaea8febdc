// Package config implements the external interfaces of spec §6: the
// component/application/types/test manifest documents a runtime accepts,
// `${VAR}` environment substitution in string scalars, and the asset-fetch
// policy gated by WICK_ALLOW_LATEST/WICK_ALLOWED_INSECURE.
//
// Two manifest syntaxes are named in §6: YAML and HOCON. Only the YAML
// branch is concretely implemented here — no HOCON parser exists anywhere
// in this project's reference pack or its transitive dependencies, and
// this project does not fabricate dependencies. ManifestSource keeps the
// door open: a HOCON-backed implementation slots in beside YAMLSource
// without the rest of the package noticing.
package config
