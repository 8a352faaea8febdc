package config

import "os"

// expandEnv substitutes every "${VAR}" occurrence in raw with the named
// environment variable's value (spec §6: "Environment variables are
// substitutable via ${VAR} in string scalars"). It runs over the whole
// document's raw bytes before YAML decoding, so substitution reaches every
// string scalar uniformly without a second walk over the decoded tree.
// Unset variables expand to the empty string, matching os.Expand's
// default mapping.
func expandEnv(raw []byte) []byte {
	return []byte(os.Expand(string(raw), envLookup))
}

// envLookup backs expandEnv's os.Expand call. os.Expand also recognizes
// bare "$VAR"; that's harmless here since manifests don't otherwise use a
// literal unescaped '$'.
func envLookup(name string) string {
	return os.Getenv(name)
}
