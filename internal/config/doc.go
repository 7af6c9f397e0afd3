// Package config loads and validates tracker configuration from YAML files.
//
// Loading is a three-step pipeline: Load (read + env expansion), applyDefaults
// (fill optional fields), Validate (reject broken configs before startup).
package config
