// Package config loads savekit configuration.
//
// Sources are applied in order, later ones winning:
//  1. Defaults()
//  2. a YAML (.yaml, .yml) or TOML (.toml) file, chosen by extension
//  3. SAVEKIT_* environment variables
//
// The merged result is validated against an embedded CUE schema.
package config
