// Package config loads the duplicate detection settings from a YAML or TOML
// file, an optional .env file and DEDUP_* environment variables.
package config
