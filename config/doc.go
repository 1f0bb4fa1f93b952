// Package config loads dyparser settings from TOML or YAML files and
// DYPARSER_* environment variables.
package config
