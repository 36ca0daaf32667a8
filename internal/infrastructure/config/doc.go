// Package config loads host configuration from environment variables, with
// an optional YAML or TOML file for deployments that prefer one.
//
// Every field has a default, so an empty environment yields a working
// configuration:
//
//	cfg := config.LoadOrDefault()
//	fileCfg, err := config.LoadFile("/etc/terminal/host.yaml")
//
// Durations are written as Go duration strings ("5ms", "2s") in both
// sources.
package config
