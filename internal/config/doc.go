// Package config provides the typed configuration of a mirroring run.
// It holds the options recognized by the mirroring engine, the YAML
// configuration file with per-site overrides and the XDG directories
// used for the persistent cache.
package config
