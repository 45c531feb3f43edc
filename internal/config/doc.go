// Package config loads, validates, and normalizes the chimera configuration.
//
// Configuration lives in a single TOML file (default
// ~/.config/chimera/config.toml). Load applies defaults first, then the file,
// then a normalize pass (path expansion, trimming) and a validate pass.
// Callers receive a fully resolved Config; no other package re-reads the
// environment.
package config
