// Package config provides configuration parsing for stratum.
//
// The configuration is stored in stratum.json at the project root. This
// package handles loading, saving, and validating configuration; the CLI
// maps it onto the server, journal, and mount packages.
//
// All fields have sensible defaults, so an empty stratum.json is valid.
package config
