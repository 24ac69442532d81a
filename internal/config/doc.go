// Package config defines the validated configuration of the event bridge.
//
// A Config is plain data. It is built once, validated once, and then copied into
// every component that needs it; nothing mutates it afterwards. Invalid values
// are rejected with a *ConfigError at construction time and are never replaced
// by silent defaults.
//
// Configurations can be assembled three ways, in increasing precedence:
//
//   - Default() and functional options (WithChannelCapacity, WithBackpressure, ...)
//   - a TOML file read by LoadFile
//   - environment variables prefixed with KEYBRIDGE_ (see File for the names)
//
// The backpressure strategy is written as "drop", "adaptive" or "block:<duration>"
// in files and the environment.
package config
