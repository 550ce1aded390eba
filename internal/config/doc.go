// Package config loads, normalizes, and validates easel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DEEPSEEK_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, including the list of workflow profiles users select by alias.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, resolved template locations, and clear validation errors.
package config
