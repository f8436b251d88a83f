// Package config loads, normalizes, and validates retro configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// RETRO_API_TOKEN. The Config type centralizes every knob the capture
// pipeline and CLI need: where logs and device locks live, which capture
// devices and encoder settings ffmpeg uses, and where finished recordings are
// submitted.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
