// Package config loads, normalizes, and validates stemforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file beside the config,
// and applies STEMFORGE_* environment overrides. The Config type centralizes
// every knob the daemon and CLI need: scratch and log directories, yt-dlp
// fallback strategies, demucs settings, and the optional publish destination.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
