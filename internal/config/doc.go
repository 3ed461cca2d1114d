// Package config provides configuration management for audiobatch.
//
// Settings are layered in this order, later layers winning:
//
//  1. Built-in defaults (DefaultSettings)
//  2. An optional config file (yaml, json or toml, picked by extension)
//  3. AUDIOBATCH_* environment variables, with "." replaced by "_"
//
// # Loading
//
//	settings, err := config.Load("")           // ~/.config/audiobatch/config.yaml if present
//	settings, err := config.Load("batch.yaml") // must exist
//
//	// AUDIOBATCH_DOWNLOAD_CONCURRENCY=5 overrides download.concurrency
//
// # Saving
//
//	settings.Audio.Codec = "opus"
//	err := settings.Save("/path/to/config.yaml")
//
// # Validation
//
// Zero or negative counts fall back to their defaults. Unknown codec, archive
// order, playlist, log level or log format values are rejected.
package config
