// Package config loads, normalizes, and validates folio configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FOLIO_SOURCE_URL and FOLIO_NTFY_TOPIC. The Config type also acts as the
// storage path resolver: the per-work page directories, the PDF artifact
// directory, the favorites record and the history database all derive from
// paths.data_dir.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
