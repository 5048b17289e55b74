// Package config loads, normalizes, and validates splicer configuration.
//
// Configuration lives in TOML (default ~/.config/splicer/config.toml, falling
// back to ./splicer.toml). Load starts from Default, decodes the file when
// present, expands paths, applies environment overrides for secrets, and
// validates the result. The embedded sample_config.toml backs
// `splicer config init`.
package config
