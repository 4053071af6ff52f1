// Package config loads, normalizes, and validates packaging service
// configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables used by
// the container deployment such as AWS_SOURCE_BUCKET and AS_BASEURL. The
// Config value is built once at startup and handed to the pipeline; nothing
// downstream reads process environment directly.
package config
