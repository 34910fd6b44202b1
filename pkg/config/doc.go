// Package config loads, defaults, and validates the Saturn configuration
// file. Configuration is a single YAML document with one section per
// subsystem; environment variables named SATURN_SECTION_FIELD override
// file values.
package config
