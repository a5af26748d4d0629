// Package config loads, normalizes, and validates the TOML application
// configuration, including the template cell mappings consumed by report
// generation.
package config
