// Package config loads and validates all Lumen server configuration from
// environment variables (LUMEN_* prefix).
package config
