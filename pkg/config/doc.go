// Package config loads service configuration from REGISTRAR_*
// environment variables with sane defaults for local development.
package config
