// Package storage provides database clients for the service. The
// postgres subpackage implements the tenant store interfaces on
// PostgreSQL; this package holds the Redis connection helper.
package storage
