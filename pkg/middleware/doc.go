// Package middleware provides the HTTP middleware chain: request
// IDs, principal identification, tenant context resolution, metrics
// and request logging.
package middleware
