// Package session implements the per-principal session cache: current
// institution, cached tenant contexts and TTL-based expiry. Two
// Store implementations are provided, an in-process map for single
// replicas and a Redis-backed store for shared deployments.
package session
