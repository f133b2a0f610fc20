// Package api exposes the HTTP surface: session lifecycle, tenant
// context switching, authorization checks, role management,
// enrollment and audit queries.
package api
