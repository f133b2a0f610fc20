// Package tenant holds the multi-tenant domain model (institutions,
// principals, institution profiles) and the resolver that turns a
// (principal, institution) pair into an immutable request context.
//
// A Context is built fresh on every establishment and handed around
// by value. When a cached context disagrees with stored state the
// resolver reports ErrSessionCorruption and the caller must discard
// and rebuild it; contexts are never patched in place.
package tenant
