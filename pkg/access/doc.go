// Package access validates tenant boundaries and resource-level
// permissions. The Validator is the single authorization choke point:
// every check it performs lands on the audit trail, and cross-tenant
// denials never disclose whether the target resource exists.
package access
