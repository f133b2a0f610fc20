// Package roles defines the static role model and the permission
// evaluator for institution-scoped authorization.
//
// Three built-in roles are strictly ordered by hierarchy level:
// student (1) < teacher (2) < institution_admin (3). Each role carries
// a fixed table of resource grants, optionally narrowed by ownership
// conditions. The table is loaded once into an immutable Registry at
// process start; permission overrides produce new Definition values
// instead of editing the shared table in place, so evaluation is free
// of data races by construction.
//
// Evaluate is the single authorization primitive: it is pure, touches
// no storage, and returns a Decision with a specific denial reason.
package roles
