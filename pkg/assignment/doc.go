// Package assignment changes principal roles within an institution.
// Promotions are gated by the role hierarchy, demotions keep the full
// role history, and pending registrations can be rejected outright.
package assignment
