// Package enrollment admits students into courses under a hard
// capacity limit. Admission is atomic per course: the in-memory store
// serializes on a per-course lock, the Postgres store retries a
// versioned write. Administrators may force seats past capacity;
// those placements are flagged and counted.
package enrollment
