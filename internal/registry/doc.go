// Package registry holds the authoritative in-memory set of firing alerts.
//
// The registry is bounded: at capacity, a new ID evicts the oldest entry by
// starts_at rather than growing without limit or silently rejecting the
// newest data. Snapshots are returned in insertion order so repeated calls
// over the same state are byte-for-byte identical.
package registry
