// Package lsdb implements the link-state database: the mapping from each
// known originator to its most recently accepted LSA (spec.md §3, §4.2).
// LSDB itself does no locking — callers (internal/router) serialize access
// as part of their own single critical section, per spec.md §5.
package lsdb

import "maps"

// LSA is a router-local representation of a Link State Advertisement.
// Links maps neighbor router/host ID to link cost.
type LSA struct {
	Originator string
	Sequence   uint64
	AgeEmitted int64
	Links      map[string]int
}

// HasSameLinks reports whether two LSAs with equal (originator, sequence)
// satisfy the invariant of spec.md §3: identical links content.
func (a LSA) HasSameLinks(b LSA) bool {
	if len(a.Links) != len(b.Links) {
		return false
	}
	for neighbor, cost := range a.Links {
		if bCost, ok := b.Links[neighbor]; !ok || bCost != cost {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the LSA so stored entries are never aliased
// with the caller's mutable map.
func (a LSA) Clone() LSA {
	return LSA{
		Originator: a.Originator,
		Sequence:   a.Sequence,
		AgeEmitted: a.AgeEmitted,
		Links:      maps.Clone(a.Links),
	}
}

// entry pairs a stored LSA with the monotonic time it was last (re)seen,
// used by the age sweep (spec.md §4.2).
type entry struct {
	lsa      LSA
	lastSeen int64 // monotonic nanoseconds, as reported by the caller's clock
}

// LSDB is the mapping originator -> latest LSA.
type LSDB struct {
	entries map[string]entry
}

// New creates an empty LSDB.
func New() *LSDB {
	return &LSDB{entries: make(map[string]entry)}
}

// Apply applies the freshness rule from spec.md §3: the given LSA replaces
// the stored entry for its originator iff its sequence strictly exceeds
// the stored one (or there is no stored entry yet). now is the caller's
// monotonic clock reading, stamped as the entry's last-seen time.
// Returns true if the LSA was accepted (stored/updated).
func (d *LSDB) Apply(l LSA, now int64) bool {
	existing, ok := d.entries[l.Originator]
	if ok && l.Sequence <= existing.lsa.Sequence {
		return false
	}

	d.entries[l.Originator] = entry{lsa: l.Clone(), lastSeen: now}
	return true
}

// Touch refreshes the last-seen timestamp for originator without changing
// its stored LSA; it does nothing if originator has no stored entry.
// internal/router does not call it: there, only an LSA accepted by Apply
// refreshes an entry's last-seen time.
func (d *LSDB) Touch(originator string, now int64) {
	if e, ok := d.entries[originator]; ok {
		e.lastSeen = now
		d.entries[originator] = e
	}
}

// Get returns the stored LSA for originator, if any.
func (d *LSDB) Get(originator string) (LSA, bool) {
	e, ok := d.entries[originator]
	if !ok {
		return LSA{}, false
	}
	return e.lsa, true
}

// Remove deletes the stored LSA for originator, if any.
func (d *LSDB) Remove(originator string) {
	delete(d.entries, originator)
}

// Originators returns every originator currently tracked.
func (d *LSDB) Originators() []string {
	ids := make([]string, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}
	return ids
}

// All returns a copy of every stored LSA, keyed by originator.
func (d *LSDB) All() map[string]LSA {
	out := make(map[string]LSA, len(d.entries))
	for id, e := range d.entries {
		out[id] = e.lsa.Clone()
	}
	return out
}

// AgeSweep removes every entry whose lastSeen is older than maxAge
// (measured against now, both monotonic nanoseconds), as described in
// spec.md §4.2. Returns the originators that were removed.
func (d *LSDB) AgeSweep(now int64, maxAge int64) []string {
	var removed []string
	for id, e := range d.entries {
		if now-e.lastSeen > maxAge {
			delete(d.entries, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Len reports how many originators are tracked.
func (d *LSDB) Len() int {
	return len(d.entries)
}
