// Package routetable implements the node's distance-vector routing table:
// a small, linearly-scanned set of best-known next hops per destination.
//
// Grounded on original_source/include/mesh_core/route_table.hpp, which
// backs the same structure with a std::list and a linear find_node scan —
// the expected cardinality is at most one entry per possible 8-bit address,
// so a slice beats a map here just as it does in the original.
package routetable

import "meshcore/pkg/meshwire"

// Origin distinguishes routes a node learned dynamically from ones an
// operator pinned by hand.
type Origin uint8

const (
	Dynamic Origin = iota
	Static
)

// Entry is one row of the routing table.
type Entry struct {
	Dst       meshwire.Addr
	NextHop   meshwire.Addr
	Metric    meshwire.Ttl
	Lqs       meshwire.Lqs
	ExpiresAt meshwire.Ts
	Origin    Origin
}

// DefaultCapacity matches the original's fixed-size route array: one slot
// per possible unicast address.
const DefaultCapacity = 254

// ExpiryMs is how long an idle dynamic route is kept before a sweep removes
// it, matching the original's ROUTE_EXPIRED_MS window.
const ExpiryMs = 60_000

// Table is a capacity-bounded routing table.
type Table struct {
	self     meshwire.Addr
	capacity int
	rows     []Entry
}

// New creates a routing table for a node whose own address is self.
// capacity <= 0 falls back to DefaultCapacity.
func New(self meshwire.Addr, capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{self: self, capacity: capacity}
}

// Find returns the entry for dst, if any.
func (t *Table) Find(dst meshwire.Addr) (Entry, bool) {
	for i := range t.rows {
		if t.rows[i].Dst == dst {
			return t.rows[i], true
		}
	}
	return Entry{}, false
}

// AddOrReplace considers a candidate route and installs it if it is new or
// beats the existing entry for the same destination under the best-path
// rule: strictly smaller metric wins outright; an equal metric with
// strictly larger lqs wins; otherwise the existing entry is kept, with only
// its ExpiresAt refreshed to candidate.ExpiresAt when the candidate has the
// same metric (an equal-metric re-advertisement keeps the route alive).
//
// Returns true if the table changed (new entry installed or replaced).
func (t *Table) AddOrReplace(candidate Entry) bool {
	for i := range t.rows {
		if t.rows[i].Dst != candidate.Dst {
			continue
		}
		existing := &t.rows[i]
		if candidate.Metric < existing.Metric ||
			(candidate.Metric == existing.Metric && candidate.Lqs > existing.Lqs) {
			*existing = candidate
			return true
		}
		if candidate.Metric == existing.Metric {
			existing.ExpiresAt = candidate.ExpiresAt
		}
		return false
	}
	if len(t.rows) >= t.capacity {
		return false
	}
	t.rows = append(t.rows, candidate)
	return true
}

// Remove deletes the entry for dst, if present.
func (t *Table) Remove(dst meshwire.Addr) {
	for i := range t.rows {
		if t.rows[i].Dst == dst {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return
		}
	}
}

// Iter calls fn for every entry currently in the table. fn must not mutate
// the table.
func (t *Table) Iter(fn func(Entry)) {
	for _, e := range t.rows {
		fn(e)
	}
}

// Len reports the number of routes currently held.
func (t *Table) Len() int {
	return len(t.rows)
}

// SweepExpired removes every dynamic route that is neither the self-route
// (metric 0) nor STATIC, and whose idle time has exceeded ExpiryMs or whose
// metric has climbed to TTLDefault or beyond (treated as unreachable).
func (t *Table) SweepExpired(now meshwire.Ts) {
	kept := t.rows[:0]
	for _, e := range t.rows {
		if e.Metric == 0 {
			kept = append(kept, e)
			continue
		}
		if e.Origin == Static {
			kept = append(kept, e)
			continue
		}
		if now-e.ExpiresAt > ExpiryMs || e.Metric >= meshwire.TTLDefault {
			continue
		}
		kept = append(kept, e)
	}
	t.rows = kept
}
