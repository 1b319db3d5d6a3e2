// Package dedup tracks recently-seen message UUIDs so the node engine can
// drop duplicate floods and retransmissions.
//
// Semantics mirror original_source/include/mesh_core/lru_record.hpp: both
// Exists and Put promote the touched key to most-recently-used, and the
// least-recently-touched key is evicted once the cache is full. That is
// exactly the contract github.com/hashicorp/golang-lru/v2 already provides
// (Get promotes on hit, Add evicts the oldest entry on overflow), so this
// package is a thin, spec-vocabulary wrapper rather than a hand-rolled
// linked list.
package dedup

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"meshcore/pkg/meshwire"
)

// DefaultSize is the original library's LRU_RECORD_SIZE.
const DefaultSize = 32

// Recent is a fixed-capacity, promote-on-touch set of recently-seen UUIDs.
type Recent struct {
	cache *lru.Cache[meshwire.UUID, struct{}]
}

// New creates a Recent cache holding up to size UUIDs. size <= 0 falls back
// to DefaultSize.
func New(size int) *Recent {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[meshwire.UUID, struct{}](size)
	if err != nil {
		// Only returns an error for size <= 0, already guarded above.
		panic(err)
	}
	return &Recent{cache: c}
}

// Exists reports whether id has been seen before, promoting it to
// most-recently-used if so.
func (r *Recent) Exists(id meshwire.UUID) bool {
	_, ok := r.cache.Get(id)
	return ok
}

// Put records id as seen, promoting it to most-recently-used and evicting
// the least-recently-touched entry if the cache is already full.
func (r *Recent) Put(id meshwire.UUID) {
	r.cache.Add(id, struct{}{})
}

// Len reports the number of UUIDs currently tracked.
func (r *Recent) Len() int {
	return r.cache.Len()
}
