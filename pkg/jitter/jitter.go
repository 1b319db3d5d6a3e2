// Package jitter provides the deterministic pseudo-random delay used to
// stagger rebroadcasts so neighboring nodes don't flood in lockstep.
//
// Ported from the xorshift mix in
// original_source/include/mesh_core/utils.hpp (time_based_random), kept
// bit-for-bit: the three shift-xor steps and the final modulo-range
// reduction are unchanged. The seed is widened from a bare timestamp to
// fold in the node's own address and a running counter, per spec.md's
// requirement that repeated calls at the same millisecond still scatter.
package jitter

// Random returns a pseudo-random value in [lo, hi] derived from seed via a
// 32-bit xorshift mix. lo must be <= hi.
func Random(seed uint32, lo, hi uint16) uint16 {
	h := seed
	h ^= h << 13
	h ^= h >> 7
	h ^= h << 5

	rng := uint32(hi) - uint32(lo) + 1
	return lo + uint16(h%rng)
}

// Seed combines a millisecond timestamp, a node's own address, and a
// monotonically increasing per-node counter into a single xorshift seed,
// so that two calls at the same timestamp from the same node still differ.
func Seed(nowMs uint32, selfAddr uint8, counter uint32) uint32 {
	return nowMs + uint32(selfAddr) + counter
}
