// Package meshhost defines the capability interface pkg/meshnode depends
// on to touch the outside world — a broadcast-only link, a clock, and a
// single-shot delayed-callback scheduler — plus an in-memory reference
// implementation, Bus, used to wire up multi-node tests without sockets.
package meshhost

import "meshcore/pkg/meshwire"

// ReceiveFunc is invoked by the host whenever a frame arrives, together
// with a link-quality score the link layer assigns at the moment of
// reception.
type ReceiveFunc func(frame []byte, lqs meshwire.Lqs)

// Host is the single capability interface the node engine is built
// against. Every method must be safe to call from within a ReceiveFunc or
// a scheduled callback; the node engine never spawns goroutines itself and
// expects the host to serialize all calls into it.
type Host interface {
	// Broadcast sends frame to every reachable neighbor on the link.
	Broadcast(frame []byte) error
	// NowMs returns the current time in milliseconds, from whatever clock
	// the host chooses (wall clock, monotonic, or a virtual one in tests).
	NowMs() meshwire.Ts
	// ScheduleAfter arranges for fn to run once, after delayMs have
	// elapsed, serialized with every other call into the node.
	ScheduleAfter(delayMs uint32, fn func())
	// OnReceive registers the callback the host invokes for every inbound
	// frame. Called once during Node.Init.
	OnReceive(fn ReceiveFunc)
}

// Clock lets tests substitute a virtual notion of "now" independent of a
// Host's scheduling behavior.
type Clock interface {
	NowMs() meshwire.Ts
}

// SchedulerFunc lets tests substitute immediate or manually-pumped
// execution for ScheduleAfter's delayed-callback behavior.
type SchedulerFunc func(delayMs uint32, fn func())
