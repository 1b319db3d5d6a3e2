package meshhost

import (
	"sort"

	"meshcore/pkg/meshwire"
)

// Bus is an in-memory, single-threaded simulated mesh: a virtual clock, a
// pending-timer queue, and a neighbor adjacency list. It lets
// pkg/meshnode's tests build chain or mesh topologies of any size without
// opening a single socket.
//
// Bus is not safe for concurrent use; it is meant to be driven from one
// test goroutine via Advance, mirroring the single-threaded
// cooperative event loop the node engine itself assumes.
type Bus struct {
	now       meshwire.Ts
	neighbors map[meshwire.Addr][]neighborLink
	receivers map[meshwire.Addr]ReceiveFunc
	pending   []timer
	nextID    uint64
}

type neighborLink struct {
	addr meshwire.Addr
	lqs  meshwire.Lqs
}

type timer struct {
	id    uint64
	fireAt meshwire.Ts
	fn    func()
}

// NewBus creates an empty simulated mesh starting at virtual time 0.
func NewBus() *Bus {
	return &Bus{
		neighbors: make(map[meshwire.Addr][]neighborLink),
		receivers: make(map[meshwire.Addr]ReceiveFunc),
	}
}

// Link makes b and a reachable neighbors of each other with the given
// link-quality score applied in both directions. Call it once per edge;
// chain and mesh topologies are both just a set of Link calls.
func (bus *Bus) Link(a, b meshwire.Addr, lqs meshwire.Lqs) {
	bus.neighbors[a] = append(bus.neighbors[a], neighborLink{addr: b, lqs: lqs})
	bus.neighbors[b] = append(bus.neighbors[b], neighborLink{addr: a, lqs: lqs})
}

// Host returns the meshhost.Host view of the bus for node addr. Each
// address must get exactly one Host before Init registers its ReceiveFunc.
func (bus *Bus) Host(addr meshwire.Addr) Host {
	return &busHost{bus: bus, addr: addr}
}

// Advance moves the virtual clock forward by deltaMs, firing every pending
// timer whose deadline falls within the new window in deadline order (ties
// broken by registration order).
func (bus *Bus) Advance(deltaMs uint32) {
	target := bus.now + meshwire.Ts(deltaMs)
	for {
		sort.SliceStable(bus.pending, func(i, j int) bool {
			if bus.pending[i].fireAt != bus.pending[j].fireAt {
				return bus.pending[i].fireAt < bus.pending[j].fireAt
			}
			return bus.pending[i].id < bus.pending[j].id
		})
		if len(bus.pending) == 0 || bus.pending[0].fireAt > target {
			break
		}
		next := bus.pending[0]
		bus.pending = bus.pending[1:]
		bus.now = next.fireAt
		next.fn()
	}
	bus.now = target
}

// NowMs returns the bus's current virtual time.
func (bus *Bus) NowMs() meshwire.Ts {
	return bus.now
}

type busHost struct {
	bus  *Bus
	addr meshwire.Addr
}

func (h *busHost) Broadcast(frame []byte) error {
	cp := append([]byte(nil), frame...)
	for _, n := range h.bus.neighbors[h.addr] {
		recv, ok := h.bus.receivers[n.addr]
		if !ok {
			continue
		}
		recv(cp, n.lqs)
	}
	return nil
}

func (h *busHost) NowMs() meshwire.Ts {
	return h.bus.NowMs()
}

func (h *busHost) ScheduleAfter(delayMs uint32, fn func()) {
	h.bus.nextID++
	h.bus.pending = append(h.bus.pending, timer{
		id:     h.bus.nextID,
		fireAt: h.bus.now + meshwire.Ts(delayMs),
		fn:     fn,
	})
}

func (h *busHost) OnReceive(fn ReceiveFunc) {
	h.bus.receivers[h.addr] = fn
}
