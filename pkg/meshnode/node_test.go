package meshnode

import (
	"testing"

	"meshcore/pkg/meshhost"
	"meshcore/pkg/meshwire"
	"meshcore/pkg/routetable"
)

// buildChain wires a 1..count linear chain (1-2, 2-3, ..., (count-1)-count)
// on a fresh Bus and returns one initialized Node per address.
func buildChain(t *testing.T, count int) (*meshhost.Bus, []*Node) {
	t.Helper()
	bus := meshhost.NewBus()
	for i := 1; i < count; i++ {
		bus.Link(meshwire.Addr(i), meshwire.Addr(i+1), 0)
	}
	nodes := make([]*Node, count+1) // 1-indexed
	for i := 1; i <= count; i++ {
		addr := meshwire.Addr(i)
		n := New(addr, bus.Host(addr))
		n.Init()
		nodes[i] = n
	}
	return bus, nodes
}

func TestBroadcastFloodsAcrossChain(t *testing.T) {
	bus, nodes := buildChain(t, 5)

	var received []meshwire.Addr
	for i := 2; i <= 5; i++ {
		i := i
		nodes[i].OnRecv(func(src meshwire.Addr, data []byte) {
			received = append(received, meshwire.Addr(i))
			if string(data) != "hello" {
				t.Fatalf("node %d got data %q, want hello", i, data)
			}
		})
	}

	if err := nodes[1].Broadcast([]byte("hello")); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	// node 2 is an immediate neighbor and gets it synchronously; the rest
	// only arrive once the jittered reflood timers fire.
	for i := 0; i < 4; i++ {
		bus.Advance(DelayMaxMs + 1)
	}

	if len(received) != 4 {
		t.Fatalf("received from %d nodes, want 4: %v", len(received), received)
	}
}

func TestDuplicateBroadcastNotRedelivered(t *testing.T) {
	bus, nodes := buildChain(t, 3)

	count := 0
	nodes[3].OnRecv(func(meshwire.Addr, []byte) { count++ })

	if err := nodes[1].Broadcast([]byte("x")); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	for i := 0; i < 4; i++ {
		bus.Advance(DelayMaxMs + 1)
	}
	if count != 1 {
		t.Fatalf("node 3 delivered %d times, want 1", count)
	}
}

func TestUnicastForwardsAlongStaticRoute(t *testing.T) {
	bus, nodes := buildChain(t, 3)
	_ = bus

	nodes[1].AddStaticRoute(3, 2, 1)
	nodes[2].AddStaticRoute(3, 3, 0)

	var gotSrc meshwire.Addr
	var gotData []byte
	nodes[3].OnRecv(func(src meshwire.Addr, data []byte) {
		gotSrc = src
		gotData = data
	})

	if err := nodes[1].Send(3, []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotSrc != 1 || string(gotData) != "ping" {
		t.Fatalf("node 3 got src=%d data=%q, want src=1 data=ping", gotSrc, gotData)
	}
}

func TestSendWithNoRouteReturnsErrAndStillEmits(t *testing.T) {
	bus, nodes := buildChain(t, 2)
	_ = bus

	var seen []meshwire.Message
	nodes[2].SetDispatchInterceptor(func(m meshwire.Message) bool {
		seen = append(seen, m)
		return true
	})

	err := nodes[1].Send(99, []byte("x"))
	if err != ErrNoRoute {
		t.Fatalf("Send with no route = %v, want ErrNoRoute", err)
	}
	if len(seen) != 1 || seen[0].Type != meshwire.UserData || seen[0].Dst != 99 || seen[0].NextHop != 1 {
		t.Fatalf("neighbor saw %+v, want one user_data to 99 with next_hop 1", seen)
	}
}

// TestRouteDebugTracesAsciiPath exercises a route_debug round trip across a
// 7-node chain (the longest chain a single TTLDefault budget can cross) and
// checks the delivered path is the '>'/'<'-joined ascii decimal string the
// spec requires, not raw address bytes.
func TestRouteDebugTracesAsciiPath(t *testing.T) {
	bus, nodes := buildChain(t, 7)
	_ = bus

	for i := 1; i <= 6; i++ {
		nodes[i].AddStaticRoute(7, meshwire.Addr(i+1), 1)
	}
	for i := 2; i <= 7; i++ {
		nodes[i].AddStaticRoute(1, meshwire.Addr(i-1), 1)
	}

	var forwardSrc, backwardSrc meshwire.Addr
	var forwardPath, backwardPath []byte
	nodes[7].OnRecvDebug(func(src meshwire.Addr, path []byte) {
		forwardSrc = src
		forwardPath = path
	})
	nodes[1].OnRecvDebug(func(src meshwire.Addr, path []byte) {
		backwardSrc = src
		backwardPath = path
	})

	if err := nodes[1].SendRouteDebug(7); err != nil {
		t.Fatalf("SendRouteDebug: %v", err)
	}

	if forwardSrc != 1 {
		t.Fatalf("forward trace src = %d, want 1", forwardSrc)
	}
	if string(forwardPath) != "1>2>3>4>5>6>7" {
		t.Fatalf("forward path = %q, want 1>2>3>4>5>6>7", forwardPath)
	}
	if backwardSrc != 7 {
		t.Fatalf("backward trace src = %d, want 7", backwardSrc)
	}
	if string(backwardPath) != "7<6<5<4<3<2<1" {
		t.Fatalf("backward path = %q, want 7<6<5<4<3<2<1", backwardPath)
	}
}

func TestRouteInfoIngestionAddsRoute(t *testing.T) {
	bus, nodes := buildChain(t, 2)
	_ = bus

	// node2 advertises its own table (self route, metric 0) to node1.
	if err := nodes[2].SyncRoute(false); err != nil {
		t.Fatalf("SyncRoute: %v", err)
	}

	e, ok := nodes[1].routes.Find(2)
	if !ok {
		t.Fatal("node 1 should have learned a route to node 2")
	}
	if e.NextHop != 2 || e.Origin != routetable.Dynamic {
		t.Fatalf("got %+v", e)
	}
}
