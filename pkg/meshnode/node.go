// Package meshnode implements the per-node protocol engine: unicast
// delivery over a learned next hop, link-wide broadcast and time-sync
// floods, and distance-vector route advertisement, all driven by a single
// meshhost.Host collaborator and a single-threaded cooperative dispatch
// loop (see pkg/meshhost for the Host contract).
package meshnode

import (
	"errors"
	"strconv"

	"meshcore/pkg/dedup"
	"meshcore/pkg/jitter"
	"meshcore/pkg/meshhost"
	"meshcore/pkg/meshlog"
	"meshcore/pkg/meshwire"
	"meshcore/pkg/routetable"
)

// Errors returned by the node's outbound operations. None of these ever
// propagate out of the receive path; malformed or undeliverable inbound
// frames are logged and counted, never returned to a caller.
var (
	ErrSizeExceeded      = errors.New("meshnode: payload exceeds DataMax")
	ErrNoRoute           = errors.New("meshnode: no route to destination")
	ErrInterceptorVetoed = errors.New("meshnode: outbound frame vetoed by interceptor")
)

// Default jitter window for rebroadcast delay, in milliseconds.
const (
	DelayMinMs = 10
	DelayMaxMs = 300
)

// Periodic timer intervals the engine self-arms from Init, per the
// "Recursive scheduling" design note: each callback reschedules itself
// via host.ScheduleAfter at the end of its own run.
const (
	RouteSyncIntervalMs  = 30_000
	RouteCheckIntervalMs = 10_000
)

// routesPerFrame is floor(DataMax / 3): the most packed {dst,next_hop,
// metric} triples that fit in one route_info frame's payload.
const routesPerFrame = meshwire.DataMax / 3

// Logger is the subset of *meshlog.Logger the node calls. Satisfied by a
// nil *meshlog.Logger, which makes every call a no-op.
type Logger interface {
	Debugw(msg string, kv ...interface{})
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
}

// Metrics is the subset of *meshmetrics.Metrics the node calls. Satisfied
// by a nil *meshmetrics.Metrics, which makes every call a no-op.
type Metrics interface {
	DroppedFrame(reason string)
	ReceivedFrame()
	SentFrame()
	SetRouteTableSize(n int)
}

// Node is one mesh participant: its own address, routing table, dedup
// cache, and the callbacks a caller wires up to observe inbound traffic.
type Node struct {
	self meshwire.Addr
	host meshhost.Host

	seq          meshwire.Seq
	jitterTicks  uint32
	dedup        *dedup.Recent
	routes       *routetable.Table
	logger       Logger
	metrics      Metrics

	onRecv      func(src meshwire.Addr, data []byte)
	onSyncTime  func(src meshwire.Addr, ts meshwire.Ts)
	onRecvDebug func(src meshwire.Addr, path []byte)

	broadcastInterceptor func(meshwire.Message) bool
	dispatchInterceptor  func(meshwire.Message) bool
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithLogger attaches a logging collaborator.
func WithLogger(l Logger) Option {
	return func(n *Node) { n.logger = l }
}

// WithMetrics attaches a metrics collaborator.
func WithMetrics(m Metrics) Option {
	return func(n *Node) { n.metrics = m }
}

// WithDedupSize overrides the recent-UUID cache capacity (default
// dedup.DefaultSize).
func WithDedupSize(size int) Option {
	return func(n *Node) { n.dedup = dedup.New(size) }
}

// WithRouteCapacity overrides the routing table capacity (default
// routetable.DefaultCapacity).
func WithRouteCapacity(capacity int) Option {
	return func(n *Node) { n.routes = routetable.New(n.self, capacity) }
}

// New creates a Node for address self, talking to host. Call Init before
// sending or receiving anything.
func New(self meshwire.Addr, host meshhost.Host, opts ...Option) *Node {
	n := &Node{
		self:    self,
		host:    host,
		dedup:   dedup.New(dedup.DefaultSize),
		routes:  routetable.New(self, routetable.DefaultCapacity),
		logger:  meshlog.Nop(),
		metrics: nil,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Init installs the node's own route (metric 0, itself as next hop),
// registers the receive callback with the host, emits one
// route_info_and_request to solicit neighbor tables, and starts the two
// periodic timers (routing sync, expiry sweep). Call it exactly once,
// after the host is otherwise ready.
func (n *Node) Init() {
	n.routes.AddOrReplace(routetable.Entry{
		Dst:     n.self,
		NextHop: n.self,
		Metric:  0,
		Lqs:     meshwire.Lqs(127),
		Origin:  routetable.Static,
	})
	n.reportRouteTableSize()
	n.host.OnReceive(n.handleReceive)

	if err := n.SyncRoute(true); err != nil {
		n.logger.Warnw("initial route solicitation failed", "err", err)
	}
	n.scheduleRouteSync()
	n.scheduleExpirySweep()
}

// scheduleRouteSync arms a one-shot timer that advertises this node's
// routing table and then rearms itself, giving a periodic routing-sync
// flood on top of meshhost.Host's single-shot ScheduleAfter primitive.
func (n *Node) scheduleRouteSync() {
	n.host.ScheduleAfter(RouteSyncIntervalMs, func() {
		if err := n.SyncRoute(true); err != nil {
			n.logger.Warnw("periodic route sync failed", "err", err)
		}
		n.scheduleRouteSync()
	})
}

// scheduleExpirySweep arms a one-shot timer that evicts expired dynamic
// routes and then rearms itself.
func (n *Node) scheduleExpirySweep() {
	n.host.ScheduleAfter(RouteCheckIntervalMs, func() {
		n.routes.SweepExpired(n.host.NowMs())
		n.reportRouteTableSize()
		n.scheduleExpirySweep()
	})
}

// OnRecv registers the callback invoked for every user_data frame
// addressed to this node and every delivered broadcast.
func (n *Node) OnRecv(fn func(src meshwire.Addr, data []byte)) {
	n.onRecv = fn
}

// OnSyncTime registers the callback invoked for every delivered
// sync_time flood.
func (n *Node) OnSyncTime(fn func(src meshwire.Addr, ts meshwire.Ts)) {
	n.onSyncTime = fn
}

// OnRecvDebug registers the callback invoked when a route_debug frame
// (outbound trace or its reply) reaches this node.
func (n *Node) OnRecvDebug(fn func(src meshwire.Addr, path []byte)) {
	n.onRecvDebug = fn
}

// SetBroadcastInterceptor installs a veto hook called just before any
// frame this node originates is handed to the host. Returning false drops
// the frame and Send/Broadcast/etc. return ErrInterceptorVetoed.
func (n *Node) SetBroadcastInterceptor(fn func(meshwire.Message) bool) {
	n.broadcastInterceptor = fn
}

// SetDispatchInterceptor installs a veto hook called for every inbound
// frame immediately after parsing, before any other filtering. Returning
// false drops the frame.
func (n *Node) SetDispatchInterceptor(fn func(meshwire.Message) bool) {
	n.dispatchInterceptor = fn
}

// AddStaticRoute installs a route that the best-path rule will not evict
// in favor of a worse or equal dynamic advertisement, though a strictly
// better dynamic advertisement still overwrites it (see SPEC_FULL.md §9).
func (n *Node) AddStaticRoute(dst, nextHop meshwire.Addr, metric meshwire.Ttl) {
	n.routes.AddOrReplace(routetable.Entry{
		Dst:     dst,
		NextHop: nextHop,
		Metric:  metric,
		Origin:  routetable.Static,
	})
	n.reportRouteTableSize()
}

func (n *Node) nextSeq() meshwire.Seq {
	s := n.seq
	n.seq++
	return s
}

func (n *Node) reportRouteTableSize() {
	if n.metrics != nil {
		n.metrics.SetRouteTableSize(n.routes.Len())
	}
}

// emit runs the outbound interceptor, serializes msg, and hands it to the
// host, counting a sent frame on success.
func (n *Node) emit(msg meshwire.Message) error {
	if n.broadcastInterceptor != nil && !n.broadcastInterceptor(msg) {
		n.logger.Debugw("outbound frame vetoed", "type", msg.Type)
		return ErrInterceptorVetoed
	}
	frame, err := meshwire.Serialize(msg)
	if err != nil {
		n.logger.Errorw("serialize failed", "err", err, "type", msg.Type)
		return err
	}
	if err := n.host.Broadcast(frame); err != nil {
		n.logger.Warnw("host broadcast failed", "err", err)
		return err
	}
	if n.metrics != nil {
		n.metrics.SentFrame()
	}
	return nil
}

// Send transmits data to dst over the best known route. If no route is
// known, the frame is still emitted with next_hop set to this node's own
// address (so it dies at the first neighbor, per SPEC_FULL.md §9's
// open-question decision), and ErrNoRoute is returned alongside the send.
func (n *Node) Send(dst meshwire.Addr, data []byte) error {
	if len(data) > meshwire.DataMax {
		n.logger.Errorw("Send: payload too large", "len", len(data))
		return ErrSizeExceeded
	}
	nextHop := n.self
	var routeErr error
	if route, ok := n.routes.Find(dst); ok {
		nextHop = route.NextHop
	} else {
		routeErr = ErrNoRoute
	}
	msg := meshwire.NewUserData(n.self, dst, nextHop, n.nextSeq(), meshwire.TTLDefault, n.host.NowMs(), data)
	if err := n.emit(msg); err != nil {
		return err
	}
	return routeErr
}

// Broadcast floods data to every node on the mesh.
func (n *Node) Broadcast(data []byte) error {
	if len(data) > meshwire.DataMax {
		n.logger.Errorw("Broadcast: payload too large", "len", len(data))
		return ErrSizeExceeded
	}
	msg := meshwire.NewBroadcast(n.self, n.nextSeq(), meshwire.TTLDefault, n.host.NowMs(), data)
	return n.emit(msg)
}

// SyncTime floods this node's current clock reading so other nodes can
// coarsely align to it.
func (n *Node) SyncTime() error {
	msg := meshwire.NewSyncTime(n.self, n.nextSeq(), meshwire.TTLDefault, n.host.NowMs())
	return n.emit(msg)
}

// appendDebugHop appends one hop's ascii-decimal address to a route_debug
// path, separated from whatever precedes it by sep ('>' outbound, '<'
// return). The first hop has nothing to separate from, so sep is only
// written once data is non-empty.
func appendDebugHop(data []byte, sep byte, addr meshwire.Addr) []byte {
	if len(data) > 0 {
		data = append(data, sep)
	}
	return strconv.AppendUint(data, uint64(addr), 10)
}

// SendRouteDebug emits an outbound route trace addressed to dst; every
// relay along the path appends its own address to the payload before
// forwarding, and the destination answers with a return trace that starts
// from its own address and collects the hops on the way back.
func (n *Node) SendRouteDebug(dst meshwire.Addr) error {
	nextHop := n.self
	if route, ok := n.routes.Find(dst); ok {
		nextHop = route.NextHop
	}
	path := appendDebugHop(nil, '>', n.self)
	msg := meshwire.NewRouteDebug(n.self, dst, nextHop, n.nextSeq(), meshwire.TTLDefault, n.host.NowMs(), path, true)
	return n.emit(msg)
}

// SyncRoute advertises this node's full routing table to its neighbors,
// split across frames of at most routesPerFrame triples. When
// requestReply is true, the final frame of the batch is sent as
// route_info_and_request, asking recipients to advertise back.
func (n *Node) SyncRoute(requestReply bool) error {
	var entries []routetable.Entry
	n.routes.Iter(func(e routetable.Entry) { entries = append(entries, e) })
	if len(entries) == 0 {
		return nil
	}
	for i := 0; i < len(entries); i += routesPerFrame {
		end := i + routesPerFrame
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[i:end]
		data := make([]byte, 0, len(chunk)*3)
		for _, e := range chunk {
			data = append(data, e.Dst, e.NextHop, byte(e.Metric))
		}
		isLast := end == len(entries)
		msg := meshwire.NewRouteInfo(n.self, n.nextSeq(), meshwire.TTLDefault, n.host.NowMs(), data, isLast && requestReply)
		if err := n.emit(msg); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) callOnRecv(src meshwire.Addr, data []byte) {
	if n.onRecv != nil {
		n.onRecv(src, data)
	}
}

func (n *Node) callOnSyncTime(src meshwire.Addr, ts meshwire.Ts) {
	if n.onSyncTime != nil {
		n.onSyncTime(src, ts)
	}
}

func (n *Node) callOnRecvDebug(src meshwire.Addr, path []byte) {
	if n.onRecvDebug != nil {
		n.onRecvDebug(src, path)
	}
}

func (n *Node) jitterDelay() uint16 {
	n.jitterTicks++
	seed := jitter.Seed(n.host.NowMs(), n.self, n.jitterTicks)
	return jitter.Random(seed, DelayMinMs, DelayMaxMs)
}
