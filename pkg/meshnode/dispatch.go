package meshnode

import (
	"meshcore/pkg/meshwire"
	"meshcore/pkg/routetable"
)

// handleReceive is the host's single entry point into the node: parse,
// run the dispatch interceptor, apply the common drop filters, then branch
// by message type into route ingestion, forward-or-deliver, or
// deliver-and-reflood.
func (n *Node) handleReceive(frame []byte, lqs meshwire.Lqs) {
	msg, err := meshwire.Parse(frame)
	if err != nil {
		reason := "parse_error"
		if pe, ok := err.(*meshwire.ParseError); ok {
			reason = pe.Reason.String()
		}
		n.drop(reason)
		n.logger.Warnw("dropped malformed frame", "reason", reason)
		return
	}
	if n.metrics != nil {
		n.metrics.ReceivedFrame()
	}

	if n.dispatchInterceptor != nil && !n.dispatchInterceptor(msg) {
		n.drop("interceptor_vetoed")
		n.logger.Debugw("dispatch vetoed", "type", msg.Type, "src", msg.Src)
		return
	}
	if msg.Src == n.self {
		n.drop("self_source")
		return
	}
	if msg.Ttl > meshwire.TTLDefault {
		n.drop("ttl_too_high")
		return
	}

	uuid := meshwire.CalUUID(msg.Src, msg.Seq, msg.Ts)
	if n.dedup.Exists(uuid) {
		n.drop("duplicate")
		return
	}
	n.dedup.Put(uuid)

	switch msg.Type {
	case meshwire.RouteInfo, meshwire.RouteInfoAndRequest:
		n.ingestRoutes(msg, lqs)
		if msg.Type == meshwire.RouteInfoAndRequest {
			if err := n.SyncRoute(false); err != nil {
				n.logger.Warnw("route reply failed", "err", err)
			}
		}
	case meshwire.Broadcast:
		n.callOnRecv(msg.Src, msg.Data)
		n.reflood(msg)
	case meshwire.SyncTime:
		n.callOnSyncTime(msg.Src, msg.Ts)
		n.reflood(msg)
	case meshwire.UserData, meshwire.RouteDebugSend, meshwire.RouteDebugBack:
		n.forwardOrDeliver(msg)
	}
}

func (n *Node) drop(reason string) {
	n.logger.Debugw("dropped frame", "reason", reason)
	if n.metrics != nil {
		n.metrics.DroppedFrame(reason)
	}
}

// ingestRoutes reads a route_info payload as a sequence of packed
// {dst, next_hop, metric} triples and folds each into the routing table,
// treating msg.Src as the direct neighbor that advertised it and adding
// one hop to the advertised metric.
func (n *Node) ingestRoutes(msg meshwire.Message, lqs meshwire.Lqs) {
	data := msg.Data
	for i := 0; i+3 <= len(data); i += 3 {
		dst := data[i]
		if dst == n.self {
			continue
		}
		metric := data[i+2]
		if uint16(metric)+1 > 0xFF {
			metric = 0xFF
		} else {
			metric++
		}
		n.routes.AddOrReplace(routetable.Entry{
			Dst:       dst,
			NextHop:   msg.Src,
			Metric:    metric,
			Lqs:       lqs,
			ExpiresAt: n.host.NowMs(),
			Origin:    routetable.Dynamic,
		})
	}
	n.reportRouteTableSize()
}

// reflood decrements ttl and schedules a jittered rebroadcast of a flood
// message (broadcast or sync_time), dropping it once ttl is exhausted.
func (n *Node) reflood(msg meshwire.Message) {
	if msg.Ttl == 0 {
		n.drop("ttl_exhausted")
		return
	}
	out := msg
	out.Ttl--
	frame, err := meshwire.Serialize(out)
	if err != nil {
		n.logger.Errorw("reflood serialize failed", "err", err)
		return
	}
	delay := n.jitterDelay()
	n.host.ScheduleAfter(uint32(delay), func() {
		if err := n.host.Broadcast(frame); err != nil {
			n.logger.Warnw("reflood broadcast failed", "err", err)
			return
		}
		if n.metrics != nil {
			n.metrics.SentFrame()
		}
	})
}

// forwardOrDeliver handles every next_hop-addressed message type. A frame
// addressed to this node is delivered regardless of next_hop (a stale
// next_hop left by the last forwarder must not sink an otherwise-arrived
// frame); anything else is dropped unless this node is the designated
// relay, in which case it forwards one hop closer along the best known
// route.
func (n *Node) forwardOrDeliver(msg meshwire.Message) {
	if msg.Dst == n.self {
		switch msg.Type {
		case meshwire.UserData:
			n.callOnRecv(msg.Src, msg.Data)
		case meshwire.RouteDebugSend:
			path := appendDebugHop(append([]byte(nil), msg.Data...), '>', n.self)
			n.callOnRecvDebug(msg.Src, path)
			n.replyRouteDebug(msg.Src, appendDebugHop(nil, '<', n.self))
		case meshwire.RouteDebugBack:
			path := appendDebugHop(append([]byte(nil), msg.Data...), '<', n.self)
			n.callOnRecvDebug(msg.Src, path)
		}
		return
	}
	if msg.NextHop != n.self {
		n.drop("not_designated_forwarder")
		return
	}
	if msg.Ttl == 0 {
		n.drop("ttl_exhausted")
		return
	}
	route, ok := n.routes.Find(msg.Dst)
	if !ok {
		n.drop("no_route")
		return
	}
	out := msg
	out.Ttl--
	out.NextHop = route.NextHop
	if msg.Type == meshwire.RouteDebugSend {
		out.Data = appendDebugHop(append([]byte(nil), msg.Data...), '>', n.self)
	} else if msg.Type == meshwire.RouteDebugBack {
		out.Data = appendDebugHop(append([]byte(nil), msg.Data...), '<', n.self)
	}
	frame, err := meshwire.Serialize(out)
	if err != nil {
		n.logger.Errorw("forward serialize failed", "err", err)
		return
	}
	if err := n.host.Broadcast(frame); err != nil {
		n.logger.Warnw("forward broadcast failed", "err", err)
		return
	}
	if n.metrics != nil {
		n.metrics.SentFrame()
	}
}

// replyRouteDebug sends the return trace to dst, seeded with path (this
// node's own hop, already appended by the caller).
func (n *Node) replyRouteDebug(dst meshwire.Addr, path []byte) {
	nextHop := n.self
	if route, ok := n.routes.Find(dst); ok {
		nextHop = route.NextHop
	}
	reply := meshwire.NewRouteDebug(n.self, dst, nextHop, n.nextSeq(), meshwire.TTLDefault, n.host.NowMs(), path, false)
	if err := n.emit(reply); err != nil {
		n.logger.Warnw("route debug reply failed", "err", err)
	}
}
