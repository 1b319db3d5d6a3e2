// Package udpbroadcast is a reference meshhost.Host over UDP broadcast
// sockets — the canonical broadcast-only link layer pkg/meshnode targets.
//
// Grounded on source/server/server.go's listen/dispatch shape: one
// goroutine blocks in ReadFromUDP and hands each datagram off, one ticker
// drives periodic work. Here the receive goroutine and every scheduled
// callback funnel through a single worker goroutine and channel instead of
// being run inline, so pkg/meshnode's single-threaded assumption (see
// SPEC_FULL.md §5) holds even though the host itself is concurrent.
package udpbroadcast

import (
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"meshcore/pkg/meshhost"
	"meshcore/pkg/meshlog"
	"meshcore/pkg/meshwire"
)

// Host binds a UDP socket, listens for inbound frames, and sends outbound
// frames to a broadcast address. All host-facing calls into the node
// (receive callbacks and scheduled callbacks) run serialized on one
// worker goroutine.
type Host struct {
	conn          *net.UDPConn
	broadcastAddr *net.UDPAddr
	logger        *meshlog.Logger

	mu   sync.Mutex
	recv meshhost.ReceiveFunc

	work      chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// New binds bindAddr (e.g. "0.0.0.0:7373") and prepares to send frames to
// broadcastAddr (e.g. "255.255.255.255:7373"). logger may be nil.
func New(bindAddr, broadcastAddr string, logger *meshlog.Logger) (*Host, error) {
	laddr, err := net.ResolveUDPAddr("udp4", bindAddr)
	if err != nil {
		return nil, err
	}
	baddr, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, err
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, err
	}

	h := &Host{
		conn:          conn,
		broadcastAddr: baddr,
		logger:        logger,
		work:          make(chan func(), 256),
		done:          make(chan struct{}),
	}
	go h.listen()
	go h.worker()
	return h, nil
}

// enableBroadcast sets SO_BROADCAST on the socket, which the kernel
// otherwise refuses for sends to a broadcast address.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

func (h *Host) listen() {
	buf := make([]byte, meshwire.MsgMax)
	for {
		n, _, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-h.done:
				return
			default:
			}
			h.logger.Warnw("udpbroadcast: read failed", "err", err)
			continue
		}
		frame := append([]byte(nil), buf[:n]...)
		h.postWork(func() {
			h.mu.Lock()
			recv := h.recv
			h.mu.Unlock()
			if recv != nil {
				recv(frame, 0)
			}
		})
	}
}

func (h *Host) worker() {
	for {
		select {
		case fn := <-h.work:
			fn()
		case <-h.done:
			return
		}
	}
}

func (h *Host) postWork(fn func()) {
	select {
	case h.work <- fn:
	case <-h.done:
	}
}

// Broadcast sends frame to the configured broadcast address.
func (h *Host) Broadcast(frame []byte) error {
	_, err := h.conn.WriteToUDP(frame, h.broadcastAddr)
	return err
}

// NowMs returns the current wall-clock time in milliseconds.
func (h *Host) NowMs() meshwire.Ts {
	return meshwire.Ts(time.Now().UnixMilli())
}

// ScheduleAfter arranges for fn to run on the worker goroutine once
// delayMs have elapsed.
func (h *Host) ScheduleAfter(delayMs uint32, fn func()) {
	time.AfterFunc(time.Duration(delayMs)*time.Millisecond, func() {
		h.postWork(fn)
	})
}

// OnReceive registers the node's receive callback.
func (h *Host) OnReceive(fn meshhost.ReceiveFunc) {
	h.mu.Lock()
	h.recv = fn
	h.mu.Unlock()
}

// Close stops the worker and listen goroutines and releases the socket.
// Any ScheduleAfter callback still pending observes the closed done
// channel and is silently dropped rather than delivered.
func (h *Host) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return h.conn.Close()
}
