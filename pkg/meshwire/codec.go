// Package meshwire implements the mesh wire-format codec: the fixed-order,
// CRC-protected frame that every node on the link layer exchanges.
//
// Field order on the wire (all multi-byte integers little-endian):
//
//	magic(1) version(1) length(1) type_ttl(1) src(1) dst(1) seq(1) ts(4)
//	[next_hop(1)] data(n) crc(2)
//
// length counts every byte following the length field itself, so it
// excludes magic, version, and length. next_hop is present iff the
// message type is one of UserData, RouteDebugSend, RouteDebugBack.
package meshwire

import "fmt"

// Addr is an 8-bit node address. 0x00 is reserved/unset, 0xFF is the
// link-local broadcast address, 0x01-0xFE are unicast.
type Addr = uint8

// Seq is an 8-bit per-source sequence counter. It wraps.
type Seq = uint8

// Ttl is the hop budget carried in a frame. The wire format packs it into
// the low nibble of the type/ttl byte, so only values 0-15 are meaningful.
type Ttl = uint8

// Ts is milliseconds since node start (or epoch); wraps at 2^32.
type Ts = uint32

// Lqs is a signed link-quality score, larger is better. It is never put on
// the wire; it is reported by the link layer at the moment of reception.
type Lqs = int8

const (
	// BroadcastAddr is the link-local broadcast destination (0xFF).
	BroadcastAddr Addr = 0xFF
	// UnsetAddr marks a reserved/unassigned address (0x00).
	UnsetAddr Addr = 0x00

	// Magic is the fixed first byte of every frame.
	Magic byte = 0x3C
	// Version is the compile-time protocol version this codec emits and
	// requires on parse.
	Version byte = 0x01

	// TTLDefault is the initial hop budget for emitted frames.
	TTLDefault Ttl = 5

	// fixedOverhead is every byte of a frame except next_hop and data:
	// magic, version, length, type_ttl, src, dst, seq, ts(4), crc(2).
	fixedOverhead = 13
	// DataMax is the largest payload this codec will serialize.
	DataMax = 250
	// MsgMin is the smallest possible well-formed frame (no next_hop, no data).
	MsgMin = fixedOverhead
	// MsgMax is the largest possible well-formed frame.
	MsgMax = 263
)

// MessageType identifies the seven frame kinds the engine understands.
type MessageType uint8

const (
	RouteInfo           MessageType = 0
	RouteInfoAndRequest MessageType = 1
	SyncTime            MessageType = 2
	Broadcast           MessageType = 3
	UserData            MessageType = 4
	RouteDebugSend      MessageType = 5
	RouteDebugBack      MessageType = 6
)

func (t MessageType) valid() bool {
	return t <= RouteDebugBack
}

// hasNextHop reports whether the wire format carries a next_hop byte for
// this message type.
func (t MessageType) hasNextHop() bool {
	switch t {
	case UserData, RouteDebugSend, RouteDebugBack:
		return true
	default:
		return false
	}
}

// Message is a fully-parsed or fully-populated mesh frame.
type Message struct {
	Type MessageType
	Ttl  Ttl
	Src  Addr
	Dst  Addr
	Seq  Seq
	Ts   Ts

	// NextHop is meaningful only when Type.hasNextHop(); zero otherwise.
	NextHop Addr
	Data    []byte
}

// NewUserData builds a unicast user-data message addressed via nextHop.
func NewUserData(src, dst, nextHop Addr, seq Seq, ttl Ttl, ts Ts, data []byte) Message {
	return Message{Type: UserData, Ttl: ttl, Src: src, Dst: dst, Seq: seq, Ts: ts, NextHop: nextHop, Data: data}
}

// NewBroadcast builds a link-wide flood message; Dst is ignored by receivers.
func NewBroadcast(src Addr, seq Seq, ttl Ttl, ts Ts, data []byte) Message {
	return Message{Type: Broadcast, Ttl: ttl, Src: src, Seq: seq, Ts: ts, Data: data}
}

// NewSyncTime builds a time-synchronization flood message.
func NewSyncTime(src Addr, seq Seq, ttl Ttl, ts Ts) Message {
	return Message{Type: SyncTime, Ttl: ttl, Src: src, Seq: seq, Ts: ts}
}

// NewRouteInfo builds a routing-advertisement message carrying a packed
// RouteMsg payload. When request is true the type is RouteInfoAndRequest.
func NewRouteInfo(src Addr, seq Seq, ttl Ttl, ts Ts, payload []byte, request bool) Message {
	t := RouteInfo
	if request {
		t = RouteInfoAndRequest
	}
	return Message{Type: t, Ttl: ttl, Src: src, Seq: seq, Ts: ts, Data: payload}
}

// NewRouteDebug builds a route-trace message; outbound selects
// RouteDebugSend, otherwise RouteDebugBack.
func NewRouteDebug(src, dst, nextHop Addr, seq Seq, ttl Ttl, ts Ts, data []byte, outbound bool) Message {
	t := RouteDebugBack
	if outbound {
		t = RouteDebugSend
	}
	return Message{Type: t, Ttl: ttl, Src: src, Dst: dst, Seq: seq, Ts: ts, NextHop: nextHop, Data: data}
}

// UUID is the 32-bit per-message dedup identifier.
type UUID = uint32

// CalUUID computes the dedup identifier of a message from its src, seq and
// ts: (src<<24)|(seq<<16)|(ts&0xFFFF).
//
// A retransmission of the same message keeps the same UUID. A fresh message
// from the same (src, seq) collides only if the low 16 bits of ts also
// repeat, which can happen across a seq wrap within a short window; this is
// an accepted, documented limitation rather than a bug (see SPEC_FULL.md).
func CalUUID(src Addr, seq Seq, ts Ts) UUID {
	return (uint32(src) << 24) | (uint32(seq) << 16) | (uint32(ts) & 0xFFFF)
}

// ParseReason identifies why Parse rejected a frame.
type ParseReason int

const (
	_ ParseReason = iota
	SizeOutOfRange
	BadMagic
	BadVersion
	BadLength
	BadType
	BadCrc
)

func (r ParseReason) String() string {
	switch r {
	case SizeOutOfRange:
		return "size_out_of_range"
	case BadMagic:
		return "bad_magic"
	case BadVersion:
		return "bad_version"
	case BadLength:
		return "bad_length"
	case BadType:
		return "bad_type"
	case BadCrc:
		return "bad_crc"
	default:
		return "unknown"
	}
}

// ParseError reports why a frame failed to parse. Callers that need to
// count drops by reason should switch on Reason rather than the message.
type ParseError struct {
	Reason ParseReason
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("meshwire: parse failed: %s", e.Reason)
}

// Serialize encodes m into a wire frame. It returns an error if m.Data
// exceeds DataMax; this is the caller's SizeExceeded condition, not a
// ParseError.
func Serialize(m Message) ([]byte, error) {
	if len(m.Data) > DataMax {
		return nil, fmt.Errorf("meshwire: data length %d exceeds DataMax %d", len(m.Data), DataMax)
	}
	if !m.Type.valid() {
		return nil, fmt.Errorf("meshwire: invalid message type %d", m.Type)
	}

	hasNextHop := m.Type.hasNextHop()
	bodySize := 1 /*type_ttl*/ + 1 /*src*/ + 1 /*dst*/ + 1 /*seq*/ + 4 /*ts*/ + len(m.Data) + 2 /*crc*/
	if hasNextHop {
		bodySize++
	}
	total := 3 + bodySize // magic, version, length

	buf := make([]byte, 0, total)
	buf = append(buf, Magic, Version, byte(total-3))
	buf = append(buf, byte(m.Type)<<4|(m.Ttl&0x0F))
	buf = append(buf, m.Src, m.Dst, m.Seq)
	buf = appendUint32LE(buf, m.Ts)
	if hasNextHop {
		buf = append(buf, m.NextHop)
	}
	buf = append(buf, m.Data...)

	crc := CRC16CCITTFalse(buf)
	buf = appendUint16LE(buf, crc)
	return buf, nil
}

// Parse decodes a wire frame into a Message, validating magic, version,
// length, type, and CRC. The returned *ParseError's Reason identifies the
// first check that failed.
func Parse(b []byte) (Message, error) {
	var m Message
	if len(b) < MsgMin || len(b) > MsgMax {
		return m, &ParseError{Reason: SizeOutOfRange}
	}
	if b[0] != Magic {
		return m, &ParseError{Reason: BadMagic}
	}
	if b[1] != Version {
		return m, &ParseError{Reason: BadVersion}
	}
	length := b[2]
	if int(length) != len(b)-3 {
		return m, &ParseError{Reason: BadLength}
	}

	typeTTL := b[3]
	t := MessageType(typeTTL >> 4)
	if !t.valid() {
		return m, &ParseError{Reason: BadType}
	}
	ttl := typeTTL & 0x0F

	// 4 (magic/version/length/type_ttl) + src + dst + seq + ts(4) = 11,
	// plus next_hop when this type carries one, plus the 2-byte trailing
	// CRC. A frame whose declared length passed the check above but is
	// still too short to hold these fields must be rejected here, before
	// any of the field/CRC slicing below can run past the end of b.
	requiredLen := 11 + 2
	if t.hasNextHop() {
		requiredLen++
	}
	if len(b) < requiredLen {
		return m, &ParseError{Reason: BadLength}
	}

	wantCRC := CRC16CCITTFalse(b[:len(b)-2])
	gotCRC := uint16(b[len(b)-2]) | uint16(b[len(b)-1])<<8
	if wantCRC != gotCRC {
		return m, &ParseError{Reason: BadCrc}
	}

	off := 4
	src := b[off]
	off++
	dst := b[off]
	off++
	seq := b[off]
	off++
	ts := readUint32LE(b[off : off+4])
	off += 4

	var nextHop Addr
	if t.hasNextHop() {
		nextHop = b[off]
		off++
	}
	data := b[off : len(b)-2]

	m = Message{
		Type:    t,
		Ttl:     ttl,
		Src:     src,
		Dst:     dst,
		Seq:     seq,
		Ts:      ts,
		NextHop: nextHop,
		Data:    append([]byte(nil), data...),
	}
	return m, nil
}

func appendUint16LE(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendUint32LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func readUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
