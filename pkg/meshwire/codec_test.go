package meshwire

import "testing"

func TestSerializeParseRoundTrip(t *testing.T) {
	m := NewUserData(0x01, 0x02, 0x03, 7, TTLDefault, 123456, []byte("hi"))
	b, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// 13 fixed bytes + 1 next_hop + 2 data bytes = 16
	if len(b) != 16 {
		t.Fatalf("len(b) = %d, want 16", len(b))
	}

	got, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Type != UserData || got.Src != 0x01 || got.Dst != 0x02 || got.NextHop != 0x03 ||
		got.Seq != 7 || got.Ts != 123456 || string(got.Data) != "hi" || got.Ttl != TTLDefault {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestParseRejectsCorruptedCRC(t *testing.T) {
	m := NewBroadcast(0x05, 1, TTLDefault, 1000, []byte("x"))
	b, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	b[len(b)-1] ^= 0xFF

	_, err = Parse(b)
	var perr *ParseError
	if err == nil {
		t.Fatal("expected error")
	}
	if !asParseError(err, &perr) || perr.Reason != BadCrc {
		t.Fatalf("expected BadCrc, got %v", err)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	m := NewSyncTime(0x05, 1, TTLDefault, 1000)
	b, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	b[0] = 0x00

	_, err = Parse(b)
	var perr *ParseError
	if !asParseError(err, &perr) || perr.Reason != BadMagic {
		t.Fatalf("expected BadMagic, got %v", err)
	}
}

func TestParseRejectsSizeOutOfRange(t *testing.T) {
	_, err := Parse(make([]byte, MsgMin-1))
	var perr *ParseError
	if !asParseError(err, &perr) || perr.Reason != SizeOutOfRange {
		t.Fatalf("expected SizeOutOfRange, got %v", err)
	}
}

func TestSerializeRejectsOversizeData(t *testing.T) {
	m := NewBroadcast(0x01, 1, TTLDefault, 0, make([]byte, DataMax+1))
	if _, err := Serialize(m); err == nil {
		t.Fatal("expected error for oversize data")
	}
}

func TestCalUUID(t *testing.T) {
	got := CalUUID(0x12, 0x34, 0xABCD1234)
	want := (uint32(0x12) << 24) | (uint32(0x34) << 16) | uint32(0x1234)
	if got != want {
		t.Fatalf("CalUUID = %#x, want %#x", got, want)
	}
}

func TestCRC16CCITTFalseKnownVector(t *testing.T) {
	// "123456789" -> 0x29B1 is the standard CRC-16/CCITT-FALSE check value.
	got := CRC16CCITTFalse([]byte("123456789"))
	if got != 0x29B1 {
		t.Fatalf("CRC16CCITTFalse = %#x, want 0x29b1", got)
	}
}

func asParseError(err error, out **ParseError) bool {
	pe, ok := err.(*ParseError)
	if !ok {
		return false
	}
	*out = pe
	return true
}
