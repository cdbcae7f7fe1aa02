package fixint

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"int8", Size[int8](), 1},
		{"uint16", Size[uint16](), 2},
		{"int32", Size[int32](), 4},
		{"uint64", Size[uint64](), 8},
		{"int64", Size[int64](), 8},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Size[%s]() = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestPutGet(t *testing.T) {
	buf := make([]byte, 8)

	Put(buf, uint32(0xdeadbeef))
	if got := binary.LittleEndian.Uint32(buf); got != 0xdeadbeef {
		t.Fatalf("Put uint32 wrote %#x, want little-endian 0xdeadbeef", got)
	}
	if got := Get[uint32](buf); got != 0xdeadbeef {
		t.Fatalf("Get[uint32] = %#x", got)
	}

	for _, v := range []int16{0, 1, -1, math.MinInt16, math.MaxInt16} {
		Put(buf, v)
		if got := Get[int16](buf); got != v {
			t.Errorf("int16 round trip: got %d, want %d", got, v)
		}
	}
	for _, v := range []int64{0, -2, math.MinInt64, math.MaxInt64} {
		Put(buf, v)
		if got := Get[int64](buf); got != v {
			t.Errorf("int64 round trip: got %d, want %d", got, v)
		}
	}
	Put(buf, int8(-5))
	if got := Get[int8](buf); got != -5 {
		t.Errorf("int8 round trip: got %d", got)
	}
}

func TestAppend(t *testing.T) {
	var buf []byte
	buf = Append(buf, uint16(0x0102))
	buf = Append(buf, uint64(7))
	if len(buf) != 10 {
		t.Fatalf("len = %d, want 10", len(buf))
	}
	if buf[0] != 0x02 || buf[1] != 0x01 {
		t.Errorf("uint16 bytes = %x, want 0201", buf[:2])
	}
	if got := Get[uint64](buf[2:]); got != 7 {
		t.Errorf("Get[uint64] = %d, want 7", got)
	}
}

func TestSignedBytes(t *testing.T) {
	if got := Append(nil, int8(-2)); len(got) != 1 || got[0] != 0xfe {
		t.Errorf("Append(int8(-2)) = % x", got)
	}
	if got := Append(nil, int16(-2)); len(got) != 2 || got[0] != 0xfe || got[1] != 0xff {
		t.Errorf("Append(int16(-2)) = % x", got)
	}
	buf := make([]byte, 8)
	Put(buf, int32(-1))
	if got := binary.LittleEndian.Uint32(buf); got != math.MaxUint32 {
		t.Errorf("Put(int32(-1)) wrote %#x", got)
	}
	if buf[4] != 0 {
		t.Errorf("Put(int32) wrote past its width: % x", buf)
	}
}
