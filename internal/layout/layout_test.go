package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Version:     Version,
		Fingerprint: 0x0123456789abcdef,
		RowSize:     14,
		Capacity:    2,
		NextRowID:   1,
		ID:          uuid.New(),
		Created:     1_700_000_000_000_000_000,
		Name:        "Documents",
		Description: "My documents",
	}
	p := make([]byte, HeaderSize)
	for i := range p {
		p[i] = 0xee
	}
	h.Put(p)

	if string(p[:4]) != "LDGR" {
		t.Fatalf("magic = %q", p[:4])
	}
	if p[offVersion] != 1 || p[offRowSize] != 14 || p[offCapacity] != 2 {
		t.Fatalf("fields are not little-endian: % x", p[:40])
	}
	for i := offReserved; i < HeaderSize; i++ {
		if p[i] != 0 {
			t.Fatalf("reserved byte %d = %#x", i, p[i])
		}
	}

	got, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != h {
		t.Fatalf("Decode() = %+v\nwant %+v", got, h)
	}

	SetNextRowID(p, 2)
	SetCapacity(p, 32)
	if NextRowID(p) != 2 || Capacity(p) != 32 {
		t.Fatalf("in-place fields = %d, %d", NextRowID(p), Capacity(p))
	}
}

func TestDecodeErrors(t *testing.T) {
	h := Header{Version: Version, RowSize: 1}
	p := make([]byte, HeaderSize)
	h.Put(p)

	if _, err := Decode(p[:HeaderSize-1]); !errors.Is(err, ErrBadMagic) {
		t.Errorf("short header: %v", err)
	}

	bad := append([]byte(nil), p...)
	bad[0] = 'X'
	if _, err := Decode(bad); !errors.Is(err, ErrBadMagic) {
		t.Errorf("bad magic: %v", err)
	}

	h.Version = 2
	h.RowSize = 9
	h.Put(p)
	if _, err := Decode(p); !errors.Is(err, ErrBadVersion) {
		t.Errorf("bad version: %v", err)
	}
	if got := Fields(p); got.Version != 2 || got.RowSize != 9 {
		t.Errorf("Fields() = %+v", got)
	}
}

func TestValidate(t *testing.T) {
	h := Header{Name: string(make([]byte, NameSize))}
	if err := h.Validate(); err != nil {
		t.Fatalf("name at limit: %v", err)
	}
	h.Name += "x"
	if err := h.Validate(); !errors.Is(err, ErrFieldLength) {
		t.Fatalf("long name: %v", err)
	}
	h = Header{Description: string(make([]byte, DescriptionSize+1))}
	if err := h.Validate(); !errors.Is(err, ErrFieldLength) {
		t.Fatalf("long description: %v", err)
	}
}

func TestOffset(t *testing.T) {
	if got := Offset(0, 14); got != HeaderSize {
		t.Errorf("Offset(0) = %d", got)
	}
	if got := Offset(3, 14); got != HeaderSize+42 {
		t.Errorf("Offset(3) = %d", got)
	}
	if got, ok := FileSize(2, 14); !ok || got != HeaderSize+28 {
		t.Errorf("FileSize(2) = %d, %t", got, ok)
	}
	if _, ok := FileSize(math.MaxUint64/2, 14); ok {
		t.Error("FileSize did not report overflow")
	}
}

func TestNextCapacity(t *testing.T) {
	tests := []struct {
		cur, limit uint64
		want       uint64
		ok         bool
	}{
		{0, math.MaxUint32, 16, true},
		{2, math.MaxUint32, 16, true},
		{15, math.MaxUint32, 16, true},
		{16, math.MaxUint32, 32, true},
		{17, math.MaxUint32, 34, true},
		{16, 20, 20, true},
		{1000, math.MaxUint32, 2000, true},
		{2, 3, 3, true},
		{20, 30, 30, true},
		{30, 30, 30, false},
		{math.MaxUint64 / 2, math.MaxUint64, math.MaxUint64 / 2, false},
	}
	for _, tt := range tests {
		got, ok := NextCapacity(tt.cur, tt.limit, 8)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NextCapacity(%d, %d) = %d, %t, want %d, %t", tt.cur, tt.limit, got, ok, tt.want, tt.ok)
		}
	}
}

func TestReserve(t *testing.T) {
	if got, ok := Reserve(2, 100, math.MaxUint32, 8); !ok || got != 128 {
		t.Errorf("Reserve(2, 100) = %d, %t", got, ok)
	}
	if got, ok := Reserve(16, 17, math.MaxUint32, 8); !ok || got != 32 {
		t.Errorf("Reserve(16, 17) = %d, %t", got, ok)
	}
	if got, ok := Reserve(16, 1000, math.MaxUint32, 8); !ok || got != 1024 {
		t.Errorf("Reserve(16, 1000) = %d, %t", got, ok)
	}
	if got, ok := Reserve(200, 100, math.MaxUint32, 8); !ok || got != 200 {
		t.Errorf("Reserve below capacity = %d, %t", got, ok)
	}
	if got, ok := Reserve(2, 100, 50, 8); ok || got != 2 {
		t.Errorf("Reserve past limit = %d, %t", got, ok)
	}
}
