package ledger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jordanwade90/ledger/record"
	"github.com/jordanwade90/ledger/schema"
)

var docSchema = schema.Must(schema.NewBuilder().Uint32("id").String("title", 8).Build())

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func create(t *testing.T, s *schema.Schema, initial uint64) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ledger")
	l, err := Create(path, s, "Documents", "My documents", &Options{InitialCapacity: initial, Logger: quiet})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return l, path
}

func TestScenario(t *testing.T) {
	l, _ := create(t, docSchema, 2)
	defer l.Close()

	for i, title := range []string{"a", "bb", "ccc"} {
		id, err := l.Insert(uint32(i), title)
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		if id != uint64(i) {
			t.Fatalf("Insert(%d) id = %d", i, id)
		}
		if i == 1 && l.Cap() != 2 {
			t.Fatalf("Cap() = %d before growth", l.Cap())
		}
	}
	if l.Cap() <= 2 {
		t.Fatalf("third insert did not grow the ledger: Cap() = %d", l.Cap())
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d", l.Len())
	}

	v, ok := l.Row(1)
	if !ok || v.String(1) != "bb" {
		t.Fatalf("Row(1) = %v, %t", v.Values(), ok)
	}
	if _, ok := l.Row(5); ok {
		t.Fatal("Row(5) found a row")
	}

	m, ok := l.RowMut(0)
	if !ok {
		t.Fatal("RowMut(0) not found")
	}
	if err := m.SetString(1, "zzzzzzzz"); err != nil {
		t.Fatalf("SetString 8 bytes: %v", err)
	}
	if err := m.SetString(1, "zzzzzzzzz"); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("SetString 9 bytes = %v, want ErrStringTooLong", err)
	}
	if v, _ := l.Row(0); v.String(1) != "zzzzzzzz" {
		t.Fatalf("row 0 title = %q after failed SetString", v.String(1))
	}
}

func TestInsertErrors(t *testing.T) {
	l, _ := create(t, docSchema, 2)
	defer l.Close()

	if _, err := l.Insert(uint32(1), "123456789"); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("long title = %v", err)
	}
	if _, err := l.Insert(uint32(1)); !errors.Is(err, record.ErrFieldCount) {
		t.Fatalf("missing field = %v", err)
	}
	if _, err := l.Insert("x", "y"); !errors.Is(err, record.ErrFieldType) {
		t.Fatalf("wrong type = %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("failed inserts changed Len to %d", l.Len())
	}
	if v := l.RowUnchecked(0); v.Uint32(0) != 0 || v.String(1) != "" {
		t.Fatalf("failed insert wrote row 0: %v", v.Values())
	}
}

func TestCapacityOverflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l")
	l, err := Create(path, docSchema, "", "", &Options{InitialCapacity: 1, MaxRows: 2, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for i := range 2 {
		if _, err := l.Insert(i, "x"); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if _, err := l.Insert(2, "x"); !errors.Is(err, ErrCapacityOverflow) {
		t.Fatalf("Insert past MaxRows = %v", err)
	}
	if l.Len() != 2 || l.Cap() != 2 {
		t.Fatalf("Len, Cap = %d, %d", l.Len(), l.Cap())
	}
	if err := l.Grow(3); !errors.Is(err, ErrCapacityOverflow) {
		t.Fatalf("Grow past MaxRows = %v", err)
	}
}

func TestGrowthPreservesRows(t *testing.T) {
	l, path := create(t, docSchema, 2)
	defer l.Close()

	var before [][]byte
	for i := range 40 {
		id, err := l.Insert(uint32(i*7), string(rune('a'+i%26)))
		if err != nil {
			t.Fatal(err)
		}
		v, _ := l.Row(id)
		if i < 2 {
			before = append(before, append([]byte(nil), v.Row()...))
		}
	}
	for i, want := range before {
		v, _ := l.Row(uint64(i))
		if !bytes.Equal(v.Row(), want) {
			t.Fatalf("row %d changed across growth: % x, want % x", i, v.Row(), want)
		}
	}
	for id, v := range l.All() {
		if v.Uint32(0) != uint32(id*7) {
			t.Fatalf("row %d id = %d", id, v.Uint32(0))
		}
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(HeaderSize) + int64(l.Cap())*int64(docSchema.RowSize()); fi.Size() != want {
		t.Fatalf("file is %d bytes, want %d", fi.Size(), want)
	}
}

func TestGrowFromMinGrowth(t *testing.T) {
	l, _ := create(t, docSchema, 16)
	defer l.Close()

	for i := range 17 {
		if _, err := l.Insert(i, "x"); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if l.Cap() != 32 || l.Len() != 17 {
		t.Fatalf("Len, Cap = %d, %d", l.Len(), l.Cap())
	}
	if err := l.Grow(100); err != nil {
		t.Fatalf("Grow(100): %v", err)
	}
	if l.Cap() != 128 {
		t.Fatalf("Cap() after Grow(100) = %d", l.Cap())
	}

	v, _ := l.Row(16)
	if err := l.growTo(l.Cap()); !errors.Is(err, ErrCapacityOverflow) {
		t.Fatalf("growTo(Cap()) = %v, want ErrCapacityOverflow", err)
	}
	if !v.Valid() || l.Cap() != 128 {
		t.Fatal("rejected growth changed the ledger")
	}
}

func TestStaleViewAfterGrowth(t *testing.T) {
	l, _ := create(t, docSchema, 1)
	defer l.Close()

	if _, err := l.Insert(1, "a"); err != nil {
		t.Fatal(err)
	}
	v, _ := l.Row(0)
	if _, err := l.Insert(2, "b"); err != nil {
		t.Fatal(err)
	}
	if v.Valid() {
		t.Fatal("view survived growth")
	}
	defer func() {
		err, _ := recover().(error)
		if !errors.Is(err, record.ErrStaleView) {
			t.Fatalf("recovered %v, want ErrStaleView", err)
		}
	}()
	v.String(1)
}

func TestReopen(t *testing.T) {
	l, path := create(t, docSchema, 4)
	for i, title := range []string{"one", "two", "three"} {
		if _, err := l.Insert(i, title); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	created := l.Header()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second Close = %v", err)
	}
	if _, err := l.Insert(4, "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Insert after Close = %v", err)
	}

	renamed := schema.Must(schema.NewBuilder().Uint32("key").String("label", 8).Build())
	l, err := Open(path, renamed, &Options{Logger: quiet})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	h := l.Header()
	if h.ID != created.ID || h.Name != "Documents" || h.Description != "My documents" || !h.Created.Equal(created.Created) {
		t.Fatalf("header changed: %+v, was %+v", h, created)
	}
	if l.Len() != 3 || l.Cap() != 4 {
		t.Fatalf("Len, Cap = %d, %d", l.Len(), l.Cap())
	}
	if v, ok := l.Row(2); !ok || v.String(1) != "three" || v.Uint32(0) != 2 {
		t.Fatalf("Row(2) after reopen = %v", v.Values())
	}

	rh, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if rh != h {
		t.Fatalf("ReadHeader() = %+v, want %+v", rh, h)
	}
}

func TestOpenErrors(t *testing.T) {
	l, path := create(t, docSchema, 2)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	t.Run("schema mismatch", func(t *testing.T) {
		other := schema.Must(schema.NewBuilder().Uint32("id").String("title", 9).Build())
		if _, err := Open(path, other, nil); !errors.Is(err, ErrSchemaMismatch) {
			t.Fatalf("Open = %v, want ErrSchemaMismatch", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := Open(path+".missing", docSchema, nil); !errors.Is(err, ErrIO) || !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("Open = %v, want ErrIO wrapping ErrNotExist", err)
		}
	})

	t.Run("not a ledger", func(t *testing.T) {
		junk := filepath.Join(t.TempDir(), "junk")
		if err := os.WriteFile(junk, bytes.Repeat([]byte("junk"), 100), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(junk, docSchema, nil); !errors.Is(err, ErrBadFormat) {
			t.Fatalf("Open = %v, want ErrBadFormat", err)
		}
		if _, err := ReadHeader(junk); !errors.Is(err, ErrBadFormat) {
			t.Fatalf("ReadHeader = %v, want ErrBadFormat", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		short := filepath.Join(t.TempDir(), "short")
		if err := os.WriteFile(short, data[:len(data)-1], 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(short, docSchema, nil); !errors.Is(err, ErrBadFormat) {
			t.Fatalf("Open = %v, want ErrBadFormat", err)
		}
	})

	t.Run("exists", func(t *testing.T) {
		if _, err := Create(path, docSchema, "", "", nil); !errors.Is(err, ErrIO) || !errors.Is(err, os.ErrExist) {
			t.Fatalf("Create over existing = %v", err)
		}
	})
}

func TestInterruptedGrowth(t *testing.T) {
	l, path := create(t, docSchema, 2)
	if _, err := l.Insert(1, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	// Extend the file the way Grow does before it rewrites the header.
	if err := os.Truncate(path, int64(HeaderSize+4*docSchema.RowSize())); err != nil {
		t.Fatal(err)
	}

	l, err := Open(path, docSchema, &Options{Logger: quiet})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	if l.Cap() != 4 || l.Len() != 1 {
		t.Fatalf("Len, Cap = %d, %d", l.Len(), l.Cap())
	}
}

func TestCreateErrors(t *testing.T) {
	dir := t.TempDir()
	long := string(bytes.Repeat([]byte("n"), MaxNameLen+1))
	if _, err := Create(filepath.Join(dir, "a"), docSchema, long, "", nil); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("long name = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("failed Create left a file behind")
	}
	if _, err := Create(filepath.Join(dir, "missing", "b"), docSchema, "", "", nil); !errors.Is(err, ErrIO) {
		t.Fatalf("Create in missing dir = %v", err)
	}
}

func TestUnchecked(t *testing.T) {
	l, _ := create(t, docSchema, 2)
	defer l.Close()

	if err := l.Grow(20); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if l.Cap() < 20 {
		t.Fatalf("Cap() = %d after Grow(20)", l.Cap())
	}
	for i := range 20 {
		if id := l.InsertUnchecked(uint32(i), "a long title"); id != uint64(i) {
			t.Fatalf("InsertUnchecked id = %d", id)
		}
	}
	v := l.RowUnchecked(19)
	if v.Uint32(0) != 19 || v.String(1) != "a long t" {
		t.Fatalf("row 19 = %v", v.Values())
	}
	m := l.RowMutUnchecked(3)
	m.SetStringUnchecked(1, "truncated!")
	if got, _ := l.Row(3); got.String(1) != "truncate" {
		t.Fatalf("row 3 title = %q", got.String(1))
	}
}

func TestUpdate(t *testing.T) {
	l, _ := create(t, docSchema, 2)
	defer l.Close()

	if _, err := l.Insert(1, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Update(0, 9, "b"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v, _ := l.Row(0); v.Uint32(0) != 9 || v.String(1) != "b" {
		t.Fatalf("row 0 = %v", v.Values())
	}
	if err := l.Update(1, 9, "b"); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Update past Len = %v", err)
	}
	if err := l.Update(0, 10, "much too long"); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("Update long title = %v", err)
	}
	if v, _ := l.Row(0); v.Uint32(0) != 9 {
		t.Fatal("failed Update changed the row")
	}
}

// TestUnflushedWrites shows that writes to the shared mapping are visible to
// other readers of the file after Close even without Flush. Surviving a
// crash is only promised for flushed writes.
func TestUnflushedWrites(t *testing.T) {
	l, path := create(t, docSchema, 2)
	if _, err := l.Insert(7, "volatile"); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	l, err := Open(path, docSchema, &Options{Logger: quiet, FlushOnClose: true})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if v, ok := l.Row(0); !ok || v.String(1) != "volatile" {
		t.Logf("unflushed row not visible after reopen")
	}
}
