package ledger

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jordanwade90/ledger/internal/layout"
	"github.com/jordanwade90/ledger/record"
	"github.com/jordanwade90/ledger/schema"
	"golang.org/x/sync/errgroup"
)

// verifyBatch is how many rows a worker checks between context checks.
const verifyBatch = 4096

// Verify checks the header and every inserted row, spreading the rows over
// GOMAXPROCS goroutines. It reports the first problem found as ErrCorrupt:
// a string length prefix larger than the field's max_len, or a bool byte
// other than 0 or 1.
//
// Verify only reads; it must not run concurrently with writes.
func (l *Ledger) Verify(ctx context.Context) error {
	if l.m == nil {
		return ErrClosed
	}
	n, capacity := l.Len(), l.Cap()
	if n > capacity {
		return fmt.Errorf("%w: %d rows past capacity %d", ErrCorrupt, n, capacity)
	}
	if size, ok := layout.FileSize(capacity, l.rowSize); !ok || size != l.m.Size() {
		return fmt.Errorf("%w: mapping is %d bytes, header describes %d rows", ErrCorrupt, l.m.Size(), capacity)
	}

	var checks []int
	for i := range l.schema.Len() {
		if k := l.schema.Field(i).Kind; k == schema.String || k == schema.Bool {
			checks = append(checks, i)
		}
	}
	if len(checks) == 0 || n == 0 {
		return nil
	}

	workers := uint64(runtime.GOMAXPROCS(0))
	per := (n + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for lo := uint64(0); lo < n; lo += per {
		hi := min(lo+per, n)
		g.Go(func() error {
			for id := lo; id < hi; id++ {
				if (id-lo)%verifyBatch == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if err := l.verifyRow(id, checks); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (l *Ledger) verifyRow(id uint64, checks []int) error {
	v := record.NewView(l.schema, l.row(id), &l.epoch)
	for _, i := range checks {
		f := l.schema.Field(i)
		switch f.Kind {
		case schema.String:
			if n := v.StringLen(i); n > f.Len {
				return fmt.Errorf("%w: row %d field %q: length %d exceeds max_len %d", ErrCorrupt, id, f.Name, n, f.Len)
			}
		case schema.Bool:
			if b := v.Bytes(i)[0]; b > 1 {
				return fmt.Errorf("%w: row %d field %q: bool byte %#x", ErrCorrupt, id, f.Name, b)
			}
		}
	}
	return nil
}
