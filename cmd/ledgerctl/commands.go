package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"github.com/jordanwade90/ledger"
	"github.com/jordanwade90/ledger/record"
	"github.com/jordanwade90/ledger/schema"
)

// stdout and stdin are replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

// flags parses args for a command taking a ledger path as first argument.
func flags(name string, args []string, setup func(fs *flag.FlagSet)) (path string, rest []string, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: ledgerctl %s [flags] <ledger> ...\n", name)
		fs.PrintDefaults()
	}
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return "", nil, errors.New("missing ledger path")
	}
	return fs.Arg(0), fs.Args()[1:], nil
}

func open(cfgPath, path string) (*ledger.Ledger, error) {
	cfg, s, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	return ledger.Open(path, s, cfg.options())
}

func closeLedger(l *ledger.Ledger, err *error) {
	if cerr := l.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func cmdCreate(_ context.Context, args []string) error {
	var cfgPath string
	path, _, err := flags("create", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfgPath, "config", "", "YAML ledger config")
	})
	if err != nil {
		return err
	}
	cfg, s, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	l, err := ledger.Create(path, s, cfg.Name, cfg.Description, cfg.options())
	if err != nil {
		return err
	}
	slog.Info("created", "path", path, "id", l.Header().ID, "row_size", s.RowSize(), "capacity", l.Cap())
	return l.Close()
}

type info struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`
	Version     uint32    `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	RowSize     int       `json:"row_size"`
	Capacity    uint64    `json:"capacity"`
	Len         uint64    `json:"len"`
}

func cmdInfo(_ context.Context, args []string) error {
	path, _, err := flags("info", args, nil)
	if err != nil {
		return err
	}
	h, err := ledger.ReadHeader(path)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(info{
		ID:          h.ID.String(),
		Name:        h.Name,
		Description: h.Description,
		Created:     h.Created.UTC(),
		Version:     h.Version,
		Fingerprint: fmt.Sprintf("%016x", h.Fingerprint),
		RowSize:     h.RowSize,
		Capacity:    h.Capacity,
		Len:         h.Len,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n", out)
	return err
}

func cmdInsert(_ context.Context, args []string) (err error) {
	var cfgPath string
	path, rest, err := flags("insert", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfgPath, "config", "", "YAML ledger config")
	})
	if err != nil {
		return err
	}
	l, err := open(cfgPath, path)
	if err != nil {
		return err
	}
	defer closeLedger(l, &err)

	var in io.Reader = stdin
	if len(rest) > 0 {
		in = strings.NewReader(strings.Join(rest, "\n"))
	}
	return readObjects(in, func(obj map[string]any) error {
		values, err := rowValues(l.Schema(), obj)
		if err != nil {
			return err
		}
		id, err := l.Insert(values...)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, id)
		return err
	})
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad row id %q", s)
	}
	return id, nil
}

func cmdGet(_ context.Context, args []string) (err error) {
	var cfgPath string
	path, rest, err := flags("get", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfgPath, "config", "", "YAML ledger config")
	})
	if err != nil {
		return err
	}
	l, err := open(cfgPath, path)
	if err != nil {
		return err
	}
	defer closeLedger(l, &err)

	enc := json.NewEncoder(stdout)
	for _, arg := range rest {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		v, ok := l.Row(id)
		if !ok {
			return fmt.Errorf("%w: row %d, ledger has %d", ledger.ErrOutOfBounds, id, l.Len())
		}
		if err := enc.Encode(toJSON(id, v)); err != nil {
			return err
		}
	}
	return nil
}

func cmdSet(_ context.Context, args []string) (err error) {
	var cfgPath string
	path, rest, err := flags("set", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfgPath, "config", "", "YAML ledger config")
	})
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return errors.New("usage: ledgerctl set -config <file> <ledger> <id> <json object>")
	}
	id, err := parseID(rest[0])
	if err != nil {
		return err
	}
	l, err := open(cfgPath, path)
	if err != nil {
		return err
	}
	defer closeLedger(l, &err)

	v, ok := l.Row(id)
	if !ok {
		return fmt.Errorf("%w: row %d, ledger has %d", ledger.ErrOutOfBounds, id, l.Len())
	}
	values := v.Values()
	err = readObjects(strings.NewReader(rest[1]), func(obj map[string]any) error {
		return patchValues(l.Schema(), values, obj)
	})
	if err != nil {
		return err
	}
	return l.Update(id, values...)
}

func cmdDump(_ context.Context, args []string) (err error) {
	var cfgPath string
	path, _, err := flags("dump", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfgPath, "config", "", "YAML ledger config")
	})
	if err != nil {
		return err
	}
	l, err := open(cfgPath, path)
	if err != nil {
		return err
	}
	defer closeLedger(l, &err)

	enc := json.NewEncoder(stdout)
	for id, v := range l.All() {
		if err := enc.Encode(toJSON(id, v)); err != nil {
			return err
		}
	}
	return nil
}

func cmdVerify(ctx context.Context, args []string) (err error) {
	var cfgPath string
	path, _, err := flags("verify", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfgPath, "config", "", "YAML ledger config")
	})
	if err != nil {
		return err
	}
	l, err := open(cfgPath, path)
	if err != nil {
		return err
	}
	defer closeLedger(l, &err)

	start := time.Now()
	if err := l.Verify(ctx); err != nil {
		return err
	}
	slog.Info("ok", "rows", l.Len(), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func cmdSnapshot(_ context.Context, args []string) (err error) {
	var cfgPath, outPath string
	path, _, err := flags("snapshot", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfgPath, "config", "", "YAML ledger config")
		fs.StringVar(&outPath, "o", "", "output file; standard output when empty")
	})
	if err != nil {
		return err
	}
	l, err := open(cfgPath, path)
	if err != nil {
		return err
	}
	defer closeLedger(l, &err)

	if outPath == "" {
		return l.Snapshot(stdout)
	}
	f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G304: path comes from the command line.
	if err != nil {
		return err
	}
	if err := l.Snapshot(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("wrote snapshot", "path", outPath, "rows", l.Len())
	return nil
}

func cmdRestore(_ context.Context, args []string) (err error) {
	var cfgPath, inPath string
	path, _, err := flags("restore", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfgPath, "config", "", "YAML ledger config")
		fs.StringVar(&inPath, "i", "", "snapshot file; standard input when empty")
	})
	if err != nil {
		return err
	}
	cfg, s, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	in := stdin
	if inPath != "" {
		f, err := os.Open(inPath) //nolint:gosec // G304: path comes from the command line.
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	l, err := ledger.Restore(path, s, in, cfg.options())
	if err != nil {
		return err
	}
	slog.Info("restored", "path", path, "rows", l.Len())
	return l.Close()
}

func cmdWatch(ctx context.Context, args []string) error {
	var cfgPath string
	var interval time.Duration
	var from int64
	path, _, err := flags("watch", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfgPath, "config", "", "YAML ledger config")
		fs.DurationVar(&interval, "interval", time.Second, "poll interval; stores through the mapping do not raise file events")
		fs.Int64Var(&from, "from", -1, "first row id to print; -1 starts at the current end")
	})
	if err != nil {
		return err
	}
	_, s, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	t, err := newTailer(path, s)
	if err != nil {
		return err
	}
	defer t.close()
	if from >= 0 {
		t.next = uint64(from)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(path); err != nil {
		return err
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		if err := t.poll(json.NewEncoder(stdout)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				return fmt.Errorf("%s was removed", path)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Error watching ledger", "err", err)
		}
	}
}

// tailer reads rows appended to a ledger owned by another process.
// It reads through the file rather than mapping it.
type tailer struct {
	f    *os.File
	path string
	s    *schema.Schema
	buf  []byte
	next uint64
}

func newTailer(path string, s *schema.Schema) (*tailer, error) {
	h, err := ledger.ReadHeader(path)
	if err != nil {
		return nil, err
	}
	if h.Fingerprint != s.Fingerprint() || h.RowSize != s.RowSize() {
		return nil, fmt.Errorf("%w: %s", ledger.ErrSchemaMismatch, path)
	}
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the command line.
	if err != nil {
		return nil, err
	}
	return &tailer{f: f, path: path, s: s, buf: make([]byte, s.RowSize()), next: h.Len}, nil
}

func (t *tailer) close() { _ = t.f.Close() }

func (t *tailer) poll(enc *json.Encoder) error {
	h, err := ledger.ReadHeader(t.path)
	if err != nil {
		return err
	}
	for ; t.next < h.Len; t.next++ {
		off := int64(ledger.HeaderSize) + int64(t.next)*int64(t.s.RowSize())
		if _, err := t.f.ReadAt(t.buf, off); err != nil {
			return fmt.Errorf("read row %d: %w", t.next, err)
		}
		if err := enc.Encode(toJSON(t.next, record.NewView(t.s, t.buf, nil))); err != nil {
			return err
		}
	}
	return nil
}

func cmdJSONSchema(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("jsonschema", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML ledger config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, s, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	title := cfg.Name
	if title == "" {
		title = "Row"
	}
	out, err := json.MarshalIndent(s.JSONSchema(title), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n", out)
	return err
}
