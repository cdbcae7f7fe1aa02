// Command ledgerctl creates, inspects and edits ledger files.
//
// Commands that need the row schema read it from a YAML config file:
//
//	name: Documents
//	description: My documents
//	initial_capacity: 1024
//	fields:
//	  - {name: id, kind: u32}
//	  - {name: title, kind: string, max_len: 32}
//
// Rows are exchanged as JSON objects keyed by field name.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type command struct {
	help string
	run  func(ctx context.Context, args []string) error
}

var commands = map[string]command{
	"create":     {"create a new ledger file", cmdCreate},
	"info":       {"print the header of a ledger file", cmdInfo},
	"insert":     {"append rows given as JSON objects", cmdInsert},
	"get":        {"print rows by id", cmdGet},
	"set":        {"update fields of one row", cmdSet},
	"dump":       {"print every row as JSON lines", cmdDump},
	"verify":     {"check every row for corruption", cmdVerify},
	"snapshot":   {"write a compressed compact copy", cmdSnapshot},
	"restore":    {"create a ledger from a snapshot", cmdRestore},
	"watch":      {"print rows as they are appended", cmdWatch},
	"jsonschema": {"print the JSON Schema of a row", cmdJSONSchema},
}

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "ledgerctl: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	logLevel := flag.String("log-level", os.Getenv("LEDGER_LOG_LEVEL"), "Log level (debug, info, warn, error); defaults to $LEDGER_LOG_LEVEL or info")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		return errors.New("missing command")
	}

	ll := &slog.LevelVar{}
	if err := setLevel(ll, *logLevel); err != nil {
		return err
	}
	slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.run(ctx, flag.Args()[1:]); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func setLevel(ll *slog.LevelVar, s string) error {
	switch strings.ToLower(s) {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "", "info":
		ll.Set(slog.LevelInfo)
	case "warn", "warning":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("invalid log level %q", s)
	}
	return nil
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: ledgerctl [-log-level level] <command> [flags] [args]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-11s %s\n", name, commands[name].help)
	}
	fmt.Fprintf(out, "\nRun ledgerctl <command> -h for the flags of a command.\n")
}
