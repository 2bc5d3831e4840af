/*
main.go - Command-line replay driver

PURPOSE:
  Replays a transaction CSV through a fresh engine and prints the final
  accounts as CSV on stdout. Logs go to stderr so the output can be piped.

USAGE:
  payments [flags] <transactions.csv>

COMMAND-LINE FLAGS:
  -config     YAML config file (optional)
  -log-level  debug, info, warn, error (overrides config)
  -db         SQLite path; when set the run report is saved there

EXIT CODES:
  0  replay finished (malformed rows and rejected events included)
  1  the input could not be read, or the report could not be saved
  2  usage error

EXAMPLES:
  payments transactions.csv > accounts.csv
  payments -log-level=debug -db=./runs.db transactions.csv

SEE ALSO:
  - csvio/replay.go: the replay loop
  - cmd/server/main.go: the same replay over HTTP
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/warp/payments-engine/config"
	"github.com/warp/payments-engine/csvio"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/observability"
	"github.com/warp/payments-engine/store/sqlite"
)

var errUsage = errors.New("usage: payments [flags] <transactions.csv>")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("payments", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML config file")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	dbPath := fs.String("db", "", "SQLite path for the run report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	input := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *dbPath != "" {
		cfg.SQLite.Path = *dbPath
	}

	log := observability.NewLogger(stderr, "payments", cfg.LogLevel)

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	engine := ledger.NewEngine(ledger.WithLogger(log))
	if _, err := csvio.Replay(ctx, f, engine, log.With().Str("input", input).Logger()); err != nil {
		return err
	}

	if err := csvio.WriteAccounts(stdout, engine.Snapshot()); err != nil {
		return fmt.Errorf("write accounts: %w", err)
	}

	if cfg.SQLite.Path != "" {
		return saveRun(ctx, cfg.SQLite.Path, filepath.Base(input), engine, log)
	}
	return nil
}

func saveRun(ctx context.Context, path, source string, engine *ledger.Engine, log zerolog.Logger) error {
	store, err := sqlite.New(path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := sqlite.NewRun(source, engine)
	if err := store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	log.Info().Str("run_id", run.ID.String()).Str("db", path).Msg("run saved")
	return nil
}
