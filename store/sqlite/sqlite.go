/*
Package sqlite stores replay reports in SQLite.

PURPOSE:
  After a replay finishes, the driver may save the final accounts and the
  transaction records of that run. Reports are write-once and read back
  only for display; no engine is ever rebuilt from them.

KEY TABLES:
  runs:         one row per replay (counters, source label)
  accounts:     final account rows, in snapshot order
  transactions: deposit/withdrawal records with their final dispute status

AMOUNTS:
  Stored as TEXT with four fractional digits (money.Amount.String) and
  parsed back with money.Parse, so no precision is lost to REAL.

APPEND-ONLY:
  A run is written in a single SQL transaction by SaveRun and never
  updated. There is no UPDATE statement in this package.

CONCURRENCY:
  sync.RWMutex around all access, as SQLite allows one writer at a time.

USAGE:
  store, err := sqlite.New("./runs.db")
  if err != nil {
      return err
  }
  defer store.Close()
  err = store.SaveRun(ctx, sqlite.NewRun("upload.csv", engine))

SEE ALSO:
  - api/handlers.go: saves runs for POST /api/runs
  - cmd/payments/main.go: -db flag
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/money"
)

var (
	// ErrRunNotFound is returned when a run ID has no report.
	ErrRunNotFound = errors.New("run not found")

	// ErrDuplicateRun is returned when a run ID was already saved.
	ErrDuplicateRun = errors.New("run already saved")
)

// Store implements run report persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL DEFAULT '',
		applied INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		client INTEGER NOT NULL,
		available TEXT NOT NULL,
		held TEXT NOT NULL,
		total TEXT NOT NULL,
		locked BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, client)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_run_position
		ON accounts(run_id, position);

	CREATE TABLE IF NOT EXISTS transactions (
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		tx INTEGER NOT NULL,
		client INTEGER NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (run_id, tx)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_run_client
		ON transactions(run_id, client);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN RECORDS
// =============================================================================

// Run is the full report of one replay.
type Run struct {
	ID           uuid.UUID
	Source       string
	CreatedAt    time.Time
	Stats        ledger.Stats
	Accounts     []ledger.Account
	Transactions []ledger.TransactionRecord
}

// RunSummary is a runs row without its accounts and transactions.
type RunSummary struct {
	ID        uuid.UUID
	Source    string
	Applied   int
	Rejected  int
	Failed    int
	CreatedAt time.Time
}

// NewRun captures the current state of e under a fresh run ID.
func NewRun(source string, e *ledger.Engine) Run {
	return Run{
		ID:           uuid.New(),
		Source:       source,
		CreatedAt:    time.Now().UTC(),
		Stats:        e.Stats(),
		Accounts:     e.Snapshot(),
		Transactions: e.Transactions(),
	}
}

// SaveRun writes a run atomically.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var exists int
	err = sqlTx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", run.ID.String()).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return ErrDuplicateRun
	}

	_, err = sqlTx.ExecContext(ctx,
		`INSERT INTO runs (id, source, applied, rejected, failed, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Source,
		run.Stats.Applied, run.Stats.RejectedTotal(), run.Stats.Failed,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	accountStmt, err := sqlTx.PrepareContext(ctx,
		`INSERT INTO accounts (run_id, position, client, available, held, total, locked) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer accountStmt.Close()

	for i, a := range run.Accounts {
		_, err := accountStmt.ExecContext(ctx,
			run.ID.String(), i, int64(a.Client),
			a.Available.String(), a.Held.String(), a.Total.String(), a.Locked,
		)
		if err != nil {
			return fmt.Errorf("insert account %d: %w", a.Client, err)
		}
	}

	txStmt, err := sqlTx.PrepareContext(ctx,
		`INSERT INTO transactions (run_id, position, tx, client, kind, amount, status) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer txStmt.Close()

	for i, r := range run.Transactions {
		_, err := txStmt.ExecContext(ctx,
			run.ID.String(), i, int64(r.ID), int64(r.Client),
			r.Kind.String(), r.Amount.String(), r.Status.String(),
		)
		if err != nil {
			return fmt.Errorf("insert transaction %d: %w", r.ID, err)
		}
	}

	return sqlTx.Commit()
}

// ListRuns returns all run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source, applied, rejected, failed, created_at FROM runs ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var id, createdAt string
		if err := rows.Scan(&id, &r.Source, &r.Applied, &r.Rejected, &r.Failed, &createdAt); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadAccounts returns a run's accounts in snapshot order.
func (s *Store) LoadAccounts(ctx context.Context, runID uuid.UUID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT client, available, held, total, locked FROM accounts WHERE run_id = ? ORDER BY position",
		runID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []ledger.Account{}
	for rows.Next() {
		var a ledger.Account
		var client int64
		var available, held, total string
		if err := rows.Scan(&client, &available, &held, &total, &a.Locked); err != nil {
			return nil, err
		}
		a.Client = ledger.ClientID(client)
		if a.Available, err = money.Parse(available); err != nil {
			return nil, err
		}
		if a.Held, err = money.Parse(held); err != nil {
			return nil, err
		}
		if a.Total, err = money.Parse(total); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// LoadTransactions returns a run's records in application order.
func (s *Store) LoadTransactions(ctx context.Context, runID uuid.UUID) ([]ledger.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT tx, client, kind, amount, status FROM transactions WHERE run_id = ? ORDER BY position",
		runID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []ledger.TransactionRecord{}
	for rows.Next() {
		var r ledger.TransactionRecord
		var tx, client int64
		var kind, amount, status string
		if err := rows.Scan(&tx, &client, &kind, &amount, &status); err != nil {
			return nil, err
		}
		r.ID = ledger.TransactionID(tx)
		r.Client = ledger.ClientID(client)
		r.Kind = parseKind(kind)
		r.Status = parseStatus(status)
		if r.Amount, err = money.Parse(amount); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) requireRun(ctx context.Context, runID uuid.UUID) error {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID.String()).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func parseKind(s string) ledger.Kind {
	switch s {
	case ledger.KindDeposit.String():
		return ledger.KindDeposit
	case ledger.KindWithdrawal.String():
		return ledger.KindWithdrawal
	}
	return 0
}

func parseStatus(s string) ledger.Status {
	switch s {
	case ledger.StatusProcessed.String():
		return ledger.StatusProcessed
	case ledger.StatusInDispute.String():
		return ledger.StatusInDispute
	case ledger.StatusDisputeHandled.String():
		return ledger.StatusDisputeHandled
	}
	return 0
}
