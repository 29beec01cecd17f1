package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/courtside/internal/storage"
)

// Store is a SQLite implementation of InvocationStore.
type Store struct {
	db *sql.DB
}

var _ storage.InvocationStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			request_id TEXT,
			model TEXT NOT NULL,
			capability TEXT NOT NULL,
			arguments TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			result TEXT,
			truncated INTEGER NOT NULL DEFAULT 0,
			error_kind TEXT,
			error_message TEXT,
			duration_ns INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_capability ON invocations(capability)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) RecordInvocation(ctx context.Context, inv *storage.Invocation) error {
	if inv.ID == "" {
		return fmt.Errorf("invocation id is required")
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	args := string(inv.Arguments)
	if args == "" {
		args = "{}"
	}

	query := `INSERT INTO invocations (id, request_id, model, capability, arguments, attempt, result,
		truncated, error_kind, error_message, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		inv.ID, inv.RequestID, inv.Model, inv.Capability, args, inv.Attempt, inv.Result,
		inv.Truncated, inv.ErrorKind, inv.Error, int64(inv.Duration), inv.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert invocation: %w", err)
	}
	return nil
}

func (s *Store) ListInvocations(ctx context.Context, opts storage.ListOptions) ([]*storage.Invocation, error) {
	query := `SELECT id, request_id, model, capability, arguments, attempt, result, truncated,
		error_kind, error_message, duration_ns, created_at FROM invocations`
	var args []any
	if opts.Capability != "" {
		query += ` WHERE capability = ?`
		args = append(args, opts.Capability)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, opts.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	defer rows.Close()

	var result []*storage.Invocation
	for rows.Next() {
		var (
			inv                          storage.Invocation
			requestID, res, kind, errMsg sql.NullString
			arguments                    string
			durationNS                   int64
		)
		if err := rows.Scan(&inv.ID, &requestID, &inv.Model, &inv.Capability, &arguments, &inv.Attempt,
			&res, &inv.Truncated, &kind, &errMsg, &durationNS, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		inv.RequestID = requestID.String
		inv.Arguments = []byte(arguments)
		inv.Result = res.String
		inv.ErrorKind = kind.String
		inv.Error = errMsg.String
		inv.Duration = time.Duration(durationNS)
		result = append(result, &inv)
	}
	return result, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
