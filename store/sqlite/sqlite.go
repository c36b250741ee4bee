/*
Package sqlite provides the SQLite-backed Store and AccountRegistry.

PURPOSE:
  Production persistence for the action ledger and the account registry.
  The same patterns apply to PostgreSQL; only SQL dialect details differ.

KEY TABLES:
  actions:      Per-account action queue with status and timestamps
  accounts:     Enrolled wallets (active flag, enrollment and last-swap times)
  ledger_meta:  Whole-ledger metadata (last_updated)

TERMINAL-STATE ENFORCEMENT:
  Status updates are guarded with `WHERE status = 'pending'`, a
  compare-and-swap at the SQL layer. A completed or failed action cannot
  be flipped back or re-stamped no matter how callers race.

CONCURRENCY:
  WAL mode for concurrent readers; a sync.Mutex serializes writers on
  top of SQLite's single-writer model. The engine's per-account locks
  serialize the read-modify-write sequences above this layer.

FAILURE MAPPING:
  Driver and connection errors are wrapped in queue.ErrStoreUnavailable
  so callers can distinguish an outage (retryable next tick) from a
  domain condition.

USAGE:
  store, err := sqlite.New("./data/drip.db")   // ":memory:" for tests
  defer store.Close()

SEE ALSO:
  - queue/store.go: Interface contracts
  - queue/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/drip-labs/drip-engine/queue"
)

// Store implements queue.Store and queue.AccountRegistry using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actions (
		id           TEXT PRIMARY KEY,
		account      TEXT NOT NULL,
		type         TEXT NOT NULL,
		payload      TEXT NOT NULL DEFAULT '{}',
		status       TEXT NOT NULL DEFAULT 'pending',
		error        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		failed_at    TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_actions_account_created
		ON actions(account, created_at);
	CREATE INDEX IF NOT EXISTS idx_actions_account_status
		ON actions(account, status);

	CREATE TABLE IF NOT EXISTS accounts (
		address      TEXT PRIMARY KEY,
		active       INTEGER NOT NULL DEFAULT 1,
		enrolled_at  TIMESTAMP,
		last_swap_at TIMESTAMP,
		created_at   TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_active ON accounts(active);

	CREATE TABLE IF NOT EXISTS ledger_meta (
		key   TEXT PRIMARY KEY,
		value TIMESTAMP NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// storeErr wraps low-level database failures as ErrStoreUnavailable.
// Domain sentinels pass through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, queue.ErrActionNotFound) || errors.Is(err, queue.ErrAlreadyProcessed) ||
		errors.Is(err, queue.ErrAccountNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, queue.ErrStoreUnavailable, err)
}

// =============================================================================
// STORE - Action ledger
// =============================================================================

func (s *Store) Append(ctx context.Context, a queue.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := queue.EncodePayload(a.Payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", a.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("append", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO actions (id, account, type, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(a.ID), string(a.AccountID), string(a.Type), string(payload),
		string(a.Status), a.CreatedAt)
	if err != nil {
		return storeErr("append", err)
	}
	if err := touchMeta(ctx, tx); err != nil {
		return storeErr("append", err)
	}
	return storeErr("append", tx.Commit())
}

func (s *Store) ListPending(ctx context.Context, accountID queue.AccountID) ([]queue.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, type, payload, status, error, created_at, completed_at, failed_at
		FROM actions
		WHERE account = ? AND status = 'pending'
		ORDER BY created_at ASC, id ASC`,
		string(accountID))
	if err != nil {
		return nil, storeErr("list pending", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

func (s *Store) List(ctx context.Context, accountID queue.AccountID) ([]queue.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, type, payload, status, error, created_at, completed_at, failed_at
		FROM actions
		WHERE account = ?
		ORDER BY created_at DESC, id DESC`,
		string(accountID))
	if err != nil {
		return nil, storeErr("list actions", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

func (s *Store) UpdateStatus(ctx context.Context, accountID queue.AccountID, id queue.ActionID, status queue.ActionStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("update status", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var res sql.Result
	switch status {
	case queue.StatusCompleted:
		res, err = tx.ExecContext(ctx, `
			UPDATE actions SET status = ?, completed_at = ?
			WHERE id = ? AND account = ? AND status = 'pending'`,
			string(status), now, string(id), string(accountID))
	case queue.StatusFailed:
		res, err = tx.ExecContext(ctx, `
			UPDATE actions SET status = ?, error = ?, failed_at = ?
			WHERE id = ? AND account = ? AND status = 'pending'`,
			string(status), errMsg, now, string(id), string(accountID))
	default:
		return fmt.Errorf("update status: %q is not a terminal status", status)
	}
	if err != nil {
		return storeErr("update status", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("update status", err)
	}
	if n == 0 {
		// Either the action does not exist or it is already terminal.
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM actions WHERE id = ? AND account = ?`,
			string(id), string(accountID)).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return queue.ErrActionNotFound
		}
		if err != nil {
			return storeErr("update status", err)
		}
		return queue.ErrAlreadyProcessed
	}

	if err := touchMeta(ctx, tx); err != nil {
		return storeErr("update status", err)
	}
	return storeErr("update status", tx.Commit())
}

func (s *Store) Prune(ctx context.Context, accountID queue.AccountID, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("prune", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM actions
		WHERE account = ? AND id NOT IN (
			SELECT id FROM actions
			WHERE account = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`,
		string(accountID), string(accountID), keep)
	if err != nil {
		return storeErr("prune", err)
	}
	if err := touchMeta(ctx, tx); err != nil {
		return storeErr("prune", err)
	}
	return storeErr("prune", tx.Commit())
}

func (s *Store) LastUpdated(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM ledger_meta WHERE key = 'last_updated'`).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, storeErr("last updated", err)
	}
	return t, nil
}

func touchMeta(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_meta (key, value) VALUES ('last_updated', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC())
	return err
}

func scanActions(rows *sql.Rows) ([]queue.Action, error) {
	var out []queue.Action
	for rows.Next() {
		var (
			a           queue.Action
			id, account string
			typ, status string
			payload     string
			completedAt sql.NullTime
			failedAt    sql.NullTime
		)
		if err := rows.Scan(&id, &account, &typ, &payload, &status, &a.Error,
			&a.CreatedAt, &completedAt, &failedAt); err != nil {
			return nil, storeErr("scan action", err)
		}
		a.ID = queue.ActionID(id)
		a.AccountID = queue.AccountID(account)
		a.Type = queue.ActionType(typ)
		a.Status = queue.ActionStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			a.CompletedAt = &t
		}
		if failedAt.Valid {
			t := failedAt.Time
			a.FailedAt = &t
		}

		p, err := queue.DecodePayload(a.Type, []byte(payload))
		if err != nil {
			// A row with an undecodable payload still surfaces, so the
			// batch run can mark it failed instead of wedging the queue.
			a.Payload = nil
		} else {
			a.Payload = p
		}
		out = append(out, a)
	}
	return out, storeErr("scan actions", rows.Err())
}

// =============================================================================
// ACCOUNT REGISTRY
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, id queue.AccountID) (queue.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT address, active, enrolled_at, last_swap_at, created_at
		FROM accounts WHERE address = ?`,
		string(id))
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Account{}, queue.ErrAccountNotFound
	}
	if err != nil {
		return queue.Account{}, storeErr("get account", err)
	}
	return a, nil
}

func (s *Store) ListActive(ctx context.Context) ([]queue.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, active, enrolled_at, last_swap_at, created_at
		FROM accounts WHERE active = 1
		ORDER BY address ASC`)
	if err != nil {
		return nil, storeErr("list active", err)
	}
	defer rows.Close()

	var out []queue.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storeErr("list active", err)
		}
		out = append(out, a)
	}
	return out, storeErr("list active", rows.Err())
}

func (s *Store) PutAccount(ctx context.Context, a queue.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (address, active, enrolled_at, last_swap_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			active = excluded.active,
			enrolled_at = excluded.enrolled_at,
			last_swap_at = excluded.last_swap_at`,
		string(a.Address), boolToInt(a.Active), nullTime(a.EnrolledAt),
		nullTime(a.LastSwapAt), a.CreatedAt)
	return storeErr("put account", err)
}

func (s *Store) RecordSwap(ctx context.Context, id queue.AccountID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET last_swap_at = ? WHERE address = ?`,
		at, string(id))
	if err != nil {
		return storeErr("record swap", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("record swap", err)
	}
	if n == 0 {
		return queue.ErrAccountNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (queue.Account, error) {
	var (
		a          queue.Account
		address    string
		active     int
		enrolledAt sql.NullTime
		lastSwapAt sql.NullTime
	)
	if err := row.Scan(&address, &active, &enrolledAt, &lastSwapAt, &a.CreatedAt); err != nil {
		return queue.Account{}, err
	}
	a.Address = queue.AccountID(address)
	a.Active = active != 0
	if enrolledAt.Valid {
		a.EnrolledAt = enrolledAt.Time
	}
	if lastSwapAt.Valid {
		a.LastSwapAt = lastSwapAt.Time
	}
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
