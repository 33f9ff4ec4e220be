package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/core"
)

// SQLiteStore persists classifications and history in a local SQLite file.
// This is the default ledger for single-host deployments.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS classifications (
			email TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			reason TEXT NOT NULL,
			provider TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history_pending (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			category TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_email ON history(email)`,
		`CREATE INDEX IF NOT EXISTS idx_history_pending_email ON history_pending(email)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, email string) (bool, core.Category, error) {
	var category string
	err := s.db.QueryRowContext(ctx,
		"SELECT category FROM classifications WHERE email = ?", email).Scan(&category)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to query classification: %w", err)
	}
	return true, core.Category(category), nil
}

func (s *SQLiteStore) Record(ctx context.Context, result core.VerificationResult) (*core.Conflict, error) {
	found, stored, err := s.Exists(ctx, result.Email)
	if err != nil {
		return nil, err
	}
	if found {
		if stored == result.Category {
			return nil, nil
		}
		return &core.Conflict{Email: result.Email, Stored: stored, Observed: result.Category}, nil
	}

	details, err := encodeDetails(result.Details)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO classifications (email, category, reason, provider, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.Email, string(result.Category), result.Reason, result.Provider, details, result.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to record classification: %w", err)
	}
	return nil, nil
}

func (s *SQLiteStore) AppendHistoryEvent(ctx context.Context, email string, event core.HistoryEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO history_pending (email, payload) VALUES (?, ?)", email, payload)
	if err != nil {
		return fmt.Errorf("failed to stage history event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FinalizeHistory(ctx context.Context, email string, category core.Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (email, category, payload)
		 SELECT email, ?, payload FROM history_pending WHERE email = ? ORDER BY id`,
		string(category), email)
	if err != nil {
		return fmt.Errorf("failed to finalize history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM history_pending WHERE email = ?", email); err != nil {
		return fmt.Errorf("failed to clear staged history: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) History(ctx context.Context, email string) ([]core.HistoryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM history WHERE email = ? ORDER BY id`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	events, err := s.scanEvents(rows, email)
	if err != nil {
		return nil, err
	}

	pending, err := s.db.QueryContext(ctx,
		`SELECT payload FROM history_pending WHERE email = ? ORDER BY id`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query staged history: %w", err)
	}
	staged, err := s.scanEvents(pending, email)
	if err != nil {
		return nil, err
	}

	return append(events, staged...), nil
}

// scanEvents decodes payload rows, dropping entries that cannot be repaired
// so one corrupted row does not hide the rest of an address's history.
func (s *SQLiteStore) scanEvents(rows *sql.Rows, email string) ([]core.HistoryEvent, error) {
	defer rows.Close()

	var events []core.HistoryEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		event, err := decodeEvent(payload)
		if err != nil {
			s.logger.Warn("Dropping unreadable history event",
				zap.String("email", email), zap.Error(err))
			continue
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Summary(ctx context.Context) (core.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM classifications GROUP BY category")
	if err != nil {
		return core.Summary{}, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var summary core.Summary
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return core.Summary{}, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.Add(core.Category(category), count)
	}
	return summary, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
