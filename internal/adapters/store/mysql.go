package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/core"
)

// MySQLStore persists classifications in MySQL for deployments where several
// verifier hosts share one ledger.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS classifications (
			email VARCHAR(320) PRIMARY KEY,
			category VARCHAR(16) NOT NULL,
			reason TEXT NOT NULL,
			provider VARCHAR(255) NOT NULL,
			details TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history_pending (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(320) NOT NULL,
			payload TEXT NOT NULL,
			INDEX idx_pending_email (email)
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(320) NOT NULL,
			category VARCHAR(16) NOT NULL,
			payload TEXT NOT NULL,
			INDEX idx_history_email (email)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

func (s *MySQLStore) Exists(ctx context.Context, email string) (bool, core.Category, error) {
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

func (s *MySQLStore) Record(ctx context.Context, result core.VerificationResult) (*core.Conflict, error) {
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
		`INSERT IGNORE INTO classifications (email, category, reason, provider, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.Email, string(result.Category), result.Reason, result.Provider, details, result.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to record classification: %w", err)
	}
	return nil, nil
}

func (s *MySQLStore) AppendHistoryEvent(ctx context.Context, email string, event core.HistoryEvent) error {
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

func (s *MySQLStore) FinalizeHistory(ctx context.Context, email string, category core.Category) error {
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

func (s *MySQLStore) History(ctx context.Context, email string) ([]core.HistoryEvent, error) {
	var events []core.HistoryEvent
	for _, query := range []string{
		"SELECT payload FROM history WHERE email = ? ORDER BY id",
		"SELECT payload FROM history_pending WHERE email = ? ORDER BY id",
	} {
		rows, err := s.db.QueryContext(ctx, query, email)
		if err != nil {
			return nil, fmt.Errorf("failed to query history: %w", err)
		}
		batch, err := s.scanEvents(rows, email)
		if err != nil {
			return nil, err
		}
		events = append(events, batch...)
	}
	return events, nil
}

func (s *MySQLStore) scanEvents(rows *sql.Rows, email string) ([]core.HistoryEvent, error) {
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

func (s *MySQLStore) Summary(ctx context.Context) (core.Summary, error) {
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

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
