// Package sqlite stores plan subscriptions in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/ports/repository"
	"build-notifier/internal/infra/metrics"
)

var _ repository.SubscriptionRepository = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS plan_chats (
	plan_name  TEXT NOT NULL,
	chat_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (plan_name, chat_id)
);
CREATE INDEX IF NOT EXISTS idx_plan_chats_plan ON plan_chats(plan_name);
CREATE INDEX IF NOT EXISTS idx_plan_chats_chat ON plan_chats(chat_id);`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the parent directory and the schema when they are missing.
func Open(path string, logger *zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Info().Str("component", "sqlite").Str("path", path).Msg("subscription store ready")
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Add(ctx context.Context, planName, chatID string) (bool, error) {
	return s.exec(ctx, "add",
		`INSERT OR IGNORE INTO plan_chats (plan_name, chat_id, created_at) VALUES (?, ?, ?)`,
		planName, chatID, s.now().UTC())
}

func (s *Store) Delete(ctx context.Context, planName, chatID string) (bool, error) {
	return s.exec(ctx, "delete", `DELETE FROM plan_chats WHERE plan_name = ? AND chat_id = ?`, planName, chatID)
}

func (s *Store) DeleteAll(ctx context.Context, chatID string) (bool, error) {
	return s.exec(ctx, "delete_all", `DELETE FROM plan_chats WHERE chat_id = ?`, chatID)
}

func (s *Store) ListPlans(ctx context.Context, chatID string) ([]string, error) {
	return s.column(ctx, "list_plans", `SELECT plan_name FROM plan_chats WHERE chat_id = ? ORDER BY rowid`, chatID)
}

func (s *Store) ListChats(ctx context.Context, planName string) ([]string, error) {
	return s.column(ctx, "list_chats", `SELECT chat_id FROM plan_chats WHERE plan_name = ? ORDER BY rowid`, planName)
}

func (s *Store) exec(ctx context.Context, op, q string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		metrics.IncDBQueryError("sqlite", op)
		return false, fmt.Errorf("%s: %w: %v", op, domain.ErrOperationFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n > 0, nil
}

func (s *Store) column(ctx context.Context, op, q, arg string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		metrics.IncDBQueryError("sqlite", op)
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrOperationFailed, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
