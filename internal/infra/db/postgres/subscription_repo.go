package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/ports/repository"
	"build-notifier/internal/infra/metrics"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS plan_chats (
  id         BIGSERIAL,
  plan_name  TEXT NOT NULL,
  chat_id    TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (plan_name, chat_id)
);
CREATE INDEX IF NOT EXISTS idx_plan_chats_plan ON plan_chats (plan_name);
CREATE INDEX IF NOT EXISTS idx_plan_chats_chat ON plan_chats (chat_id);`

// executor is satisfied by both *pgxpool.Pool and pgx.Tx.
type executor interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

// EnsureSchema creates the table and indexes when missing.
func (r *subscriptionRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *subscriptionRepo) Add(ctx context.Context, planName, chatID string) (bool, error) {
	const q = `
INSERT INTO plan_chats (plan_name, chat_id) VALUES ($1, $2)
ON CONFLICT (plan_name, chat_id) DO NOTHING;`
	return r.affected(ctx, r.pool, "add", q, planName, chatID)
}

func (r *subscriptionRepo) Delete(ctx context.Context, planName, chatID string) (bool, error) {
	const q = `DELETE FROM plan_chats WHERE plan_name=$1 AND chat_id=$2;`
	return r.affected(ctx, r.pool, "delete", q, planName, chatID)
}

func (r *subscriptionRepo) DeleteAll(ctx context.Context, chatID string) (bool, error) {
	const q = `DELETE FROM plan_chats WHERE chat_id=$1;`
	return r.affected(ctx, r.pool, "delete_all", q, chatID)
}

func (r *subscriptionRepo) ListPlans(ctx context.Context, chatID string) ([]string, error) {
	const q = `SELECT plan_name FROM plan_chats WHERE chat_id=$1 ORDER BY id;`
	return r.column(ctx, r.pool, "list_plans", q, chatID)
}

func (r *subscriptionRepo) ListChats(ctx context.Context, planName string) ([]string, error) {
	const q = `SELECT chat_id FROM plan_chats WHERE plan_name=$1 ORDER BY id;`
	return r.column(ctx, r.pool, "list_chats", q, planName)
}

func (r *subscriptionRepo) affected(ctx context.Context, ex executor, op, q string, args ...interface{}) (bool, error) {
	tag, err := ex.Exec(ctx, q, args...)
	if err != nil {
		metrics.IncDBQueryError("postgres", op)
		return false, fmt.Errorf("%s: %w: %v", op, domain.ErrOperationFailed, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *subscriptionRepo) column(ctx context.Context, ex executor, op, q string, arg string) ([]string, error) {
	rows, err := ex.Query(ctx, q, arg)
	if err != nil {
		metrics.IncDBQueryError("postgres", op)
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrOperationFailed, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			metrics.IncDBQueryError("postgres", op)
			return nil, fmt.Errorf("%s scan: %w: %v", op, domain.ErrOperationFailed, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		metrics.IncDBQueryError("postgres", op)
		return nil, fmt.Errorf("%s rows: %w: %v", op, domain.ErrOperationFailed, err)
	}
	return out, nil
}
