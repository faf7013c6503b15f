package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SignupAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewSignupAttemptRepository(pool *pgxpool.Pool) *SignupAttemptRepository {
	return &SignupAttemptRepository{pool: pool}
}

// RecordIfBelow records an attempt for ip at now unless limit attempts already exist since since.
// Concurrent callers for the same ip are serialized with a transaction scoped advisory lock.
func (r *SignupAttemptRepository) RecordIfBelow(ctx context.Context, ip string, since, now time.Time, limit int) (bool, error) {
	allowed := false
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('signup:' || $1))`, ip); err != nil {
			return fmt.Errorf("lock: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM signup_attempts WHERE ip = $1 AND created_at >= $2`,
			ip, since,
		).Scan(&count); err != nil {
			return fmt.Errorf("count: %w", err)
		}
		if count >= limit {
			return nil
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO signup_attempts (ip, created_at) VALUES ($1, $2)`,
			ip, now,
		); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		allowed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// PurgeBefore deletes attempts that can no longer count towards any window.
func (r *SignupAttemptRepository) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM signup_attempts WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
