package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool builds a pgx pool with the settings the API runs with in production.
func NewPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Log dates are TEXT on purpose: a habit day is a timezone-naive YYYY-MM-DD
// string interpreted in the user's timezone, never an instant.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		name TEXT,
		phone TEXT,
		phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
		phone_otp TEXT,
		phone_otp_expiry TIMESTAMPTZ,
		timezone TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS habits (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		reminder_time TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_habits_user_position ON habits (user_id, position)`,
	`CREATE TABLE IF NOT EXISTS habit_logs (
		habit_id UUID NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		note TEXT,
		PRIMARY KEY (habit_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS reminder_logs (
		habit_id UUID NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		PRIMARY KEY (habit_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL DEFAULT 'New Conversation',
		messages JSONB NOT NULL DEFAULT '[]',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the tables the service needs. The composite primary
// keys on habit_logs and reminder_logs are load-bearing: they are what makes
// toggle upserts and concurrent reminder claims safe.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
