// Package db wires the Postgres connection pool and bootstraps the schema.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx used by the repositories. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so repositories run unchanged inside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pgx pool against the DSN and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// schema statements are executed one at a time: pgx's extended protocol
// rejects multi-statement strings.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(50) UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS game_rooms (
		id UUID PRIMARY KEY,
		room_code VARCHAR(8) UNIQUE NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'waiting',
		difficulty VARCHAR(20) NOT NULL DEFAULT 'easy',
		max_players_per_team INT NOT NULL DEFAULT 5,
		win_threshold INT NOT NULL DEFAULT 10,
		round_duration INT NOT NULL DEFAULT 120,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS players (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		room_id UUID NOT NULL REFERENCES game_rooms(id),
		team VARCHAR(1) NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id UUID PRIMARY KEY,
		room_id UUID NOT NULL REFERENCES game_rooms(id),
		winner_team VARCHAR(1),
		rope_final_position INT NOT NULL DEFAULT 0,
		duration INT NOT NULL DEFAULT 0,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id UUID PRIMARY KEY,
		question_text TEXT NOT NULL,
		answer DOUBLE PRECISION NOT NULL,
		difficulty VARCHAR(20) NOT NULL,
		time_limit INT NOT NULL DEFAULT 10,
		is_custom BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS leaderboard_stats (
		id UUID PRIMARY KEY,
		user_id UUID UNIQUE NOT NULL REFERENCES users(id),
		wins INT NOT NULL DEFAULT 0,
		losses INT NOT NULL DEFAULT 0,
		total_answers INT NOT NULL DEFAULT 0,
		correct_answers INT NOT NULL DEFAULT 0,
		total_response_time_ms BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_players_room_id ON players(room_id)`,
	`CREATE INDEX IF NOT EXISTS idx_game_rooms_room_code ON game_rooms(room_code)`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
