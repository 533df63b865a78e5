// Package leaderboard persists and serves per-player career statistics.
package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mathrumble/mathrumble/internal/db"
	"github.com/mathrumble/mathrumble/internal/models"
)

// ErrNotFound is returned when a player has no stats row.
var ErrNotFound = errors.New("not found")

// StatsRow pairs a stats record with its username for ranking output.
type StatsRow struct {
	models.LeaderboardStats
	Username string
}

type Repository struct {
	db db.DBTX
}

func NewRepository(dbtx db.DBTX) *Repository {
	return &Repository{db: dbtx}
}

// TopByWins returns the highest-win players, most wins first.
func (r *Repository) TopByWins(ctx context.Context, limit int) ([]StatsRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.user_id, u.username, s.wins, s.losses, s.total_answers, s.correct_answers, s.total_response_time_ms
		 FROM leaderboard_stats s JOIN users u ON u.id = s.user_id
		 ORDER BY s.wins DESC, u.username
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var s StatsRow
		if err := rows.Scan(&s.ID, &s.UserID, &s.Username, &s.Wins, &s.Losses,
			&s.TotalAnswers, &s.CorrectAnswers, &s.TotalResponseTimeMs); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByUserID returns one player's stats row.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (StatsRow, error) {
	var s StatsRow
	err := r.db.QueryRow(ctx,
		`SELECT s.id, s.user_id, u.username, s.wins, s.losses, s.total_answers, s.correct_answers, s.total_response_time_ms
		 FROM leaderboard_stats s JOIN users u ON u.id = s.user_id
		 WHERE s.user_id = $1`,
		userID,
	).Scan(&s.ID, &s.UserID, &s.Username, &s.Wins, &s.Losses,
		&s.TotalAnswers, &s.CorrectAnswers, &s.TotalResponseTimeMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatsRow{}, ErrNotFound
	}
	if err != nil {
		return StatsRow{}, fmt.Errorf("get player stats: %w", err)
	}
	return s, nil
}

// RecordAnswer bumps the answer counters. Response time only accumulates
// for correct answers so the average reflects scoring speed.
func (r *Repository) RecordAnswer(ctx context.Context, userID uuid.UUID, correct bool, responseTimeMs int) error {
	correctDelta := 0
	timeDelta := 0
	if correct {
		correctDelta = 1
		timeDelta = responseTimeMs
	}
	if _, err := r.db.Exec(ctx,
		`UPDATE leaderboard_stats
		 SET total_answers = total_answers + 1,
		     correct_answers = correct_answers + $2,
		     total_response_time_ms = total_response_time_ms + $3
		 WHERE user_id = $1`,
		userID, correctDelta, timeDelta,
	); err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

// RecordResult bumps the win or loss counter.
func (r *Repository) RecordResult(ctx context.Context, userID uuid.UUID, won bool) error {
	column := "losses"
	if won {
		column = "wins"
	}
	query := fmt.Sprintf(`UPDATE leaderboard_stats SET %s = %s + 1 WHERE user_id = $1`, column, column)
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// CreateMatch stores the final record of a finished game.
func (r *Repository) CreateMatch(ctx context.Context, match models.Match) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO matches (id, room_id, winner_team, rope_final_position, duration, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		match.ID, match.RoomID, match.WinnerTeam, match.RopeFinalPosition, match.Duration, match.FinishedAt,
	); err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}
