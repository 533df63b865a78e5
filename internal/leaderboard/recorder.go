package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mathrumble/mathrumble/internal/models"
)

// Recorder adapts the repository to the game engine's stats hook. The
// engine deals in string ids; parsing happens here so game code stays free
// of persistence concerns.
type Recorder struct {
	repo *Repository
}

func NewRecorder(repo *Repository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) RecordAnswer(ctx context.Context, userID string, correct bool, responseTimeMs int) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	return r.repo.RecordAnswer(ctx, id, correct, responseTimeMs)
}

func (r *Recorder) RecordResult(ctx context.Context, userID string, won bool) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	return r.repo.RecordResult(ctx, id, won)
}

func (r *Recorder) RecordMatch(ctx context.Context, roomID string, winner string, ropeFinal, durationSecs int) error {
	id, err := uuid.Parse(roomID)
	if err != nil {
		return fmt.Errorf("parse room id: %w", err)
	}
	var winnerTeam *string
	if winner != "" {
		winnerTeam = &winner
	}
	now := time.Now()
	return r.repo.CreateMatch(ctx, models.Match{
		ID:                uuid.New(),
		RoomID:            id,
		WinnerTeam:        winnerTeam,
		RopeFinalPosition: ropeFinal,
		Duration:          durationSecs,
		FinishedAt:        &now,
	})
}
