package leaderboard

import (
	"context"

	"github.com/google/uuid"
)

const defaultLimit = 20

// Statser is the read surface the service needs. *Repository satisfies
// it; tests substitute fakes.
type Statser interface {
	TopByWins(ctx context.Context, limit int) ([]StatsRow, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (StatsRow, error)
}

// Entry is one ranked leaderboard line.
type Entry struct {
	Rank              int     `json:"rank"`
	Username          string  `json:"username"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	Accuracy          float64 `json:"accuracy"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// PlayerStats is the full stat sheet for one player.
type PlayerStats struct {
	Username          string  `json:"username"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	TotalAnswers      int     `json:"total_answers"`
	CorrectAnswers    int     `json:"correct_answers"`
	Accuracy          float64 `json:"accuracy"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

type Service struct {
	stats Statser
}

func NewService(stats Statser) *Service {
	return &Service{stats: stats}
}

// Top returns the ranked leaderboard, best win count first.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.stats.TopByWins(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = Entry{
			Rank:              i + 1,
			Username:          row.Username,
			Wins:              row.Wins,
			Losses:            row.Losses,
			Accuracy:          row.Accuracy(),
			AvgResponseTimeMs: row.AvgResponseTimeMs(),
		}
	}
	return entries, nil
}

// PlayerStats returns one player's stat sheet.
func (s *Service) PlayerStats(ctx context.Context, userID uuid.UUID) (PlayerStats, error) {
	row, err := s.stats.GetByUserID(ctx, userID)
	if err != nil {
		return PlayerStats{}, err
	}
	return PlayerStats{
		Username:          row.Username,
		Wins:              row.Wins,
		Losses:            row.Losses,
		TotalAnswers:      row.TotalAnswers,
		CorrectAnswers:    row.CorrectAnswers,
		Accuracy:          row.Accuracy(),
		AvgResponseTimeMs: row.AvgResponseTimeMs(),
	}, nil
}
