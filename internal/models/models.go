// Package models holds the persisted domain records shared across the
// repository layers.
package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type GameRoom struct {
	ID                uuid.UUID `json:"id"`
	RoomCode          string    `json:"room_code"`
	Status            string    `json:"status"`
	Difficulty        string    `json:"difficulty"`
	MaxPlayersPerTeam int       `json:"max_players_per_team"`
	WinThreshold      int       `json:"win_threshold"`
	RoundDuration     int       `json:"round_duration"`
	CreatedAt         time.Time `json:"created_at"`
}

type Player struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	RoomID   uuid.UUID `json:"room_id"`
	Username string    `json:"username"`
	Team     string    `json:"team"`
	JoinedAt time.Time `json:"joined_at"`
}

type Match struct {
	ID                uuid.UUID  `json:"id"`
	RoomID            uuid.UUID  `json:"room_id"`
	WinnerTeam        *string    `json:"winner_team"`
	RopeFinalPosition int        `json:"rope_final_position"`
	Duration          int        `json:"duration"`
	FinishedAt        *time.Time `json:"finished_at"`
}

type Question struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	Answer       float64   `json:"answer"`
	Difficulty   string    `json:"difficulty"`
	TimeLimit    int       `json:"time_limit"`
	IsCustom     bool      `json:"is_custom"`
}

type LeaderboardStats struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	Wins                int       `json:"wins"`
	Losses              int       `json:"losses"`
	TotalAnswers        int       `json:"total_answers"`
	CorrectAnswers      int       `json:"correct_answers"`
	TotalResponseTimeMs int       `json:"total_response_time_ms"`
}

// Accuracy returns the correct-answer percentage rounded to one decimal.
func (s LeaderboardStats) Accuracy() float64 {
	if s.TotalAnswers == 0 {
		return 0
	}
	return math.Round(float64(s.CorrectAnswers)/float64(s.TotalAnswers)*1000) / 10
}

// AvgResponseTimeMs returns the mean response time over correct answers,
// rounded to the nearest millisecond.
func (s LeaderboardStats) AvgResponseTimeMs() float64 {
	if s.CorrectAnswers == 0 {
		return 0
	}
	return math.Round(float64(s.TotalResponseTimeMs) / float64(s.CorrectAnswers))
}
