// Package rooms provides room lifecycle: creation, joining, and lookup.
package rooms

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mathrumble/mathrumble/internal/db"
	"github.com/mathrumble/mathrumble/internal/models"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Repository persists users, rooms, and players.
type Repository struct {
	db db.DBTX
}

func NewRepository(dbtx db.DBTX) *Repository {
	return &Repository{db: dbtx}
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a user along with an empty leaderboard row.
func (r *Repository) CreateUser(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username) VALUES ($1, $2) RETURNING id, username, created_at`,
		uuid.New(), username,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO leaderboard_stats (id, user_id) VALUES ($1, $2)`,
		uuid.New(), u.ID,
	); err != nil {
		return models.User{}, fmt.Errorf("create leaderboard row: %w", err)
	}
	return u, nil
}

func (r *Repository) CreateRoom(ctx context.Context, room models.GameRoom) (models.GameRoom, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO game_rooms (id, room_code, status, difficulty, max_players_per_team, win_threshold, round_duration)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		room.ID, room.RoomCode, room.Status, room.Difficulty,
		room.MaxPlayersPerTeam, room.WinThreshold, room.RoundDuration,
	).Scan(&room.CreatedAt)
	if err != nil {
		return models.GameRoom{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (r *Repository) GetRoomByCode(ctx context.Context, code string) (models.GameRoom, error) {
	var room models.GameRoom
	err := r.db.QueryRow(ctx,
		`SELECT id, room_code, status, difficulty, max_players_per_team, win_threshold, round_duration, created_at
		 FROM game_rooms WHERE room_code = $1`,
		code,
	).Scan(&room.ID, &room.RoomCode, &room.Status, &room.Difficulty,
		&room.MaxPlayersPerTeam, &room.WinThreshold, &room.RoundDuration, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.GameRoom{}, ErrNotFound
	}
	if err != nil {
		return models.GameRoom{}, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

func (r *Repository) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	rows, err := r.db.Query(ctx,
		`SELECT p.id, p.user_id, p.room_id, u.username, p.team, p.joined_at
		 FROM players p JOIN users u ON u.id = p.user_id
		 WHERE p.room_id = $1
		 ORDER BY p.joined_at`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.UserID, &p.RoomID, &p.Username, &p.Team, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (r *Repository) CreatePlayer(ctx context.Context, userID, roomID uuid.UUID, team string) (models.Player, error) {
	var p models.Player
	err := r.db.QueryRow(ctx,
		`INSERT INTO players (id, user_id, room_id, team) VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, room_id, team, joined_at`,
		uuid.New(), userID, roomID, team,
	).Scan(&p.ID, &p.UserID, &p.RoomID, &p.Team, &p.JoinedAt)
	if err != nil {
		return models.Player{}, fmt.Errorf("create player: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE game_rooms SET status = $1 WHERE id = $2`,
		status, roomID,
	); err != nil {
		return fmt.Errorf("update room status: %w", err)
	}
	return nil
}
