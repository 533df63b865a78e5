package rooms

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/models"
	"github.com/mathrumble/mathrumble/internal/questions"
)

var (
	ErrGameAlreadyStarted = errors.New("game already started or finished")
	ErrTeamFull           = errors.New("team is full")
	ErrInvalidRequest     = errors.New("invalid request")
)

const (
	roomCodeLength  = 6
	roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeGenAttempts = 5
)

// Store is the persistence surface the service needs. *Repository
// satisfies it; tests substitute fakes.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CreateUser(ctx context.Context, username string) (models.User, error)
	CreateRoom(ctx context.Context, room models.GameRoom) (models.GameRoom, error)
	GetRoomByCode(ctx context.Context, code string) (models.GameRoom, error)
	ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error)
	CreatePlayer(ctx context.Context, userID, roomID uuid.UUID, team string) (models.Player, error)
	UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status string) error
}

// GameCreator registers a freshly created room with the match engine.
type GameCreator interface {
	CreateGame(roomID, roomCode, difficulty string, winThreshold, roundDuration int)
}

// CreateRoomRequest carries the room parameters plus the creator's
// username. Zero tuning values take the server defaults.
type CreateRoomRequest struct {
	Username          string `json:"username"`
	Difficulty        string `json:"difficulty"`
	MaxPlayersPerTeam int    `json:"max_players_per_team"`
	WinThreshold      int    `json:"win_threshold"`
	RoundDuration     int    `json:"round_duration"`
}

type JoinRoomRequest struct {
	Username string `json:"username"`
	Team     string `json:"team"`
}

// JoinRoomResponse is everything a client needs to open its WebSocket
// session.
type JoinRoomResponse struct {
	RoomID   string `json:"room_id"`
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
	UserID   string `json:"user_id"`
	Team     string `json:"team"`
	Status   string `json:"status"`
}

type RoomResponse struct {
	RoomID            string `json:"room_id"`
	RoomCode          string `json:"room_code"`
	Status            string `json:"status"`
	Difficulty        string `json:"difficulty"`
	MaxPlayersPerTeam int    `json:"max_players_per_team"`
	WinThreshold      int    `json:"win_threshold"`
	RoundDuration     int    `json:"round_duration"`
	TeamACount        int    `json:"team_a_count"`
	TeamBCount        int    `json:"team_b_count"`
}

// Service implements room creation and joining on top of the store.
type Service struct {
	store Store
	games GameCreator
	log   zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(store Store, games GameCreator, seed int64, logger zerolog.Logger) *Service {
	return &Service{
		store: store,
		games: games,
		log:   logger,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// CreateRoom creates a room, auto-joins the creator onto team A, and
// registers the game with the engine.
func (s *Service) CreateRoom(ctx context.Context, req CreateRoomRequest) (JoinRoomResponse, error) {
	if strings.TrimSpace(req.Username) == "" {
		return JoinRoomResponse{}, fmt.Errorf("%w: username is required", ErrInvalidRequest)
	}
	if req.Difficulty == "" {
		req.Difficulty = questions.DifficultyEasy
	}
	if !questions.ValidDifficulty(req.Difficulty) {
		return JoinRoomResponse{}, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, req.Difficulty)
	}
	if req.MaxPlayersPerTeam <= 0 {
		req.MaxPlayersPerTeam = 5
	}
	if req.WinThreshold <= 0 {
		req.WinThreshold = 10
	}
	if req.RoundDuration <= 0 {
		req.RoundDuration = 120
	}

	user, err := s.getOrCreateUser(ctx, req.Username)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	code, err := s.uniqueRoomCode(ctx)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	room, err := s.store.CreateRoom(ctx, models.GameRoom{
		ID:                uuid.New(),
		RoomCode:          code,
		Status:            "waiting",
		Difficulty:        req.Difficulty,
		MaxPlayersPerTeam: req.MaxPlayersPerTeam,
		WinThreshold:      req.WinThreshold,
		RoundDuration:     req.RoundDuration,
	})
	if err != nil {
		return JoinRoomResponse{}, err
	}

	player, err := s.store.CreatePlayer(ctx, user.ID, room.ID, "A")
	if err != nil {
		return JoinRoomResponse{}, err
	}

	s.games.CreateGame(room.ID.String(), room.RoomCode, room.Difficulty, room.WinThreshold, room.RoundDuration)
	s.log.Info().
		Str("room_code", room.RoomCode).
		Str("username", user.Username).
		Str("difficulty", room.Difficulty).
		Msg("room created")

	return JoinRoomResponse{
		RoomID:   room.ID.String(),
		RoomCode: room.RoomCode,
		PlayerID: player.ID.String(),
		UserID:   user.ID.String(),
		Team:     "A",
		Status:   room.Status,
	}, nil
}

// JoinRoom adds a player to a waiting room. No team preference means the
// smaller team; rejoining users get their existing seat back.
func (s *Service) JoinRoom(ctx context.Context, roomCode string, req JoinRoomRequest) (JoinRoomResponse, error) {
	if strings.TrimSpace(req.Username) == "" {
		return JoinRoomResponse{}, fmt.Errorf("%w: username is required", ErrInvalidRequest)
	}

	room, err := s.store.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return JoinRoomResponse{}, err
	}
	if room.Status != "waiting" {
		return JoinRoomResponse{}, ErrGameAlreadyStarted
	}

	players, err := s.store.ListPlayers(ctx, room.ID)
	if err != nil {
		return JoinRoomResponse{}, err
	}
	var teamA, teamB int
	for _, p := range players {
		if p.Team == "A" {
			teamA++
		} else {
			teamB++
		}
	}

	team := strings.ToUpper(req.Team)
	switch team {
	case "A", "B":
	case "":
		if teamA <= teamB {
			team = "A"
		} else {
			team = "B"
		}
	default:
		return JoinRoomResponse{}, fmt.Errorf("%w: unknown team %q", ErrInvalidRequest, req.Team)
	}
	if (team == "A" && teamA >= room.MaxPlayersPerTeam) ||
		(team == "B" && teamB >= room.MaxPlayersPerTeam) {
		return JoinRoomResponse{}, ErrTeamFull
	}

	user, err := s.getOrCreateUser(ctx, req.Username)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	// A user already seated in the room keeps their original seat.
	for _, p := range players {
		if p.UserID == user.ID {
			return JoinRoomResponse{
				RoomID:   room.ID.String(),
				RoomCode: room.RoomCode,
				PlayerID: p.ID.String(),
				UserID:   user.ID.String(),
				Team:     p.Team,
				Status:   room.Status,
			}, nil
		}
	}

	player, err := s.store.CreatePlayer(ctx, user.ID, room.ID, team)
	if err != nil {
		return JoinRoomResponse{}, err
	}
	s.log.Info().
		Str("room_code", room.RoomCode).
		Str("username", user.Username).
		Str("team", team).
		Msg("player joined room")

	return JoinRoomResponse{
		RoomID:   room.ID.String(),
		RoomCode: room.RoomCode,
		PlayerID: player.ID.String(),
		UserID:   user.ID.String(),
		Team:     team,
		Status:   room.Status,
	}, nil
}

// GetRoom returns room details with current team counts.
func (s *Service) GetRoom(ctx context.Context, roomCode string) (RoomResponse, error) {
	room, err := s.store.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return RoomResponse{}, err
	}
	players, err := s.store.ListPlayers(ctx, room.ID)
	if err != nil {
		return RoomResponse{}, err
	}
	var teamA, teamB int
	for _, p := range players {
		if p.Team == "A" {
			teamA++
		} else {
			teamB++
		}
	}
	return RoomResponse{
		RoomID:            room.ID.String(),
		RoomCode:          room.RoomCode,
		Status:            room.Status,
		Difficulty:        room.Difficulty,
		MaxPlayersPerTeam: room.MaxPlayersPerTeam,
		WinThreshold:      room.WinThreshold,
		RoundDuration:     room.RoundDuration,
		TeamACount:        teamA,
		TeamBCount:        teamB,
	}, nil
}

// SetRoomStatus updates the persisted status for a room id.
func (s *Service) SetRoomStatus(ctx context.Context, roomID string, status string) error {
	id, err := uuid.Parse(roomID)
	if err != nil {
		return fmt.Errorf("parse room id: %w", err)
	}
	return s.store.UpdateRoomStatus(ctx, id, status)
}

func (s *Service) getOrCreateUser(ctx context.Context, username string) (models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}
	return s.store.CreateUser(ctx, username)
}

// uniqueRoomCode draws random codes until one is unused.
func (s *Service) uniqueRoomCode(ctx context.Context) (string, error) {
	for i := 0; i < codeGenAttempts; i++ {
		code := s.randomCode()
		_, err := s.store.GetRoomByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not allocate a unique room code")
}

func (s *Service) randomCode() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeCharset[s.rng.Intn(len(roomCodeCharset))]
	}
	return string(b)
}
