package rooms

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/models"
)

type fakeStore struct {
	users   map[string]models.User
	rooms   map[string]models.GameRoom
	players map[uuid.UUID][]models.Player
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]models.User),
		rooms:   make(map[string]models.GameRoom),
		players: make(map[uuid.UUID][]models.Player),
	}
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	u, ok := f.users[username]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, username string) (models.User, error) {
	u := models.User{ID: uuid.New(), Username: username}
	f.users[username] = u
	return u, nil
}

func (f *fakeStore) CreateRoom(ctx context.Context, room models.GameRoom) (models.GameRoom, error) {
	f.rooms[room.RoomCode] = room
	return room, nil
}

func (f *fakeStore) GetRoomByCode(ctx context.Context, code string) (models.GameRoom, error) {
	room, ok := f.rooms[code]
	if !ok {
		return models.GameRoom{}, ErrNotFound
	}
	return room, nil
}

func (f *fakeStore) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	return f.players[roomID], nil
}

func (f *fakeStore) CreatePlayer(ctx context.Context, userID, roomID uuid.UUID, team string) (models.Player, error) {
	p := models.Player{ID: uuid.New(), UserID: userID, RoomID: roomID, Team: team}
	f.players[roomID] = append(f.players[roomID], p)
	return p, nil
}

func (f *fakeStore) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status string) error {
	for code, room := range f.rooms {
		if room.ID == roomID {
			room.Status = status
			f.rooms[code] = room
		}
	}
	return nil
}

type createGameCall struct {
	roomID, roomCode, difficulty string
	winThreshold, roundDuration  int
}

type fakeGames struct {
	calls []createGameCall
}

func (f *fakeGames) CreateGame(roomID, roomCode, difficulty string, winThreshold, roundDuration int) {
	f.calls = append(f.calls, createGameCall{roomID, roomCode, difficulty, winThreshold, roundDuration})
}

func newTestService() (*Service, *fakeStore, *fakeGames) {
	store := newFakeStore()
	games := &fakeGames{}
	return NewService(store, games, 1, zerolog.Nop()), store, games
}

func TestCreateRoomAutoJoinsCreatorOnTeamA(t *testing.T) {
	svc, store, games := newTestService()

	resp, err := svc.CreateRoom(context.Background(), CreateRoomRequest{
		Username:   "alice",
		Difficulty: "hard",
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if resp.Team != "A" || resp.Status != "waiting" {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.RoomCode) != roomCodeLength {
		t.Errorf("room code %q length = %d, want %d", resp.RoomCode, len(resp.RoomCode), roomCodeLength)
	}

	room := store.rooms[resp.RoomCode]
	if room.WinThreshold != 10 || room.RoundDuration != 120 || room.MaxPlayersPerTeam != 5 {
		t.Errorf("defaults not applied: %+v", room)
	}
	if len(games.calls) != 1 || games.calls[0].difficulty != "hard" {
		t.Errorf("game registration = %+v", games.calls)
	}
}

func TestCreateRoomRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.CreateRoom(context.Background(), CreateRoomRequest{Username: "  "}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("blank username error = %v", err)
	}
	if _, err := svc.CreateRoom(context.Background(), CreateRoomRequest{
		Username: "alice", Difficulty: "nightmare",
	}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("bad difficulty error = %v", err)
	}
}

func TestJoinRoomAutoAssignsSmallerTeam(t *testing.T) {
	svc, _, _ := newTestService()
	created, err := svc.CreateRoom(context.Background(), CreateRoomRequest{Username: "alice"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	// Creator sits on A, so the next unassigned join lands on B.
	joined, err := svc.JoinRoom(context.Background(), created.RoomCode, JoinRoomRequest{Username: "bob"})
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if joined.Team != "B" {
		t.Errorf("auto-assigned team = %q, want B", joined.Team)
	}

	// Explicit lowercase preference is honored.
	third, err := svc.JoinRoom(context.Background(), created.RoomCode, JoinRoomRequest{Username: "carol", Team: "b"})
	if err != nil {
		t.Fatalf("JoinRoom with preference: %v", err)
	}
	if third.Team != "B" {
		t.Errorf("preferred team = %q, want B", third.Team)
	}
}

func TestJoinRoomCapacity(t *testing.T) {
	svc, store, _ := newTestService()
	created, _ := svc.CreateRoom(context.Background(), CreateRoomRequest{
		Username: "alice", MaxPlayersPerTeam: 1,
	})

	if _, err := svc.JoinRoom(context.Background(), created.RoomCode, JoinRoomRequest{
		Username: "bob", Team: "A",
	}); !errors.Is(err, ErrTeamFull) {
		t.Errorf("full team join error = %v", err)
	}

	if _, err := svc.JoinRoom(context.Background(), created.RoomCode, JoinRoomRequest{
		Username: "bob", Team: "B",
	}); err != nil {
		t.Errorf("open team join error = %v", err)
	}

	room := store.rooms[created.RoomCode]
	if got := len(store.players[room.ID]); got != 2 {
		t.Errorf("players = %d, want 2", got)
	}
}

func TestJoinRoomIdempotentForSameUser(t *testing.T) {
	svc, _, _ := newTestService()
	created, _ := svc.CreateRoom(context.Background(), CreateRoomRequest{Username: "alice"})

	again, err := svc.JoinRoom(context.Background(), created.RoomCode, JoinRoomRequest{
		Username: "alice", Team: "B",
	})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again.PlayerID != created.PlayerID || again.Team != "A" {
		t.Errorf("rejoin = %+v, want original seat %+v", again, created)
	}
}

func TestJoinRoomStatusGate(t *testing.T) {
	svc, store, _ := newTestService()
	created, _ := svc.CreateRoom(context.Background(), CreateRoomRequest{Username: "alice"})

	room := store.rooms[created.RoomCode]
	room.Status = "in_progress"
	store.rooms[created.RoomCode] = room

	if _, err := svc.JoinRoom(context.Background(), created.RoomCode, JoinRoomRequest{
		Username: "bob",
	}); !errors.Is(err, ErrGameAlreadyStarted) {
		t.Errorf("started room join error = %v", err)
	}

	if _, err := svc.JoinRoom(context.Background(), "NOSUCH", JoinRoomRequest{
		Username: "bob",
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing room join error = %v", err)
	}
}

func TestGetRoomCounts(t *testing.T) {
	svc, _, _ := newTestService()
	created, _ := svc.CreateRoom(context.Background(), CreateRoomRequest{Username: "alice"})
	svc.JoinRoom(context.Background(), created.RoomCode, JoinRoomRequest{Username: "bob"})

	room, err := svc.GetRoom(context.Background(), created.RoomCode)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if room.TeamACount != 1 || room.TeamBCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", room.TeamACount, room.TeamBCount)
	}
}
