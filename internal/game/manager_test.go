package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game/events"
	"github.com/mathrumble/mathrumble/internal/questions"
)

type capturePublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (p *capturePublisher) Publish(env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
	return nil
}

func (p *capturePublisher) byType(t events.EventType) []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Envelope
	for _, env := range p.envs {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestManager(clock clockwork.Clock, stats StatsRecorder) (*Manager, *capturePublisher) {
	pub := &capturePublisher{}
	engine := questions.NewEngine(1, questions.DefaultTimeLimits())
	m := NewManager(pub, clock, engine, stats, Defaults{}, zerolog.Nop())
	return m, pub
}

// currentQuestion peeks at the active question so tests can answer it.
func currentQuestion(m *Manager, roomID string) (string, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.games[roomID]
	if g == nil || g.currentQuestion == nil {
		return "", 0
	}
	return g.currentQuestion.ID, g.currentAnswer
}

func TestStartGameBroadcastsStateWithQuestion(t *testing.T) {
	m, pub := newTestManager(clockwork.NewFakeClock(), nil)
	m.CreateGame("room-1", "ABCDEF", "easy", 10, 120)
	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p1", Username: "alice", Team: "A"})

	m.StartGame("room-1")

	if got := len(pub.byType(events.TypeGameStarted)); got != 1 {
		t.Fatalf("game_started events = %d, want 1", got)
	}
	states := pub.byType(events.TypeStateUpdate)
	if len(states) != 1 {
		t.Fatalf("state_update events = %d, want 1", len(states))
	}
	payload, err := events.ParsePayload(states[0].Frame())
	if err != nil {
		t.Fatalf("parse state: %v", err)
	}
	state := payload.(events.StateUpdatePayload)
	if state.Status != "in_progress" || state.Timer != 120 || state.CurrentQuestion == nil {
		t.Errorf("state = %+v", state)
	}

	// Starting again must be a no-op.
	m.StartGame("room-1")
	if got := len(pub.byType(events.TypeGameStarted)); got != 1 {
		t.Errorf("game_started events after restart = %d, want 1", got)
	}
}

func TestCorrectAnswerMovesRopeAndAdvancesQuestion(t *testing.T) {
	m, pub := newTestManager(clockwork.NewFakeClock(), nil)
	m.CreateGame("room-1", "ABCDEF", "easy", 10, 120)
	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p1", Username: "alice", Team: "A"})
	m.StartGame("room-1")

	qID, answer := currentQuestion(m, "room-1")
	result := m.SubmitAnswer("room-1", "p1", qID, answer)

	if !result.Correct || result.Team != "A" {
		t.Fatalf("result = %+v", result)
	}
	scored := pub.byType(events.TypeCorrectAnswer)
	if len(scored) != 1 {
		t.Fatalf("correct_answer events = %d, want 1", len(scored))
	}
	payload, _ := events.ParsePayload(scored[0].Frame())
	p := payload.(events.CorrectAnswerPayload)
	if p.RopePosition != 1 || p.TeamAScore != 1 || p.TeamBScore != 0 {
		t.Errorf("payload = %+v", p)
	}

	nextID, _ := currentQuestion(m, "room-1")
	if nextID == qID {
		t.Error("question did not advance after a correct answer")
	}

	// The answered set resets with the question, so the same player may
	// answer again.
	qID2, answer2 := currentQuestion(m, "room-1")
	if r := m.SubmitAnswer("room-1", "p1", qID2, answer2); !r.Correct {
		t.Errorf("second question result = %+v", r)
	}
}

func TestOneAnswerPerPlayerPerQuestion(t *testing.T) {
	m, pub := newTestManager(clockwork.NewFakeClock(), nil)
	m.CreateGame("room-1", "ABCDEF", "easy", 10, 120)
	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p1", Username: "alice", Team: "A"})
	m.StartGame("room-1")

	qID, answer := currentQuestion(m, "room-1")
	first := m.SubmitAnswer("room-1", "p1", qID, answer+5)
	if first.Correct {
		t.Fatalf("wrong answer scored as correct: %+v", first)
	}
	if got := len(pub.byType(events.TypeWrongAnswer)); got != 1 {
		t.Errorf("wrong_answer events = %d, want 1", got)
	}

	second := m.SubmitAnswer("room-1", "p1", qID, answer)
	if second.Correct || second.Message != "Already answered this question" {
		t.Errorf("second attempt = %+v", second)
	}
}

func TestSubmitAnswerGates(t *testing.T) {
	m, _ := newTestManager(clockwork.NewFakeClock(), nil)

	if r := m.SubmitAnswer("ghost", "p1", "q1", 1); r.Message != "Game not active" {
		t.Errorf("unknown room result = %+v", r)
	}

	m.CreateGame("room-1", "ABCDEF", "easy", 10, 120)
	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p1", Username: "alice", Team: "A"})
	if r := m.SubmitAnswer("room-1", "p1", "q1", 1); r.Message != "Game not active" {
		t.Errorf("waiting room result = %+v", r)
	}

	m.StartGame("room-1")
	if r := m.SubmitAnswer("room-1", "p1", "stale-question", 1); r.Message != "Invalid question" {
		t.Errorf("stale question result = %+v", r)
	}
}

func TestWinByRopeThreshold(t *testing.T) {
	m, pub := newTestManager(clockwork.NewFakeClock(), nil)
	m.CreateGame("room-1", "ABCDEF", "easy", 1, 120)
	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p1", Username: "alice", Team: "A"})
	m.StartGame("room-1")

	qID, answer := currentQuestion(m, "room-1")
	result := m.SubmitAnswer("room-1", "p1", qID, answer)

	if !result.GameOver || result.Winner == nil || *result.Winner != "A" {
		t.Fatalf("result = %+v", result)
	}
	overs := pub.byType(events.TypeGameOver)
	if len(overs) != 1 {
		t.Fatalf("game_over events = %d, want 1", len(overs))
	}
	payload, _ := events.ParsePayload(overs[0].Frame())
	over := payload.(events.GameOverPayload)
	if over.Winner == nil || *over.Winner != "A" || over.RopePosition != 1 {
		t.Errorf("game_over payload = %+v", over)
	}

	state, ok := m.Snapshot("room-1")
	if !ok || state.Status != "finished" {
		t.Errorf("snapshot = %+v ok=%v", state, ok)
	}
}

func TestTimeoutWinnerByRopePosition(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m, pub := newTestManager(fc, nil)
	m.CreateGame("room-1", "ABCDEF", "easy", 10, 1)
	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p1", Username: "alice", Team: "A"})
	m.StartGame("room-1")

	qID, answer := currentQuestion(m, "room-1")
	m.SubmitAnswer("room-1", "p1", qID, answer)

	fc.BlockUntil(1)
	fc.Advance(time.Second)

	waitFor(t, func() bool {
		state, ok := m.Snapshot("room-1")
		return ok && state.Status == "finished"
	}, "game did not finish at timeout")

	overs := pub.byType(events.TypeGameOver)
	if len(overs) != 1 {
		t.Fatalf("game_over events = %d, want 1", len(overs))
	}
	payload, _ := events.ParsePayload(overs[0].Frame())
	over := payload.(events.GameOverPayload)
	if over.Winner == nil || *over.Winner != "A" {
		t.Errorf("timeout winner = %+v, want A", over.Winner)
	}
}

func TestTimeoutAtLevelRopeIsDraw(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m, pub := newTestManager(fc, nil)
	m.CreateGame("room-1", "ABCDEF", "easy", 10, 2)
	m.StartGame("room-1")

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	waitFor(t, func() bool {
		state, _ := m.Snapshot("room-1")
		return state.Timer == 1
	}, "first tick not processed")

	fc.Advance(time.Second)
	waitFor(t, func() bool {
		state, _ := m.Snapshot("room-1")
		return state.Status == "finished"
	}, "game did not finish at timeout")

	payload, _ := events.ParsePayload(pub.byType(events.TypeGameOver)[0].Frame())
	if over := payload.(events.GameOverPayload); over.Winner != nil {
		t.Errorf("draw winner = %v, want nil", over.Winner)
	}
}

func TestTimerTickCadence(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m, pub := newTestManager(fc, nil)
	m.CreateGame("room-1", "ABCDEF", "easy", 10, 12)
	m.StartGame("room-1")

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	waitFor(t, func() bool {
		state, _ := m.Snapshot("room-1")
		return state.Timer == 11
	}, "timer did not reach 11")

	fc.Advance(time.Second)
	waitFor(t, func() bool {
		state, _ := m.Snapshot("room-1")
		return state.Timer == 10
	}, "timer did not reach 10")

	waitFor(t, func() bool {
		return len(pub.byType(events.TypeTimerTick)) == 1
	}, "tick for 10 not published")
	payload, _ := events.ParsePayload(pub.byType(events.TypeTimerTick)[0].Frame())
	if tick := payload.(events.TimerTickPayload); tick.Timer != 10 {
		t.Errorf("tick timer = %d, want 10 (11 is off-cadence)", tick.Timer)
	}
}

func TestPresenceEventsCarryTeamCounts(t *testing.T) {
	m, pub := newTestManager(clockwork.NewFakeClock(), nil)
	m.CreateGame("room-1", "ABCDEF", "easy", 10, 120)

	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p1", Username: "alice", Team: "A"})
	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p2", Username: "bob", Team: "B"})

	joins := pub.byType(events.TypePlayerJoined)
	if len(joins) != 2 {
		t.Fatalf("player_joined events = %d, want 2", len(joins))
	}
	payload, _ := events.ParsePayload(joins[1].Frame())
	if p := payload.(events.PlayerPresencePayload); p.TeamACount != 1 || p.TeamBCount != 1 {
		t.Errorf("counts = %+v", p)
	}

	m.PlayerDisconnected("room-1", "p2")
	lefts := pub.byType(events.TypePlayerLeft)
	if len(lefts) != 1 {
		t.Fatalf("player_left events = %d, want 1", len(lefts))
	}
	payload, _ = events.ParsePayload(lefts[0].Frame())
	if p := payload.(events.PlayerPresencePayload); p.Username != "bob" || p.TeamBCount != 0 {
		t.Errorf("player_left payload = %+v", p)
	}

	// Last player leaving a waiting room tears the game down.
	m.PlayerDisconnected("room-1", "p1")
	if m.HasGame("room-1") {
		t.Error("empty waiting game was not removed")
	}
}

type recorderCall struct {
	kind   string
	userID string
	won    bool
}

type fakeRecorder struct {
	calls chan recorderCall
}

func (r *fakeRecorder) RecordAnswer(ctx context.Context, userID string, correct bool, responseTimeMs int) error {
	r.calls <- recorderCall{kind: "answer", userID: userID, won: correct}
	return nil
}

func (r *fakeRecorder) RecordResult(ctx context.Context, userID string, won bool) error {
	r.calls <- recorderCall{kind: "result", userID: userID, won: won}
	return nil
}

func (r *fakeRecorder) RecordMatch(ctx context.Context, roomID string, winner string, ropeFinal, durationSecs int) error {
	r.calls <- recorderCall{kind: "match", userID: roomID}
	return nil
}

func TestStatsRecordedOnWin(t *testing.T) {
	rec := &fakeRecorder{calls: make(chan recorderCall, 16)}
	m, _ := newTestManager(clockwork.NewFakeClock(), rec)
	m.CreateGame("room-1", "ABCDEF", "easy", 1, 120)
	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p1", UserID: "u1", Username: "alice", Team: "A"})
	m.PlayerConnected("room-1", PlayerInfo{PlayerID: "p2", UserID: "u2", Username: "bob", Team: "B"})
	m.StartGame("room-1")

	qID, answer := currentQuestion(m, "room-1")
	m.SubmitAnswer("room-1", "p1", qID, answer)

	got := map[string]recorderCall{}
	for i := 0; i < 4; i++ {
		select {
		case call := <-rec.calls:
			got[call.kind+":"+call.userID] = call
		case <-time.After(2 * time.Second):
			t.Fatalf("missing recorder calls, have %v", got)
		}
	}
	if c, ok := got["result:u1"]; !ok || !c.won {
		t.Errorf("winner result call = %+v", c)
	}
	if c, ok := got["result:u2"]; !ok || c.won {
		t.Errorf("loser result call = %+v", c)
	}
	if _, ok := got["match:room-1"]; !ok {
		t.Error("match was not recorded")
	}
	if _, ok := got["answer:u1"]; !ok {
		t.Error("answer was not recorded")
	}
}
