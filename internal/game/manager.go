// Package game holds the authoritative in-memory match engine. All score,
// rope, timer, and question decisions happen here; clients only render what
// the manager publishes.
package game

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game/bus"
	"github.com/mathrumble/mathrumble/internal/game/events"
	"github.com/mathrumble/mathrumble/internal/questions"
)

const answerTolerance = 0.01

// PlayerInfo identifies one connected participant.
type PlayerInfo struct {
	PlayerID string
	UserID   string
	Username string
	Team     string
}

// StatsRecorder persists per-player outcomes. Implementations must be safe
// for concurrent use; a nil recorder disables persistence.
type StatsRecorder interface {
	RecordAnswer(ctx context.Context, userID string, correct bool, responseTimeMs int) error
	RecordResult(ctx context.Context, userID string, won bool) error
	RecordMatch(ctx context.Context, roomID string, winner string, ropeFinal, durationSecs int) error
}

// Defaults are the tuning values applied to rooms that do not override them.
type Defaults struct {
	Difficulty    string
	WinThreshold  int
	RoundDuration int
}

type activeGame struct {
	roomID        string
	roomCode      string
	difficulty    string
	winThreshold  int
	roundDuration int

	teamAScore   int
	teamBScore   int
	ropePosition int
	timer        int
	status       string
	winner       string

	currentQuestion *events.Question
	currentAnswer   float64
	answered        map[string]struct{}
	questionStart   time.Time
	startedAt       time.Time

	players map[string]PlayerInfo
	done    chan struct{}
}

// Manager owns every active game. One mutex guards the whole table; games
// are small and mutations are brief, so finer locking buys nothing.
type Manager struct {
	mu    sync.Mutex
	games map[string]*activeGame

	pub      bus.Publisher
	clock    clockwork.Clock
	engine   *questions.Engine
	stats    StatsRecorder
	defaults Defaults
	log      zerolog.Logger
}

func NewManager(pub bus.Publisher, clock clockwork.Clock, engine *questions.Engine, stats StatsRecorder, defaults Defaults, logger zerolog.Logger) *Manager {
	if defaults.Difficulty == "" {
		defaults.Difficulty = questions.DifficultyEasy
	}
	if defaults.WinThreshold <= 0 {
		defaults.WinThreshold = 10
	}
	if defaults.RoundDuration <= 0 {
		defaults.RoundDuration = 120
	}
	return &Manager{
		games:    make(map[string]*activeGame),
		pub:      pub,
		clock:    clock,
		engine:   engine,
		stats:    stats,
		defaults: defaults,
		log:      logger,
	}
}

// CreateGame registers a room with the engine. Zero tuning values fall back
// to the manager defaults.
func (m *Manager) CreateGame(roomID, roomCode, difficulty string, winThreshold, roundDuration int) {
	if difficulty == "" {
		difficulty = m.defaults.Difficulty
	}
	if winThreshold <= 0 {
		winThreshold = m.defaults.WinThreshold
	}
	if roundDuration <= 0 {
		roundDuration = m.defaults.RoundDuration
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[roomID]; ok {
		return
	}
	m.games[roomID] = &activeGame{
		roomID:        roomID,
		roomCode:      roomCode,
		difficulty:    difficulty,
		winThreshold:  winThreshold,
		roundDuration: roundDuration,
		timer:         roundDuration,
		status:        "waiting",
		answered:      make(map[string]struct{}),
		players:       make(map[string]PlayerInfo),
	}
	m.log.Info().
		Str("room_id", roomID).
		Str("room_code", roomCode).
		Str("difficulty", difficulty).
		Msg("game created")
}

// HasGame reports whether the room is registered.
func (m *Manager) HasGame(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.games[roomID]
	return ok
}

// Snapshot returns the current full state for a room.
func (m *Manager) Snapshot(roomID string) (events.StateUpdatePayload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[roomID]
	if !ok {
		return events.StateUpdatePayload{}, false
	}
	return g.statePayload(), true
}

// PlayerConnected records a participant and announces the new team counts.
func (m *Manager) PlayerConnected(roomID string, p PlayerInfo) {
	m.mu.Lock()
	g, ok := m.games[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	g.players[p.PlayerID] = p
	a, b := g.teamCounts()
	m.mu.Unlock()

	m.publish(roomID, events.TypePlayerJoined, events.PlayerPresencePayload{
		Username:   p.Username,
		Team:       p.Team,
		TeamACount: a,
		TeamBCount: b,
	})
}

// PlayerDisconnected removes a participant. Empty rooms that are not
// mid-round are torn down.
func (m *Manager) PlayerDisconnected(roomID, playerID string) {
	m.mu.Lock()
	g, ok := m.games[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	p, known := g.players[playerID]
	delete(g.players, playerID)
	a, b := g.teamCounts()
	empty := len(g.players) == 0 && g.status != "in_progress"
	if empty {
		delete(m.games, roomID)
	}
	m.mu.Unlock()

	username := "Unknown"
	if known {
		username = p.Username
	}
	m.publish(roomID, events.TypePlayerLeft, events.PlayerPresencePayload{
		Username:   username,
		TeamACount: a,
		TeamBCount: b,
	})
	if empty {
		m.log.Info().Str("room_id", roomID).Msg("empty game removed")
	}
}

// StartGame moves a waiting room into play: first question, countdown,
// game_started plus a full state broadcast. Rooms in any other status are
// left untouched.
func (m *Manager) StartGame(roomID string) {
	m.mu.Lock()
	g, ok := m.games[roomID]
	if !ok || g.status != "waiting" {
		m.mu.Unlock()
		return
	}
	g.status = "in_progress"
	g.timer = g.roundDuration
	g.startedAt = m.clock.Now()
	g.done = make(chan struct{})
	m.nextQuestionLocked(g)
	state := g.statePayload()
	m.mu.Unlock()

	go m.runTimer(g)

	m.publish(roomID, events.TypeGameStarted, events.GameStartedPayload{})
	m.publish(roomID, events.TypeStateUpdate, state)
	m.log.Info().Str("room_id", roomID).Int("round_duration", g.roundDuration).Msg("game started")
}

// SubmitAnswer scores one player's answer to the given question. The result
// goes back to the submitter only; score movement is broadcast separately.
func (m *Manager) SubmitAnswer(roomID, playerID, questionID string, answer float64) events.AnswerResultPayload {
	m.mu.Lock()
	g, ok := m.games[roomID]
	if !ok || g.status != "in_progress" {
		m.mu.Unlock()
		return events.AnswerResultPayload{Correct: false, Message: "Game not active"}
	}
	if g.currentQuestion == nil || g.currentQuestion.ID != questionID {
		m.mu.Unlock()
		return events.AnswerResultPayload{Correct: false, Message: "Invalid question"}
	}
	if _, already := g.answered[playerID]; already {
		m.mu.Unlock()
		return events.AnswerResultPayload{Correct: false, Message: "Already answered this question"}
	}
	g.answered[playerID] = struct{}{}

	player, known := g.players[playerID]
	if !known {
		m.mu.Unlock()
		return events.AnswerResultPayload{Correct: false, Message: "Player not found"}
	}

	responseMs := int(m.clock.Since(g.questionStart) / time.Millisecond)
	diff := answer - g.currentAnswer
	correct := diff < answerTolerance && diff > -answerTolerance

	result := events.AnswerResultPayload{
		Correct:        correct,
		PlayerID:       playerID,
		Team:           player.Team,
		ResponseTimeMs: responseMs,
	}

	if !correct {
		m.mu.Unlock()
		m.publish(roomID, events.TypeWrongAnswer, events.WrongAnswerPayload{
			Team:     player.Team,
			Username: player.Username,
		})
		m.recordAnswer(player.UserID, false, responseMs)
		return result
	}

	if player.Team == "A" {
		g.teamAScore++
		g.ropePosition++
	} else {
		g.teamBScore++
		g.ropePosition--
	}
	scored := events.CorrectAnswerPayload{
		Team:         player.Team,
		Username:     player.Username,
		RopePosition: g.ropePosition,
		TeamAScore:   g.teamAScore,
		TeamBScore:   g.teamBScore,
	}

	var winner string
	if g.ropePosition >= g.winThreshold {
		winner = "A"
	} else if g.ropePosition <= -g.winThreshold {
		winner = "B"
	}

	if winner != "" {
		over := m.endGameLocked(g, winner)
		m.mu.Unlock()
		m.publish(roomID, events.TypeCorrectAnswer, scored)
		m.publish(roomID, events.TypeGameOver, over)
		m.recordAnswer(player.UserID, true, responseMs)
		result.GameOver = true
		result.Winner = &winner
		return result
	}

	m.nextQuestionLocked(g)
	state := g.statePayload()
	m.mu.Unlock()

	m.publish(roomID, events.TypeCorrectAnswer, scored)
	m.publish(roomID, events.TypeStateUpdate, state)
	m.recordAnswer(player.UserID, true, responseMs)
	return result
}

// UpdateDefaults changes the tuning applied to rooms created afterwards.
func (m *Manager) UpdateDefaults(d Defaults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Difficulty != "" {
		m.defaults.Difficulty = d.Difficulty
	}
	if d.WinThreshold > 0 {
		m.defaults.WinThreshold = d.WinThreshold
	}
	if d.RoundDuration > 0 {
		m.defaults.RoundDuration = d.RoundDuration
	}
}

// CurrentDefaults returns the active tuning values.
func (m *Manager) CurrentDefaults() Defaults {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaults
}

func (m *Manager) nextQuestionLocked(g *activeGame) {
	q, ans := m.engine.Generate(g.difficulty)
	g.currentQuestion = &q
	g.currentAnswer = ans
	g.answered = make(map[string]struct{})
	g.questionStart = m.clock.Now()
}

func (m *Manager) runTimer(g *activeGame) {
	ticker := m.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.Chan():
		}

		m.mu.Lock()
		if g.status != "in_progress" {
			m.mu.Unlock()
			return
		}
		g.timer--
		remaining := g.timer
		expired := remaining <= 0

		var over events.GameOverPayload
		if expired {
			winner := ""
			if g.ropePosition > 0 {
				winner = "A"
			} else if g.ropePosition < 0 {
				winner = "B"
			}
			over = m.endGameLocked(g, winner)
		}
		m.mu.Unlock()

		if expired {
			m.publish(g.roomID, events.TypeGameOver, over)
			return
		}
		// Keep chatter down: tick on multiples of five, every second in
		// the final stretch.
		if remaining%5 == 0 || remaining <= 10 {
			m.publish(g.roomID, events.TypeTimerTick, events.TimerTickPayload{Timer: remaining})
		}
	}
}

// endGameLocked finalizes the game and returns the game_over payload for
// the caller to publish after unlocking. Empty winner means a draw.
func (m *Manager) endGameLocked(g *activeGame, winner string) events.GameOverPayload {
	g.status = "finished"
	g.winner = winner
	if g.done != nil {
		select {
		case <-g.done:
		default:
			close(g.done)
		}
	}

	duration := int(m.clock.Since(g.startedAt) / time.Second)
	results := make([]PlayerInfo, 0, len(g.players))
	for _, p := range g.players {
		results = append(results, p)
	}
	go m.recordOutcome(g.roomID, winner, g.ropePosition, duration, results)

	var winnerPtr *string
	if winner != "" {
		w := winner
		winnerPtr = &w
	}
	return events.GameOverPayload{
		Winner:       winnerPtr,
		TeamAScore:   g.teamAScore,
		TeamBScore:   g.teamBScore,
		RopePosition: g.ropePosition,
	}
}

func (m *Manager) publish(roomID string, t events.EventType, payload any) {
	env, err := events.NewEnvelope(roomID, t, payload)
	if err != nil {
		m.log.Error().Err(err).Str("type", string(t)).Msg("failed to build envelope")
		return
	}
	if err := m.pub.Publish(env); err != nil {
		m.log.Error().Err(err).Str("type", string(t)).Str("room_id", roomID).Msg("publish failed")
	}
}

func (m *Manager) recordAnswer(userID string, correct bool, responseMs int) {
	if m.stats == nil || userID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.stats.RecordAnswer(ctx, userID, correct, responseMs); err != nil {
			m.log.Warn().Err(err).Str("user_id", userID).Msg("failed to record answer stats")
		}
	}()
}

func (m *Manager) recordOutcome(roomID, winner string, ropeFinal, duration int, players []PlayerInfo) {
	if m.stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.stats.RecordMatch(ctx, roomID, winner, ropeFinal, duration); err != nil {
		m.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to record match")
	}
	if winner == "" {
		return
	}
	for _, p := range players {
		if p.UserID == "" {
			continue
		}
		if err := m.stats.RecordResult(ctx, p.UserID, p.Team == winner); err != nil {
			m.log.Warn().Err(err).Str("user_id", p.UserID).Msg("failed to record result")
		}
	}
}

func (g *activeGame) teamCounts() (int, int) {
	var a, b int
	for _, p := range g.players {
		if p.Team == "A" {
			a++
		} else {
			b++
		}
	}
	return a, b
}

func (g *activeGame) statePayload() events.StateUpdatePayload {
	var winner *string
	if g.winner != "" {
		w := g.winner
		winner = &w
	}
	var q *events.Question
	if g.currentQuestion != nil {
		qq := *g.currentQuestion
		q = &qq
	}
	return events.StateUpdatePayload{
		TeamAScore:      g.teamAScore,
		TeamBScore:      g.teamBScore,
		RopePosition:    g.ropePosition,
		Timer:           g.timer,
		Status:          g.status,
		Winner:          winner,
		CurrentQuestion: q,
	}
}
