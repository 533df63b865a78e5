package client

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mathrumble/mathrumble/internal/game/events"
)

// Team identifies one of the two rope sides.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// Status is the session lifecycle phase. It moves idle -> waiting ->
// in_progress -> finished; a finished session is never re-entered, playing
// again requires Reset plus a fresh identity.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Feedback is the transient answer feedback shown after answer_result.
type Feedback string

const (
	FeedbackNone    Feedback = ""
	FeedbackCorrect Feedback = "correct"
	FeedbackWrong   Feedback = "wrong"
)

// feedbackTTL is how long answer feedback stays visible before the store
// clears it on its own.
const feedbackTTL = 1200 * time.Millisecond

// Identity is the immutable per-session participant tuple, written once by
// the room create/join flow.
type Identity struct {
	RoomID   string
	RoomCode string
	PlayerID string
	UserID   string
	Username string
	Team     Team
}

// GameState is the local mirror of the authority's game state plus the
// ephemeral UI-feedback fields. All numeric fields hold the latest value the
// authority sent; the client never computes or clamps them.
type GameState struct {
	Identity

	Status          Status
	TeamAScore      int
	TeamBScore      int
	RopePosition    int
	Timer           int
	CurrentQuestion *events.Question
	Winner          string
	TeamACount      int
	TeamBCount      int

	LastCorrectTeam string
	LastWrongTeam   string
	AnswerFeedback  Feedback
}

// Delta is a partial update to GameState. Nil fields are left untouched, so
// small events like timer_tick never zero the rest of the state.
type Delta struct {
	Status          *Status
	TeamAScore      *int
	TeamBScore      *int
	RopePosition    *int
	Timer           *int
	Winner          *string
	TeamACount      *int
	TeamBCount      *int
	LastCorrectTeam *string
	LastWrongTeam   *string
}

// Store is the single source of truth for one game participation. It is
// written by the connection manager (and the join flow), read by everything
// else. Construct one per session and pass it by reference; there is no
// package-level instance.
type Store struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	state GameState

	feedbackTimer clockwork.Timer
	feedbackGen   uint64

	subs map[chan GameState]struct{}
}

// NewStore returns a store in the idle state.
func NewStore() *Store {
	return &Store{
		clock: clockwork.NewRealClock(),
		state: GameState{Status: StatusIdle},
		subs:  make(map[chan GameState]struct{}),
	}
}

// SetConnectionInfo writes the identity and moves the session to waiting.
// Called exactly once per session, after a successful room create/join.
func (s *Store) SetConnectionInfo(id Identity) {
	s.mu.Lock()
	s.state.Identity = id
	s.state.Status = StatusWaiting
	s.notifyLocked()
	s.mu.Unlock()
}

// Update merges a partial state change. Omitted fields keep their value.
func (s *Store) Update(d Delta) {
	s.mu.Lock()
	if d.Status != nil {
		s.state.Status = *d.Status
	}
	if d.TeamAScore != nil {
		s.state.TeamAScore = *d.TeamAScore
	}
	if d.TeamBScore != nil {
		s.state.TeamBScore = *d.TeamBScore
	}
	if d.RopePosition != nil {
		s.state.RopePosition = *d.RopePosition
	}
	if d.Timer != nil {
		s.state.Timer = *d.Timer
	}
	if d.Winner != nil {
		s.state.Winner = *d.Winner
	}
	if d.TeamACount != nil {
		s.state.TeamACount = *d.TeamACount
	}
	if d.TeamBCount != nil {
		s.state.TeamBCount = *d.TeamBCount
	}
	if d.LastCorrectTeam != nil {
		s.state.LastCorrectTeam = *d.LastCorrectTeam
	}
	if d.LastWrongTeam != nil {
		s.state.LastWrongTeam = *d.LastWrongTeam
	}
	s.notifyLocked()
	s.mu.Unlock()
}

// SetQuestion replaces the current question wholesale. Passing nil clears it.
func (s *Store) SetQuestion(q *events.Question) {
	s.mu.Lock()
	if q == nil {
		s.state.CurrentQuestion = nil
	} else {
		qq := *q
		s.state.CurrentQuestion = &qq
	}
	s.notifyLocked()
	s.mu.Unlock()
}

// SetTimer overwrites the round timer.
func (s *Store) SetTimer(seconds int) {
	s.mu.Lock()
	s.state.Timer = seconds
	s.notifyLocked()
	s.mu.Unlock()
}

// SetAnswerFeedback overwrites the answer feedback. A non-empty value
// schedules a one-shot clear back to none after feedbackTTL; setting a new
// value cancels any pending clear, so the latest write always wins.
func (s *Store) SetAnswerFeedback(f Feedback) {
	s.mu.Lock()
	s.state.AnswerFeedback = f
	s.feedbackGen++
	gen := s.feedbackGen
	if s.feedbackTimer != nil {
		s.feedbackTimer.Stop()
		s.feedbackTimer = nil
	}
	if f != FeedbackNone {
		s.feedbackTimer = s.clock.AfterFunc(feedbackTTL, func() {
			s.clearFeedback(gen)
		})
	}
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Store) clearFeedback(gen uint64) {
	s.mu.Lock()
	if gen != s.feedbackGen {
		// A newer SetAnswerFeedback superseded this clear.
		s.mu.Unlock()
		return
	}
	s.state.AnswerFeedback = FeedbackNone
	s.feedbackTimer = nil
	s.notifyLocked()
	s.mu.Unlock()
}

// Reset discards identity and all game fields, returning the store to the
// idle default. Used for play-again and leaving a room.
func (s *Store) Reset() {
	s.mu.Lock()
	s.feedbackGen++
	if s.feedbackTimer != nil {
		s.feedbackTimer.Stop()
		s.feedbackTimer = nil
	}
	s.state = GameState{Status: StatusIdle}
	s.notifyLocked()
	s.mu.Unlock()
}

// State returns a snapshot of the current state.
func (s *Store) State() GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Identity returns the current session identity.
func (s *Store) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Identity
}

// Subscribe registers a snapshot channel that receives the state after every
// mutation. The returned cancel func must be called when done. Subscribers
// that stop draining are dropped rather than allowed to block the writer.
func (s *Store) Subscribe() (<-chan GameState, func()) {
	ch := make(chan GameState, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// notifyLocked fans the current state out to subscribers. The caller holds
// s.mu, so every subscriber sees snapshots in mutation order.
func (s *Store) notifyLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber, drop it.
			delete(s.subs, ch)
			close(ch)
		}
	}
}

func (s *Store) snapshotLocked() GameState {
	snap := s.state
	if s.state.CurrentQuestion != nil {
		q := *s.state.CurrentQuestion
		snap.CurrentQuestion = &q
	}
	return snap
}
