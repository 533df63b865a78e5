package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game/events"
)

const writeWait = 10 * time.Second

// Client owns one WebSocket session per game participation. It translates
// inbound frames into store mutations and exposes Send for outbound player
// commands. The owning scope is responsible for calling Disconnect on every
// exit path; the client never reconnects on its own.
type Client struct {
	baseURL string
	store   *Store
	dialer  *websocket.Dialer
	log     zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a client for the given WebSocket base URL, e.g.
// "ws://localhost:8080". The store must already carry the session identity
// before Connect is called.
func New(baseURL string, store *Store, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		dialer:  websocket.DefaultDialer,
		log:     logger,
	}
}

// Connect opens the transport session for the store's identity. It is a
// no-op when the identity has no room or player yet (the join flow has not
// completed). Calling Connect while already connected is an error; callers
// own the connect/disconnect pairing.
func (c *Client) Connect(ctx context.Context) error {
	id := c.store.Identity()
	if id.RoomID == "" || id.PlayerID == "" {
		c.log.Debug().Msg("connect skipped: no room identity yet")
		return nil
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("already connected to room %s", id.RoomID)
	}
	c.mu.Unlock()

	params := url.Values{}
	params.Set("player_id", id.PlayerID)
	params.Set("user_id", id.UserID)
	params.Set("username", id.Username)
	params.Set("team", string(id.Team))
	wsURL := fmt.Sprintf("%s/ws/game/%s?%s", c.baseURL, id.RoomID, params.Encode())

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %s)", wsURL, err, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// The transport pushes frames onto a single ordered channel; one
	// dispatch goroutine consumes it, so events apply to the store in
	// exactly the order the server sent them.
	frames := make(chan events.Frame, 64)
	go c.readPump(conn, frames)
	go c.dispatchLoop(frames)

	c.log.Info().
		Str("room_id", id.RoomID).
		Str("player_id", id.PlayerID).
		Str("team", string(id.Team)).
		Msg("websocket connected")
	return nil
}

// Disconnect closes the active session if one exists. Safe to call when
// nothing is connected, and safe to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}

	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	conn.Close()
	c.log.Info().Msg("websocket disconnected")
}

// Send transmits an outbound event if the transport is open, and silently
// drops it otherwise. No queueing, no retry: replaying a stale answer or
// start command after a reconnect could corrupt round state.
func (c *Client) Send(t events.EventType, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		c.log.Debug().Str("type", string(t)).Msg("dropping send: not connected")
		return
	}

	frame, err := events.NewFrame(t, payload)
	if err != nil {
		c.log.Error().Err(err).Str("type", string(t)).Msg("failed to build frame")
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(frame); err != nil {
		c.log.Warn().Err(err).Str("type", string(t)).Msg("websocket write failed")
	}
}

// SendStartGame asks the authority to start the round.
func (c *Client) SendStartGame() {
	c.Send(events.TypeStartGame, events.StartGamePayload{})
}

// SendAnswer submits an answer for the given question.
func (c *Client) SendAnswer(questionID string, answer float64) {
	c.Send(events.TypeAnswer, events.AnswerPayload{QuestionID: questionID, Answer: answer})
}

func (c *Client) readPump(conn *websocket.Conn, frames chan<- events.Frame) {
	defer close(frames)
	for {
		var f events.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			conn.Close()
			return
		}
		frames <- f
	}
}

func (c *Client) dispatchLoop(frames <-chan events.Frame) {
	for f := range frames {
		c.handleFrame(f)
	}
}

// handleFrame applies one inbound event to the store. Every handler is a
// partial merge: fields absent from the event keep their last known value.
// Malformed payloads are dropped with a warning; unknown types are ignored
// so newer server event types never break this client.
func (c *Client) handleFrame(f events.Frame) {
	payload, err := events.ParsePayload(f)
	if err != nil {
		c.log.Warn().Err(err).Str("type", string(f.Type)).Msg("dropping malformed frame")
		return
	}

	switch p := payload.(type) {
	case events.StateUpdatePayload:
		status := Status(p.Status)
		winner := strOrEmpty(p.Winner)
		c.store.Update(Delta{
			Status:       &status,
			TeamAScore:   &p.TeamAScore,
			TeamBScore:   &p.TeamBScore,
			RopePosition: &p.RopePosition,
			Timer:        &p.Timer,
			Winner:       &winner,
		})
		if p.CurrentQuestion != nil {
			c.store.SetQuestion(p.CurrentQuestion)
		}

	case events.GameStartedPayload:
		status := StatusInProgress
		c.store.Update(Delta{Status: &status})

	case events.PlayerPresencePayload:
		c.store.Update(Delta{TeamACount: &p.TeamACount, TeamBCount: &p.TeamBCount})

	case events.CorrectAnswerPayload:
		c.store.Update(Delta{
			TeamAScore:      &p.TeamAScore,
			TeamBScore:      &p.TeamBScore,
			RopePosition:    &p.RopePosition,
			LastCorrectTeam: &p.Team,
		})

	case events.WrongAnswerPayload:
		c.store.Update(Delta{LastWrongTeam: &p.Team})

	case events.AnswerResultPayload:
		if p.Correct {
			c.store.SetAnswerFeedback(FeedbackCorrect)
		} else {
			c.store.SetAnswerFeedback(FeedbackWrong)
		}

	case events.TimerTickPayload:
		c.store.SetTimer(p.Timer)

	case events.GameOverPayload:
		status := StatusFinished
		winner := strOrEmpty(p.Winner)
		c.store.Update(Delta{
			Status:       &status,
			Winner:       &winner,
			TeamAScore:   &p.TeamAScore,
			TeamBScore:   &p.TeamBScore,
			RopePosition: &p.RopePosition,
		})

	default:
		c.log.Debug().Str("type", string(f.Type)).Msg("ignoring unknown event type")
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
