package events

import (
	"encoding/json"
	"fmt"
)

// EventType tags every frame exchanged over the game WebSocket.
type EventType string

// Server -> client event types.
const (
	TypeStateUpdate   EventType = "state_update"
	TypeGameStarted   EventType = "game_started"
	TypePlayerJoined  EventType = "player_joined"
	TypePlayerLeft    EventType = "player_left"
	TypeCorrectAnswer EventType = "correct_answer"
	TypeWrongAnswer   EventType = "wrong_answer"
	TypeAnswerResult  EventType = "answer_result"
	TypeTimerTick     EventType = "timer_tick"
	TypeGameOver      EventType = "game_over"
)

// Client -> server event types.
const (
	TypeStartGame EventType = "start_game"
	TypeAnswer    EventType = "answer"
)

// Frame is the envelope for every message on the wire, both directions.
type Frame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewFrame wraps a payload struct into a Frame. A nil payload produces an
// empty object, which is what the protocol uses for payload-less events.
func NewFrame(t EventType, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Type: t, Data: json.RawMessage(`{}`)}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Frame{Type: t, Data: data}, nil
}

// Question is the wire shape of the current arithmetic question.
type Question struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Difficulty string `json:"difficulty"`
	TimeLimit  int    `json:"time_limit"`
}

// StateUpdatePayload is the authoritative full snapshot. Winner is null while
// the game is undecided; CurrentQuestion is omitted outside an active round.
type StateUpdatePayload struct {
	TeamAScore      int       `json:"team_a_score"`
	TeamBScore      int       `json:"team_b_score"`
	RopePosition    int       `json:"rope_position"`
	Timer           int       `json:"timer"`
	Status          string    `json:"status"`
	Winner          *string   `json:"winner"`
	CurrentQuestion *Question `json:"current_question,omitempty"`
}

// GameStartedPayload carries no data; the event itself is the signal.
type GameStartedPayload struct{}

// PlayerPresencePayload is shared by player_joined and player_left. Both
// overwrite the per-team connection counts wholesale.
type PlayerPresencePayload struct {
	Username   string `json:"username"`
	Team       string `json:"team,omitempty"`
	TeamACount int    `json:"team_a_count"`
	TeamBCount int    `json:"team_b_count"`
}

// CorrectAnswerPayload announces a scoring answer to the whole room.
type CorrectAnswerPayload struct {
	Team         string `json:"team"`
	Username     string `json:"username"`
	RopePosition int    `json:"rope_position"`
	TeamAScore   int    `json:"team_a_score"`
	TeamBScore   int    `json:"team_b_score"`
}

// WrongAnswerPayload announces a missed answer to the whole room.
type WrongAnswerPayload struct {
	Team     string `json:"team"`
	Username string `json:"username"`
}

// AnswerResultPayload goes only to the player who submitted the answer.
type AnswerResultPayload struct {
	Correct        bool    `json:"correct"`
	PlayerID       string  `json:"player_id,omitempty"`
	Team           string  `json:"team,omitempty"`
	ResponseTimeMs int     `json:"response_time_ms,omitempty"`
	Message        string  `json:"message,omitempty"`
	GameOver       bool    `json:"game_over,omitempty"`
	Winner         *string `json:"winner,omitempty"`
}

// TimerTickPayload overwrites the round timer only.
type TimerTickPayload struct {
	Timer int `json:"timer"`
}

// GameOverPayload is terminal. A null winner means the round was a draw.
type GameOverPayload struct {
	Winner       *string `json:"winner"`
	TeamAScore   int     `json:"team_a_score"`
	TeamBScore   int     `json:"team_b_score"`
	RopePosition int     `json:"rope_position"`
}

// StartGamePayload is empty; only room members may start a game.
type StartGamePayload struct{}

// AnswerPayload is the client's answer submission.
type AnswerPayload struct {
	QuestionID string  `json:"question_id"`
	Answer     float64 `json:"answer"`
}

// ParsePayload decodes a frame's data into the payload struct for its type.
// Unknown types return (nil, nil) so older clients keep working when the
// authority grows new event types.
func ParsePayload(f Frame) (any, error) {
	switch f.Type {
	case TypeStateUpdate:
		var p StateUpdatePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeGameStarted:
		var p GameStartedPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypePlayerJoined, TypePlayerLeft:
		var p PlayerPresencePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeCorrectAnswer:
		var p CorrectAnswerPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeWrongAnswer:
		var p WrongAnswerPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeAnswerResult:
		var p AnswerResultPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeTimerTick:
		var p TimerTickPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeGameOver:
		var p GameOverPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeStartGame:
		var p StartGamePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeAnswer:
		var p AnswerPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, nil
	}
}
