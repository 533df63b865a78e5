package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the bus-side wrapper around a game event. The gateway strips it
// back down to a Frame before fanning out to WebSocket clients.
type Envelope struct {
	EventID   string          `json:"event_id"`
	RoomID    string          `json:"room_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope builds a bus envelope for a room event.
func NewEnvelope(roomID string, t EventType, payload any) (Envelope, error) {
	frame, err := NewFrame(t, payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("build envelope: %w", err)
	}
	return Envelope{
		EventID:   uuid.New().String(),
		RoomID:    roomID,
		Type:      t,
		Timestamp: time.Now(),
		Data:      frame.Data,
	}, nil
}

// Frame converts the envelope to the client-facing wire format.
func (e Envelope) Frame() Frame {
	return Frame{Type: e.Type, Data: e.Data}
}
