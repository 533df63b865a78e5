package gateway

import (
	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game/bus"
	"github.com/mathrumble/mathrumble/internal/game/events"
)

// EventConsumer forwards bus envelopes to room connections.
type EventConsumer struct {
	connectionManager *ConnectionManager
	sub               bus.Subscriber
	cancel            func()
	log               zerolog.Logger
}

func NewEventConsumer(cm *ConnectionManager, sub bus.Subscriber, logger zerolog.Logger) *EventConsumer {
	return &EventConsumer{connectionManager: cm, sub: sub, log: logger}
}

// Start subscribes to the bus. Frames fan out to the envelope's room; the
// subscription stays live until Stop.
func (ec *EventConsumer) Start() error {
	cancel, err := ec.sub.Subscribe(func(env events.Envelope) {
		ec.log.Debug().
			Str("event_id", env.EventID).
			Str("room_id", env.RoomID).
			Str("type", string(env.Type)).
			Msg("broadcasting game event")
		ec.connectionManager.BroadcastToRoom(env.RoomID, env.Frame())
	})
	if err != nil {
		return err
	}
	ec.cancel = cancel
	ec.log.Info().Msg("event consumer started")
	return nil
}

// Stop tears down the bus subscription.
func (ec *EventConsumer) Stop() {
	if ec.cancel != nil {
		ec.cancel()
		ec.cancel = nil
	}
}
