// Package bus carries game event envelopes from the game manager to the
// gateway. Two implementations: an in-process bus for single-node runs and
// a NATS bus for fan-out across instances.
package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game/events"
)

// Handler consumes one published envelope.
type Handler func(env events.Envelope)

// Publisher emits game events.
type Publisher interface {
	Publish(env events.Envelope) error
}

// Subscriber delivers every published envelope to a handler until the
// returned cancel func is called.
type Subscriber interface {
	Subscribe(h Handler) (cancel func(), err error)
}

// LocalBus is an in-process Publisher/Subscriber. Publish delivers
// synchronously so local broadcast order matches publish order.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]Handler)}
}

func (b *LocalBus) Publish(env events.Envelope) error {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.RUnlock()
	for _, h := range hs {
		h(env)
	}
	return nil
}

func (b *LocalBus) Subscribe(h Handler) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}, nil
}

const subjectPrefix = "game.events."

// NATSBus publishes envelopes on per-room subjects and subscribes with a
// wildcard so one gateway instance sees every room.
type NATSBus struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// ConnectNATS dials the NATS server with reconnect handling wired into the
// logger.
func ConnectNATS(url string, logger zerolog.Logger) (*NATSBus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSBus{nc: nc, log: logger}, nil
}

func (b *NATSBus) Publish(env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	subject := subjectPrefix + env.RoomID
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (b *NATSBus) Subscribe(h Handler) (func(), error) {
	sub, err := b.nc.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		var env events.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed envelope")
			return
		}
		h(env)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s>: %w", subjectPrefix, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.log.Warn().Err(err).Msg("unsubscribe failed")
		}
	}, nil
}

// Close drains and closes the underlying connection.
func (b *NATSBus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
