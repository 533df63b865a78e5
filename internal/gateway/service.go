package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game/bus"
)

// Service composes the gateway pieces: connection manager, WebSocket
// handler, and bus consumer.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	log               zerolog.Logger
}

// NewService wires a gateway onto the given game backend and event bus.
func NewService(backend GameBackend, sub bus.Subscriber, config ConnectionConfig, logger zerolog.Logger) *Service {
	cm := NewConnectionManager(backend, config, logger)
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, logger),
		eventConsumer:     NewEventConsumer(cm, sub, logger),
		log:               logger,
	}
}

// Start runs the gateway until the context is canceled.
func (s *Service) Start(ctx context.Context) error {
	s.log.Info().Msg("starting gateway service")
	go s.connectionManager.Start(ctx)
	if err := s.eventConsumer.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.eventConsumer.Stop()
	s.log.Info().Msg("gateway service stopped")
	return nil
}

// RegisterRoutes wires the gateway's HTTP endpoints into the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
}

// Stats reports gateway health counters.
func (s *Service) Stats() map[string]any {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "gateway"
	return stats
}
