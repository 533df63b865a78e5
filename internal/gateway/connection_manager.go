// Package gateway bridges WebSocket clients to the game engine: it fans
// published game events out to room connections and feeds client commands
// into the engine.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game"
	"github.com/mathrumble/mathrumble/internal/game/events"
)

// GameBackend is the slice of the game engine the gateway drives.
type GameBackend interface {
	HasGame(roomID string) bool
	Snapshot(roomID string) (events.StateUpdatePayload, bool)
	PlayerConnected(roomID string, p game.PlayerInfo)
	PlayerDisconnected(roomID, playerID string)
	StartGame(roomID string)
	SubmitAnswer(roomID, playerID, questionID string, answer float64) events.AnswerResultPayload
}

// ConnectionManager tracks WebSocket connections per room and serializes
// broadcasts through a single channel drained by Start.
type ConnectionManager struct {
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	backend     GameBackend
	broadcastCh chan BroadcastMessage
	log         zerolog.Logger
}

// Connection is one player's WebSocket session.
type Connection struct {
	ID       string
	RoomID   string
	PlayerID string
	UserID   string
	Username string
	Team     string

	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// closed is guarded by Manager.mu; once set, Send is closed and no
	// goroutine may send on it again.
	closed bool

	ConnectedAt time.Time
}

// ConnectionConfig holds WebSocket tuning.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage routes one frame to a room, optionally narrowed to a
// single player.
type BroadcastMessage struct {
	RoomID   string
	Frame    events.Frame
	PlayerID string
}

// DefaultConnectionConfig returns the stock WebSocket tuning.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a manager bound to the given game backend.
func NewConnectionManager(backend GameBackend, config ConnectionConfig, logger zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		backend:     backend,
		broadcastCh: make(chan BroadcastMessage, 1000),
		log:         logger,
	}
}

// Start drains the broadcast channel until the context is canceled. Run it
// in its own goroutine.
func (cm *ConnectionManager) Start(ctx context.Context) {
	cm.log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			cm.log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection turns an HTTP request into a managed WebSocket session
// and announces the player to the game engine. The new connection receives
// a full state snapshot so late joiners render mid-round state immediately.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, roomID string, p game.PlayerInfo) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		PlayerID:    p.PlayerID,
		UserID:      p.UserID,
		Username:    p.Username,
		Team:        p.Team,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	cm.backend.PlayerConnected(roomID, p)
	if state, ok := cm.backend.Snapshot(roomID); ok {
		connection.sendFrame(events.TypeStateUpdate, state)
	}

	cm.log.Info().
		Str("connection_id", connection.ID).
		Str("room_id", roomID).
		Str("player_id", p.PlayerID).
		Str("team", p.Team).
		Msg("websocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.roomConnections[conn.RoomID] == nil {
		cm.roomConnections[conn.RoomID] = make(map[*Connection]bool)
	}
	cm.roomConnections[conn.RoomID][conn] = true
}

// unregisterConnection removes a connection and, if it was still
// registered, tells the engine the player left.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	removed := false
	if connections, exists := cm.roomConnections[conn.RoomID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			conn.closed = true
			close(conn.Send)
			removed = true
			if len(connections) == 0 {
				delete(cm.roomConnections, conn.RoomID)
			}
		}
	}
	cm.mu.Unlock()

	if removed {
		cm.backend.PlayerDisconnected(conn.RoomID, conn.PlayerID)
		cm.log.Info().
			Str("connection_id", conn.ID).
			Str("room_id", conn.RoomID).
			Str("player_id", conn.PlayerID).
			Msg("websocket connection closed")
	}
}

// BroadcastToRoom queues a frame for every connection in the room.
func (cm *ConnectionManager) BroadcastToRoom(roomID string, frame events.Frame) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: roomID, Frame: frame}:
	default:
		cm.log.Warn().Str("room_id", roomID).Msg("broadcast channel full, dropping message")
	}
}

// SendToPlayer queues a frame for one player's connections only.
func (cm *ConnectionManager) SendToPlayer(roomID, playerID string, frame events.Frame) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: roomID, Frame: frame, PlayerID: playerID}:
	default:
		cm.log.Warn().
			Str("room_id", roomID).
			Str("player_id", playerID).
			Msg("broadcast channel full, dropping player message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roomConnections[message.RoomID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	var targets []*Connection
	for conn := range connections {
		if message.PlayerID != "" && conn.PlayerID != message.PlayerID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.Frame)
	if err != nil {
		cm.log.Error().Err(err).Msg("failed to marshal frame for broadcast")
		return
	}

	for _, conn := range targets {
		sent, open := cm.enqueue(conn, data)
		if !open {
			// Torn down between the snapshot above and here.
			continue
		}
		if !sent {
			// Slow client, drop the connection rather than block the room.
			cm.log.Warn().
				Str("connection_id", conn.ID).
				Str("player_id", conn.PlayerID).
				Msg("send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// enqueue delivers data to the connection's send buffer. It reports whether
// the frame was queued and whether the connection is still registered; only
// unregisterConnection closes Send, and it does so under the same lock, so a
// send can never race the close.
func (cm *ConnectionManager) enqueue(conn *Connection, data []byte) (sent, open bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if conn.closed {
		return false, false
	}
	select {
	case conn.Send <- data:
		return true, true
	default:
		return false, true
	}
}

// GetConnectionStats reports connection counts per room.
func (cm *ConnectionManager) GetConnectionStats() map[string]any {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	roomCounts := make(map[string]int)
	for roomID, connections := range cm.roomConnections {
		roomCounts[roomID] = len(connections)
		total += len(connections)
	}
	return map[string]any{
		"total_connections": total,
		"active_rooms":      len(cm.roomConnections),
		"room_connections":  roomCounts,
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Manager.log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close")
			}
			return
		}
		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage dispatches one inbound command frame. The answer
// verdict goes back to the submitter alone; resulting state changes reach
// the room through the event bus.
func (c *Connection) handleClientMessage(message []byte) {
	var f events.Frame
	if err := json.Unmarshal(message, &f); err != nil {
		c.Manager.log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("dropping malformed client frame")
		return
	}

	switch f.Type {
	case events.TypeStartGame:
		c.Manager.backend.StartGame(c.RoomID)

	case events.TypeAnswer:
		var p events.AnswerPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.Manager.log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Msg("dropping malformed answer payload")
			return
		}
		result := c.Manager.backend.SubmitAnswer(c.RoomID, c.PlayerID, p.QuestionID, p.Answer)
		c.sendFrame(events.TypeAnswerResult, result)

	default:
		c.Manager.log.Debug().
			Str("connection_id", c.ID).
			Str("type", string(f.Type)).
			Msg("ignoring unknown client frame")
	}
}

func (c *Connection) sendFrame(t events.EventType, payload any) {
	frame, err := events.NewFrame(t, payload)
	if err != nil {
		c.Manager.log.Error().Err(err).Str("type", string(t)).Msg("failed to build frame")
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		c.Manager.log.Error().Err(err).Str("type", string(t)).Msg("failed to marshal frame")
		return
	}
	if sent, open := c.Manager.enqueue(c, data); open && !sent {
		c.Manager.log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping frame")
	}
}
