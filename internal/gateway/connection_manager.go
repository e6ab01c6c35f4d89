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
	"github.com/rs/zerolog/log"

	"github.com/wuzzlegames/wuzzle/internal/events"
)

// ConnectionManager fans room events out to the WebSocket connections
// subscribed to each room.
type ConnectionManager struct {
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcast
}

// Connection is one client's WebSocket subscription to one room.
type Connection struct {
	ID       string
	PlayerID string
	RoomCode string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time

	// closed is guarded by the manager mutex; Send is closed in unregister
	// under that lock, and every send re-checks the flag under it.
	closed bool
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

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

type broadcast struct {
	roomCode string
	event    events.RoomEvent
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcast, 1000),
	}
}

// Start processes broadcasts until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case b := <-cm.broadcastCh:
			cm.handleBroadcast(b)
		}
	}
}

// Upgrade turns an HTTP request into a managed WebSocket connection
// subscribed to roomCode, and returns it so the caller can send an initial
// snapshot.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, playerID, roomCode string) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		RoomCode:    roomCode,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("player_id", playerID).
		Str("room_code", roomCode).
		Msg("websocket connection established")
	return c, nil
}

func (cm *ConnectionManager) register(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.roomConnections[c.RoomCode] == nil {
		cm.roomConnections[c.RoomCode] = make(map[*Connection]bool)
	}
	cm.roomConnections[c.RoomCode][c] = true
}

func (cm *ConnectionManager) unregister(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, ok := cm.roomConnections[c.RoomCode]
	if !ok {
		return
	}
	if _, ok := connections[c]; !ok {
		return
	}
	delete(connections, c)
	c.closed = true
	close(c.Send)
	if len(connections) == 0 {
		delete(cm.roomConnections, c.RoomCode)
	}
	log.Info().
		Str("connection_id", c.ID).
		Str("room_code", c.RoomCode).
		Msg("websocket connection closed")
}

// Broadcast queues an event for every connection in the event's room.
func (cm *ConnectionManager) Broadcast(event events.RoomEvent) {
	select {
	case cm.broadcastCh <- broadcast{roomCode: event.RoomCode, event: event}:
	default:
		log.Warn().Str("room_code", event.RoomCode).Msg("broadcast channel full, dropping event")
	}
}

func (cm *ConnectionManager) handleBroadcast(b broadcast) {
	cm.mu.RLock()
	connections := cm.roomConnections[b.roomCode]
	targets := make([]*Connection, 0, len(connections))
	for c := range connections {
		targets = append(targets, c)
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(b.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, c := range targets {
		if cm.trySend(c, data) {
			continue
		}
		// A consumer this far behind is dead weight; drop it.
		log.Warn().
			Str("connection_id", c.ID).
			Str("room_code", c.RoomCode).
			Msg("send buffer full, closing connection")
		cm.unregister(c)
		_ = c.Conn.Close()
	}
}

// trySend queues data for one connection. The closed re-check and the send
// happen under the manager lock, so unregister cannot close the channel in
// between. An already-closed connection reports delivered; its teardown is
// done and there is nothing for the caller to repeat.
func (cm *ConnectionManager) trySend(c *Connection, data []byte) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Stats reports active connection counts per room.
func (cm *ConnectionManager) Stats() (total int, perRoom map[string]int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	perRoom = make(map[string]int, len(cm.roomConnections))
	for code, connections := range cm.roomConnections {
		perRoom[code] = len(connections)
		total += len(connections)
	}
	return total, perRoom
}

// SendEvent ships one event to this connection only, used for the initial
// room snapshot after upgrade.
func (c *Connection) SendEvent(event events.RoomEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	if !c.Manager.trySend(c, data) {
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full on direct send")
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	})

	for {
		// The push channel is one-way; clients write through the store, not
		// the socket. Reads only service ping/pong and detect closure.
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
