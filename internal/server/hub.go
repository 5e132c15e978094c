package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"crypto-liquidity-lab/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is broadcast-only; any origin may subscribe.
	CheckOrigin: func(*http.Request) bool { return true },
}

// PredictionEvent is one message on the /ws/predictions feed.
type PredictionEvent struct {
	ID             string    `json:"id"`
	Coin           string    `json:"coin,omitempty"`
	Symbol         string    `json:"symbol,omitempty"`
	LiquidityScore float64   `json:"liquidity_score"`
	Model          string    `json:"model"`
	ModelVersion   string    `json:"model_version"`
	Mode           string    `json:"mode"`
	Timestamp      time.Time `json:"timestamp"`
}

// Hub fans prediction events out to websocket subscribers. Slow subscribers
// are dropped rather than allowed to stall the feed.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan PredictionEvent
	done       chan struct{}
	logger     zerolog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan PredictionEvent
}

// NewHub creates a hub. Call Run in a goroutine to start it.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan PredictionEvent, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the subscriber set until Stop is called.
func (h *Hub) Run() {
	clients := make(map[*client]struct{})
	for {
		select {
		case c := <-h.register:
			clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
			}
		case event := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- event:
				default:
					delete(clients, c)
					close(c.send)
				}
			}
		case <-h.done:
			for c := range clients {
				close(c.send)
			}
			return
		}
	}
}

// Stop shuts the hub down and closes all subscriber channels.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast queues a prediction event for all subscribers. Drops the event
// when the hub is saturated; the feed is best-effort.
func (h *Hub) Broadcast(p *domain.Prediction) {
	event := PredictionEvent{
		ID:             p.ID,
		Coin:           p.Coin,
		Symbol:         p.Symbol,
		LiquidityScore: p.Score,
		Model:          p.ModelName,
		ModelVersion:   p.ModelVersion,
		Mode:           p.Mode,
		Timestamp:      p.Timestamp,
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("id", p.ID).Msg("prediction feed saturated, event dropped")
	}
}

// handleWS upgrades the connection and subscribes it to the feed.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan PredictionEvent, sendBufferSize)}
	s.hub.register <- c

	go c.writePump()
	go c.readPump(s.hub)
}

// writePump serializes events to the connection and keeps it alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages and detects disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
