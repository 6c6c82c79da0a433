// Package ws bridges the signal bus to WebSocket clients so frontends can
// follow quotes, wager flow, and settlements live.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/breakpt/riftbet/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay under pongWait
	maxMessageSize = 4096
	sendBufferSize = 256
)

// defaultChannels are the bus channels the hub mirrors to clients.
var defaultChannels = []string{
	domain.ChannelQuotes,
	domain.ChannelWagers,
	domain.ChannelSettlements,
	domain.ChannelSignals,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy lives in the CORS middleware in front of the hub.
		return true
	},
}

// session is one connected WebSocket client and its channel subscriptions.
type session struct {
	hub      *Hub
	conn     *websocket.Conn
	outbox   chan []byte
	mu       sync.RWMutex
	channels map[string]bool
}

// subscribeMsg is the JSON frame a client sends to manage its channel set,
// e.g. {"action":"subscribe","channels":["quotes"]}.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// envelope wraps a bus payload with its channel name for clients.
type envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// busEvent is an envelope-to-be, routed only to sessions subscribed to the
// source channel.
type busEvent struct {
	channel string
	payload []byte
}

// Hub owns the set of live sessions and fans bus events out to them.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[*session]struct{}
	events    chan busEvent
	joined    chan *session
	left      chan *session
	bus       domain.SignalBus
	logger    *slog.Logger
	startedAt time.Time
}

func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		sessions:  make(map[*session]struct{}),
		events:    make(chan busEvent, 256),
		joined:    make(chan *session),
		left:      make(chan *session),
		bus:       bus,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

// Run drives the hub until ctx is cancelled: one bus subscription per
// channel, plus session join/leave and event fan-out.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range defaultChannels {
		go h.pumpChannel(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case s := <-h.joined:
			h.mu.Lock()
			h.sessions[s] = struct{}{}
			n := len(h.sessions)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("sessions", n))
		case s := <-h.left:
			h.mu.Lock()
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				close(s.outbox)
			}
			n := len(h.sessions)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("sessions", n))
		case ev := <-h.events:
			h.fanout(ev)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		close(s.outbox)
		delete(h.sessions, s)
	}
}

func (h *Hub) fanout(ev busEvent) {
	frame, err := json.Marshal(envelope{Channel: ev.channel, Payload: ev.payload})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		if !s.subscribed(ev.channel) {
			continue
		}
		select {
		case s.outbox <- frame:
		default:
			// Full outbox means a stalled reader; the frame is dropped.
			h.logger.Warn("ws: dropping frame for slow client", slog.String("channel", ev.channel))
		}
	}
}

// pumpChannel forwards one bus channel into the hub's event stream.
func (h *Hub) pumpChannel(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: bus subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: mirroring channel", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", channel))
				return
			}
			h.events <- busEvent{channel: channel, payload: payload}
		}
	}
}

// HandleWS upgrades the request and attaches the new session to the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	s := &session{
		hub:      h,
		conn:     conn,
		outbox:   make(chan []byte, sendBufferSize),
		channels: make(map[string]bool, len(defaultChannels)),
	}
	// New sessions start subscribed to everything and narrow from there.
	for _, ch := range defaultChannels {
		s.channels[ch] = true
	}

	h.joined <- s
	s.greet()

	go s.writeLoop()
	go s.readLoop()
}

// readLoop consumes client frames, which are only subscription updates.
func (s *session) readLoop() {
	defer func() {
		s.hub.left <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}

		var msg subscribeMsg
		if err := json.Unmarshal(raw, &msg); err == nil && msg.Action != "" {
			s.apply(msg)
		}
	}
}

func (s *session) apply(msg subscribeMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range msg.Channels {
		switch msg.Action {
		case "subscribe":
			s.channels[ch] = true
		case "unsubscribe":
			delete(s.channels, ch)
		}
	}
}

func (s *session) subscribed(channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[channel]
}

// greet pushes a status envelope so clients can mark the connection healthy
// before any market events flow.
func (s *session) greet() {
	uptime := max(int64(time.Since(s.hub.startedAt).Seconds()), 0)
	payload, err := json.Marshal(map[string]any{
		"connected":      true,
		"uptime_seconds": uptime,
		"channels":       defaultChannels,
	})
	if err != nil {
		return
	}
	frame, err := json.Marshal(envelope{Channel: "status", Payload: payload})
	if err != nil {
		return
	}

	select {
	case s.outbox <- frame:
	default:
	}
}

// writeLoop pushes outbox frames to the wire and keeps the connection alive
// with periodic pings.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.outbox:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
