// Package ws carries realtime events over websocket connections.
package ws

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	EventSendMessage     = "sendMessage"
	EventAcknowledgeRead = "acknowledgeRead"
	EventError           = "error"
)

// Session is what a connection needs from the chat service.
type Session interface {
	OnUserConnected(ctx context.Context, userID string, handle domain.Handle) error
	OnUserDisconnected(handle domain.Handle)
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	AcknowledgeRead(ctx context.Context, cmd domain.AcknowledgeReadCommand) ([]domain.Transition, error)
}

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	defaultBufferSize   = 64
	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultMaxFrameSize = 64 * 1024
)

// HubConfig zero values fall back to defaults.
type HubConfig struct {
	BufferSize     int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	MaxFrameSize   int64
	AllowedOrigins []string
}

// Hub owns every open connection, keyed by handle. It implements contract.Notifier.
type Hub struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	config     HubConfig
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[domain.Handle]*client
}

func NewHub(log *slog.Logger, monitoring *observability.MonitoringManager, config HubConfig) *Hub {
	config.BufferSize = lo.CoalesceOrEmpty(config.BufferSize, defaultBufferSize)
	config.WriteTimeout = lo.CoalesceOrEmpty(config.WriteTimeout, defaultWriteTimeout)
	config.PongWait = lo.CoalesceOrEmpty(config.PongWait, defaultPongWait)
	config.MaxFrameSize = lo.CoalesceOrEmpty(config.MaxFrameSize, defaultMaxFrameSize)
	h := &Hub{
		log:        log,
		monitoring: monitoring,
		config:     config,
		clients:    make(map[domain.Handle]*client),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: checkOrigin(config.AllowedOrigins)}
	return h
}

// Notify queues one event for one connection without blocking.
// A closed handle or a full queue is a miss.
func (h *Hub) Notify(handle domain.Handle, name string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[handle]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: unknown handle %s", errors.ErrNotificationMiss, handle)
	}

	frame, err := encode(name, payload)
	if err != nil {
		return err
	}
	if !c.enqueue(frame) {
		return fmt.Errorf("%w: queue of %s is full", errors.ErrNotificationMiss, handle)
	}
	return nil
}

// Serve upgrades the request and runs the connection of userID until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string, session Session) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "user", userID, "error", err)
		return
	}

	c := newClient(domain.Handle(uuid.NewString()), userID, conn, h.config.BufferSize)
	h.register(c)
	defer h.unregister(c)

	go c.writePump(h.log, h.config.WriteTimeout, h.config.PongWait)

	ctx := r.Context()
	if err = session.OnUserConnected(ctx, userID, c.handle); err != nil {
		h.log.Error("Delivery on connect failed", "user", userID, "error", err)
	}
	defer session.OnUserDisconnected(c.handle)

	c.readPump(h.log, h.config.MaxFrameSize, h.config.PongWait, func(env Envelope) {
		h.dispatch(ctx, c, session, env)
	})
}

// Close drops every connection, used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := lo.Values(h.clients)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.handle] = c
	h.mu.Unlock()
	h.monitoring.ConnectionOpened()
	h.log.Debug("Connection opened", "user", c.userID, "handle", c.handle)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.handle)
	h.mu.Unlock()
	c.close()
	h.monitoring.ConnectionClosed()
	h.log.Debug("Connection closed", "user", c.userID, "handle", c.handle)
}

type sendMessagePayload struct {
	Recipient string             `json:"recipient"`
	Type      domain.ContentType `json:"messageType"`
	Content   string             `json:"content"`
	FileURL   string             `json:"fileUrl"`
}

type acknowledgeReadPayload struct {
	MessageIDs []uuid.UUID `json:"messageIds"`
}

// dispatch runs an inbound event on behalf of the connection owner.
// Results reach the client through the regular notifications, only failures are answered here.
func (h *Hub) dispatch(ctx context.Context, c *client, session Session, env Envelope) {
	var err error
	switch env.Event {
	case EventSendMessage:
		var p sendMessagePayload
		if err = json.Unmarshal(env.Data, &p); err != nil {
			err = fmt.Errorf("%w: %v", errors.ErrValidation, err)
			break
		}
		if p.Type == "" {
			p.Type = domain.ContentText
		}
		_, err = session.SendMessage(ctx, domain.SendMessageCommand{
			SenderID:    c.userID,
			RecipientID: p.Recipient,
			Content:     domain.Content{Type: p.Type, Text: p.Content, FileURL: p.FileURL},
		})
	case EventAcknowledgeRead:
		var p acknowledgeReadPayload
		if err = json.Unmarshal(env.Data, &p); err != nil {
			err = fmt.Errorf("%w: %v", errors.ErrValidation, err)
			break
		}
		_, err = session.AcknowledgeRead(ctx, domain.AcknowledgeReadCommand{ReaderID: c.userID, MessageIDs: p.MessageIDs})
	default:
		err = fmt.Errorf("%w: unknown event %q", errors.ErrValidation, env.Event)
	}
	if err == nil {
		return
	}

	h.log.Debug("Inbound event failed", "event", env.Event, "user", c.userID, "error", err)
	frame, encodeErr := encode(EventError, map[string]string{"event": env.Event, "message": err.Error()})
	if encodeErr == nil && !c.enqueue(frame) {
		h.monitoring.IncrMissed()
	}
}

func encode(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}

// checkOrigin accepts the configured origins, any origin with "*", and requests without
// Origin header, which do not come from a browser.
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := lo.SliceToMap(allowedOrigins, func(origin string) (string, struct{}) { return origin, struct{}{} })
	_, wildcard := allowed["*"]
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
