package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 * 1024
)

// Service is what the websocket handler drives.
type Service interface {
	Handle(ctx context.Context, connID string, cmd domain.Command) error
	Disconnect(ctx context.Context, connID string)
}

type WSHandler struct {
	service  Service
	hub      *Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service Service, hub *Hub, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		hub:     hub,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServeWS upgrades the request and runs the connection until either side closes it.
// Identity is established in-band by authenticate or joinLobby.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	c := h.hub.Register(connID)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, c)
	}()

	h.readLoop(r.Context(), conn, connID)

	h.service.Disconnect(context.Background(), connID)
	h.hub.Unregister(connID)
	<-writerDone
	_ = conn.Close()
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("conn_id", connID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		cmd, err := decodeCommand(inbound)
		if err != nil {
			h.hub.Deliver(connID, domain.NewEvent(domain.EventError, domain.MessagePayload{Message: err.Error()}))
			continue
		}
		if err := h.service.Handle(ctx, connID, cmd); err != nil {
			h.hub.Deliver(connID, errorEvent(err))
		}
	}
}

// writePump is the only writer of conn. It returns once the hub closes the queue.
func (h *WSHandler) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				// unblock the reader when the server ends the connection
				_ = conn.SetReadDeadline(time.Now().Add(writeWait))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", zap.String("conn_id", c.id), zap.Error(err))
				_ = conn.Close()
				drain(c.send)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				drain(c.send)
				return
			}
		}
	}
}

func drain(ch <-chan domain.Event) {
	for range ch {
	}
}

var (
	errUnsupported    = errors.New("unsupported message type")
	errInvalidPayload = errors.New("invalid payload")
)

func decodeCommand(in inboundMessage) (domain.Command, error) {
	switch in.Type {
	case "authenticate":
		return decodeInto[domain.Authenticate](in.Payload)
	case "joinLobby":
		return decodeInto[domain.JoinLobby](in.Payload)
	case "startSession":
		return decodeInto[domain.StartSession](in.Payload)
	case "kickParticipant":
		return decodeInto[domain.KickParticipant](in.Payload)
	case "questionSeen":
		return decodeInto[domain.QuestionSeen](in.Payload)
	case "submitAnswer":
		return decodeInto[domain.SubmitAnswer](in.Payload)
	}
	return nil, errUnsupported
}

func decodeInto[T domain.Command](raw json.RawMessage) (domain.Command, error) {
	var cmd T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return nil, errInvalidPayload
		}
	}
	return cmd, nil
}

// errorEvent maps a failed command to the event its kind is reported with.
func errorEvent(err error) domain.Event {
	payload := domain.MessagePayload{Message: err.Error()}
	switch domain.KindOf(err) {
	case domain.KindAuth:
		return domain.NewEvent(domain.EventAuthError, payload)
	case domain.KindJoin:
		return domain.NewEvent(domain.EventJoinError, payload)
	default:
		return domain.NewEvent(domain.EventError, payload)
	}
}
