package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	channelPrefix  = "lobby:"
	publishTimeout = 2 * time.Second
)

// feedMessage is what observers receive on lobby:{lobbyID}:events.
type feedMessage struct {
	LobbyID string          `json:"lobbyId"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	At      int64           `json:"at"`
}

// EventFeed forwards to the wrapped broadcaster and publishes every lobby broadcast to
// Redis so dashboards and recorders can follow a game without a websocket.
// Direct sends to a single connection are not published.
type EventFeed struct {
	next   app.Broadcaster
	client *redis.Client
	logger *zap.Logger
}

func NewEventFeed(client *redis.Client, next app.Broadcaster, logger *zap.Logger) *EventFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventFeed{next: next, client: client, logger: logger}
}

// Channel returns the pub/sub channel of a lobby.
func Channel(lobbyID string) string {
	return channelPrefix + lobbyID + ":events"
}

func (f *EventFeed) Broadcast(lobbyID string, ev domain.Event) {
	f.next.Broadcast(lobbyID, ev)

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		f.logger.Warn("encode feed event", zap.String("lobby_id", lobbyID), zap.Error(err))
		return
	}
	body, err := json.Marshal(feedMessage{
		LobbyID: lobbyID,
		Type:    string(ev.Type),
		Payload: payload,
		At:      time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := f.client.Publish(ctx, Channel(lobbyID), body).Err(); err != nil {
		f.logger.Warn("publish feed event", zap.String("lobby_id", lobbyID), zap.Error(err))
	}
}

func (f *EventFeed) Send(connID string, ev domain.Event) {
	f.next.Send(connID, ev)
}

func (f *EventFeed) Disconnect(connID string) {
	f.next.Disconnect(connID)
}
