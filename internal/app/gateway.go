package app

import (
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// Transport delivers an event to one live connection without blocking.
type Transport interface {
	Deliver(connID string, ev domain.Event) bool
	Close(connID string)
}

// Gateway fans events out to every connection the registry binds to a lobby.
type Gateway struct {
	registry  *Registry
	transport Transport
	logger    *zap.Logger
}

func NewGateway(registry *Registry, transport Transport, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{registry: registry, transport: transport, logger: logger}
}

// Broadcast sends the same event value to every connection of the lobby.
func (g *Gateway) Broadcast(lobbyID string, ev domain.Event) {
	for _, connID := range g.registry.Connections(lobbyID) {
		if !g.transport.Deliver(connID, ev) {
			g.logger.Debug("event dropped",
				zap.String("lobby_id", lobbyID),
				zap.String("conn_id", connID),
				zap.String("event", string(ev.Type)))
		}
	}
}

func (g *Gateway) Send(connID string, ev domain.Event) {
	if !g.transport.Deliver(connID, ev) {
		g.logger.Debug("event dropped", zap.String("conn_id", connID), zap.String("event", string(ev.Type)))
	}
}

func (g *Gateway) Disconnect(connID string) {
	g.transport.Close(connID)
}
