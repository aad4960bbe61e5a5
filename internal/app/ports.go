package app

import (
	"context"
	"time"

	"live-quiz-service/internal/domain"
)

// SessionRepository holds the live sessions of this process (in-memory, Redis-marked, etc).
// GetOrCreate must never hand out two different sessions for the same lobby.
type SessionRepository interface {
	GetOrCreate(ctx context.Context, lobbyID string) (*Session, error)
	Get(lobbyID string) (*Session, bool)
}

// LobbyRepository is the durable store behind lobbies, participants and answers.
type LobbyRepository interface {
	GetLobby(ctx context.Context, lobbyID string) (domain.Lobby, error)
	ListParticipants(ctx context.Context, lobbyID string) ([]domain.Participant, error)
	FindParticipant(ctx context.Context, lobbyID, nickname string) (domain.Participant, error)
	CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error)
	AttachConnection(ctx context.Context, participantID, connID string) error
	DeleteParticipant(ctx context.Context, participantID string) error
	// SaveAnswer upserts on (lobby, question, participant).
	SaveAnswer(ctx context.Context, answer domain.Answer) error
	IncrementScore(ctx context.Context, participantID string) error
	UpdateLobbyStatus(ctx context.Context, lobbyID string, status domain.LobbyStatus, at time.Time) error
}

// QuestionRepository loads the ordered question set of a quiz (from cache/backing store).
type QuestionRepository interface {
	GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// Authenticator resolves an admin credential to an identity.
type Authenticator interface {
	VerifyAdmin(ctx context.Context, token string) (domain.Admin, error)
}

// Broadcaster delivers events to lobbies and single connections.
type Broadcaster interface {
	Broadcast(lobbyID string, ev domain.Event)
	Send(connID string, ev domain.Event)
	Disconnect(connID string)
}
