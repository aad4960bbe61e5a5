package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// ParticipantLoader reads the participants already persisted for a lobby.
type ParticipantLoader interface {
	ListParticipants(ctx context.Context, lobbyID string) ([]domain.Participant, error)
}

// loadTimeout bounds the participant load shared by concurrent callers.
const loadTimeout = 5 * time.Second

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions live until the process exits.
type SessionStore struct {
	loader ParticipantLoader
	sf     singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(loader ParticipantLoader) *SessionStore {
	return &SessionStore{
		loader:   loader,
		sessions: make(map[string]*app.Session),
	}
}

// GetOrCreate returns the lobby's session, seeding a new one from persisted participants.
// Concurrent callers for the same lobby share one load and one session.
func (s *SessionStore) GetOrCreate(ctx context.Context, lobbyID string) (*app.Session, error) {
	if session, ok := s.Get(lobbyID); ok {
		return session, nil
	}

	result, err, _ := s.sf.Do(lobbyID, func() (interface{}, error) {
		if session, ok := s.Get(lobbyID); ok {
			return session, nil
		}
		// shared by every waiting caller, so one caller going away must not fail the rest
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		participants, err := s.loader.ListParticipants(loadCtx, lobbyID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if session, ok := s.sessions[lobbyID]; ok {
			return session, nil
		}
		session := app.NewSession(lobbyID, participants)
		s.sessions[lobbyID] = session
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*app.Session), nil
}

func (s *SessionStore) Get(lobbyID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[lobbyID]
	return session, ok
}

// Len reports how many sessions are live.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
