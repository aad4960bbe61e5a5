package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/infra/memory"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in process memory; this process is the single owner
//     of every lobby it serves.
//   - Redis only carries a liveness marker per lobby so operators and other tools can
//     see which lobbies have a live session and where.
//   - Lookups of a live session re-arm the marker at most once per half TTL, so a game
//     that outlasts the TTL keeps it.
type SessionStore struct {
	local    *memory.SessionStore
	client   *redis.Client
	ttl      time.Duration
	instance string
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	refreshed map[string]time.Time
}

const refreshTimeout = time.Second

func NewSessionStore(client *redis.Client, loader memory.ParticipantLoader, ttl time.Duration, instance string, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		local:     memory.NewSessionStore(loader),
		client:    client,
		ttl:       ttl,
		instance:  instance,
		logger:    logger,
		now:       time.Now,
		refreshed: make(map[string]time.Time),
	}
}

func (s *SessionStore) GetOrCreate(ctx context.Context, lobbyID string) (*app.Session, error) {
	session, err := s.local.GetOrCreate(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	s.markLive(ctx, lobbyID)
	return session, nil
}

func (s *SessionStore) Get(lobbyID string) (*app.Session, bool) {
	session, ok := s.local.Get(lobbyID)
	if ok && s.due(lobbyID) {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		s.markLive(ctx, lobbyID)
		cancel()
	}
	return session, ok
}

// markLive writes the best-effort liveness marker.
func (s *SessionStore) markLive(ctx context.Context, lobbyID string) {
	if err := s.client.Set(ctx, s.key(lobbyID), s.instance, s.ttl).Err(); err != nil {
		s.logger.Warn("mark session live", zap.String("lobby_id", lobbyID), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.refreshed[lobbyID] = s.now()
	s.mu.Unlock()
}

func (s *SessionStore) due(lobbyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.refreshed[lobbyID]
	return !ok || s.now().Sub(last) >= s.ttl/2
}

// Owner returns the instance that marked the lobby live, if the marker has not expired.
func (s *SessionStore) Owner(ctx context.Context, lobbyID string) (string, bool, error) {
	owner, err := s.client.Get(ctx, s.key(lobbyID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner, true, nil
}

func (s *SessionStore) key(lobbyID string) string {
	return "quiz:session:" + lobbyID
}
