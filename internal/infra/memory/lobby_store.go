package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// LobbyStore is a map-backed persistence layer for demos and tests. It implements
// app.LobbyRepository, QuestionLoader and the admin lookup used by auth.
type LobbyStore struct {
	mu           sync.RWMutex
	admins       map[string]domain.Admin
	lobbies      map[string]domain.Lobby
	quizzes      map[string][]domain.Question
	participants map[string]domain.Participant
	answers      map[answerKey]domain.Answer
}

type answerKey struct {
	lobbyID       string
	questionID    string
	participantID string
}

func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		admins:       make(map[string]domain.Admin),
		lobbies:      make(map[string]domain.Lobby),
		quizzes:      make(map[string][]domain.Question),
		participants: make(map[string]domain.Participant),
		answers:      make(map[answerKey]domain.Answer),
	}
}

func (s *LobbyStore) PutAdmin(a domain.Admin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[a.ID] = a
}

func (s *LobbyStore) PutQuiz(quizID string, questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quizID] = append([]domain.Question(nil), questions...)
}

// PutLobby publishes a lobby; an empty status defaults to waiting.
func (s *LobbyStore) PutLobby(l domain.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.Status == "" {
		l.Status = domain.StatusWaiting
	}
	s.lobbies[l.ID] = l
}

// DeleteLobby unpublishes a lobby. Its participants and answers are kept.
func (s *LobbyStore) DeleteLobby(lobbyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, lobbyID)
}

func (s *LobbyStore) GetAdmin(_ context.Context, adminID string) (domain.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[adminID]
	if !ok {
		return domain.Admin{}, domain.ErrAdminNotFound
	}
	return a, nil
}

func (s *LobbyStore) GetLobby(_ context.Context, lobbyID string) (domain.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	return l, nil
}

func (s *LobbyStore) LoadQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	questions, ok := s.quizzes[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return append([]domain.Question(nil), questions...), nil
}

func (s *LobbyStore) ListParticipants(_ context.Context, lobbyID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Participant
	for _, p := range s.participants {
		if p.LobbyID == lobbyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *LobbyStore) FindParticipant(_ context.Context, lobbyID, nickname string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.LobbyID == lobbyID && p.Nickname == nickname {
			return p, nil
		}
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

func (s *LobbyStore) CreateParticipant(_ context.Context, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	s.participants[p.ID] = p
	return p, nil
}

func (s *LobbyStore) AttachConnection(_ context.Context, participantID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.ConnectionID = connID
	s.participants[participantID] = p
	return nil
}

func (s *LobbyStore) DeleteParticipant(_ context.Context, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[participantID]; !ok {
		return domain.ErrParticipantNotFound
	}
	delete(s.participants, participantID)
	return nil
}

func (s *LobbyStore) SaveAnswer(_ context.Context, a domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answerKey{a.LobbyID, a.QuestionID, a.ParticipantID}] = a
	return nil
}

func (s *LobbyStore) IncrementScore(_ context.Context, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.Score++
	s.participants[participantID] = p
	return nil
}

func (s *LobbyStore) UpdateLobbyStatus(_ context.Context, lobbyID string, status domain.LobbyStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return domain.ErrLobbyNotFound
	}
	l.Status = status
	switch status {
	case domain.StatusRunning:
		l.StartedAt = &at
	case domain.StatusFinished:
		l.FinishedAt = &at
	}
	s.lobbies[lobbyID] = l
	return nil
}

// Answers returns the stored answers of a lobby, for inspection in tests.
func (s *LobbyStore) Answers(lobbyID string) []domain.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Answer
	for k, a := range s.answers {
		if k.lobbyID == lobbyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out
}
