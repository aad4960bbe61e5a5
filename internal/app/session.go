package app

import (
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// Phase is the scheduler state of a session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingReadiness
	PhaseTiming
	PhaseAdvanceDelay
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingReadiness:
		return "awaiting_readiness"
	case PhaseTiming:
		return "timing"
	case PhaseAdvanceDelay:
		return "advance_delay"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// Session is the authoritative in-memory state of one lobby.
// Every field is guarded by mu; only GameService mutates it.
type Session struct {
	mu sync.Mutex

	lobbyID string
	status  domain.LobbyStatus
	phase   Phase

	questions []domain.Question
	current   int

	participants map[string]*domain.Participant
	adminConnID  string

	// ready holds the connections that acknowledged the current question.
	ready map[string]struct{}
	// answers is keyed by question id, then participant id.
	answers map[string]map[string]domain.Answer

	// epoch changes on every phase transition; timers only act on the epoch they were armed in.
	epoch uint64
	timer Timer

	finishedAt   time.Time
	finalRanking []domain.RankEntry
}

// NewSession builds a waiting session seeded with already persisted participants.
// Seeded participants start offline.
func NewSession(lobbyID string, participants []domain.Participant) *Session {
	s := &Session{
		lobbyID:      lobbyID,
		status:       domain.StatusWaiting,
		phase:        PhaseIdle,
		participants: make(map[string]*domain.Participant, len(participants)),
		ready:        make(map[string]struct{}),
		answers:      make(map[string]map[string]domain.Answer),
	}
	for _, p := range participants {
		p := p
		p.LobbyID = lobbyID
		p.ConnectionID = ""
		s.participants[p.ID] = &p
	}
	return s
}

// LobbyID returns the lobby the session belongs to.
func (s *Session) LobbyID() string { return s.lobbyID }

// SessionSnapshot is a read-only copy of a session's state.
type SessionSnapshot struct {
	LobbyID        string
	Status         domain.LobbyStatus
	Phase          Phase
	QuestionIndex  int
	TotalQuestions int
	Participants   []domain.Participant
	AdminConnected bool
}

// Snapshot copies the current state under the session lock.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSnapshot{
		LobbyID:        s.lobbyID,
		Status:         s.status,
		Phase:          s.phase,
		QuestionIndex:  s.current,
		TotalQuestions: len(s.questions),
		Participants:   s.participantListLocked(),
		AdminConnected: s.adminConnID != "",
	}
}

func (s *Session) participantListLocked() []domain.Participant {
	list := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
		return list[i].Nickname < list[j].Nickname
	})
	return list
}

func (s *Session) participantByNicknameLocked(nickname string) *domain.Participant {
	for _, p := range s.participants {
		if p.Nickname == nickname {
			return p
		}
	}
	return nil
}

func (s *Session) currentQuestionLocked() (domain.Question, bool) {
	if s.current < 0 || s.current >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[s.current], true
}

func (s *Session) answerLocked(questionID, participantID string) (domain.Answer, bool) {
	a, ok := s.answers[questionID][participantID]
	return a, ok
}

func (s *Session) recordAnswerLocked(a domain.Answer) {
	byParticipant, ok := s.answers[a.QuestionID]
	if !ok {
		byParticipant = make(map[string]domain.Answer)
		s.answers[a.QuestionID] = byParticipant
	}
	byParticipant[a.ParticipantID] = a
}

// allAnsweredLocked reports whether every known participant answered the question.
func (s *Session) allAnsweredLocked(questionID string) bool {
	if len(s.participants) == 0 {
		return false
	}
	for id := range s.participants {
		if _, ok := s.answers[questionID][id]; !ok {
			return false
		}
	}
	return true
}

// transitionLocked moves to the next phase, invalidating any armed timer.
func (s *Session) transitionLocked(next Phase) uint64 {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.epoch++
	s.phase = next
	return s.epoch
}

func (s *Session) lobbyStateLocked() domain.LobbyStatePayload {
	list := s.participantListLocked()
	members := make([]domain.LobbyMember, 0, len(list))
	for _, p := range list {
		members = append(members, domain.LobbyMember{
			ID:       p.ID,
			Nickname: p.Nickname,
			Score:    p.Score,
			Online:   p.Online(),
		})
	}
	return domain.LobbyStatePayload{Participants: members, Count: len(members)}
}
