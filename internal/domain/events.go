package domain

import "time"

// EventType names an outbound server event.
type EventType string

const (
	EventAuthenticated    EventType = "authenticated"
	EventAuthError        EventType = "authError"
	EventJoined           EventType = "joined"
	EventJoinError        EventType = "joinError"
	EventLobbyState       EventType = "lobbyState"
	EventStartEligibility EventType = "startEligibility"
	EventQuestionStart    EventType = "questionStart"
	EventTimerStarted     EventType = "timerStarted"
	EventAnswerSubmitted  EventType = "answerSubmitted"
	EventQuestionEnd      EventType = "questionEnd"
	EventScoreUpdate      EventType = "scoreUpdate"
	EventFinalResults     EventType = "finalResults"
	EventKicked           EventType = "kicked"
	EventError            EventType = "error"
)

// Event is the envelope delivered to connections.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// NewEvent wraps a payload in an envelope.
func NewEvent(t EventType, payload any) Event {
	return Event{Type: t, Payload: payload}
}

type AuthenticatedPayload struct {
	Admin   Admin  `json:"admin"`
	LobbyID string `json:"lobbyId"`
}

type JoinedPayload struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	LobbyID       string `json:"lobbyId"`
}

type LobbyStatePayload struct {
	Participants []LobbyMember `json:"participants"`
	Count        int           `json:"count"`
}

// LobbyMember is the lobby-screen view of a participant.
type LobbyMember struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Online   bool   `json:"online"`
}

type StartEligibilityPayload struct {
	Allowed bool `json:"allowed"`
	Count   int  `json:"count"`
	Needed  int  `json:"needed"`
}

// QuestionStartPayload never carries the correct option.
type QuestionStartPayload struct {
	QuestionID       string    `json:"questionId"`
	Text             string    `json:"text"`
	Options          []Option  `json:"options"`
	TimeLimitSeconds int       `json:"timeLimitSeconds"`
	StartedAt        time.Time `json:"startedAt"`
	QuestionIndex    int       `json:"questionIndex"`
	TotalQuestions   int       `json:"totalQuestions"`
}

type TimerStartedPayload struct {
	StartedAt        time.Time `json:"startedAt"`
	TimeLimitSeconds int       `json:"timeLimitSeconds"`
}

type AnswerSubmittedPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
	Correct    bool   `json:"correct"`
}

type QuestionEndPayload struct {
	QuestionID          string           `json:"questionId"`
	CorrectOptionID     string           `json:"correctOptionId"`
	CorrectParticipants []ParticipantRef `json:"correctParticipants"`
}

type RankingPayload struct {
	Ranking []RankEntry `json:"ranking"`
}

type MessagePayload struct {
	Message string `json:"message"`
}
