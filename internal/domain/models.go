package domain

import "time"

// LobbyStatus tracks the lifecycle of a published quiz lobby.
type LobbyStatus string

const (
	StatusWaiting  LobbyStatus = "waiting"
	StatusRunning  LobbyStatus = "running"
	StatusFinished LobbyStatus = "finished"
)

// Admin is the owner of quizzes and lobbies.
type Admin struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Lobby is the persisted record created when a quiz is published.
type Lobby struct {
	ID         string      `json:"lobbyId"`
	QuizID     string      `json:"quizId"`
	AdminID    string      `json:"adminId"`
	Status     LobbyStatus `json:"status"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// Participant represents a lobby member and their accumulated score.
// ConnectionID is empty while the participant is offline.
type Participant struct {
	ID           string    `json:"id"`
	LobbyID      string    `json:"-"`
	Nickname     string    `json:"nickname"`
	ConnectionID string    `json:"-"`
	Score        int       `json:"score"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Online reports whether the participant has a live connection.
func (p Participant) Online() bool {
	return p.ConnectionID != ""
}

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models a multiple-choice question with exactly one correct option.
type Question struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Options          []Option `json:"options"`
	CorrectOptionID  string   `json:"correctOptionId"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
}

// TimeLimit returns the question's answer window.
func (q Question) TimeLimit() time.Duration {
	return time.Duration(q.TimeLimitSeconds) * time.Second
}

// Answer is the graded submission of one participant for one question.
type Answer struct {
	LobbyID       string    `json:"lobbyId"`
	QuestionID    string    `json:"questionId"`
	ParticipantID string    `json:"participantId"`
	OptionID      string    `json:"optionId"`
	Correct       bool      `json:"correct"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// RankEntry is one line of a ranking; Position is 1-based.
type RankEntry struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Position int    `json:"position"`
}

// ParticipantRef identifies a participant in result payloads.
type ParticipantRef struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// LobbySummary is the public read model of a lobby.
type LobbySummary struct {
	LobbyID          string      `json:"lobbyId"`
	Status           LobbyStatus `json:"status"`
	ParticipantCount int         `json:"participantCount"`
}
