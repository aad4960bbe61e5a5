package domain

// Command is an inbound client action. Each concrete type maps to one wire message type.
type Command interface {
	LobbyRef() string
}

type Authenticate struct {
	Token   string `json:"token"`
	LobbyID string `json:"lobbyId"`
}

type JoinLobby struct {
	LobbyID  string `json:"lobbyId"`
	Nickname string `json:"nickname"`
}

type StartSession struct {
	LobbyID string `json:"lobbyId"`
}

type KickParticipant struct {
	LobbyID       string `json:"lobbyId"`
	ParticipantID string `json:"participantId"`
}

type QuestionSeen struct {
	LobbyID string `json:"lobbyId"`
}

type SubmitAnswer struct {
	LobbyID    string `json:"lobbyId"`
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

func (c Authenticate) LobbyRef() string    { return c.LobbyID }
func (c JoinLobby) LobbyRef() string       { return c.LobbyID }
func (c StartSession) LobbyRef() string    { return c.LobbyID }
func (c KickParticipant) LobbyRef() string { return c.LobbyID }
func (c QuestionSeen) LobbyRef() string    { return c.LobbyID }
func (c SubmitAnswer) LobbyRef() string    { return c.LobbyID }
