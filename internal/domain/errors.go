package domain

import "errors"

var (
	// ErrLobbyNotFound is returned when no lobby exists for the given code.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrSessionNotFound is returned when a lobby has no live session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a participant is unknown to the lobby.
	ErrParticipantNotFound = errors.New("participant not found in lobby")
	// ErrAdminNotFound is returned when a credential names an admin that no longer exists.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")

	ErrInvalidCredential = errors.New("invalid token")
	ErrLobbyNotOwned     = errors.New("lobby not found")
	ErrAccessDenied      = errors.New("access denied")

	ErrNicknameRequired = errors.New("lobby id and nickname are required")
	ErrLobbyNotWaiting  = errors.New("quiz already started or finished")

	ErrNotEnoughParticipants = errors.New("not enough participants to start")
	ErrNoQuestions           = errors.New("quiz has no questions")

	ErrSessionNotRunning   = errors.New("quiz is not running")
	ErrQuestionMismatch    = errors.New("invalid question")
	ErrNotAcceptingAnswers = errors.New("question is not accepting answers")
	ErrAlreadyAnswered     = errors.New("question already answered")

	// ErrNotFinished is returned when results are requested before the quiz ends.
	ErrNotFinished = errors.New("quiz not finished")
	// ErrInternal hides persistence failures from clients; the cause is logged.
	ErrInternal = errors.New("internal error")
)

// ErrorKind classifies failures by who receives them and which event reports them.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindJoin       ErrorKind = "join"
	KindStart      ErrorKind = "start"
	KindSubmission ErrorKind = "submission"
	KindGeneric    ErrorKind = "generic"
)

// Error tags an underlying error with its kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func AuthError(err error) error       { return &Error{Kind: KindAuth, Err: err} }
func JoinError(err error) error       { return &Error{Kind: KindJoin, Err: err} }
func StartError(err error) error      { return &Error{Kind: KindStart, Err: err} }
func SubmissionError(err error) error { return &Error{Kind: KindSubmission, Err: err} }

// KindOf returns the kind of err, or KindGeneric for untagged errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindGeneric
}
