package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// Store is the Postgres-backed persistence for admins, lobbies, questions, participants and answers.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetAdmin(ctx context.Context, adminID string) (domain.Admin, error) {
	var a domain.Admin
	err := s.pool.QueryRow(ctx,
		`SELECT admin_id, name, email FROM admins WHERE admin_id=$1`, adminID,
	).Scan(&a.ID, &a.Name, &a.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Admin{}, domain.ErrAdminNotFound
	}
	if err != nil {
		return domain.Admin{}, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

func (s *Store) GetLobby(ctx context.Context, lobbyID string) (domain.Lobby, error) {
	var (
		l      domain.Lobby
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT lobby_id, quiz_id, admin_id, status, started_at, finished_at FROM lobbies WHERE lobby_id=$1`,
		lobbyID,
	).Scan(&l.ID, &l.QuizID, &l.AdminID, &status, &l.StartedAt, &l.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	if err != nil {
		return domain.Lobby{}, fmt.Errorf("get lobby: %w", err)
	}
	l.Status = domain.LobbyStatus(status)
	return l, nil
}

// LoadQuestions returns the quiz's questions in order.
func (s *Store) LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT question_id, text, options, correct_option_id, time_limit_seconds
		   FROM questions WHERE quiz_id=$1 ORDER BY order_index`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &raw, &q.CorrectOptionID, &q.TimeLimitSeconds); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM quizzes WHERE quiz_id=$1)`, quizID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check quiz: %w", err)
		}
		if !exists {
			return nil, domain.ErrQuizNotFound
		}
	}
	return questions, nil
}

func (s *Store) ListParticipants(ctx context.Context, lobbyID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT participant_id, lobby_id, nickname, connection_id, score, joined_at
		   FROM participants WHERE lobby_id=$1 ORDER BY joined_at, nickname`,
		lobbyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.LobbyID, &p.Nickname, &p.ConnectionID, &p.Score, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) FindParticipant(ctx context.Context, lobbyID, nickname string) (domain.Participant, error) {
	var p domain.Participant
	err := s.pool.QueryRow(ctx,
		`SELECT participant_id, lobby_id, nickname, connection_id, score, joined_at
		   FROM participants WHERE lobby_id=$1 AND nickname=$2`,
		lobbyID, nickname,
	).Scan(&p.ID, &p.LobbyID, &p.Nickname, &p.ConnectionID, &p.Score, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("find participant: %w", err)
	}
	return p, nil
}

func (s *Store) CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (participant_id, lobby_id, nickname, connection_id, score, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.LobbyID, p.Nickname, p.ConnectionID, p.Score, p.JoinedAt,
	)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("create participant: %w", err)
	}
	return p, nil
}

func (s *Store) AttachConnection(ctx context.Context, participantID, connID string) error {
	return s.execOne(ctx, domain.ErrParticipantNotFound,
		`UPDATE participants SET connection_id=$2 WHERE participant_id=$1`, participantID, connID)
}

func (s *Store) DeleteParticipant(ctx context.Context, participantID string) error {
	return s.execOne(ctx, domain.ErrParticipantNotFound,
		`DELETE FROM participants WHERE participant_id=$1`, participantID)
}

func (s *Store) SaveAnswer(ctx context.Context, a domain.Answer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO answers (lobby_id, question_id, participant_id, option_id, correct, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (lobby_id, question_id, participant_id)
		 DO UPDATE SET option_id=EXCLUDED.option_id, correct=EXCLUDED.correct, answered_at=EXCLUDED.answered_at`,
		a.LobbyID, a.QuestionID, a.ParticipantID, a.OptionID, a.Correct, a.AnsweredAt,
	)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (s *Store) IncrementScore(ctx context.Context, participantID string) error {
	return s.execOne(ctx, domain.ErrParticipantNotFound,
		`UPDATE participants SET score=score+1 WHERE participant_id=$1`, participantID)
}

func (s *Store) UpdateLobbyStatus(ctx context.Context, lobbyID string, status domain.LobbyStatus, at time.Time) error {
	query := `UPDATE lobbies SET status=$2 WHERE lobby_id=$1`
	args := []interface{}{lobbyID, string(status)}
	switch status {
	case domain.StatusRunning:
		query = `UPDATE lobbies SET status=$2, started_at=$3 WHERE lobby_id=$1`
		args = append(args, at)
	case domain.StatusFinished:
		query = `UPDATE lobbies SET status=$2, finished_at=$3 WHERE lobby_id=$1`
		args = append(args, at)
	}
	return s.execOne(ctx, domain.ErrLobbyNotFound, query, args...)
}

// execOne runs a statement expected to touch exactly one row and returns notFound otherwise.
func (s *Store) execOne(ctx context.Context, notFound error, query string, args ...interface{}) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}
