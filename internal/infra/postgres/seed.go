package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"

	"live-quiz-service/internal/domain"
)

// CreateAdmin inserts an admin account.
func (s *Store) CreateAdmin(ctx context.Context, a domain.Admin) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO admins (admin_id, name, email) VALUES ($1, $2, $3)`,
		a.ID, a.Name, a.Email,
	)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// CreateQuiz stores a quiz with its questions in the given order.
func (s *Store) CreateQuiz(ctx context.Context, quizID, adminID, title string, questions []domain.Question) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO quizzes (quiz_id, admin_id, title) VALUES ($1, $2, $3)`,
			quizID, adminID, title,
		); err != nil {
			return fmt.Errorf("create quiz: %w", err)
		}
		for i, q := range questions {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("marshal options: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO questions (question_id, quiz_id, order_index, text, options, correct_option_id, time_limit_seconds)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				q.ID, quizID, i, q.Text, options, q.CorrectOptionID, q.TimeLimitSeconds,
			); err != nil {
				return fmt.Errorf("create question %s: %w", q.ID, err)
			}
		}
		return nil
	})
}

// CreateLobby publishes a lobby for a quiz in the waiting state.
func (s *Store) CreateLobby(ctx context.Context, l domain.Lobby) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lobbies (lobby_id, quiz_id, admin_id, status) VALUES ($1, $2, $3, $4)`,
		l.ID, l.QuizID, l.AdminID, string(domain.StatusWaiting),
	)
	if err != nil {
		return fmt.Errorf("create lobby: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
