package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestQuestionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: sampleStore()}
	repo := NewQuestionRepository(loader, time.Minute)

	questions, err := repo.GetQuestions(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 2 || questions[0].ID != "q1" {
		t.Fatalf("unexpected questions %+v", questions)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	if _, err := repo.GetQuestions(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get questions 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
}

func TestQuestionRepositoryExpires(t *testing.T) {
	loader := &countingLoader{QuestionLoader: sampleStore()}
	repo := NewQuestionRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuestions(context.Background(), "quiz-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuestions(context.Background(), "quiz-1")
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}
}

func TestQuestionRepositoryReturnsCopies(t *testing.T) {
	repo := NewQuestionRepository(sampleStore(), time.Minute)

	first, _ := repo.GetQuestions(context.Background(), "quiz-1")
	first[0].Options[0].Text = "mutated"

	second, _ := repo.GetQuestions(context.Background(), "quiz-1")
	if second[0].Options[0].Text == "mutated" {
		t.Fatalf("cached questions were mutated through a returned slice")
	}
}

func TestQuestionRepositoryUnknownQuiz(t *testing.T) {
	repo := NewQuestionRepository(sampleStore(), time.Minute)
	if _, err := repo.GetQuestions(context.Background(), "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

type countingLoader struct {
	QuestionLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuestionLoader.LoadQuestions(ctx, quizID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleStore() *LobbyStore {
	store := NewLobbyStore()
	store.PutQuiz("quiz-1", sampleQuestions())
	return store
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:   "q1",
			Text: "What is 2 + 2?",
			Options: []domain.Option{
				{ID: "A", Text: "4"},
				{ID: "B", Text: "5"},
			},
			CorrectOptionID:  "A",
			TimeLimitSeconds: 15,
		},
		{
			ID:   "q2",
			Text: "What is 3 + 3?",
			Options: []domain.Option{
				{ID: "A", Text: "5"},
				{ID: "B", Text: "6"},
			},
			CorrectOptionID:  "B",
			TimeLimitSeconds: 15,
		},
	}
}
