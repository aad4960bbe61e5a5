package app_test

import (
	"testing"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func TestRankOrdersByScoreThenNickname(t *testing.T) {
	ranking := app.Rank([]domain.Participant{
		{ID: "p3", Nickname: "Cy", Score: 1},
		{ID: "p2", Nickname: "Bob", Score: 1},
		{ID: "p1", Nickname: "Ana", Score: 0},
		{ID: "p4", Nickname: "Dee", Score: 3},
	})
	want := []string{"Dee", "Bob", "Cy", "Ana"}
	for i, entry := range ranking {
		if entry.Nickname != want[i] || entry.Position != i+1 {
			t.Fatalf("position %d: got %+v, want %s", i+1, entry, want[i])
		}
	}
	if len(app.Rank(nil)) != 0 {
		t.Fatalf("expected empty ranking")
	}
}

func TestGrade(t *testing.T) {
	q := domain.Question{ID: "q1", CorrectOptionID: "C"}
	if !app.Grade(q, "C") || app.Grade(q, "A") || app.Grade(q, "") {
		t.Fatalf("unexpected grading result")
	}
	if app.Grade(domain.Question{ID: "q2"}, "") {
		t.Fatalf("an empty option never matches")
	}
}

func TestCorrectParticipantsSkipsRemoved(t *testing.T) {
	participants := map[string]*domain.Participant{
		"p1": {ID: "p1", Nickname: "Bob"},
		"p2": {ID: "p2", Nickname: "Ana"},
		"p3": {ID: "p3", Nickname: "Cy"},
	}
	answers := map[string]domain.Answer{
		"p1": {ParticipantID: "p1", Correct: true},
		"p2": {ParticipantID: "p2", Correct: true},
		"p3": {ParticipantID: "p3", Correct: false},
		"p9": {ParticipantID: "p9", Correct: true},
	}
	refs := app.CorrectParticipants(answers, participants)
	if len(refs) != 2 || refs[0].Nickname != "Ana" || refs[1].Nickname != "Bob" {
		t.Fatalf("unexpected refs %+v", refs)
	}
}
