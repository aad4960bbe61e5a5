package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"live-quiz-service/internal/domain"
)

type stubLobbies struct {
	summaries map[string]domain.LobbySummary
	results   map[string][]domain.RankEntry
}

func (s stubLobbies) Summary(_ context.Context, lobbyID string) (domain.LobbySummary, error) {
	summary, ok := s.summaries[lobbyID]
	if !ok {
		return domain.LobbySummary{}, domain.ErrLobbyNotFound
	}
	return summary, nil
}

func (s stubLobbies) Results(lobbyID string) ([]domain.RankEntry, error) {
	ranking, ok := s.results[lobbyID]
	if !ok {
		return nil, domain.ErrNotFinished
	}
	return ranking, nil
}

func TestLobbyHandler(t *testing.T) {
	handler := NewLobbyHandler(stubLobbies{
		summaries: map[string]domain.LobbySummary{
			"L1": {LobbyID: "L1", Status: domain.StatusWaiting, ParticipantCount: 3},
		},
		results: map[string][]domain.RankEntry{
			"L2": {{ID: "p1", Nickname: "Ana", Score: 2, Position: 1}},
		},
	}, nil)

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/lobbies/L1", http.StatusOK},
		{http.MethodGet, "/lobbies/missing", http.StatusNotFound},
		{http.MethodGet, "/lobbies/L1/results", http.StatusNotFound},
		{http.MethodGet, "/lobbies/L2/results", http.StatusOK},
		{http.MethodGet, "/lobbies/", http.StatusNotFound},
		{http.MethodPost, "/lobbies/L1", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lobbies/L1", nil))
	var summary domain.LobbySummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.ParticipantCount != 3 || summary.Status != domain.StatusWaiting {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
