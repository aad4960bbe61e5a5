package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// LobbyReader serves the read-only lobby views.
type LobbyReader interface {
	Summary(ctx context.Context, lobbyID string) (domain.LobbySummary, error)
	Results(lobbyID string) ([]domain.RankEntry, error)
}

type LobbyHandler struct {
	lobbies LobbyReader
	logger  *zap.Logger
}

func NewLobbyHandler(lobbies LobbyReader, logger *zap.Logger) *LobbyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LobbyHandler{lobbies: lobbies, logger: logger}
}

// ServeHTTP handles GET /lobbies/{lobbyId} and GET /lobbies/{lobbyId}/results.
func (h *LobbyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/lobbies/"), "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		h.summary(w, r, parts[0])
	case len(parts) == 2 && parts[0] != "" && parts[1] == "results":
		h.results(w, parts[0])
	default:
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	}
}

func (h *LobbyHandler) summary(w http.ResponseWriter, r *http.Request, lobbyID string) {
	summary, err := h.lobbies.Summary(r.Context(), lobbyID)
	if errors.Is(err, domain.ErrLobbyNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("lobby summary", zap.String("lobby_id", lobbyID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *LobbyHandler) results(w http.ResponseWriter, lobbyID string) {
	ranking, err := h.lobbies.Results(lobbyID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, domain.RankingPayload{Ranking: ranking})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
