package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// Settings are the tunable timings of the question lifecycle.
type Settings struct {
	ReadinessGrace  time.Duration
	AdvanceDelay    time.Duration
	MinParticipants int
	PersistTimeout  time.Duration
}

// DefaultSettings returns a 1s readiness grace, 3s advance delay and a minimum of 2 participants.
func DefaultSettings() Settings {
	return Settings{
		ReadinessGrace:  time.Second,
		AdvanceDelay:    3 * time.Second,
		MinParticipants: 2,
		PersistTimeout:  5 * time.Second,
	}
}

// GameService contains the live lobby use cases. All mutations of a session happen
// while holding that session's lock, so events for one lobby are serialized while
// different lobbies proceed in parallel.
type GameService struct {
	sessions  SessionRepository
	lobbies   LobbyRepository
	questions QuestionRepository
	auth      Authenticator
	registry  *Registry
	out       Broadcaster

	clock    Clock
	settings Settings
	logger   *zap.Logger
}

type Option func(*GameService)

func WithClock(c Clock) Option { return func(g *GameService) { g.clock = c } }

func WithSettings(s Settings) Option { return func(g *GameService) { g.settings = s } }

func WithLogger(l *zap.Logger) Option { return func(g *GameService) { g.logger = l } }

func NewGameService(
	sessions SessionRepository,
	lobbies LobbyRepository,
	questions QuestionRepository,
	auth Authenticator,
	registry *Registry,
	out Broadcaster,
	opts ...Option,
) *GameService {
	g := &GameService{
		sessions:  sessions,
		lobbies:   lobbies,
		questions: questions,
		auth:      auth,
		registry:  registry,
		out:       out,
		clock:     SystemClock{},
		settings:  DefaultSettings(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handle dispatches one inbound command from a connection.
func (g *GameService) Handle(ctx context.Context, connID string, cmd domain.Command) error {
	switch c := cmd.(type) {
	case domain.Authenticate:
		return g.AuthenticateAdmin(ctx, connID, c)
	case domain.JoinLobby:
		return g.JoinLobby(ctx, connID, c)
	case domain.StartSession:
		return g.StartSession(ctx, connID, c)
	case domain.KickParticipant:
		return g.KickParticipant(ctx, connID, c)
	case domain.QuestionSeen:
		return g.QuestionSeen(ctx, connID, c)
	case domain.SubmitAnswer:
		return g.SubmitAnswer(ctx, connID, c)
	}
	return fmt.Errorf("unsupported command %T", cmd)
}

// AuthenticateAdmin binds an admin connection to a lobby it owns. On rejection no
// session state is created or changed.
func (g *GameService) AuthenticateAdmin(ctx context.Context, connID string, cmd domain.Authenticate) error {
	log := g.logger.With(zap.String("lobby_id", cmd.LobbyID), zap.String("conn_id", connID))

	admin, err := g.auth.VerifyAdmin(ctx, cmd.Token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredential) {
			log.Warn("admin credential rejected", zap.Error(err))
			return domain.AuthError(domain.ErrInvalidCredential)
		}
		log.Error("verify admin", zap.Error(err))
		return domain.AuthError(domain.ErrInternal)
	}
	lobby, err := g.lobbies.GetLobby(ctx, cmd.LobbyID)
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			return domain.AuthError(domain.ErrLobbyNotOwned)
		}
		log.Error("load lobby", zap.Error(err))
		return domain.AuthError(domain.ErrInternal)
	}
	if lobby.AdminID != admin.ID {
		log.Warn("lobby not owned by admin", zap.String("admin_id", admin.ID))
		return domain.AuthError(domain.ErrLobbyNotOwned)
	}

	session, err := g.sessions.GetOrCreate(ctx, cmd.LobbyID)
	if err != nil {
		log.Error("create session", zap.Error(err))
		return domain.AuthError(domain.ErrInternal)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if old := session.adminConnID; old != "" && old != connID {
		// a session keeps one admin connection; the newer one takes over
		g.registry.Remove(old)
		delete(session.ready, old)
		log.Info("admin connection superseded", zap.String("previous_conn_id", old))
	}
	g.registry.Bind(Binding{ConnID: connID, Role: RoleAdmin, LobbyID: cmd.LobbyID, AdminID: admin.ID})
	session.adminConnID = connID

	g.out.Send(connID, domain.NewEvent(domain.EventAuthenticated, domain.AuthenticatedPayload{
		Admin:   admin,
		LobbyID: cmd.LobbyID,
	}))
	g.publishLobbyLocked(session)
	log.Info("admin authenticated", zap.String("admin_id", admin.ID))

	switch session.phase {
	case PhaseAwaitingReadiness, PhaseTiming, PhaseAdvanceDelay:
		// Resync a reconnecting admin with the question in flight.
		if q, ok := session.currentQuestionLocked(); ok {
			g.out.Send(connID, domain.NewEvent(domain.EventQuestionStart, g.questionPayloadLocked(session, q)))
		}
	case PhaseFinished:
		g.out.Send(connID, domain.NewEvent(domain.EventFinalResults, domain.RankingPayload{Ranking: session.finalRanking}))
	}
	return nil
}

// JoinLobby registers a participant connection. A nickname already known to the
// lobby is treated as a reconnect of that participant and keeps its id and score.
func (g *GameService) JoinLobby(ctx context.Context, connID string, cmd domain.JoinLobby) error {
	nickname := strings.TrimSpace(cmd.Nickname)
	if cmd.LobbyID == "" || nickname == "" {
		return domain.JoinError(domain.ErrNicknameRequired)
	}
	log := g.logger.With(zap.String("lobby_id", cmd.LobbyID), zap.String("conn_id", connID))

	lobby, err := g.lobbies.GetLobby(ctx, cmd.LobbyID)
	if err != nil {
		if errors.Is(err, domain.ErrLobbyNotFound) {
			return domain.JoinError(domain.ErrLobbyNotFound)
		}
		log.Error("load lobby", zap.Error(err))
		return domain.JoinError(domain.ErrInternal)
	}
	if lobby.Status != domain.StatusWaiting {
		return domain.JoinError(domain.ErrLobbyNotWaiting)
	}

	session, err := g.sessions.GetOrCreate(ctx, cmd.LobbyID)
	if err != nil {
		log.Error("create session", zap.Error(err))
		return domain.JoinError(domain.ErrInternal)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.status != domain.StatusWaiting {
		return domain.JoinError(domain.ErrLobbyNotWaiting)
	}

	participant := session.participantByNicknameLocked(nickname)
	reconnect := participant != nil
	if participant == nil {
		stored, err := g.lobbies.FindParticipant(ctx, cmd.LobbyID, nickname)
		switch {
		case err == nil:
			reconnect = true
		case errors.Is(err, domain.ErrParticipantNotFound):
			stored, err = g.lobbies.CreateParticipant(ctx, domain.Participant{
				LobbyID:      cmd.LobbyID,
				Nickname:     nickname,
				ConnectionID: connID,
				JoinedAt:     g.clock.Now(),
			})
			if err != nil {
				log.Error("create participant", zap.Error(err))
				return domain.JoinError(domain.ErrInternal)
			}
		default:
			log.Error("find participant", zap.Error(err))
			return domain.JoinError(domain.ErrInternal)
		}
		stored.LobbyID = cmd.LobbyID
		participant = &stored
		session.participants[participant.ID] = participant
	}

	if reconnect {
		if err := g.lobbies.AttachConnection(ctx, participant.ID, connID); err != nil {
			log.Warn("attach connection", zap.String("participant_id", participant.ID), zap.Error(err))
		}
		if old := participant.ConnectionID; old != "" && old != connID {
			g.registry.Remove(old)
		}
	}
	participant.ConnectionID = connID

	g.registry.Bind(Binding{ConnID: connID, Role: RoleParticipant, LobbyID: cmd.LobbyID, ParticipantID: participant.ID})

	g.out.Send(connID, domain.NewEvent(domain.EventJoined, domain.JoinedPayload{
		ParticipantID: participant.ID,
		Nickname:      participant.Nickname,
		LobbyID:       cmd.LobbyID,
	}))
	g.publishLobbyLocked(session)
	log.Info("participant joined",
		zap.String("participant_id", participant.ID),
		zap.String("nickname", participant.Nickname),
		zap.Bool("reconnect", reconnect))
	return nil
}

// KickParticipant removes a participant at the admin's request. The participant's
// connection gets a kicked notice before it is closed.
func (g *GameService) KickParticipant(ctx context.Context, connID string, cmd domain.KickParticipant) error {
	if _, err := g.registry.Authorize(connID, cmd.LobbyID, RoleAdmin); err != nil {
		return err
	}
	session, ok := g.sessions.Get(cmd.LobbyID)
	if !ok {
		return domain.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	log := g.logger.With(zap.String("lobby_id", cmd.LobbyID), zap.String("participant_id", cmd.ParticipantID))
	if p, ok := session.participants[cmd.ParticipantID]; ok {
		if p.ConnectionID != "" {
			g.out.Send(p.ConnectionID, domain.NewEvent(domain.EventKicked, domain.MessagePayload{
				Message: "you were removed from the lobby",
			}))
			g.registry.Remove(p.ConnectionID)
			g.out.Disconnect(p.ConnectionID)
			delete(session.ready, p.ConnectionID)
		}
		delete(session.participants, cmd.ParticipantID)
		log.Info("participant kicked")
	}

	var persistErr error
	if err := g.lobbies.DeleteParticipant(ctx, cmd.ParticipantID); err != nil && !errors.Is(err, domain.ErrParticipantNotFound) {
		log.Error("delete participant", zap.Error(err))
		persistErr = domain.ErrInternal
	}

	g.publishLobbyLocked(session)
	switch session.phase {
	case PhaseAwaitingReadiness:
		g.checkReadinessLocked(session)
	case PhaseTiming:
		if q, ok := session.currentQuestionLocked(); ok && session.allAnsweredLocked(q.ID) {
			g.gradeLocked(session)
		}
	}
	return persistErr
}

// Disconnect forgets a closed connection. Participants stay in the lobby, offline.
func (g *GameService) Disconnect(_ context.Context, connID string) {
	b, ok := g.registry.Remove(connID)
	if !ok {
		return
	}
	session, ok := g.sessions.Get(b.LobbyID)
	if !ok {
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	switch b.Role {
	case RoleAdmin:
		if session.adminConnID == connID {
			session.adminConnID = ""
		}
	case RoleParticipant:
		if p, ok := session.participants[b.ParticipantID]; ok && p.ConnectionID == connID {
			p.ConnectionID = ""
			ctx, cancel := g.persistContext()
			if err := g.lobbies.AttachConnection(ctx, p.ID, ""); err != nil {
				g.logger.Warn("mark participant offline",
					zap.String("lobby_id", b.LobbyID),
					zap.String("participant_id", p.ID),
					zap.Error(err))
			}
			cancel()
		}
	}
	g.logger.Debug("connection closed",
		zap.String("lobby_id", b.LobbyID),
		zap.String("conn_id", connID),
		zap.String("role", string(b.Role)))

	if session.status == domain.StatusWaiting {
		g.publishLobbyLocked(session)
	}
}

// Summary returns the public view of a lobby, preferring live state.
func (g *GameService) Summary(ctx context.Context, lobbyID string) (domain.LobbySummary, error) {
	if session, ok := g.sessions.Get(lobbyID); ok {
		snap := session.Snapshot()
		return domain.LobbySummary{
			LobbyID:          lobbyID,
			Status:           snap.Status,
			ParticipantCount: len(snap.Participants),
		}, nil
	}
	lobby, err := g.lobbies.GetLobby(ctx, lobbyID)
	if err != nil {
		return domain.LobbySummary{}, err
	}
	participants, err := g.lobbies.ListParticipants(ctx, lobbyID)
	if err != nil {
		return domain.LobbySummary{}, err
	}
	return domain.LobbySummary{
		LobbyID:          lobbyID,
		Status:           lobby.Status,
		ParticipantCount: len(participants),
	}, nil
}

// Results returns the final ranking of a finished session.
func (g *GameService) Results(lobbyID string) ([]domain.RankEntry, error) {
	session, ok := g.sessions.Get(lobbyID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.status != domain.StatusFinished {
		return nil, domain.ErrNotFinished
	}
	out := make([]domain.RankEntry, len(session.finalRanking))
	copy(out, session.finalRanking)
	return out, nil
}

func (g *GameService) publishLobbyLocked(s *Session) {
	state := s.lobbyStateLocked()
	g.out.Broadcast(s.lobbyID, domain.NewEvent(domain.EventLobbyState, state))

	needed := g.settings.MinParticipants - state.Count
	if needed < 0 {
		needed = 0
	}
	g.out.Broadcast(s.lobbyID, domain.NewEvent(domain.EventStartEligibility, domain.StartEligibilityPayload{
		Allowed: needed == 0,
		Count:   state.Count,
		Needed:  needed,
	}))
}

// reportLocked surfaces a failure of a scheduled transition to the admin, if connected.
func (g *GameService) reportLocked(s *Session, msg string, err error) {
	g.logger.Error(msg, zap.String("lobby_id", s.lobbyID), zap.Error(err))
	if s.adminConnID != "" {
		g.out.Send(s.adminConnID, domain.NewEvent(domain.EventError, domain.MessagePayload{Message: msg}))
	}
}

func (g *GameService) persistContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.settings.PersistTimeout)
}
