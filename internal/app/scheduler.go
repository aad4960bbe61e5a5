package app

import (
	"context"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// Question lifecycle:
//
//	Idle -> AwaitingReadiness(q) -> Timing(q) -> grading -> AdvanceDelay -> AwaitingReadiness(q+1) | Finished
//
// Every timer callback carries the epoch it was armed in and is discarded once the
// session has moved on, so a deadline can never grade a question twice.

// StartSession loads the quiz and broadcasts its first question. Any failure leaves
// the session waiting.
func (g *GameService) StartSession(ctx context.Context, connID string, cmd domain.StartSession) error {
	if _, err := g.registry.Authorize(connID, cmd.LobbyID, RoleAdmin); err != nil {
		return err
	}
	session, ok := g.sessions.Get(cmd.LobbyID)
	if !ok {
		return domain.StartError(domain.ErrSessionNotFound)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	log := g.logger.With(zap.String("lobby_id", cmd.LobbyID))
	if session.status != domain.StatusWaiting {
		return domain.StartError(domain.ErrLobbyNotWaiting)
	}
	if len(session.participants) < g.settings.MinParticipants {
		return domain.StartError(domain.ErrNotEnoughParticipants)
	}

	lobby, err := g.lobbies.GetLobby(ctx, cmd.LobbyID)
	if err != nil {
		log.Error("load lobby", zap.Error(err))
		return domain.StartError(domain.ErrInternal)
	}
	questions, err := g.questions.GetQuestions(ctx, lobby.QuizID)
	if err != nil {
		log.Error("load questions", zap.String("quiz_id", lobby.QuizID), zap.Error(err))
		return domain.StartError(domain.ErrInternal)
	}
	if len(questions) == 0 {
		return domain.StartError(domain.ErrNoQuestions)
	}
	if err := g.lobbies.UpdateLobbyStatus(ctx, cmd.LobbyID, domain.StatusRunning, g.clock.Now()); err != nil {
		log.Error("mark lobby running", zap.Error(err))
		return domain.StartError(domain.ErrInternal)
	}

	session.questions = append([]domain.Question(nil), questions...)
	session.status = domain.StatusRunning
	session.current = 0
	log.Info("session started", zap.Int("questions", len(questions)), zap.Int("participants", len(session.participants)))

	g.beginQuestionLocked(session)
	return nil
}

// QuestionSeen counts a readiness acknowledgement. Once every participant and the
// admin acknowledged, the countdown starts without waiting for the grace period.
func (g *GameService) QuestionSeen(_ context.Context, connID string, cmd domain.QuestionSeen) error {
	if _, err := g.registry.Authorize(connID, cmd.LobbyID, ""); err != nil {
		return err
	}
	session, ok := g.sessions.Get(cmd.LobbyID)
	if !ok {
		return domain.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.phase != PhaseAwaitingReadiness {
		return nil
	}
	session.ready[connID] = struct{}{}
	g.logger.Debug("question seen",
		zap.String("lobby_id", cmd.LobbyID),
		zap.String("conn_id", connID),
		zap.Int("ready", len(session.ready)),
		zap.Int("needed", len(session.participants)+1))
	g.checkReadinessLocked(session)
	return nil
}

// SubmitAnswer grades and stores a participant's answer for the question being timed.
func (g *GameService) SubmitAnswer(ctx context.Context, connID string, cmd domain.SubmitAnswer) error {
	b, err := g.registry.Authorize(connID, cmd.LobbyID, RoleParticipant)
	if err != nil {
		return domain.SubmissionError(err)
	}
	session, ok := g.sessions.Get(cmd.LobbyID)
	if !ok {
		return domain.SubmissionError(domain.ErrSessionNotRunning)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.status != domain.StatusRunning {
		return domain.SubmissionError(domain.ErrSessionNotRunning)
	}
	q, ok := session.currentQuestionLocked()
	if !ok || q.ID != cmd.QuestionID {
		return domain.SubmissionError(domain.ErrQuestionMismatch)
	}
	if session.phase != PhaseTiming {
		return domain.SubmissionError(domain.ErrNotAcceptingAnswers)
	}
	participant, ok := session.participants[b.ParticipantID]
	if !ok {
		return domain.SubmissionError(domain.ErrParticipantNotFound)
	}
	if _, answered := session.answerLocked(q.ID, participant.ID); answered {
		return domain.SubmissionError(domain.ErrAlreadyAnswered)
	}

	answer := domain.Answer{
		LobbyID:       cmd.LobbyID,
		QuestionID:    q.ID,
		ParticipantID: participant.ID,
		OptionID:      cmd.OptionID,
		Correct:       Grade(q, cmd.OptionID),
		AnsweredAt:    g.clock.Now(),
	}
	log := g.logger.With(zap.String("lobby_id", cmd.LobbyID), zap.String("participant_id", participant.ID))
	if err := g.lobbies.SaveAnswer(ctx, answer); err != nil {
		log.Error("save answer", zap.Error(err))
		return domain.ErrInternal
	}
	session.recordAnswerLocked(answer)
	if answer.Correct {
		participant.Score++
		if err := g.lobbies.IncrementScore(ctx, participant.ID); err != nil {
			log.Error("increment score", zap.Error(err))
		}
	}

	g.out.Send(connID, domain.NewEvent(domain.EventAnswerSubmitted, domain.AnswerSubmittedPayload{
		QuestionID: q.ID,
		OptionID:   cmd.OptionID,
		Correct:    answer.Correct,
	}))

	if session.allAnsweredLocked(q.ID) {
		log.Info("all participants answered", zap.Int("question_index", session.current))
		g.gradeLocked(session)
	}
	return nil
}

// beginQuestionLocked broadcasts the current question and arms the readiness grace timer.
func (g *GameService) beginQuestionLocked(s *Session) {
	q, ok := s.currentQuestionLocked()
	if !ok {
		g.finishLocked(s)
		return
	}
	epoch := s.transitionLocked(PhaseAwaitingReadiness)
	s.ready = make(map[string]struct{})

	g.out.Broadcast(s.lobbyID, domain.NewEvent(domain.EventQuestionStart, g.questionPayloadLocked(s, q)))
	g.logger.Info("question broadcast",
		zap.String("lobby_id", s.lobbyID),
		zap.String("question_id", q.ID),
		zap.Int("question_index", s.current))

	s.timer = g.clock.AfterFunc(g.settings.ReadinessGrace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.phase != PhaseAwaitingReadiness {
			return
		}
		g.logger.Debug("readiness grace elapsed", zap.String("lobby_id", s.lobbyID), zap.Int("ready", len(s.ready)))
		g.startTimerLocked(s)
	})
}

func (g *GameService) checkReadinessLocked(s *Session) {
	if s.phase == PhaseAwaitingReadiness && len(s.ready) >= len(s.participants)+1 {
		g.startTimerLocked(s)
	}
}

// startTimerLocked begins the authoritative countdown for the current question.
func (g *GameService) startTimerLocked(s *Session) {
	q, ok := s.currentQuestionLocked()
	if !ok {
		return
	}
	epoch := s.transitionLocked(PhaseTiming)
	startedAt := g.clock.Now()

	g.out.Broadcast(s.lobbyID, domain.NewEvent(domain.EventTimerStarted, domain.TimerStartedPayload{
		StartedAt:        startedAt,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}))
	g.logger.Info("question timer started",
		zap.String("lobby_id", s.lobbyID),
		zap.Int("question_index", s.current),
		zap.Int("time_limit_seconds", q.TimeLimitSeconds))

	s.timer = g.clock.AfterFunc(q.TimeLimit(), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.phase != PhaseTiming {
			return
		}
		g.logger.Info("question deadline reached", zap.String("lobby_id", s.lobbyID), zap.Int("question_index", s.current))
		g.gradeLocked(s)
	})
}

// gradeLocked broadcasts the question result and ranking, then arms the advance delay.
func (g *GameService) gradeLocked(s *Session) {
	q, ok := s.currentQuestionLocked()
	if !ok {
		return
	}
	epoch := s.transitionLocked(PhaseAdvanceDelay)

	correct := CorrectParticipants(s.answers[q.ID], s.participants)
	g.out.Broadcast(s.lobbyID, domain.NewEvent(domain.EventQuestionEnd, domain.QuestionEndPayload{
		QuestionID:          q.ID,
		CorrectOptionID:     q.CorrectOptionID,
		CorrectParticipants: correct,
	}))
	g.out.Broadcast(s.lobbyID, domain.NewEvent(domain.EventScoreUpdate, domain.RankingPayload{
		Ranking: Rank(s.participantListLocked()),
	}))
	g.logger.Info("question graded",
		zap.String("lobby_id", s.lobbyID),
		zap.Int("question_index", s.current),
		zap.Int("answers", len(s.answers[q.ID])),
		zap.Int("correct", len(correct)))

	s.timer = g.clock.AfterFunc(g.settings.AdvanceDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.phase != PhaseAdvanceDelay {
			return
		}
		if s.current+1 < len(s.questions) {
			s.current++
			g.beginQuestionLocked(s)
			return
		}
		g.finishLocked(s)
	})
}

// finishLocked persists the finished status and broadcasts the final ranking.
// No question events are possible afterwards.
func (g *GameService) finishLocked(s *Session) {
	s.transitionLocked(PhaseFinished)
	s.status = domain.StatusFinished
	s.finishedAt = g.clock.Now()
	s.finalRanking = Rank(s.participantListLocked())

	ctx, cancel := g.persistContext()
	defer cancel()
	if err := g.lobbies.UpdateLobbyStatus(ctx, s.lobbyID, domain.StatusFinished, s.finishedAt); err != nil {
		g.reportLocked(s, "failed to persist quiz results", err)
	}

	g.out.Broadcast(s.lobbyID, domain.NewEvent(domain.EventFinalResults, domain.RankingPayload{Ranking: s.finalRanking}))
	g.logger.Info("session finished", zap.String("lobby_id", s.lobbyID), zap.Int("participants", len(s.finalRanking)))
}

func (g *GameService) questionPayloadLocked(s *Session, q domain.Question) domain.QuestionStartPayload {
	return domain.QuestionStartPayload{
		QuestionID:       q.ID,
		Text:             q.Text,
		Options:          q.Options,
		TimeLimitSeconds: q.TimeLimitSeconds,
		StartedAt:        g.clock.Now(),
		QuestionIndex:    s.current + 1,
		TotalQuestions:   len(s.questions),
	}
}
