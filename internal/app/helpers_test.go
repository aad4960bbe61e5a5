package app_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

// fakeClock fires timers only when the test advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) app.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due callbacks in deadline order.
// Callbacks run without the clock lock so they can arm new timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

// pending counts armed timers that have not fired or been stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// recordingTransport stands in for the websocket hub.
type recordingTransport struct {
	mu     sync.Mutex
	events map[string][]domain.Event
	closed map[string]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{events: make(map[string][]domain.Event), closed: make(map[string]bool)}
}

func (r *recordingTransport) Deliver(connID string, ev domain.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed[connID] {
		return false
	}
	r.events[connID] = append(r.events[connID], ev)
	return true
}

func (r *recordingTransport) Close(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed[connID] = true
}

func (r *recordingTransport) isClosed(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed[connID]
}

// take returns and forgets the events delivered to connID so far.
func (r *recordingTransport) take(connID string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events[connID]
	r.events[connID] = nil
	return out
}

type staticAuth map[string]domain.Admin

func (a staticAuth) VerifyAdmin(_ context.Context, token string) (domain.Admin, error) {
	admin, ok := a[token]
	if !ok {
		return domain.Admin{}, domain.ErrInvalidCredential
	}
	return admin, nil
}

var errStoreDown = errors.New("store unavailable")

// unreachableAuth fails the way a token service does when the admin store is down.
type unreachableAuth struct{}

func (unreachableAuth) VerifyAdmin(context.Context, string) (domain.Admin, error) {
	return domain.Admin{}, errStoreDown
}

type failingQuestions struct{}

func (failingQuestions) GetQuestions(context.Context, string) ([]domain.Question, error) {
	return nil, errStoreDown
}

// statusFailingStore rejects every lobby status update.
type statusFailingStore struct {
	*memory.LobbyStore
}

func (statusFailingStore) UpdateLobbyStatus(context.Context, string, domain.LobbyStatus, time.Time) error {
	return errStoreDown
}

type harnessDeps struct {
	lobbies   app.LobbyRepository
	questions app.QuestionRepository
	auth      app.Authenticator
}

// harnessOption swaps a collaborator of the service under test.
type harnessOption func(store *memory.LobbyStore, d *harnessDeps)

func withQuestions(q app.QuestionRepository) harnessOption {
	return func(_ *memory.LobbyStore, d *harnessDeps) { d.questions = q }
}

func withAuth(a app.Authenticator) harnessOption {
	return func(_ *memory.LobbyStore, d *harnessDeps) { d.auth = a }
}

func withFailingStatusUpdates() harnessOption {
	return func(store *memory.LobbyStore, d *harnessDeps) { d.lobbies = statusFailingStore{store} }
}

type harness struct {
	t         *testing.T
	service   *app.GameService
	store     *memory.LobbyStore
	sessions  *memory.SessionStore
	registry  *app.Registry
	transport *recordingTransport
	clock     *fakeClock
}

const (
	lobbyID    = "L1"
	adminToken = "admin-token"
)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	store := memory.NewLobbyStore()
	admin := domain.Admin{ID: "admin-1", Name: "Alice", Email: "alice@example.com"}
	store.PutAdmin(admin)
	store.PutAdmin(domain.Admin{ID: "admin-2", Name: "Mallory"})
	store.PutQuiz("quiz-1", twoQuestions())
	store.PutQuiz("quiz-empty", nil)
	store.PutLobby(domain.Lobby{ID: lobbyID, QuizID: "quiz-1", AdminID: admin.ID})
	store.PutLobby(domain.Lobby{ID: "L-empty", QuizID: "quiz-empty", AdminID: admin.ID})
	store.PutLobby(domain.Lobby{ID: "L-done", QuizID: "quiz-1", AdminID: admin.ID, Status: domain.StatusFinished})

	sessions := memory.NewSessionStore(store)
	registry := app.NewRegistry()
	transport := newRecordingTransport()
	clock := newFakeClock()
	deps := harnessDeps{
		lobbies:   store,
		questions: memory.NewQuestionRepository(store, time.Minute),
		auth: staticAuth{
			adminToken:    admin,
			"other-token": {ID: "admin-2", Name: "Mallory"},
		},
	}
	for _, opt := range opts {
		opt(store, &deps)
	}
	service := app.NewGameService(
		sessions,
		deps.lobbies,
		deps.questions,
		deps.auth,
		registry,
		app.NewGateway(registry, transport, nil),
		app.WithClock(clock),
		app.WithSettings(app.DefaultSettings()),
	)
	return &harness{
		t:         t,
		service:   service,
		store:     store,
		sessions:  sessions,
		registry:  registry,
		transport: transport,
		clock:     clock,
	}
}

func twoQuestions() []domain.Question {
	options := []domain.Option{{ID: "A", Text: "Alpha"}, {ID: "B", Text: "Bravo"}}
	return []domain.Question{
		{ID: "q1", Text: "First?", Options: options, CorrectOptionID: "A", TimeLimitSeconds: 15},
		{ID: "q2", Text: "Second?", Options: options, CorrectOptionID: "B", TimeLimitSeconds: 15},
	}
}

func (h *harness) do(connID string, cmd domain.Command) {
	h.t.Helper()
	if err := h.service.Handle(context.Background(), connID, cmd); err != nil {
		h.t.Fatalf("%T from %s: %v", cmd, connID, err)
	}
}

func (h *harness) authenticate(connID string) {
	h.t.Helper()
	h.do(connID, domain.Authenticate{Token: adminToken, LobbyID: lobbyID})
}

// join returns the participant id assigned to nickname.
func (h *harness) join(connID, nickname string) string {
	h.t.Helper()
	h.do(connID, domain.JoinLobby{LobbyID: lobbyID, Nickname: nickname})
	ev, ok := findEvent(h.transport.take(connID), domain.EventJoined)
	if !ok {
		h.t.Fatalf("no joined event for %s", nickname)
	}
	return ev.Payload.(domain.JoinedPayload).ParticipantID
}

func (h *harness) snapshot() app.SessionSnapshot {
	h.t.Helper()
	s, ok := h.sessions.Get(lobbyID)
	if !ok {
		h.t.Fatalf("session %s not found", lobbyID)
	}
	return s.Snapshot()
}

func (h *harness) submit(connID, questionID, optionID string) error {
	return h.service.Handle(context.Background(), connID, domain.SubmitAnswer{
		LobbyID:    lobbyID,
		QuestionID: questionID,
		OptionID:   optionID,
	})
}

func findEvent(events []domain.Event, t domain.EventType) (domain.Event, bool) {
	for _, ev := range events {
		if ev.Type == t {
			return ev, true
		}
	}
	return domain.Event{}, false
}

func countEvents(events []domain.Event, t domain.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func eventTypes(events []domain.Event) []domain.EventType {
	out := make([]domain.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func nicknames(refs []domain.ParticipantRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Nickname)
	}
	sort.Strings(out)
	return out
}
