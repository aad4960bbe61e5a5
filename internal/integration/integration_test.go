package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
)

func TestGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	if err := postgres.Migrate(ctx, pgURL, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	seed(t, ctx, store)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	tokens := auth.NewTokenService("secret", time.Hour, store)
	token, err := tokens.Generate("admin-1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	settings := app.DefaultSettings()
	settings.AdvanceDelay = 10 * time.Millisecond
	registry := app.NewRegistry()
	transport := &collectingTransport{}
	sessions := infraredis.NewSessionStore(redisClient, store, 5*time.Minute, "node-1", nil)
	service := app.NewGameService(
		sessions,
		store,
		infraredis.NewQuestionRepository(redisClient, store, 5*time.Minute, nil),
		tokens,
		registry,
		infraredis.NewEventFeed(redisClient, app.NewGateway(registry, transport, nil), nil),
		app.WithSettings(settings),
	)

	sub := redisClient.Subscribe(ctx, infraredis.Channel("L1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	must := func(connID string, cmd domain.Command) {
		t.Helper()
		if err := service.Handle(ctx, connID, cmd); err != nil {
			t.Fatalf("%T: %v", cmd, err)
		}
	}
	must("admin", domain.Authenticate{Token: token, LobbyID: "L1"})
	must("c-ana", domain.JoinLobby{LobbyID: "L1", Nickname: "Ana"})
	must("c-bob", domain.JoinLobby{LobbyID: "L1", Nickname: "Bob"})
	must("admin", domain.StartSession{LobbyID: "L1"})
	for _, conn := range []string{"admin", "c-ana", "c-bob"} {
		must(conn, domain.QuestionSeen{LobbyID: "L1"})
	}
	must("c-ana", domain.SubmitAnswer{LobbyID: "L1", QuestionID: "q1", OptionID: "B"})
	must("c-bob", domain.SubmitAnswer{LobbyID: "L1", QuestionID: "q1", OptionID: "A"})

	var ranking []domain.RankEntry
	deadline := time.Now().Add(5 * time.Second)
	for {
		ranking, err = service.Results("L1")
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session did not finish: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if ranking[0].Nickname != "Ana" || ranking[0].Score != 1 || ranking[1].Score != 0 {
		t.Fatalf("unexpected ranking %+v", ranking)
	}

	lobby, err := store.GetLobby(ctx, "L1")
	if err != nil {
		t.Fatalf("get lobby: %v", err)
	}
	if lobby.Status != domain.StatusFinished || lobby.StartedAt == nil || lobby.FinishedAt == nil {
		t.Fatalf("expected finished lobby, got %+v", lobby)
	}
	ana, err := store.FindParticipant(ctx, "L1", "Ana")
	if err != nil || ana.Score != 1 {
		t.Fatalf("expected persisted score 1, got %+v (%v)", ana, err)
	}
	var answers int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM answers WHERE lobby_id=$1`, "L1").Scan(&answers); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if answers != 2 {
		t.Fatalf("expected 2 answers, got %d", answers)
	}

	if n, err := redisClient.Exists(ctx, "quiz:quiz-1:questions").Result(); err != nil || n != 1 {
		t.Fatalf("expected cached questions, got %d (%v)", n, err)
	}
	if owner, ok, err := sessions.Owner(ctx, "L1"); err != nil || !ok || owner != "node-1" {
		t.Fatalf("expected liveness marker, got %q %v %v", owner, ok, err)
	}
	select {
	case msg := <-sub.Channel():
		if !strings.Contains(msg.Payload, `"lobbyId":"L1"`) {
			t.Fatalf("unexpected feed message %s", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected lobby events on the feed")
	}
	if transport.count("c-bob", domain.EventFinalResults) != 1 {
		t.Fatalf("expected bob to receive final results once")
	}
}

func seed(t *testing.T, ctx context.Context, store *postgres.Store) {
	t.Helper()
	if err := store.CreateAdmin(ctx, domain.Admin{ID: "admin-1", Name: "Alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	err := store.CreateQuiz(ctx, "quiz-1", "admin-1", "Arithmetic", []domain.Question{{
		ID:               "q1",
		Text:             "What is 2 + 2?",
		Options:          []domain.Option{{ID: "A", Text: "3"}, {ID: "B", Text: "4"}, {ID: "C", Text: "5"}},
		CorrectOptionID:  "B",
		TimeLimitSeconds: 30,
	}})
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	if err := store.CreateLobby(ctx, domain.Lobby{ID: "L1", QuizID: "quiz-1", AdminID: "admin-1"}); err != nil {
		t.Fatalf("seed lobby: %v", err)
	}
}

type collectingTransport struct {
	mu     sync.Mutex
	events map[string][]domain.Event
}

func (c *collectingTransport) Deliver(connID string, ev domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		c.events = make(map[string][]domain.Event)
	}
	c.events[connID] = append(c.events[connID], ev)
	return true
}

func (c *collectingTransport) Close(string) {}

func (c *collectingTransport) count(connID string, typ domain.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events[connID] {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
