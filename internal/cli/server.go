package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/logging"
	transport "live-quiz-service/internal/transport/http"
)

// backend is the persistence the server needs, served by Postgres or by memory.
type backend interface {
	app.LobbyRepository
	memory.QuestionLoader
	auth.AdminFinder
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var store backend
	if cfg.Postgres.URL != "" {
		if err := postgres.Migrate(ctx, cfg.Postgres.URL, logger); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
	} else {
		store = demoStore(logger)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)

	var questions app.QuestionRepository
	var sessions app.SessionRepository
	if redisClient != nil {
		instance, _ := os.Hostname()
		questions = infraredis.NewQuestionRepository(redisClient, store, quizTTL, logger)
		sessions = infraredis.NewSessionStore(redisClient, store, redisTTL, instance, logger)
	} else {
		questions = memory.NewQuestionRepository(store, quizTTL)
		sessions = memory.NewSessionStore(store)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		logger.Warn("auth.jwtSecret not configured, using an ephemeral secret")
		secret = uuid.NewString()
	}
	tokens := auth.NewTokenService(secret, cfg.TokenTTL(), store)

	registry := app.NewRegistry()
	hub := transport.NewHub(logger)
	var out app.Broadcaster = app.NewGateway(registry, hub, logger)
	if redisClient != nil {
		out = infraredis.NewEventFeed(redisClient, out, logger)
	}

	service := app.NewGameService(sessions, store, questions, tokens, registry, out,
		app.WithSettings(cfg.Game.Settings()),
		app.WithLogger(logger),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service, hub, logger).ServeWS)
	mux.Handle("/lobbies/", transport.NewLobbyHandler(service, logger))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// demoStore seeds one admin, one quiz and one waiting lobby for running without Postgres.
func demoStore(logger *zap.Logger) *memory.LobbyStore {
	store := memory.NewLobbyStore()
	store.PutAdmin(domain.Admin{ID: "admin-1", Name: "Demo Admin", Email: "admin@example.com"})
	store.PutQuiz("quiz-1", []domain.Question{
		{
			ID:   "q1",
			Text: "What is 2 + 2?",
			Options: []domain.Option{
				{ID: "A", Text: "3"},
				{ID: "B", Text: "4"},
				{ID: "C", Text: "5"},
			},
			CorrectOptionID:  "B",
			TimeLimitSeconds: 15,
		},
		{
			ID:   "q2",
			Text: "Which planet is closest to the sun?",
			Options: []domain.Option{
				{ID: "A", Text: "Mercury"},
				{ID: "B", Text: "Venus"},
				{ID: "C", Text: "Mars"},
				{ID: "D", Text: "Earth"},
			},
			CorrectOptionID:  "A",
			TimeLimitSeconds: 30,
		},
	})
	lobbyID := strings.ToUpper(uuid.NewString()[:6])
	store.PutLobby(domain.Lobby{ID: lobbyID, QuizID: "quiz-1", AdminID: "admin-1"})
	logger.Info("running on in-memory demo data",
		zap.String("lobby_id", lobbyID),
		zap.String("admin_id", "admin-1"))
	return store
}
