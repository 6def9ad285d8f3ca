package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"livequiz/internal/app"
	"livequiz/internal/config"
	"livequiz/internal/domain"
	"livequiz/internal/genai"
	"livequiz/internal/infra/memory"
	"livequiz/internal/infra/postgres"
	redisinfra "livequiz/internal/infra/redis"
	transport "livequiz/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}
	publicURL := cfg.Server.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost:" + finalPort
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// The store doubles as the quiz loader behind the content cache, so a
	// running session reads its quiz from the cache while the catalog stays
	// authoritative underneath.
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		store    app.Store
		catalog  app.QuizStore
		quizRepo app.QuizRepository
	)
	if pool != nil {
		pg := postgres.NewStore(pool)
		store, catalog = pg, pg
		if redisClient != nil {
			quizRepo = redisinfra.NewQuizRepository(redisClient, pg, quizTTL)
		} else {
			quizRepo = memory.NewQuizRepository(pg, quizTTL)
		}
	} else {
		log.Printf("no postgres configured, using in-memory store with demo content")
		mem := memory.NewStore()
		if err := mem.CreateQuiz(ctx, demoQuiz()); err != nil {
			return err
		}
		store, catalog = mem, mem
		if redisClient != nil {
			quizRepo = redisinfra.NewQuizRepository(redisClient, mem, quizTTL)
		} else {
			quizRepo = memory.NewQuizRepository(mem, quizTTL)
		}
	}

	var generator app.Generator
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		generator = genai.NewClient(key, genai.WithModels(cfg.Gemini.Models))
	} else {
		log.Printf("GEMINI_API_KEY not set, quiz generation endpoints disabled")
	}

	hub := transport.NewHub()
	coordinator := app.NewCoordinator(store, quizRepo, app.NewRegistry(), hub)
	quizService := app.NewQuizService(catalog, generator)
	wsHandler := transport.NewWSHandler(coordinator, hub)
	restHandler := transport.NewRESTHandler(quizService, coordinator, publicURL)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      restHandler.Router(wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting live quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// demoQuiz seeds the in-memory store so a fresh checkout can host a game
// without Postgres or a generation key.
func demoQuiz() domain.Quiz {
	return domain.Quiz{
		ID:          "demo-go-basics",
		Title:       "Go basics",
		TopicPrompt: "The Go programming language",
		CreatedAt:   time.Now().UTC(),
		Questions: []domain.Question{
			{
				Prompt: "Which keyword starts a new goroutine?",
				Options: []domain.Option{
					{ID: "a", Text: "go"},
					{ID: "b", Text: "run"},
					{ID: "c", Text: "spawn"},
					{ID: "d", Text: "async"},
				},
				CorrectOptionID:  "a",
				TimeLimitSeconds: 20,
			},
			{
				Prompt: "What does a nil map read return?",
				Options: []domain.Option{
					{ID: "a", Text: "A panic"},
					{ID: "b", Text: "The zero value"},
					{ID: "c", Text: "An error"},
				},
				CorrectOptionID:  "b",
				TimeLimitSeconds: 20,
			},
			{
				Prompt: "Which package provides context cancellation?",
				Options: []domain.Option{
					{ID: "a", Text: "sync"},
					{ID: "b", Text: "time"},
					{ID: "c", Text: "context"},
					{ID: "d", Text: "signal"},
				},
				CorrectOptionID:  "c",
				TimeLimitSeconds: 30,
			},
		},
	}
}
