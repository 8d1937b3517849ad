package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"waitwhat-backend/internal/config"
	"waitwhat-backend/internal/database"
	"waitwhat-backend/internal/handlers"
	"waitwhat-backend/internal/repository"
	"waitwhat-backend/internal/repository/memstore"
	"waitwhat-backend/internal/router"
	"waitwhat-backend/internal/services"
	"waitwhat-backend/internal/websocket"
	"waitwhat-backend/internal/worker"
)

const migrationsDir = "migrations"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "waitwhat",
		Short: "Live classroom session backend",
	}

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd())

	// "serve" is the default when no subcommand is given.
	root.RunE = serve.RunE

	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		RunE:  runServe,
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if cfg.StoreDriver != "postgres" {
		return fmt.Errorf("migrate needs STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}

	pool, err := database.NewPostgresPool(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("PostgreSQL connection failed: %w", err)
	}
	defer pool.Close()

	applied, err := database.RunMigrations(cmd.Context(), pool, migrationsDir)
	if err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Printf("✓ %d migration(s) applied", applied)
	return nil
}

type stores struct {
	repos services.Repositories
	jobs  worker.JobStore
	close func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		store := memstore.New()
		return &stores{
			repos: services.Repositories{
				Sessions:   store.Sessions(),
				Students:   store.Students(),
				Transcript: store.Transcript(),
				Quizzes:    store.Quizzes(),
				Questions:  store.Questions(),
				LostEvents: store.LostEvents(),
			},
			jobs:  store.Jobs(),
			close: func() {},
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL connection failed: %w", err)
	}
	log.Println("✓ PostgreSQL connected")

	if _, err := database.RunMigrations(ctx, pool, migrationsDir); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("✓ Database migrations applied")

	return &stores{repos: postgresRepos(pool), jobs: repository.NewJobRepo(pool), close: pool.Close}, nil
}

func postgresRepos(pool *pgxpool.Pool) services.Repositories {
	return services.Repositories{
		Sessions:   repository.NewSessionRepo(pool),
		Students:   repository.NewStudentRepo(pool),
		Transcript: repository.NewTranscriptRepo(pool),
		Quizzes:    repository.NewQuizRepo(pool),
		Questions:  repository.NewQuestionRepo(pool),
		LostEvents: repository.NewLostEventRepo(pool),
	}
}

func newTextGenerator(ctx context.Context, cfg *config.Config) (services.TextGenerator, func(), error) {
	if cfg.AIProvider == "openai" {
		log.Printf("✓ OpenAI-compatible client initialized (model %s)", cfg.OpenAIModel)
		return services.NewOpenAIService(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), func() {}, nil
	}

	gemini, err := services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
	if err != nil {
		return nil, nil, fmt.Errorf("Gemini client initialization failed: %w", err)
	}
	log.Printf("✓ Gemini client initialized (model %s)", cfg.GeminiModel)
	return gemini, gemini.Close, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log.Println("🚀 Starting WaitWhat Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Open the Store ────
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()
	log.Printf("✓ Store ready (%s)", cfg.StoreDriver)

	// ──── Step 3: Queue, Pub/Sub and WebSocket Hub ────
	var (
		queue     worker.Queue
		publisher services.EventPublisher
		wsHub     *websocket.Hub
	)
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("Redis connection failed: %w", err)
		}
		defer redisClients.Close()

		queue = worker.NewRedisQueue(redisClients.Queue)
		publisher = services.NewRedisPublisher(redisClients.Queue)
		wsHub = websocket.NewHub(redisClients.PubSub, st.repos.Sessions)
		log.Println("✓ Redis connected")
	} else {
		queue = worker.NewMemoryQueue(0)
		wsHub = websocket.NewHub(nil, st.repos.Sessions)
		publisher = wsHub
		log.Println("✓ In-process queue and pub/sub (REDIS_URL not set)")
	}

	// ──── Step 4: AI Provider ────
	ai, closeAI, err := newTextGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAI()

	// ──── Step 5: Services and Worker Pool ────
	workerPool := worker.NewPool(queue, st.jobs, publisher, cfg.WorkerCount)
	facade := services.NewFacade(st.repos, services.FacadeConfig{
		AI:                ai,
		Scheduler:         workerPool,
		Publisher:         publisher,
		PresenceTTL:       cfg.PresenceTTL,
		LockLease:         cfg.QuizLockLease,
		GenerationTimeout: cfg.QuizGenerationTimeout,
		WebhookSecret:     cfg.TranscriptWebhookSecret,
	})
	if cfg.TranscriptWebhookSecret == "" {
		log.Println("! TRANSCRIPT_WEBHOOK_SECRET not set, transcript webhook will reject every call")
	}

	workerPool.Start(facade.Questions.HandleJob)
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 6: Start HTTP Server ────
	r, stopLimiters := router.New(
		handlers.NewSessionHandler(facade.Sessions, services.NewSlideExtractor()),
		handlers.NewPresenceHandler(facade.Presence, facade.LostSignals),
		handlers.NewQuizHandler(facade.Quizzes),
		handlers.NewQuestionHandler(facade.Questions),
		handlers.NewTranscriptHandler(facade.Transcript),
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.QuizGenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		stopLimiters()
		workerPool.Stop()
	}()

	log.Printf("✓ WaitWhat Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws?session_id=<id>", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	<-shutdownDone
	return nil
}
