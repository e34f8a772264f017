package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"speaking-assessment-service/internal/app"
	"speaking-assessment-service/internal/config"
	"speaking-assessment-service/internal/domain"
	"speaking-assessment-service/internal/infra/aggregator"
	"speaking-assessment-service/internal/infra/memory"
	pgloader "speaking-assessment-service/internal/infra/postgres"
	redisstore "speaking-assessment-service/internal/infra/redis"
	"speaking-assessment-service/internal/infra/sqlite"
	"speaking-assessment-service/internal/logger"
	transport "speaking-assessment-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
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
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	bank, err := questionBank(cfg, redisClient, pool)
	if err != nil {
		return err
	}

	store, closeStore, err := sessionStore(cfg, redisClient)
	if err != nil {
		return err
	}
	defer closeStore()

	var sink app.ResultSink
	if cfg.Reporter.URL != "" {
		sink = aggregator.NewClient(cfg.Reporter.URL, nil)
	}
	reporter := app.NewResultsReporter(sink, store, cfg.Reporter.Timeout, log)

	service := app.NewSessionService(store, bank, memory.NewTrackerRegistry(), reporter, app.Options{
		Budget: cfg.Session.Budget,
		Tick:   cfg.Session.Tick,
		Logger: log,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service, log).ServeWS)
	transport.NewResultsHandler(service, log).Register(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting assessment service",
			zap.String("port", finalPort),
			zap.String("store", cfg.Store.Driver),
			zap.Duration("budget", cfg.Session.Budget),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	service.Shutdown(shutdownCtx)
	return err
}

func questionBank(cfg config.Config, client *redis.Client, pool *pgxpool.Pool) (app.QuestionBank, error) {
	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	switch {
	case cfg.Questions.File != "":
		fileLoader, err := memory.NewFileQuestionLoader(cfg.Questions.File)
		if err != nil {
			return nil, err
		}
		loader = fileLoader
	case pool != nil:
		loader = pgloader.NewQuestionLoader(pool)
	}

	if client != nil {
		return redisstore.NewQuestionRepository(client, loader, cfg.Questions.TTL), nil
	}
	return memory.NewQuestionRepository(loader, cfg.Questions.TTL), nil
}

func sessionStore(cfg config.Config, client *redis.Client) (app.SessionStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreRedis:
		return redisstore.NewSessionStore(client, cfg.Redis.TTL), func() {}, nil
	case config.StoreSQLite:
		store, err := sqlite.NewSessionStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.StoreMemory, "":
		return memory.NewSessionStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// sampleQuestions is served when neither a bank file nor Postgres is configured.
func sampleQuestions() map[string]map[string][]domain.Question {
	return map[string]map[string][]domain.Question{
		"unit-1": {
			"beginner": {
				domain.MultipleChoice{
					QuestionBase: domain.QuestionBase{ID: "q1", Prompt: "Which word means a young cat?", Explanation: "A kitten is a young cat."},
					Options:      []string{"puppy", "kitten", "calf"},
					CorrectIndex: 1,
				},
				domain.Dictation{
					QuestionBase: domain.QuestionBase{ID: "q2", Prompt: "Type the word you hear.", Explanation: "The word was apple."},
					Answer:       "apple",
				},
				domain.Recording{
					QuestionBase: domain.QuestionBase{ID: "q3", Prompt: "Say the word: banana", Explanation: "Stress the second syllable."},
					Answer:       "banana",
				},
				domain.SentenceRecording{
					QuestionBase: domain.QuestionBase{ID: "q4", Prompt: "Read the sentence, then pick the meaning of the highlighted word.", Explanation: "Big means large."},
					Sentence:     "The dog has a big red ball",
					Translation:  "Le chien a une grosse balle rouge",
					Word:         "big",
					Options:      []string{"small", "large", "fast"},
					CorrectIndex: 1,
				},
			},
		},
	}
}
