package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"butterfly-quiz-service/internal/app"
	"butterfly-quiz-service/internal/auth"
	"butterfly-quiz-service/internal/config"
	"butterfly-quiz-service/internal/infra/memory"
	pgloader "butterfly-quiz-service/internal/infra/postgres"
	redisinfra "butterfly-quiz-service/internal/infra/redis"
	"butterfly-quiz-service/internal/logging"
	transport "butterfly-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"butterfly-quiz-service/internal/infra/local"
)

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
	log := logging.New(os.Getenv("LOG_LEVEL"))

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
	}

	var source app.QuestionSource = memory.NewStaticQuestionSource(builtinQuestionSets())
	if pool != nil {
		source = pgloader.NewQuestionLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, source, quizTTL)
	} else {
		questions = memory.NewQuestionRepository(source, quizTTL)
	}

	var store app.KVStore
	if redisClient != nil {
		// Sessions and progress must outlive the cache TTL; zero keeps them.
		store = redisinfra.NewKVStore(redisClient, 0)
	} else {
		store = memory.NewKVStore()
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	directory := local.NewUserDirectory(store, tokens)
	feed := app.NewScoreFeed()
	quizService := app.NewQuizService(store, questions, directory, feed, log)
	api := transport.NewAPI(directory, questions, quizService, feed, log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(tokens),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
