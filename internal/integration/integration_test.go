package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"butterfly-quiz-service/internal/app"
	"butterfly-quiz-service/internal/auth"
	"butterfly-quiz-service/internal/domain"
	"butterfly-quiz-service/internal/infra/local"
	pgloader "butterfly-quiz-service/internal/infra/postgres"
	pgmigrations "butterfly-quiz-service/internal/infra/postgres/migrations"
	infraredis "butterfly-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	store := infraredis.NewKVStore(redisClient, 0)
	questions := infraredis.NewQuestionRepository(redisClient, pgloader.NewQuestionLoader(pool), 5*time.Minute)
	tokens := auth.NewTokenManager("integration-secret", time.Hour)
	directory := local.NewUserDirectory(store, tokens)
	service := app.NewQuizService(store, questions, directory, app.NewScoreFeed(), nil)

	user, token, err := directory.Register(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := service.Start(ctx, "alice", domain.DifficultyEasy, false); err != nil {
		t.Fatalf("start: %v", err)
	}

	// correct, wrong: 1 point over the two seeded questions.
	var finished bool
	for i, option := range []int{1, 0} {
		if _, err := service.SubmitAnswer(ctx, "alice", option); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if _, finished, err = service.Advance(ctx, "alice"); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	if !finished {
		t.Fatalf("expected quiz to finish")
	}

	profile, err := directory.Profile(ctx, token)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.HighScores[domain.DifficultyEasy] != 1 {
		t.Fatalf("expected easy high score 1, got %+v", profile.HighScores)
	}

	if _, err := store.Get(ctx, app.ProgressKey("alice")); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected finished progress removed, got %v", err)
	}
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

func seedQuestions(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			t.Fatalf("marshal options: %v", err)
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO questions (question_text, options, correct_answer_index, reference, difficulty)
			VALUES (?, ?::jsonb, ?, ?, ?)`,
			q.QuestionText, string(options), q.CorrectAnswerIndex, q.Reference, string(q.Difficulty)); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			QuestionText:       "What is 2 + 2?",
			Options:            []string{"3", "4", "5"},
			CorrectAnswerIndex: 1,
			Reference:          "Basic arithmetic.",
			Difficulty:         domain.DifficultyEasy,
		},
		{
			QuestionText:       "What is 3 + 3?",
			Options:            []string{"5", "6", "7"},
			CorrectAnswerIndex: 1,
			Reference:          "Basic arithmetic.",
			Difficulty:         domain.DifficultyEasy,
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
