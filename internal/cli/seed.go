package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"butterfly-quiz-service/internal/config"
	"butterfly-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads the built-in question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the questions table with the built-in question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	var existing int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM questions`).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		log.Printf("questions table already has %d rows, skipping seed", existing)
		return nil
	}

	inserted := 0
	for _, d := range domain.Difficulties() {
		for _, q := range builtinQuestionSets()[d] {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return err
			}
			_, err = pool.Exec(ctx, `
				INSERT INTO questions (question_text, options, correct_answer_index, reference, difficulty)
				VALUES ($1, $2, $3, $4, $5)`,
				q.QuestionText, options, q.CorrectAnswerIndex, q.Reference, string(d))
			if err != nil {
				return err
			}
			inserted++
		}
	}
	log.Printf("seeded %d questions", inserted)
	return nil
}
