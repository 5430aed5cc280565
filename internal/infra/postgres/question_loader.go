package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"butterfly-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads question sets from Postgres, options stored as JSONB.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) QuestionsFor(ctx context.Context, d domain.Difficulty) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT question_text, options, correct_answer_index, reference
		FROM questions WHERE difficulty = $1 ORDER BY id`, string(d))
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			rawOpts []byte
		)
		if err := rows.Scan(&q.QuestionText, &rawOpts, &q.CorrectAnswerIndex, &q.Reference); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawOpts, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		q.Difficulty = d
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrQuestionSetNotFound
	}
	return questions, nil
}
