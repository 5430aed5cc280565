package app

import (
	"context"

	"butterfly-quiz-service/internal/domain"
)

// QuestionSource loads the ordered question set for a difficulty from a
// backing store (static map, Postgres, remote API).
type QuestionSource interface {
	QuestionsFor(ctx context.Context, d domain.Difficulty) ([]domain.Question, error)
}

// QuestionRepository is the cached read path the quiz engine consumes.
// Question sets are immutable at runtime, so aggressive caching is safe.
type QuestionRepository interface {
	QuestionsFor(ctx context.Context, d domain.Difficulty) ([]domain.Question, error)
}
