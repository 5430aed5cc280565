package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"butterfly-quiz-service/internal/domain"
	"butterfly-quiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	source := &countingSource{inner: memory.NewStaticQuestionSource(sampleSets())}
	repo := NewQuestionRepository(newClient(mr), source, time.Minute)

	questions, err := repo.QuestionsFor(ctx, domain.DifficultyEasy)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 2 || source.calls != 1 {
		t.Fatalf("expected 2 questions from one source call, got %d questions calls=%d", len(questions), source.calls)
	}
	if !mr.Exists("quizapp:questions:easy") {
		t.Fatalf("expected question set cached in redis")
	}

	// Second call hits the cache, source not touched again.
	if _, err := repo.QuestionsFor(ctx, domain.DifficultyEasy); err != nil {
		t.Fatalf("cached questions: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}

	if _, err := repo.QuestionsFor(ctx, domain.DifficultyAdvance); !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected ErrQuestionSetNotFound, got %v", err)
	}
}

type countingSource struct {
	inner *memory.StaticQuestionSource
	calls int
}

func (s *countingSource) QuestionsFor(ctx context.Context, d domain.Difficulty) ([]domain.Question, error) {
	s.calls++
	return s.inner.QuestionsFor(ctx, d)
}

func sampleSets() map[domain.Difficulty][]domain.Question {
	return map[domain.Difficulty][]domain.Question{
		domain.DifficultyEasy: {
			{
				QuestionText:       "What is 2 + 2?",
				Options:            []string{"3", "4", "5"},
				CorrectAnswerIndex: 1,
				Difficulty:         domain.DifficultyEasy,
			},
			{
				QuestionText:       "What is 3 + 3?",
				Options:            []string{"5", "6", "7"},
				CorrectAnswerIndex: 1,
				Difficulty:         domain.DifficultyEasy,
			},
		},
	}
}
