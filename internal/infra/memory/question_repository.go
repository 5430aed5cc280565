package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"butterfly-quiz-service/internal/app"
	"butterfly-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionRepository caches question sets with TTL to avoid repeated hits on
// the backing source.
type QuestionRepository struct {
	source app.QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[domain.Difficulty]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(source app.QuestionSource, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.Difficulty]cachedSet),
	}
}

func (r *QuestionRepository) QuestionsFor(ctx context.Context, d domain.Difficulty) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[d]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(string(d), func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[d]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.source.QuestionsFor(ctx, d)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[d] = cachedSet{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// StaticQuestionSource serves question sets from an in-memory map (useful for
// tests and demos without Postgres).
type StaticQuestionSource struct {
	sets map[domain.Difficulty][]domain.Question
}

func NewStaticQuestionSource(sets map[domain.Difficulty][]domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{sets: sets}
}

func (s *StaticQuestionSource) QuestionsFor(_ context.Context, d domain.Difficulty) ([]domain.Question, error) {
	if questions, ok := s.sets[d]; ok {
		return questions, nil
	}
	return nil, domain.ErrQuestionSetNotFound
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
