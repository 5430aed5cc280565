package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"butterfly-quiz-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// HighScoreRecorder receives the final score when an attempt is finalized.
// The directory (or the session manager in client mode) enforces that a
// stored high score never decreases.
type HighScoreRecorder interface {
	RecordHighScore(ctx context.Context, username string, d domain.Difficulty, score int) (domain.User, error)
}

// QuizService drives one quiz attempt per user from start to finish, with
// write-through persistence so an interrupted session never loses more than
// the in-flight answer.
type QuizService struct {
	store     KVStore
	questions QuestionRepository
	scores    HighScoreRecorder
	feed      *ScoreFeed
	log       *logrus.Logger
}

func NewQuizService(store KVStore, questions QuestionRepository, scores HighScoreRecorder, feed *ScoreFeed, log *logrus.Logger) *QuizService {
	if log == nil {
		log = logrus.New()
	}
	return &QuizService{store: store, questions: questions, scores: scores, feed: feed, log: log}
}

// Start begins or resumes an attempt for the user at the given difficulty.
// A persisted record is resumed verbatim when resume is true, it parses, and
// its difficulty matches; anything else falls back to a fresh attempt.
func (s *QuizService) Start(ctx context.Context, username string, d domain.Difficulty, resume bool) (domain.QuizProgress, error) {
	questions, err := s.questions.QuestionsFor(ctx, d)
	if err != nil {
		return domain.QuizProgress{}, fmt.Errorf("start quiz: %w", err)
	}

	if resume {
		if saved, ok := s.loadProgress(ctx, username); ok && saved.Difficulty == d && saved.CurrentQuestionIndex <= len(questions) {
			return saved, nil
		}
	}

	progress := domain.NewQuizProgress(d)
	if err := s.saveProgress(ctx, username, progress); err != nil {
		return domain.QuizProgress{}, err
	}
	return progress, nil
}

// SubmitAnswer records the selected option for the current question, scoring
// one point when it matches the correct index, and persists the new state.
func (s *QuizService) SubmitAnswer(ctx context.Context, username string, optionIndex int) (domain.QuizProgress, error) {
	progress, ok := s.loadProgress(ctx, username)
	if !ok {
		return domain.QuizProgress{}, domain.ErrNoActiveQuiz
	}

	questions, err := s.questions.QuestionsFor(ctx, progress.Difficulty)
	if err != nil {
		return domain.QuizProgress{}, fmt.Errorf("submit answer: %w", err)
	}
	if progress.CurrentQuestionIndex >= len(questions) {
		return domain.QuizProgress{}, domain.ErrQuizFinished
	}
	if progress.Answered() {
		return domain.QuizProgress{}, domain.ErrAnswerAlreadyRecorded
	}

	question := questions[progress.CurrentQuestionIndex]
	if optionIndex < 0 || optionIndex >= len(question.Options) {
		return domain.QuizProgress{}, domain.ErrInvalidOption
	}

	correct := optionIndex == question.CorrectAnswerIndex
	progress.UserAnswers = append(progress.UserAnswers, domain.UserAnswer{
		Question:      question.QuestionText,
		UserAnswer:    question.Options[optionIndex],
		CorrectAnswer: question.CorrectAnswer(),
		IsCorrect:     correct,
		Reference:     question.Reference,
	})
	if correct {
		progress.Score++
	}

	if err := s.saveProgress(ctx, username, progress); err != nil {
		return domain.QuizProgress{}, err
	}
	return progress, nil
}

// Advance moves to the next question, or finalizes the attempt when the
// current question was the last one: the high score is recorded and the
// persisted record removed. An answer must be recorded before advancing.
func (s *QuizService) Advance(ctx context.Context, username string) (domain.QuizProgress, bool, error) {
	progress, ok := s.loadProgress(ctx, username)
	if !ok {
		return domain.QuizProgress{}, false, domain.ErrNoActiveQuiz
	}

	questions, err := s.questions.QuestionsFor(ctx, progress.Difficulty)
	if err != nil {
		return domain.QuizProgress{}, false, fmt.Errorf("advance: %w", err)
	}
	if progress.CurrentQuestionIndex >= len(questions) {
		return domain.QuizProgress{}, false, domain.ErrQuizFinished
	}
	if !progress.Answered() {
		return domain.QuizProgress{}, false, domain.ErrAnswerRequired
	}

	if progress.CurrentQuestionIndex+1 < len(questions) {
		progress.CurrentQuestionIndex++
		if err := s.saveProgress(ctx, username, progress); err != nil {
			return domain.QuizProgress{}, false, err
		}
		return progress, false, nil
	}

	user, err := s.scores.RecordHighScore(ctx, username, progress.Difficulty, progress.Score)
	if err != nil {
		// Progress stays persisted so the caller can retry finalization.
		return domain.QuizProgress{}, false, fmt.Errorf("record high score: %w", err)
	}
	if err := s.store.Delete(ctx, ProgressKey(username)); err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		s.log.WithError(err).Warn("failed to remove finished quiz progress")
	}
	if s.feed != nil {
		s.feed.Publish(user)
	}
	s.log.WithFields(logrus.Fields{
		"username":   domain.CanonicalUsername(username),
		"difficulty": progress.Difficulty,
		"score":      progress.Score,
	}).Info("quiz finished")
	return progress, true, nil
}

// Pause leaves the attempt as persisted; it only hands the caller the
// snapshot to return to later.
func (s *QuizService) Pause(ctx context.Context, username string) (domain.QuizProgress, error) {
	progress, ok := s.loadProgress(ctx, username)
	if !ok {
		return domain.QuizProgress{}, domain.ErrNoActiveQuiz
	}
	return progress, nil
}

// Progress returns the persisted snapshot plus the question it is waiting on
// (nil once the attempt is past its last question).
func (s *QuizService) Progress(ctx context.Context, username string) (domain.QuizProgress, *domain.Question, error) {
	progress, ok := s.loadProgress(ctx, username)
	if !ok {
		return domain.QuizProgress{}, nil, domain.ErrNoActiveQuiz
	}

	questions, err := s.questions.QuestionsFor(ctx, progress.Difficulty)
	if err != nil {
		return domain.QuizProgress{}, nil, fmt.Errorf("progress: %w", err)
	}
	if progress.CurrentQuestionIndex >= len(questions) {
		return progress, nil, nil
	}
	question := questions[progress.CurrentQuestionIndex]
	return progress, &question, nil
}

// loadProgress treats a missing or malformed record as absence; a corrupted
// payload must degrade to fresh-start semantics, never fail the session.
func (s *QuizService) loadProgress(ctx context.Context, username string) (domain.QuizProgress, bool) {
	raw, err := s.store.Get(ctx, ProgressKey(username))
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.log.WithError(err).Warn("failed to read quiz progress")
		}
		return domain.QuizProgress{}, false
	}

	var progress domain.QuizProgress
	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		s.log.WithError(err).Warn("discarding malformed quiz progress")
		return domain.QuizProgress{}, false
	}
	if _, err := domain.ParseDifficulty(string(progress.Difficulty)); err != nil {
		return domain.QuizProgress{}, false
	}
	if progress.CurrentQuestionIndex < 0 || progress.Score < 0 {
		return domain.QuizProgress{}, false
	}
	if n := len(progress.UserAnswers); n != progress.CurrentQuestionIndex && n != progress.CurrentQuestionIndex+1 {
		return domain.QuizProgress{}, false
	}
	if progress.UserAnswers == nil {
		progress.UserAnswers = []domain.UserAnswer{}
	}
	return progress, true
}

func (s *QuizService) saveProgress(ctx context.Context, username string, progress domain.QuizProgress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal quiz progress: %w", err)
	}
	if err := s.store.Set(ctx, ProgressKey(username), string(raw)); err != nil {
		return fmt.Errorf("persist quiz progress: %w", err)
	}
	return nil
}
