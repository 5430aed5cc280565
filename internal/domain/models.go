package domain

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty selects one of the fixed question sets.
type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyAdvance Difficulty = "advance"
)

// Difficulties returns all levels in display order.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyAdvance}
}

// ParseDifficulty validates a raw difficulty string.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyAdvance:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, raw)
	}
}

// HighScores maps each difficulty to the best score ever achieved.
type HighScores map[Difficulty]int

// NewHighScores returns a zeroed score table covering every difficulty.
func NewHighScores() HighScores {
	hs := make(HighScores, len(Difficulties()))
	for _, d := range Difficulties() {
		hs[d] = 0
	}
	return hs
}

// Record stores score for d only when it beats the existing value and
// reports whether the table changed.
func (hs HighScores) Record(d Difficulty, score int) bool {
	if score <= hs[d] {
		return false
	}
	hs[d] = score
	return true
}

// Total sums the best scores across all difficulties.
func (hs HighScores) Total() int {
	total := 0
	for _, score := range hs {
		total += score
	}
	return total
}

// Clone returns an independent copy of the table.
func (hs HighScores) Clone() HighScores {
	out := make(HighScores, len(hs))
	for d, score := range hs {
		out[d] = score
	}
	return out
}

// User is the canonical user shape shared by the local and remote sourcing
// models. Identity is the lowercase username.
type User struct {
	ID         int        `json:"id,omitempty"`
	Username   string     `json:"username"`
	HighScores HighScores `json:"highScores"`
}

// CanonicalUsername normalizes a username into its identity key.
func CanonicalUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Question is one immutable multiple-choice question.
type Question struct {
	QuestionText       string     `json:"questionText"`
	Options            []string   `json:"options"`
	CorrectAnswerIndex int        `json:"correctAnswerIndex"`
	Reference          string     `json:"reference"`
	Difficulty         Difficulty `json:"difficulty"`
}

// CorrectAnswer returns the display text of the correct option.
func (q Question) CorrectAnswer() string {
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectAnswerIndex]
}

// UserAnswer is one entry of the append-only answer log.
type UserAnswer struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Reference     string `json:"reference"`
}

// QuizProgress is the serializable state of one in-flight quiz attempt.
// While playing, len(UserAnswers) equals CurrentQuestionIndex before an
// answer is recorded and CurrentQuestionIndex+1 after.
type QuizProgress struct {
	Difficulty           Difficulty   `json:"difficulty"`
	CurrentQuestionIndex int          `json:"currentQuestionIndex"`
	Score                int          `json:"score"`
	UserAnswers          []UserAnswer `json:"userAnswers"`
}

// NewQuizProgress returns a fresh attempt for d.
func NewQuizProgress(d Difficulty) QuizProgress {
	return QuizProgress{Difficulty: d, UserAnswers: []UserAnswer{}}
}

// Answered reports whether the current question already has an answer logged.
func (p QuizProgress) Answered() bool {
	return len(p.UserAnswers) == p.CurrentQuestionIndex+1
}

// Clone returns a deep copy so callers can treat snapshots as immutable.
func (p QuizProgress) Clone() QuizProgress {
	out := p
	out.UserAnswers = make([]UserAnswer, len(p.UserAnswers))
	copy(out.UserAnswers, p.UserAnswers)
	return out
}

// HighScoreEntry is the wire form of one per-difficulty best score.
type HighScoreEntry struct {
	Difficulty Difficulty `json:"difficulty"`
	Score      int        `json:"score"`
}

// Leaderboard is the score view for the signed-in user. The system tracks a
// single user per client, so there is exactly one row.
type Leaderboard struct {
	Username  string     `json:"username"`
	Scores    HighScores `json:"scores"`
	Total     int        `json:"total"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewLeaderboard builds the leaderboard snapshot for u.
func NewLeaderboard(u User, now time.Time) Leaderboard {
	scores := u.HighScores
	if scores == nil {
		scores = NewHighScores()
	}
	return Leaderboard{
		Username:  u.Username,
		Scores:    scores.Clone(),
		Total:     scores.Total(),
		UpdatedAt: now,
	}
}
