package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"butterfly-quiz-service/internal/domain"
)

// QuestionSource fetches question sets from the REST API.
type QuestionSource struct {
	baseURL string
	client  *http.Client
	token   func() string
}

// NewQuestionSource builds a source for baseURL. token supplies the current
// bearer token per request and may return "" before sign-in.
func NewQuestionSource(baseURL string, client *http.Client, token func() string) *QuestionSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &QuestionSource{baseURL: strings.TrimRight(baseURL, "/"), client: client, token: token}
}

func (s *QuestionSource) QuestionsFor(ctx context.Context, d domain.Difficulty) ([]domain.Question, error) {
	url := fmt.Sprintf("%s/api/questions/%s", s.baseURL, d)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token := s.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.ErrQuestionSetNotFound
	case http.StatusUnauthorized:
		return nil, domain.ErrTokenInvalid
	default:
		return nil, fmt.Errorf("fetch questions: status %d", resp.StatusCode)
	}

	var questions []domain.Question
	if err := json.NewDecoder(resp.Body).Decode(&questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrQuestionSetNotFound
	}
	return questions, nil
}
