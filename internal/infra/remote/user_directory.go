// Package remote implements the user directory against the REST profile
// service. The client holds no user state beyond what each call returns;
// high-score monotonicity is the server's responsibility in this model.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"butterfly-quiz-service/internal/domain"
)

// remoteUser is the wire shape of a user as the profile service sends it.
// It is mapped into the canonical domain.User at this boundary.
type remoteUser struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  remoteUser `json:"user"`
}

type profileResponse struct {
	User       remoteUser              `json:"user"`
	HighScores []domain.HighScoreEntry `json:"high_scores"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// UserDirectory is the remote-backed sourcing model of app.UserDirectory.
type UserDirectory struct {
	baseURL string
	client  *http.Client
}

func NewUserDirectory(baseURL string, client *http.Client) *UserDirectory {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &UserDirectory{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (d *UserDirectory) Authenticate(ctx context.Context, username, password string) (domain.User, string, error) {
	var resp authResponse
	err := d.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &resp, map[int]error{http.StatusUnauthorized: domain.ErrInvalidCredentials})
	if err != nil {
		return domain.User{}, "", err
	}
	return mapUser(resp.User, nil), resp.Token, nil
}

func (d *UserDirectory) Register(ctx context.Context, username, password string) (domain.User, string, error) {
	var resp authResponse
	err := d.do(ctx, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": password,
	}, &resp, map[int]error{http.StatusConflict: domain.ErrDuplicateUsername})
	if err != nil {
		return domain.User{}, "", err
	}
	return mapUser(resp.User, nil), resp.Token, nil
}

func (d *UserDirectory) Profile(ctx context.Context, token string) (domain.User, error) {
	var resp profileResponse
	err := d.do(ctx, http.MethodGet, "/api/profile", token, nil, &resp,
		map[int]error{http.StatusUnauthorized: domain.ErrTokenInvalid})
	if err != nil {
		return domain.User{}, err
	}
	return mapUser(resp.User, resp.HighScores), nil
}

func (d *UserDirectory) SubmitResult(ctx context.Context, token string, diff domain.Difficulty, score int) (domain.User, error) {
	var resp profileResponse
	err := d.do(ctx, http.MethodPost, "/api/scores", token, map[string]any{
		"difficulty": diff,
		"score":      score,
	}, &resp, map[int]error{http.StatusUnauthorized: domain.ErrTokenInvalid})
	if err != nil {
		return domain.User{}, err
	}
	return mapUser(resp.User, resp.HighScores), nil
}

// do issues one request and decodes the JSON response. statusErrs maps
// well-known status codes onto sentinel errors; any other non-2xx status
// becomes a generic server error carrying the response message.
func (d *UserDirectory) do(ctx context.Context, method, path, token string, body any, out any, statusErrs map[int]error) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if sentinel, ok := statusErrs[resp.StatusCode]; ok {
			return sentinel
		}
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapUser normalizes the remote shape into the canonical User. Missing
// high scores default to zero pending the next profile fetch.
func mapUser(u remoteUser, scores []domain.HighScoreEntry) domain.User {
	hs := domain.NewHighScores()
	for _, entry := range scores {
		if _, err := domain.ParseDifficulty(string(entry.Difficulty)); err == nil {
			hs[entry.Difficulty] = entry.Score
		}
	}
	return domain.User{
		ID:         u.ID,
		Username:   domain.CanonicalUsername(u.Username),
		HighScores: hs,
	}
}
