package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"butterfly-quiz-service/internal/app"
	"butterfly-quiz-service/internal/auth"
	"butterfly-quiz-service/internal/domain"
	"butterfly-quiz-service/internal/infra/local"
	"butterfly-quiz-service/internal/infra/memory"
	"butterfly-quiz-service/internal/logging"
)

func TestAuthEndpoints(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	var registered authResponse
	status := call(t, server, http.MethodPost, "/auth/register", "",
		credentialsRequest{Username: "Alice", Password: "s3cret"}, &registered)
	if status != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", status)
	}
	if registered.Token == "" || registered.User.Username != "alice" {
		t.Fatalf("unexpected register response: %+v", registered)
	}

	var apiErr map[string]string
	status = call(t, server, http.MethodPost, "/auth/register", "",
		credentialsRequest{Username: "ALICE", Password: "other"}, &apiErr)
	if status != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", status)
	}
	if apiErr["error"] != msgDuplicateUsername {
		t.Fatalf("expected duplicate message, got %q", apiErr["error"])
	}

	status = call(t, server, http.MethodPost, "/auth/login", "",
		credentialsRequest{Username: "alice", Password: "wrong"}, &apiErr)
	if status != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", status)
	}
	if apiErr["error"] != msgInvalidCredentials {
		t.Fatalf("expected credentials message, got %q", apiErr["error"])
	}

	var loggedIn authResponse
	status = call(t, server, http.MethodPost, "/auth/login", "",
		credentialsRequest{Username: "alice", Password: "s3cret"}, &loggedIn)
	if status != http.StatusOK || loggedIn.Token == "" {
		t.Fatalf("login: expected 200 with token, got %d %+v", status, loggedIn)
	}

	if status = call(t, server, http.MethodGet, "/api/profile", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("profile without token: expected 401, got %d", status)
	}

	var profile profileResponse
	status = call(t, server, http.MethodGet, "/api/profile", loggedIn.Token, nil, &profile)
	if status != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", status)
	}
	if profile.User.Username != "alice" || len(profile.HighScores) != len(domain.Difficulties()) {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestQuestionsEndpoint(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()
	token := registerUser(t, server, "alice")

	if status := call(t, server, http.MethodGet, "/api/questions/impossible", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown difficulty, got %d", status)
	}

	var questions []domain.Question
	status := call(t, server, http.MethodGet, "/api/questions/easy", token, nil, &questions)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 easy questions, got %d", len(questions))
	}
}

func TestQuizFlowOverREST(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()
	token := registerUser(t, server, "alice")

	var started progressResponse
	status := call(t, server, http.MethodPost, "/api/quiz/start", token,
		map[string]any{"difficulty": "easy", "resume": true}, &started)
	if status != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", status)
	}
	if started.CurrentQuestion == nil || started.Progress.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected start response: %+v", started)
	}

	// correct, wrong, correct against the fixed answer key.
	var last progressResponse
	for i, option := range []int{1, 0, 1} {
		var answered progressResponse
		status = call(t, server, http.MethodPost, "/api/quiz/answer", token,
			map[string]any{"option_index": option}, &answered)
		if status != http.StatusOK {
			t.Fatalf("answer %d: expected 200, got %d", i, status)
		}
		status = call(t, server, http.MethodPost, "/api/quiz/advance", token, nil, &last)
		if status != http.StatusOK {
			t.Fatalf("advance %d: expected 200, got %d", i, status)
		}
	}
	if !last.Finished || last.Progress.Score != 2 {
		t.Fatalf("expected finished with score 2, got %+v", last)
	}

	var profile profileResponse
	if status = call(t, server, http.MethodGet, "/api/profile", token, nil, &profile); status != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", status)
	}
	for _, entry := range profile.HighScores {
		if entry.Difficulty == domain.DifficultyEasy && entry.Score != 2 {
			t.Fatalf("expected easy high score 2, got %d", entry.Score)
		}
	}

	// The finished attempt leaves no progress behind.
	if status = call(t, server, http.MethodGet, "/api/quiz/progress", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after finishing, got %d", status)
	}
}

func TestSubmitScoreKeepsBest(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()
	token := registerUser(t, server, "alice")

	var profile profileResponse
	status := call(t, server, http.MethodPost, "/api/scores", token,
		map[string]any{"difficulty": "medium", "score": 5}, &profile)
	if status != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d", status)
	}

	status = call(t, server, http.MethodPost, "/api/scores", token,
		map[string]any{"difficulty": "medium", "score": 2}, &profile)
	if status != http.StatusOK {
		t.Fatalf("resubmit: expected 200, got %d", status)
	}
	for _, entry := range profile.HighScores {
		if entry.Difficulty == domain.DifficultyMedium && entry.Score != 5 {
			t.Fatalf("expected medium high score to stay 5, got %d", entry.Score)
		}
	}

	if status = call(t, server, http.MethodPost, "/api/scores", token,
		map[string]any{"difficulty": "medium", "score": -1}, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative score, got %d", status)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.NewKVStore()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	directory := local.NewUserDirectory(store, tokens)
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionSource(sampleQuestionSets()), time.Minute)
	feed := app.NewScoreFeed()
	quiz := app.NewQuizService(store, questions, directory, feed, logging.Discard())
	api := NewAPI(directory, questions, quiz, feed, logging.Discard())

	return httptest.NewServer(api.Router(tokens))
}

func registerUser(t *testing.T, server *httptest.Server, username string) string {
	t.Helper()
	var resp authResponse
	status := call(t, server, http.MethodPost, "/auth/register", "",
		credentialsRequest{Username: username, Password: "pw"}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", username, status)
	}
	return resp.Token
}

func call(t *testing.T, server *httptest.Server, method, path, token string, body, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func sampleQuestionSets() map[domain.Difficulty][]domain.Question {
	sets := make(map[domain.Difficulty][]domain.Question)
	for _, d := range domain.Difficulties() {
		for i := 0; i < 3; i++ {
			sets[d] = append(sets[d], domain.Question{
				QuestionText:       "Select the right option",
				Options:            []string{"Wrong", "Right", "Also wrong"},
				CorrectAnswerIndex: 1,
				Reference:          "The second option is the right one.",
				Difficulty:         d,
			})
		}
	}
	return sets
}
