package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"butterfly-quiz-service/internal/app"
	"butterfly-quiz-service/internal/auth"
	"butterfly-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Messages surfaced to the presentation layer; clients show them inline
// next to the form that failed.
const (
	msgInvalidCredentials = "Invalid username or password."
	msgDuplicateUsername  = "Username is already taken or registration failed."
)

// API exposes the auth and quiz use cases over REST.
type API struct {
	directory app.UserDirectory
	questions app.QuestionRepository
	quiz      *app.QuizService
	feed      *app.ScoreFeed
	log       *logrus.Logger
	now       func() time.Time
}

func NewAPI(directory app.UserDirectory, questions app.QuestionRepository, quiz *app.QuizService, feed *app.ScoreFeed, log *logrus.Logger) *API {
	if log == nil {
		log = logrus.New()
	}
	return &API{directory: directory, questions: questions, quiz: quiz, feed: feed, log: log, now: time.Now}
}

// Router assembles all routes; tokens guards everything under /api and /ws.
func (a *API) Router(tokens *auth.TokenManager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(tokens))

		r.Get("/api/profile", a.handleProfile)
		r.Get("/api/questions/{difficulty}", a.handleQuestions)
		r.Get("/api/leaderboard", a.handleLeaderboard)
		r.Post("/api/scores", a.handleSubmitScore)

		r.Route("/api/quiz", func(r chi.Router) {
			r.Post("/start", a.handleQuizStart)
			r.Post("/answer", a.handleQuizAnswer)
			r.Post("/advance", a.handleQuizAdvance)
			r.Post("/pause", a.handleQuizPause)
			r.Get("/progress", a.handleQuizProgress)
		})
	})

	// Websocket clients authenticate in-band; browsers cannot set headers here.
	r.Get("/ws", NewScoreStream(a.feed, a.directory, a.log).ServeWS)

	return r
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userPayload struct {
	ID       int    `json:"id,omitempty"`
	Username string `json:"username"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type profileResponse struct {
	User       userPayload             `json:"user"`
	HighScores []domain.HighScoreEntry `json:"high_scores"`
}

type progressResponse struct {
	Progress        domain.QuizProgress `json:"progress"`
	CurrentQuestion *domain.Question    `json:"current_question,omitempty"`
	Finished        bool                `json:"finished,omitempty"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := a.directory.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: toUserPayload(user)})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := a.directory.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: toUserPayload(user)})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := a.directory.Profile(r.Context(), TokenFromContext(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(user))
}

func (a *API) handleQuestions(w http.ResponseWriter, r *http.Request) {
	difficulty, err := domain.ParseDifficulty(chi.URLParam(r, "difficulty"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid difficulty level")
		return
	}

	questions, err := a.questions.QuestionsFor(r.Context(), difficulty)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	user, err := a.directory.Profile(r.Context(), TokenFromContext(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.NewLeaderboard(user, a.now()))
}

func (a *API) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Difficulty string `json:"difficulty"`
		Score      int    `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	difficulty, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil || req.Score < 0 {
		writeError(w, http.StatusBadRequest, "invalid difficulty or score")
		return
	}

	user, err := a.directory.SubmitResult(r.Context(), TokenFromContext(r.Context()), difficulty, req.Score)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	if a.feed != nil {
		a.feed.Publish(user)
	}
	writeJSON(w, http.StatusOK, toProfileResponse(user))
}

func (a *API) handleQuizStart(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromContext(r.Context())

	var req struct {
		Difficulty string `json:"difficulty"`
		Resume     bool   `json:"resume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	difficulty, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid difficulty level")
		return
	}

	if _, err := a.quiz.Start(r.Context(), username, difficulty, req.Resume); err != nil {
		a.respondError(w, r, err)
		return
	}
	a.writeProgress(w, r, username)
}

func (a *API) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromContext(r.Context())

	var req struct {
		OptionIndex int `json:"option_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	progress, err := a.quiz.SubmitAnswer(r.Context(), username, req.OptionIndex)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Progress: progress})
}

func (a *API) handleQuizAdvance(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromContext(r.Context())

	progress, finished, err := a.quiz.Advance(r.Context(), username)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Progress: progress, Finished: finished})
}

func (a *API) handleQuizPause(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromContext(r.Context())

	progress, err := a.quiz.Pause(r.Context(), username)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Progress: progress})
}

func (a *API) handleQuizProgress(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromContext(r.Context())
	a.writeProgress(w, r, username)
}

func (a *API) writeProgress(w http.ResponseWriter, r *http.Request, username string) {
	progress, question, err := a.quiz.Progress(r.Context(), username)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Progress: progress, CurrentQuestion: question})
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, domain.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, msgDuplicateUsername)
	case errors.Is(err, domain.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, domain.ErrNoActiveQuiz):
		writeError(w, http.StatusNotFound, "no active quiz attempt")
	case errors.Is(err, domain.ErrQuestionSetNotFound):
		writeError(w, http.StatusNotFound, "no questions for this difficulty")
	case errors.Is(err, domain.ErrInvalidDifficulty):
		writeError(w, http.StatusBadRequest, "invalid difficulty level")
	case errors.Is(err, domain.ErrQuizFinished),
		errors.Is(err, domain.ErrAnswerAlreadyRecorded),
		errors.Is(err, domain.ErrAnswerRequired),
		errors.Is(err, domain.ErrInvalidOption):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		a.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toUserPayload(u domain.User) userPayload {
	return userPayload{ID: u.ID, Username: u.Username}
}

func toProfileResponse(u domain.User) profileResponse {
	entries := make([]domain.HighScoreEntry, 0, len(domain.Difficulties()))
	for _, d := range domain.Difficulties() {
		entries = append(entries, domain.HighScoreEntry{Difficulty: d, Score: u.HighScores[d]})
	}
	return profileResponse{User: toUserPayload(u), HighScores: entries}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
