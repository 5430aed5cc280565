package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"butterfly-quiz-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// UserDirectory is the authoritative source of users and high scores.
// The local implementation keeps users in the key-value store and enforces
// score monotonicity in-process; the remote implementation fronts the REST
// profile service and leaves enforcement to the server.
type UserDirectory interface {
	Authenticate(ctx context.Context, username, password string) (domain.User, string, error)
	Register(ctx context.Context, username, password string) (domain.User, string, error)
	Profile(ctx context.Context, token string) (domain.User, error)
	SubmitResult(ctx context.Context, token string, d domain.Difficulty, score int) (domain.User, error)
}

// AuthService owns the single client session: the bearer token, the cached
// User, and their persistence across process restarts. At most one session
// is active at a time; all operations return definite success or failure.
type AuthService struct {
	store     KVStore
	directory UserDirectory
	feed      *ScoreFeed
	log       *logrus.Logger
	now       func() time.Time

	mu      sync.RWMutex
	current *domain.User
	token   string
}

func NewAuthService(store KVStore, directory UserDirectory, feed *ScoreFeed, log *logrus.Logger) *AuthService {
	if log == nil {
		log = logrus.New()
	}
	return &AuthService{store: store, directory: directory, feed: feed, log: log, now: time.Now}
}

// Login exchanges credentials for a session. Network and server failures are
// wrapped and returned, never panicked past this boundary. No retry.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.User, error) {
	user, token, err := s.directory.Authenticate(ctx, username, password)
	if err != nil {
		return domain.User{}, fmt.Errorf("login: %w", err)
	}
	if err := s.establish(ctx, user, token); err != nil {
		return domain.User{}, err
	}
	s.log.WithField("username", user.Username).Info("signed in")
	return user, nil
}

// Register creates a new account and establishes the session. A taken
// username (case-insensitive) surfaces as domain.ErrDuplicateUsername.
func (s *AuthService) Register(ctx context.Context, username, password string) (domain.User, error) {
	user, token, err := s.directory.Register(ctx, username, password)
	if err != nil {
		return domain.User{}, fmt.Errorf("register: %w", err)
	}
	if err := s.establish(ctx, user, token); err != nil {
		return domain.User{}, err
	}
	s.log.WithField("username", user.Username).Info("registered")
	return user, nil
}

// Logout clears the stored token and the in-memory session. Idempotent.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.token = ""
	s.mu.Unlock()

	for _, key := range []string{KeyAuthToken, KeyCurrentUser} {
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
			return fmt.Errorf("logout: %w", err)
		}
	}
	return nil
}

// RestoreSession validates any persisted token via a profile fetch. A failed
// fetch clears the token and reports no session; the failure is swallowed so
// the user simply lands on the login screen.
func (s *AuthService) RestoreSession(ctx context.Context) (domain.User, bool) {
	token, err := s.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return domain.User{}, false
	}

	user, err := s.directory.Profile(ctx, token)
	if err != nil {
		s.log.WithError(err).Info("stored token rejected, clearing session")
		_ = s.Logout(ctx)
		return domain.User{}, false
	}

	if err := s.establish(ctx, user, token); err != nil {
		s.log.WithError(err).Warn("failed to persist restored session")
		return domain.User{}, false
	}
	return user, true
}

// UpdateHighScore submits a finished attempt's score and replaces the cached
// user with directory truth. Local state never diverges upward or downward
// from what the directory reports.
func (s *AuthService) UpdateHighScore(ctx context.Context, d domain.Difficulty, score int) error {
	token, ok := s.sessionToken()
	if !ok {
		return domain.ErrNotSignedIn
	}

	user, err := s.directory.SubmitResult(ctx, token, d, score)
	if err != nil {
		return fmt.Errorf("update high score: %w", err)
	}
	return s.replaceUser(ctx, user)
}

// RefreshProfile re-fetches the profile and fully replaces the cached user.
func (s *AuthService) RefreshProfile(ctx context.Context) (domain.User, error) {
	token, ok := s.sessionToken()
	if !ok {
		return domain.User{}, domain.ErrNotSignedIn
	}

	user, err := s.directory.Profile(ctx, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("refresh profile: %w", err)
	}
	if err := s.replaceUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// RecordHighScore lets the quiz engine finalize attempts through the session.
func (s *AuthService) RecordHighScore(ctx context.Context, username string, d domain.Difficulty, score int) (domain.User, error) {
	current, ok := s.CurrentUser()
	if !ok || domain.CanonicalUsername(current.Username) != domain.CanonicalUsername(username) {
		return domain.User{}, domain.ErrNotSignedIn
	}
	if err := s.UpdateHighScore(ctx, d, score); err != nil {
		return domain.User{}, err
	}
	user, _ := s.CurrentUser()
	return user, nil
}

// CurrentUser returns the cached session user, if any.
func (s *AuthService) CurrentUser() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.User{}, false
	}
	return *s.current, true
}

// Token returns the active bearer token, if any.
func (s *AuthService) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Leaderboard snapshots the signed-in user's scores.
func (s *AuthService) Leaderboard() (domain.Leaderboard, error) {
	user, ok := s.CurrentUser()
	if !ok {
		return domain.Leaderboard{}, domain.ErrNotSignedIn
	}
	return domain.NewLeaderboard(user, s.now()), nil
}

// Subscribe streams leaderboard updates for the signed-in user.
func (s *AuthService) Subscribe() (<-chan domain.Leaderboard, func(), error) {
	user, ok := s.CurrentUser()
	if !ok {
		return nil, nil, domain.ErrNotSignedIn
	}
	ch, cancel := s.feed.Subscribe(user.Username)
	return ch, cancel, nil
}

func (s *AuthService) sessionToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != "" && s.current != nil
}

func (s *AuthService) establish(ctx context.Context, user domain.User, token string) error {
	if err := s.store.Set(ctx, KeyAuthToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	if err := s.replaceUser(ctx, user); err != nil {
		return err
	}
	return nil
}

func (s *AuthService) replaceUser(ctx context.Context, user domain.User) error {
	if user.HighScores == nil {
		user.HighScores = domain.NewHighScores()
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := s.store.Set(ctx, KeyCurrentUser, string(raw)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}

	s.mu.Lock()
	s.current = &user
	s.mu.Unlock()

	if s.feed != nil {
		s.feed.Publish(user)
	}
	return nil
}
