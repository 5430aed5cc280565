// Package local implements the user directory on top of the key-value store:
// all users live as one JSON collection under the "users" key, passwords are
// bcrypt-hashed, and high-score monotonicity is enforced in-process.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"butterfly-quiz-service/internal/app"
	"butterfly-quiz-service/internal/auth"
	"butterfly-quiz-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// storedUser is the persisted shape; the password hash never leaves this package.
type storedUser struct {
	ID           int               `json:"id"`
	Username     string            `json:"username"`
	PasswordHash string            `json:"passwordHash"`
	HighScores   domain.HighScores `json:"highScores"`
}

func (u storedUser) toDomain() domain.User {
	return domain.User{ID: u.ID, Username: u.Username, HighScores: u.HighScores.Clone()}
}

// UserDirectory is the local-only sourcing model of app.UserDirectory.
type UserDirectory struct {
	store  app.KVStore
	tokens *auth.TokenManager

	// Guards read-modify-write cycles on the users collection.
	mu sync.Mutex
}

func NewUserDirectory(store app.KVStore, tokens *auth.TokenManager) *UserDirectory {
	return &UserDirectory{store: store, tokens: tokens}
}

// Authenticate checks credentials against the stored collection and issues a
// fresh token. Unknown users and wrong passwords are indistinguishable.
func (d *UserDirectory) Authenticate(ctx context.Context, username, password string) (domain.User, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.loadUsers(ctx)
	if err != nil {
		return domain.User{}, "", err
	}

	user, ok := findUser(users, username)
	if !ok {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	token, err := d.tokens.Issue(user.Username)
	if err != nil {
		return domain.User{}, "", err
	}
	return user.toDomain(), token, nil
}

// Register creates a user with zeroed high scores. Usernames are normalized
// to lowercase and must be unique.
func (d *UserDirectory) Register(ctx context.Context, username, password string) (domain.User, string, error) {
	name := domain.CanonicalUsername(username)
	if name == "" {
		return domain.User{}, "", fmt.Errorf("%w: empty username", domain.ErrInvalidCredentials)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.loadUsers(ctx)
	if err != nil {
		return domain.User{}, "", err
	}
	if _, ok := findUser(users, name); ok {
		return domain.User{}, "", domain.ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user := storedUser{
		ID:           nextID(users),
		Username:     name,
		PasswordHash: string(hash),
		HighScores:   domain.NewHighScores(),
	}
	users = append(users, user)
	if err := d.saveUsers(ctx, users); err != nil {
		return domain.User{}, "", err
	}

	token, err := d.tokens.Issue(user.Username)
	if err != nil {
		return domain.User{}, "", err
	}
	return user.toDomain(), token, nil
}

// Profile resolves a token to its user.
func (d *UserDirectory) Profile(ctx context.Context, token string) (domain.User, error) {
	username, err := d.tokens.Validate(token)
	if err != nil {
		return domain.User{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.loadUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	user, ok := findUser(users, username)
	if !ok {
		// Token outlived the account; treat it as invalid.
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrTokenInvalid, username)
	}
	return user.toDomain(), nil
}

// SubmitResult records a finished attempt for the token's user.
func (d *UserDirectory) SubmitResult(ctx context.Context, token string, diff domain.Difficulty, score int) (domain.User, error) {
	username, err := d.tokens.Validate(token)
	if err != nil {
		return domain.User{}, err
	}
	return d.RecordHighScore(ctx, username, diff, score)
}

// RecordHighScore writes the score only when it beats the stored value for
// that difficulty; it is the single enforcement point of monotonicity in the
// local model. It also implements app.HighScoreRecorder for the server mode.
func (d *UserDirectory) RecordHighScore(ctx context.Context, username string, diff domain.Difficulty, score int) (domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.loadUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}

	for i := range users {
		if users[i].Username != domain.CanonicalUsername(username) {
			continue
		}
		if users[i].HighScores == nil {
			users[i].HighScores = domain.NewHighScores()
		}
		if users[i].HighScores.Record(diff, score) {
			if err := d.saveUsers(ctx, users); err != nil {
				return domain.User{}, err
			}
		}
		return users[i].toDomain(), nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (d *UserDirectory) loadUsers(ctx context.Context) ([]storedUser, error) {
	raw, err := d.store.Get(ctx, app.KeyUsers)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load users: %w", err)
	}
	var users []storedUser
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (d *UserDirectory) saveUsers(ctx context.Context, users []storedUser) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := d.store.Set(ctx, app.KeyUsers, string(raw)); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

func findUser(users []storedUser, username string) (storedUser, bool) {
	name := domain.CanonicalUsername(username)
	for _, u := range users {
		if u.Username == name {
			return u, true
		}
	}
	return storedUser{}, false
}

func nextID(users []storedUser) int {
	max := 0
	for _, u := range users {
		if u.ID > max {
			max = u.ID
		}
	}
	return max + 1
}
