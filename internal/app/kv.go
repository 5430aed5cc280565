package app

import (
	"context"

	"butterfly-quiz-service/internal/domain"
)

// Storage keys shared by every KVStore implementation.
const (
	KeyAuthToken   = "authToken"
	KeyCurrentUser = "currentUser"
	KeyUsers       = "users"
)

// ProgressKey returns the per-user key for an in-flight quiz attempt.
func ProgressKey(username string) string {
	return "quizProgress_" + domain.CanonicalUsername(username)
}

// KVStore abstracts a small string key-value store. Implementations must
// return domain.ErrKeyNotFound for absent keys.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
