package redis

import (
	"context"
	"errors"
	"testing"

	"butterfly-quiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestKVStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewKVStore(newClient(mr), 0)

	if _, err := store.Get(ctx, "authToken"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := store.Set(ctx, "authToken", "abc123"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("quizapp:kv:authToken") {
		t.Fatalf("expected prefixed redis key to be set")
	}

	value, err := store.Get(ctx, "authToken")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "abc123" {
		t.Fatalf("expected abc123, got %q", value)
	}

	if err := store.Delete(ctx, "authToken"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("quizapp:kv:authToken") {
		t.Fatalf("expected redis key to be removed")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
