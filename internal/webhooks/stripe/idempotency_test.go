package stripewebhook

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestIdempotencyGuard(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(newMemoryStore(), time.Minute, "stripe")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	ctx := context.Background()

	dup, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if dup {
		t.Fatal("first delivery must not be a duplicate")
	}

	dup, err = guard.CheckAndMark(ctx, "evt_1")
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if !dup {
		t.Fatal("second delivery must be a duplicate")
	}

	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	dup, err = guard.CheckAndMark(ctx, "evt_1")
	if err != nil {
		t.Fatalf("mark after delete: %v", err)
	}
	if dup {
		t.Fatal("a deleted mark must admit the redelivery")
	}
}

func TestIdempotencyGuard_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewIdempotencyGuard(nil, time.Minute, "stripe"); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewIdempotencyGuard(newMemoryStore(), time.Minute, ""); err == nil {
		t.Fatal("expected error for empty scope")
	}

	guard, err := NewIdempotencyGuard(newMemoryStore(), time.Minute, "stripe")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty event id")
	}
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("vendio:idempotency:%s:%s", scope, id)
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
