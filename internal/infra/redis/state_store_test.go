package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"trivia-session-service/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStateStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStateStore(client, time.Minute)

	if _, ok, err := store.Get(ctx, "quiz:session:p1"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	deadline := time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC)
	session := domain.NewSession().WithQuestions("attempt-1", []domain.Question{
		{Prompt: "q", CorrectAnswer: "a", Options: []string{"a", "b"}},
	}, deadline)
	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := store.Set(ctx, "quiz:session:p1", data); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := store.Get(ctx, "quiz:session:p1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}

	var restored domain.Session
	if err := json.Unmarshal(value, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !restored.Deadline.Equal(deadline) {
		t.Fatalf("deadline drifted through redis: %s != %s", restored.Deadline, deadline)
	}

	if err := store.Remove(ctx, "quiz:session:p1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if mr.Exists("quiz:session:p1") {
		t.Fatalf("expected redis key removed")
	}
}

func TestStateStoreAppliesTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStateStore(client, time.Minute)

	if err := store.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", ttl)
	}
}
