package memory

import (
	"context"
	"testing"
)

func TestStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "k", []byte(`{"name":"Alice"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(value) != `{"name":"Alice"}` {
		t.Fatalf("unexpected value %q", value)
	}

	// The store hands out copies, not aliases.
	value[0] = 'X'
	again, _, _ := store.Get(ctx, "k")
	if string(again) != `{"name":"Alice"}` {
		t.Fatalf("stored value was aliased: %q", again)
	}

	if err := store.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected key removed")
	}
}
