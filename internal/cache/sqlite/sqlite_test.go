package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gridwatch/dayahead/internal/cache"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndRetrieve(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	payload := json.RawMessage(`{"priceDate":"2025-03-10"}`)
	if err := store.CreateObject(ctx, "prices-2025-03-10", payload, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := store.Has(ctx, "prices-2025-03-10")
	if err != nil || !ok {
		t.Fatalf("has = %v, %v", ok, err)
	}

	got, ok, err := store.RetrieveObject(ctx, "prices-2025-03-10")
	if err != nil || !ok {
		t.Fatalf("retrieve = %v, %v", ok, err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload changed: %s", got)
	}
}

func TestRetrieve_Absent(t *testing.T) {
	store := setupTestStore(t)

	ok, err := store.Has(context.Background(), "prices-2099-01-01")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if ok {
		t.Error("expected absent key")
	}

	_, ok, err = store.RetrieveObject(context.Background(), "prices-2099-01-01")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if ok {
		t.Error("expected absent object")
	}
}

func TestCreate_NeverOverwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := json.RawMessage(`{"v":1}`)
	second := json.RawMessage(`{"v":2}`)
	if err := store.CreateObject(ctx, "prices-2025-03-10", first, false); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := store.CreateObject(ctx, "prices-2025-03-10", second, false); err != nil {
		t.Fatalf("second create: %v", err)
	}

	got, _, err := store.RetrieveObject(ctx, "prices-2025-03-10")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if string(got) != string(first) {
		t.Errorf("cached object was overwritten: %s", got)
	}
}

func TestCreate_LatestPointerFloats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateObject(ctx, cache.CurrencyLatestKey, json.RawMessage(`{"date":"2025-03-09"}`), false); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := store.CreateObject(ctx, cache.CurrencyLatestKey, json.RawMessage(`{"date":"2025-03-10"}`), true); err != nil {
		t.Fatalf("second create: %v", err)
	}

	got, _, err := store.RetrieveObject(ctx, cache.CurrencyLatestKey)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if string(got) != `{"date":"2025-03-10"}` {
		t.Errorf("latest pointer did not move: %s", got)
	}
}

func TestDeleteAndKeys(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"prices-2025-03-08", "prices-2025-03-09", "currencies-latest"} {
		if err := store.CreateObject(ctx, key, json.RawMessage(`{}`), false); err != nil {
			t.Fatalf("create %s: %v", key, err)
		}
	}

	if err := store.DeleteObject(ctx, "prices-2025-03-08", true); err != nil {
		t.Fatalf("delete: %v", err)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}
	if keys[0] != "currencies-latest" || keys[1] != "prices-2025-03-09" {
		t.Errorf("unexpected keys: %v", keys)
	}
}
