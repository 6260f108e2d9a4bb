package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), "frontdoor:")
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, s
}

func TestGetSetDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "requests"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unset key, got %v", err)
	}

	if err := store.Set(ctx, "requests", `[]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := store.Get(ctx, "requests")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != `[]` {
		t.Errorf("expected [], got %q", value)
	}

	if err := store.Delete(ctx, "requests"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "requests"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestKeysAreNamespaced(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "users", `[]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !s.Exists("frontdoor:users") {
		t.Error("expected key to live under the frontdoor: prefix")
	}
	if s.Exists("users") {
		t.Error("unprefixed key must not exist")
	}
}

func TestWatchDeliversChanges(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := store.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := store.Set(ctx, "comments", `[]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	select {
	case change := <-changes:
		if change.Key != "comments" {
			t.Errorf("expected change for comments, got %q", change.Key)
		}
		if change.Sender != store.SenderID() {
			t.Errorf("expected sender %q, got %q", store.SenderID(), change.Sender)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestWatchSeesOtherInstances(t *testing.T) {
	store, s := setupTestStore(t)
	other, err := NewRedisStore("redis://"+s.Addr(), "frontdoor:")
	if err != nil {
		t.Fatalf("failed to create second store: %v", err)
	}
	defer other.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := store.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := other.Set(ctx, "requests", `[{"id":"1001"}]`); err != nil {
		t.Fatalf("Set from other instance failed: %v", err)
	}

	select {
	case change := <-changes:
		if change.Key != "requests" {
			t.Errorf("expected change for requests, got %q", change.Key)
		}
		if change.Sender == store.SenderID() {
			t.Error("change should carry the other instance's sender ID")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestSessionExpiry(t *testing.T) {
	store, s := setupTestStore(t)
	ctx := context.Background()

	session := store.Session(time.Minute)
	if err := session.Set(ctx, "currentUser", `{"id":"1"}`); err != nil {
		t.Fatalf("session Set failed: %v", err)
	}

	value, err := session.Get(ctx, "currentUser")
	if err != nil {
		t.Fatalf("session Get failed: %v", err)
	}
	if value != `{"id":"1"}` {
		t.Errorf("unexpected session value %q", value)
	}

	s.FastForward(2 * time.Minute)

	if _, err := session.Get(ctx, "currentUser"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestSessionDoesNotCollideWithDurable(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	session := store.Session(time.Minute)
	if err := session.Set(ctx, "currentUser", `{"id":"2"}`); err != nil {
		t.Fatalf("session Set failed: %v", err)
	}
	if err := store.Set(ctx, "currentUser", `durable`); err != nil {
		t.Fatalf("durable Set failed: %v", err)
	}

	sessionValue, err := session.Get(ctx, "currentUser")
	if err != nil {
		t.Fatalf("session Get failed: %v", err)
	}
	if sessionValue != `{"id":"2"}` {
		t.Errorf("session value clobbered: %q", sessionValue)
	}
}
