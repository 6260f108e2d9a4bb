// Package kv provides the durable and session-scoped key-value stores the
// state layer persists through, plus change notification between instances
// writing to the same store.
package kv

import (
	"context"
	"errors"
)

// Well-known durable keys owned by the core.
const (
	KeyUsers         = "users"
	KeyRequests      = "requests"
	KeyComments      = "comments"
	KeyFavorites     = "favorites"
	KeyInitialized   = "initialized"
	KeyNextRequestID = "nextRequestId"
	KeyIDLock        = "idLock"
	KeyIntakeDraft   = "intakeDraft"
)

// Session-scoped keys.
const (
	KeyCurrentUser       = "currentUser"
	KeyPrefillDepartment = "prefill:department"
	KeyPrefillType       = "prefill:type"
	KeyPrefillTitle      = "prefill:title"
)

// ErrNotFound is returned by Get for keys that have never been set or have
// been deleted (or, for session stores, have expired).
var ErrNotFound = errors.New("kv: key not found")

// Store is a string key-value store. Values are opaque; serialization is the
// caller's concern. Implementations must make Set and Delete visible to other
// instances of the same store before returning.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Change describes a mutation performed by some store instance.
type Change struct {
	// Sender identifies the store instance that performed the mutation, so
	// subscribers can skip their own writes.
	Sender string
	Key    string
}

// Notifier delivers Changes performed by any instance sharing the store.
type Notifier interface {
	// Watch delivers changes until ctx is cancelled. The returned channel is
	// closed on cancellation or subscription failure.
	Watch(ctx context.Context) (<-chan Change, error)
	// SenderID identifies this instance in the Changes it publishes.
	SenderID() string
}
