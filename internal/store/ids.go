package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"frontdoor/api/internal/kv"
)

// NextRequestID allocates the next sequential request ID (ticket number)
// under an advisory lock, so two instances allocating at the same time never
// hand out the same ID. The lock is a timestamp written to a well-known key;
// a holder older than IDLockTimeout is presumed crashed and taken over.
//
// If the lock cannot be won within IDLockRetries attempts, a non-sequential
// ULID is returned instead: submission must never block on ID contention,
// and a ULID is unique by construction (timestamp plus entropy).
//
// The lock is advisory, not a mutex: it closes the window between instances
// whose own allocations are serialized, which is the concurrency model the
// storage contract permits. idMu provides that serialization within one
// instance.
func (s *State) NextRequestID(ctx context.Context) string {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	for attempt := 0; attempt < s.limits.IDLockRetries; attempt++ {
		if attempt > 0 {
			// Backoff grows linearly; contention windows here are tiny.
			sleep(ctx, time.Duration(attempt)*5*time.Millisecond)
		}

		held, err := s.lockHeld(ctx)
		if err != nil || held {
			continue
		}

		token := strconv.FormatInt(s.now().UnixNano(), 10)
		if err := s.durable.Set(ctx, kv.KeyIDLock, token); err != nil {
			continue
		}
		current, err := s.durable.Get(ctx, kv.KeyIDLock)
		if err != nil || current != token {
			// Another writer overwrote the token between our write and
			// re-read; they own the lock.
			continue
		}

		id := s.allocateLocked(ctx)
		if err := s.durable.Delete(ctx, kv.KeyIDLock); err != nil {
			s.log.Warn().Err(err).Msg("release id lock")
		}
		return id
	}

	s.log.Warn().Int("retries", s.limits.IDLockRetries).Msg("id lock contention, falling back to non-sequential id")
	return ulid.Make().String()
}

// lockHeld reports whether a live lock token exists. Unreadable tokens are
// treated as stale. A future-dated token (the holder's clock runs ahead of
// ours) counts as held: taking it over would clobber a live holder, and
// liveness is already covered by the timeout plus the retry fallback.
func (s *State) lockHeld(ctx context.Context) (bool, error) {
	raw, err := s.durable.Get(ctx, kv.KeyIDLock)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	acquiredNano, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	age := s.now().Sub(time.Unix(0, acquiredNano))
	return age < s.limits.IDLockTimeout, nil
}

// allocateLocked reads, validates, and advances the counter while the lock
// is held. A missing or corrupted counter restarts the sequence at the base.
func (s *State) allocateLocked(ctx context.Context) string {
	base := s.limits.RequestIDBase
	next := base
	if raw, err := s.durable.Get(ctx, kv.KeyNextRequestID); err == nil {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil || parsed < base {
			s.log.Warn().Str("value", raw).Int("base", base).Msg("invalid request id counter, restarting sequence")
			next = base
		} else {
			next = parsed
		}
	}
	if err := s.durable.Set(ctx, kv.KeyNextRequestID, strconv.Itoa(next+1)); err != nil {
		s.log.Warn().Err(err).Msg("persist request id counter")
	}
	return strconv.Itoa(next)
}

func newCommentID() string {
	return uuid.NewString()
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
