package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"frontdoor/api/internal/kv"
)

// Autosave status strings surfaced to the user as a non-blocking
// indicator. Saving never returns an error to the caller.
const (
	StatusSaved      = "Draft Auto-saved"
	StatusSaveFailed = "Auto-save Failed"
	StatusRestored   = "Draft Restored"
)

// draft is the persisted snapshot: the full form plus the save time in
// Unix milliseconds, used to enforce the retention window on restore.
type draft struct {
	FormState
	Timestamp int64 `json:"timestamp"`
}

// Autosaver debounces draft persistence: each Schedule call restarts a
// fixed-delay timer, and only the timer firing (or Flush) writes the
// snapshot. One Autosaver serves one form instance.
type Autosaver struct {
	store     kv.Store
	log       zerolog.Logger
	delay     time.Duration
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	pending *FormState
	status  string
}

// NewAutosaver builds an Autosaver over the durable store. delay is the
// debounce window; retention is how long a saved draft stays restorable.
func NewAutosaver(store kv.Store, delay, retention time.Duration, log zerolog.Logger) *Autosaver {
	return &Autosaver{
		store:     store,
		log:       log.With().Str("component", "autosaver").Logger(),
		delay:     delay,
		retention: retention,
		now:       time.Now,
	}
}

// Schedule records the latest snapshot and (re)starts the debounce timer.
// Rapid successive edits collapse into a single write.
func (a *Autosaver) Schedule(form FormState) {
	form = ApplyVisibility(form)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = &form
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() { a.fire() })
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	form := a.pending
	a.pending = nil
	a.mu.Unlock()

	if form != nil {
		a.save(context.Background(), *form)
	}
}

// Flush cancels the timer and writes any pending snapshot immediately.
// Callers invoke it on teardown so the last edits inside the debounce
// window are not lost.
func (a *Autosaver) Flush(ctx context.Context) {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	form := a.pending
	a.pending = nil
	a.mu.Unlock()

	if form != nil {
		a.save(ctx, *form)
	}
}

// save is best-effort: failures are logged and reflected in Status, never
// returned.
func (a *Autosaver) save(ctx context.Context, form FormState) {
	snapshot := draft{FormState: form, Timestamp: a.now().UnixMilli()}
	encoded, err := json.Marshal(snapshot)
	if err == nil {
		err = a.store.Set(ctx, kv.KeyIntakeDraft, string(encoded))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.log.Warn().Err(err).Msg("save draft")
		a.status = StatusSaveFailed
		return
	}
	a.status = StatusSaved
}

// Status returns the outcome of the most recent save or restore, or ""
// when nothing has happened yet.
func (a *Autosaver) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Load restores the saved draft. A draft older than the retention window
// is discarded, not restored. The second return is false when no
// restorable draft exists.
func (a *Autosaver) Load(ctx context.Context) (FormState, bool) {
	raw, err := a.store.Get(ctx, kv.KeyIntakeDraft)
	if errors.Is(err, kv.ErrNotFound) {
		return FormState{}, false
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("load draft")
		return FormState{}, false
	}

	var saved draft
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		a.log.Warn().Err(err).Msg("discarding unreadable draft")
		return FormState{}, false
	}

	age := a.now().Sub(time.UnixMilli(saved.Timestamp))
	if saved.Timestamp == 0 || age > a.retention {
		if err := a.store.Delete(ctx, kv.KeyIntakeDraft); err != nil {
			a.log.Warn().Err(err).Msg("delete expired draft")
		}
		return FormState{}, false
	}

	a.mu.Lock()
	a.status = StatusRestored
	a.mu.Unlock()
	return saved.FormState, true
}

// Clear drops any pending snapshot and removes the saved draft.
func (a *Autosaver) Clear(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.pending = nil
	a.mu.Unlock()

	if err := a.store.Delete(ctx, kv.KeyIntakeDraft); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
