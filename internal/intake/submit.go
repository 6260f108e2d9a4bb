package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"frontdoor/api/internal/kv"
	"frontdoor/api/internal/store"
)

// DefaultDepartment receives requests with no staged prefill.
const DefaultDepartment = "Legal Operations"

// Prefill carries values staged in the session by a launched favorite.
// They are consumed by the next successful submission.
type Prefill struct {
	Department string
	Type       string
	Title      string
}

// Service owns one intake form instance: validation, drafts, prefill
// consumption, and submission through the request lifecycle.
type Service struct {
	state     *store.State
	session   kv.Store
	autosaver *Autosaver
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(state *store.State, session kv.Store, autosaver *Autosaver, log zerolog.Logger) *Service {
	return &Service{
		state:     state,
		session:   session,
		autosaver: autosaver,
		log:       log.With().Str("component", "intake").Logger(),
		now:       time.Now,
	}
}

// Autosaver exposes the draft machinery for the presentation layer.
func (s *Service) Autosaver() *Autosaver {
	return s.autosaver
}

// StagePrefill stores favorite prefill values in the session for the next
// submission to consume.
func (s *Service) StagePrefill(ctx context.Context, prefill Prefill) error {
	pairs := map[string]string{
		kv.KeyPrefillDepartment: prefill.Department,
		kv.KeyPrefillType:       prefill.Type,
		kv.KeyPrefillTitle:      prefill.Title,
	}
	for key, value := range pairs {
		if value == "" {
			continue
		}
		if err := s.session.Set(ctx, key, value); err != nil {
			return fmt.Errorf("stage prefill: %w", err)
		}
	}
	return nil
}

// readPrefill loads staged values without clearing them; clearPrefill
// runs only after a successful submission so a failed attempt keeps the
// staging intact.
func (s *Service) readPrefill(ctx context.Context) Prefill {
	get := func(key string) string {
		value, err := s.session.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, kv.ErrNotFound) {
				s.log.Warn().Err(err).Str("key", key).Msg("read prefill")
			}
			return ""
		}
		return value
	}
	return Prefill{
		Department: get(kv.KeyPrefillDepartment),
		Type:       get(kv.KeyPrefillType),
		Title:      get(kv.KeyPrefillTitle),
	}
}

func (s *Service) clearPrefill(ctx context.Context) {
	for _, key := range []string{kv.KeyPrefillDepartment, kv.KeyPrefillType, kv.KeyPrefillTitle} {
		if err := s.session.Delete(ctx, key); err != nil && !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("clear prefill")
		}
	}
}

// submission is the opaque payload persisted as the request description:
// the full sanitized form snapshot plus the assembled metadata.
type submission struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Department  string `json:"department"`
	SubmittedAt string `json:"submittedAt"`
	FormState
}

// Submit validates the form from scratch, applies the content gate,
// sanitizes, assembles the request, and creates it on behalf of the
// current user. The saved draft and any staged prefill are cleared on
// success. Failures return *ValidationError or *ContentError so callers
// can render field-level feedback.
func (s *Service) Submit(ctx context.Context, form FormState) (*store.Request, error) {
	form = ApplyVisibility(form)

	if fieldErrs := ValidateForm(form); len(fieldErrs) > 0 {
		return nil, &ValidationError{Fields: fieldErrs}
	}

	prefill := s.readPrefill(ctx)

	title := Title(form)
	if staged := strings.TrimSpace(prefill.Title); staged != "" {
		title = staged
	}

	if problems := ValidateContent(form, title); len(problems) > 0 {
		return nil, &ContentError{Problems: problems}
	}

	form = SanitizeForm(form)
	title = SanitizeText(title)

	requestType := TypeLabel(form.HelpType)
	if prefill.Type != "" {
		requestType = prefill.Type
	}
	department := prefill.Department
	if department == "" {
		department = DefaultDepartment
	}

	payload := submission{
		Type:        requestType,
		Title:       title,
		Department:  department,
		SubmittedAt: s.now().UTC().Format(time.RFC3339),
		FormState:   form,
	}
	description, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	created, err := s.state.CreateRequest(ctx, store.CreateRequestInput{
		Title:       title,
		Type:        requestType,
		Priority:    store.PriorityMedium,
		Department:  department,
		Description: string(description),
		Files:       form.Files,
	})
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if err := s.autosaver.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("clear draft after submit")
	}
	s.clearPrefill(ctx)

	return created, nil
}
