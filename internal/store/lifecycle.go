package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frontdoor/api/internal/kv"
)

var (
	ErrRequestNotFound = errors.New("request not found")
	ErrNoCurrentUser   = errors.New("no current user")

	// Guard violations. These are policy errors a caller can surface as
	// field-level feedback.
	ErrInProgressUnassigned    = errors.New("a request cannot move to In Progress while unassigned")
	ErrUnassignWhileInProgress = errors.New("a request cannot be unassigned while In Progress")
	ErrUnknownStatus           = errors.New("unknown status")
)

// CreateRequestInput is the data a submission provides; everything else
// (ID, status, timestamps, timeline) is assigned here.
type CreateRequestInput struct {
	Title       string
	Type        string
	Priority    string
	Department  string
	Description string
	Files       []FileMeta
}

// CreateRequest allocates an ID and stores a new request on behalf of the
// current user, with its initial timeline entry.
func (s *State) CreateRequest(ctx context.Context, input CreateRequestInput) (*Request, error) {
	current := s.GetCurrentUser(ctx)
	if current == nil {
		return nil, ErrNoCurrentUser
	}

	priority := input.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	files := input.Files
	if files == nil {
		files = []FileMeta{}
	}
	now := s.now().UTC().Format(time.RFC3339)

	request := Request{
		ID:            s.NextRequestID(ctx),
		Title:         input.Title,
		Type:          input.Type,
		Priority:      priority,
		Status:        StatusSubmitted,
		Description:   input.Description,
		Department:    input.Department,
		SubmittedBy:   current.ID,
		SubmittedDate: now,
		Files:         files,
		Timeline: []TimelineEntry{{
			Date:   now,
			Event:  "Request Submitted",
			Status: StatusSubmitted,
			UserID: current.ID,
		}},
	}

	saved, err := s.SaveRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// ValidateStatusChange is the pure guard every caller applies before a
// status transition: In Progress requires an assignee.
func ValidateStatusChange(request Request, newStatus string) error {
	if !ValidStatus(newStatus) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, newStatus)
	}
	if newStatus == StatusInProgress && request.AssignedTo == "" {
		return ErrInProgressUnassigned
	}
	return nil
}

// ValidateAssignmentChange is the pure guard for assignment changes:
// clearing the assignee is not allowed while the request is In Progress.
func ValidateAssignmentChange(request Request, assignedTo string) error {
	if assignedTo == "" && request.Status == StatusInProgress {
		return ErrUnassignWhileInProgress
	}
	return nil
}

// UpdateRequestStatus applies a guarded status transition and appends the
// matching timeline entry. The lock is held across the whole
// read-modify-write so two concurrent updates of one request cannot lose
// each other's timeline entry.
func (s *State) UpdateRequestStatus(ctx context.Context, requestID, newStatus, actingUserID string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requestLocked(ctx, requestID)
	if !ok {
		return nil, ErrRequestNotFound
	}
	if err := ValidateStatusChange(request, newStatus); err != nil {
		return nil, err
	}

	request.Status = newStatus
	request.Timeline = append(request.Timeline, TimelineEntry{
		Date:   s.now().UTC().Format(time.RFC3339),
		Event:  "Status changed to " + newStatus,
		Status: newStatus,
		UserID: actingUserID,
	})

	saved, err := s.saveRequestLocked(ctx, request)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// UpdateRequestAssignment sets or clears the assignee and appends a timeline
// entry naming the resolved user. Like UpdateRequestStatus, the lock spans
// the read-modify-write.
func (s *State) UpdateRequestAssignment(ctx context.Context, requestID, assignedTo, actingUserID string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requestLocked(ctx, requestID)
	if !ok {
		return nil, ErrRequestNotFound
	}
	if err := ValidateAssignmentChange(request, assignedTo); err != nil {
		return nil, err
	}

	assigneeName := "Unassigned"
	if assignedTo != "" {
		if u, ok := s.userLocked(ctx, assignedTo); ok {
			assigneeName = u.Name
		} else {
			assigneeName = "Unknown User"
		}
	}

	request.AssignedTo = assignedTo
	request.Timeline = append(request.Timeline, TimelineEntry{
		Date:   s.now().UTC().Format(time.RFC3339),
		Event:  "Request assigned to: " + assigneeName,
		Status: request.Status,
		UserID: actingUserID,
	})

	saved, err := s.saveRequestLocked(ctx, request)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteRequest removes a request and all of its comments. Comments are
// rewritten first so no durable state ever has comments referencing a
// request that is already gone.
func (s *State) DeleteRequest(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := s.requestsLocked(ctx)
	found := false
	keptRequests := make([]Request, 0, len(requests))
	for _, r := range requests {
		if r.ID == requestID {
			found = true
			continue
		}
		keptRequests = append(keptRequests, r)
	}
	if !found {
		return ErrRequestNotFound
	}

	comments := s.commentsLocked(ctx)
	keptComments := make([]Comment, 0, len(comments))
	for _, c := range comments {
		if c.RequestID != requestID {
			keptComments = append(keptComments, c)
		}
	}

	encodedComments, err := encodeCollection(keptComments)
	if err != nil {
		return fmt.Errorf("encode comments: %w", err)
	}
	if err := s.durable.Set(ctx, kv.KeyComments, encodedComments); err != nil {
		return fmt.Errorf("write comments: %w", err)
	}
	s.comments = nil

	if err := s.writeRequestsLocked(ctx, keptRequests); err != nil {
		return err
	}
	return nil
}
