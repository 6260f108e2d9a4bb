package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frontdoor/api/internal/kv"
)

// Initialize seeds the durable store with the fixed user set, starter
// favorites, and a few sample requests on first start. A sentinel key makes
// seeding idempotent across restarts and instances.
func (s *State) Initialize(ctx context.Context) error {
	if _, err := s.durable.Get(ctx, kv.KeyInitialized); err == nil {
		return nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("read initialized sentinel: %w", err)
	}

	now := s.now().UTC()
	iso := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format(time.RFC3339)
	}

	users := []User{
		{ID: "1", Name: "Jordan Blake", Role: RoleEmployee, Email: "jordan.blake@example.com", Department: "Engineering"},
		{ID: "2", Name: "Priya Raman", Role: RoleEmployee, Email: "priya.raman@example.com", Department: "Sales"},
		{ID: "3", Name: "Marcus Webb", Role: RoleEmployee, Email: "marcus.webb@example.com", Department: "Marketing"},
		{ID: "4", Name: "Elena Vasquez", Role: RoleAdmin, Email: "elena.vasquez@example.com", Department: "Legal"},
		{ID: "5", Name: "Tom Okafor", Role: RoleAdmin, Email: "tom.okafor@example.com", Department: "Legal"},
	}

	requests := []Request{
		{
			ID:            "1001",
			Title:         "NDA Review for Vendor Partnership",
			Type:          "Contract Review",
			Priority:      PriorityHigh,
			Status:        StatusInProgress,
			Description:   "Mutual NDA with a prospective vendor needs review before technical discussions can start.",
			Department:    "Business Development",
			SubmittedBy:   "2",
			AssignedTo:    "4",
			SubmittedDate: iso(5),
			Files: []FileMeta{
				{Name: "Vendor_NDA_Draft.pdf", Size: 245678, Type: "application/pdf"},
			},
			Timeline: []TimelineEntry{
				{Date: iso(5), Event: "Request Submitted", Status: StatusSubmitted, UserID: "2"},
				{Date: iso(4), Event: "Status changed to " + StatusUnderReview, Status: StatusUnderReview, UserID: "4"},
				{Date: iso(3), Event: "Request assigned to: Elena Vasquez", Status: StatusUnderReview, UserID: "4"},
				{Date: iso(2), Event: "Status changed to " + StatusInProgress, Status: StatusInProgress, UserID: "4"},
			},
		},
		{
			ID:            "1002",
			Title:         "Employment Agreement - Senior Hire",
			Type:          "Employment",
			Priority:      PriorityUrgent,
			Status:        StatusUnderReview,
			Description:   "Draft employment agreement with custom equity terms for an incoming senior engineer.",
			Department:    "People & Places",
			SubmittedBy:   "1",
			AssignedTo:    "5",
			SubmittedDate: iso(3),
			Files:         []FileMeta{},
			Timeline: []TimelineEntry{
				{Date: iso(3), Event: "Request Submitted", Status: StatusSubmitted, UserID: "1"},
				{Date: iso(2), Event: "Status changed to " + StatusUnderReview, Status: StatusUnderReview, UserID: "5"},
			},
		},
	}

	comments := []Comment{
		{ID: newCommentID(), RequestID: "1001", UserID: "4", Text: "Reviewing the indemnification clause, should have redlines tomorrow.", Timestamp: iso(2)},
		{ID: newCommentID(), RequestID: "1001", UserID: "2", Text: "Thanks! The vendor is asking for an update.", Timestamp: iso(1)},
	}

	favorites := []Favorite{
		{ID: "fav-1", UserID: "2", Name: "Pull a sales contract", Prefill: FavoritePrefill{Type: "contractPull", Department: "WWFO"}},
		{ID: "fav-2", UserID: "1", Name: "Signature request", Prefill: FavoritePrefill{Type: "signature", Department: "Engineering / OCTO"}},
	}

	seeds := []struct {
		key   string
		value any
	}{
		{kv.KeyUsers, users},
		{kv.KeyRequests, requests},
		{kv.KeyComments, comments},
		{kv.KeyFavorites, favorites},
	}
	for _, seed := range seeds {
		encoded, err := encodeCollection(seed.value)
		if err != nil {
			return fmt.Errorf("encode seed %s: %w", seed.key, err)
		}
		if err := s.durable.Set(ctx, seed.key, encoded); err != nil {
			return fmt.Errorf("write seed %s: %w", seed.key, err)
		}
	}
	// The counter starts past the seeded IDs so fresh allocations never
	// collide with them.
	if err := s.durable.Set(ctx, kv.KeyNextRequestID, "1003"); err != nil {
		return fmt.Errorf("write request id counter: %w", err)
	}
	if err := s.durable.Set(ctx, kv.KeyInitialized, "true"); err != nil {
		return fmt.Errorf("write initialized sentinel: %w", err)
	}
	return nil
}
