package store

// Request statuses.
const (
	StatusSubmitted   = "Submitted"
	StatusUnderReview = "Under Review"
	StatusInProgress  = "In Progress"
	StatusResolved    = "Resolved"
	StatusClosed      = "Closed"
)

// Request priorities.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
	PriorityUrgent = "Urgent"
)

// User roles.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

var allowedStatuses = map[string]struct{}{
	StatusSubmitted:   {},
	StatusUnderReview: {},
	StatusInProgress:  {},
	StatusResolved:    {},
	StatusClosed:      {},
}

var allowedPriorities = map[string]struct{}{
	PriorityLow:    {},
	PriorityMedium: {},
	PriorityHigh:   {},
	PriorityUrgent: {},
}

var allowedRoles = map[string]struct{}{
	RoleAdmin:    {},
	RoleEmployee: {},
}

type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// FileMeta records name, size, and type of an uploaded file. File content is
// never stored.
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// TimelineEntry is one event in a request's append-only trail. UserID is the
// acting user; legacy records without one normalize to "".
type TimelineEntry struct {
	Date   string `json:"date"`
	Event  string `json:"event"`
	Status string `json:"status"`
	UserID string `json:"userId,omitempty"`
}

type Request struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Type          string          `json:"type"`
	Priority      string          `json:"priority"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	Department    string          `json:"department"`
	SubmittedBy   string          `json:"submittedBy"`
	AssignedTo    string          `json:"assignedTo,omitempty"`
	SubmittedDate string          `json:"submittedDate"`
	Files         []FileMeta      `json:"files"`
	Timeline      []TimelineEntry `json:"timeline"`
}

type Comment struct {
	ID        string `json:"id"`
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// FavoritePrefill is the payload a favorite stages into the intake form.
type FavoritePrefill struct {
	Department string `json:"department,omitempty"`
	Type       string `json:"type,omitempty"`
	Title      string `json:"title,omitempty"`
}

type Favorite struct {
	ID      string          `json:"id"`
	UserID  string          `json:"userId"`
	Name    string          `json:"name"`
	Prefill FavoritePrefill `json:"prefill"`
}

// ValidStatus reports whether s is one of the allowed request statuses.
func ValidStatus(s string) bool {
	_, ok := allowedStatuses[s]
	return ok
}

// ValidPriority reports whether p is one of the allowed priorities.
func ValidPriority(p string) bool {
	_, ok := allowedPriorities[p]
	return ok
}
