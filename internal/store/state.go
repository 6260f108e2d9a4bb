package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"frontdoor/api/internal/kv"
)

// Limits is the capacity and ID-allocation policy applied by the state layer.
type Limits struct {
	MaxRequests           int
	MaxCommentsPerRequest int
	MaxCommentsTotal      int
	CommentEvictBatch     int
	RequestIDBase         int
	IDLockTimeout         time.Duration
	IDLockRetries         int
}

// State is the in-memory mirror of the durable collections. A mirror is
// either absent (nil, reload on next read) or exactly what a fresh load
// would produce; the mutex keeps that invariant across concurrent callers.
type State struct {
	durable kv.Store
	session kv.Store
	limits  Limits
	log     zerolog.Logger
	now     func() time.Time

	// idMu serializes sequential ID allocation separately from the mirror
	// lock, so allocation's storage round-trips never stall readers.
	idMu sync.Mutex

	mu             sync.Mutex
	users          []User
	requests       []Request
	comments       []Comment
	favorites      []Favorite
	currentUser    *User
	userByID       map[string]User
	requestsByUser map[string][]Request
}

func New(durable, session kv.Store, limits Limits, log zerolog.Logger) *State {
	return &State{
		durable:        durable,
		session:        session,
		limits:         limits,
		log:            log,
		now:            time.Now,
		userByID:       make(map[string]User),
		requestsByUser: make(map[string][]Request),
	}
}

// CacheStats describes what is currently mirrored, for diagnostics.
type CacheStats struct {
	HasCurrentUser     bool `json:"hasCurrentUser"`
	UsersCount         int  `json:"usersCount"`
	RequestsCount      int  `json:"requestsCount"`
	CommentsCount      int  `json:"commentsCount"`
	FavoritesCount     int  `json:"favoritesCount"`
	UserRequestsCached int  `json:"userRequestsCached"`
	UserLookupsCached  int  `json:"userLookupsCached"`
}

// --- Users ---

func (s *State) GetUsers(ctx context.Context) []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.usersLocked(ctx))
}

func (s *State) usersLocked(ctx context.Context) []User {
	if s.users != nil {
		return s.users
	}
	s.users = decodeUsers(s.log, s.read(ctx, kv.KeyUsers))
	for _, u := range s.users {
		s.userByID[u.ID] = u
	}
	return s.users
}

func (s *State) GetUser(ctx context.Context, userID string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userLocked(ctx, userID)
}

func (s *State) userLocked(ctx context.Context, userID string) (User, bool) {
	if u, ok := s.userByID[userID]; ok {
		return u, true
	}
	for _, u := range s.usersLocked(ctx) {
		if u.ID == userID {
			s.userByID[userID] = u
			return u, true
		}
	}
	return User{}, false
}

// GetUserName resolves a user's display name, with a fixed fallback for
// unknown IDs so renderers never see an empty name.
func (s *State) GetUserName(ctx context.Context, userID string) string {
	if u, ok := s.GetUser(ctx, userID); ok {
		return u.Name
	}
	return "Unknown User"
}

// --- Requests ---

func (s *State) GetAllRequests(ctx context.Context) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRequests(s.requestsLocked(ctx))
}

func (s *State) requestsLocked(ctx context.Context) []Request {
	if s.requests != nil {
		return s.requests
	}
	s.requests = decodeRequests(s.log, s.read(ctx, kv.KeyRequests))
	return s.requests
}

func (s *State) GetRequest(ctx context.Context, requestID string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestLocked(ctx, requestID)
}

func (s *State) requestLocked(ctx context.Context, requestID string) (Request, bool) {
	for _, r := range s.requestsLocked(ctx) {
		if r.ID == requestID {
			return r.clone(), true
		}
	}
	return Request{}, false
}

func (s *State) GetUserRequests(ctx context.Context, userID string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.requestsByUser[userID]; ok {
		return cloneRequests(cached)
	}
	matched := []Request{}
	for _, r := range s.requestsLocked(ctx) {
		if r.SubmittedBy == userID {
			matched = append(matched, r)
		}
	}
	s.requestsByUser[userID] = matched
	return cloneRequests(matched)
}

// SaveRequest replaces the record with the same ID, or appends when the ID
// is new. Appending past the request cap evicts the request with the oldest
// submittedDate.
func (s *State) SaveRequest(ctx context.Context, request Request) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRequestLocked(ctx, request)
}

func (s *State) saveRequestLocked(ctx context.Context, request Request) (Request, error) {
	requests := cloneSlice(s.requestsLocked(ctx))
	replaced := false
	for i, r := range requests {
		if r.ID == request.ID {
			requests[i] = request
			replaced = true
			break
		}
	}
	if !replaced {
		requests = append(requests, request)
		if s.limits.MaxRequests > 0 && len(requests) > s.limits.MaxRequests {
			oldest := oldestRequestIndex(requests)
			evicted := requests[oldest]
			requests = append(requests[:oldest], requests[oldest+1:]...)
			s.log.Warn().
				Str("evictedId", evicted.ID).
				Str("submittedDate", evicted.SubmittedDate).
				Int("cap", s.limits.MaxRequests).
				Msg("request cap reached, evicting oldest request")
		}
	}

	if err := s.writeRequestsLocked(ctx, requests); err != nil {
		return Request{}, err
	}
	return request, nil
}

func (s *State) writeRequestsLocked(ctx context.Context, requests []Request) error {
	encoded, err := encodeCollection(requests)
	if err != nil {
		return fmt.Errorf("encode requests: %w", err)
	}
	if err := s.durable.Set(ctx, kv.KeyRequests, encoded); err != nil {
		return fmt.Errorf("write requests: %w", err)
	}
	s.invalidateRequestsLocked()
	return nil
}

func (s *State) invalidateRequestsLocked() {
	s.requests = nil
	s.requestsByUser = make(map[string][]Request)
}

// --- Comments ---

func (s *State) GetAllComments(ctx context.Context) []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.commentsLocked(ctx))
}

func (s *State) commentsLocked(ctx context.Context) []Comment {
	if s.comments != nil {
		return s.comments
	}
	s.comments = decodeComments(s.log, s.read(ctx, kv.KeyComments))
	return s.comments
}

func (s *State) GetRequestComments(ctx context.Context, requestID string) []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []Comment{}
	for _, c := range s.commentsLocked(ctx) {
		if c.RequestID == requestID {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp < matched[j].Timestamp
	})
	return matched
}

// AddComment appends a comment. At the per-request cap the comment is
// rejected (nil, no write); at the global cap the oldest comments on other
// requests are evicted in a fixed batch, keeping the comment being added.
func (s *State) AddComment(ctx context.Context, requestID, userID, text string) (*Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comments := cloneSlice(s.commentsLocked(ctx))
	onRequest := 0
	for _, c := range comments {
		if c.RequestID == requestID {
			onRequest++
		}
	}
	if s.limits.MaxCommentsPerRequest > 0 && onRequest >= s.limits.MaxCommentsPerRequest {
		s.log.Warn().
			Str("requestId", requestID).
			Int("cap", s.limits.MaxCommentsPerRequest).
			Msg("per-request comment cap reached, rejecting comment")
		return nil, nil
	}

	comment := Comment{
		ID:        newCommentID(),
		RequestID: requestID,
		UserID:    userID,
		Text:      text,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	comments = append(comments, comment)

	if s.limits.MaxCommentsTotal > 0 && len(comments) > s.limits.MaxCommentsTotal {
		comments = s.evictOldestComments(comments, requestID)
	}

	encoded, err := encodeCollection(comments)
	if err != nil {
		return nil, fmt.Errorf("encode comments: %w", err)
	}
	if err := s.durable.Set(ctx, kv.KeyComments, encoded); err != nil {
		return nil, fmt.Errorf("write comments: %w", err)
	}
	s.comments = nil
	return &comment, nil
}

// evictOldestComments removes up to CommentEvictBatch of the oldest comments
// that do not belong to keepRequestID.
func (s *State) evictOldestComments(comments []Comment, keepRequestID string) []Comment {
	batch := s.limits.CommentEvictBatch
	if batch <= 0 {
		batch = 1
	}

	candidates := make([]int, 0, len(comments))
	for i, c := range comments {
		if c.RequestID != keepRequestID {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return comments[candidates[i]].Timestamp < comments[candidates[j]].Timestamp
	})
	if len(candidates) > batch {
		candidates = candidates[:batch]
	}

	drop := make(map[int]struct{}, len(candidates))
	for _, i := range candidates {
		drop[i] = struct{}{}
	}
	kept := make([]Comment, 0, len(comments)-len(drop))
	for i, c := range comments {
		if _, gone := drop[i]; !gone {
			kept = append(kept, c)
		}
	}
	s.log.Warn().
		Int("evicted", len(drop)).
		Int("cap", s.limits.MaxCommentsTotal).
		Msg("global comment cap reached, evicting oldest comments")
	return kept
}

// --- Favorites ---

func (s *State) GetUserFavorites(ctx context.Context, userID string) []Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.favorites == nil {
		s.favorites = decodeFavorites(s.log, s.read(ctx, kv.KeyFavorites))
	}
	matched := []Favorite{}
	for _, f := range s.favorites {
		if f.UserID == userID {
			matched = append(matched, f)
		}
	}
	return matched
}

// --- Current user ---

func (s *State) GetCurrentUser(ctx context.Context) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUserLocked(ctx)
}

func (s *State) currentUserLocked(ctx context.Context) *User {
	if s.currentUser != nil {
		u := *s.currentUser
		return &u
	}
	raw, err := s.session.Get(ctx, kv.KeyCurrentUser)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn().Err(err).Msg("read current user")
		}
		return nil
	}
	user, ok := decodeUser(s.log, raw)
	if !ok {
		return nil
	}
	s.currentUser = &user
	u := user
	return &u
}

func (s *State) SetCurrentUser(ctx context.Context, user User) error {
	encoded, err := encodeCollection(user)
	if err != nil {
		return fmt.Errorf("encode current user: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.Set(ctx, kv.KeyCurrentUser, encoded); err != nil {
		return fmt.Errorf("write current user: %w", err)
	}
	u := user
	s.currentUser = &u
	return nil
}

func (s *State) ClearCurrentUser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = nil
	if err := s.session.Delete(ctx, kv.KeyCurrentUser); err != nil {
		return fmt.Errorf("clear current user: %w", err)
	}
	return nil
}

// InitializeDefaultUser selects the first seeded user when no session user
// exists yet.
func (s *State) InitializeDefaultUser(ctx context.Context) *User {
	if current := s.GetCurrentUser(ctx); current != nil {
		return current
	}
	users := s.GetUsers(ctx)
	if len(users) == 0 {
		return nil
	}
	if err := s.SetCurrentUser(ctx, users[0]); err != nil {
		s.log.Warn().Err(err).Msg("initialize default user")
		return nil
	}
	u := users[0]
	return &u
}

// --- Invalidation ---

// InvalidateCache clears the named mirror (users, requests, comments,
// favorites, currentUser) or everything for "all" and unknown kinds.
func (s *State) InvalidateCache(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(kind)
}

func (s *State) invalidateLocked(kind string) {
	switch kind {
	case kv.KeyUsers:
		s.users = nil
		s.userByID = make(map[string]User)
	case kv.KeyRequests:
		s.invalidateRequestsLocked()
	case kv.KeyComments:
		s.comments = nil
	case kv.KeyFavorites:
		s.favorites = nil
	case kv.KeyCurrentUser:
		s.currentUser = nil
	default:
		s.users = nil
		s.userByID = make(map[string]User)
		s.invalidateRequestsLocked()
		s.comments = nil
		s.favorites = nil
		s.currentUser = nil
	}
}

// WatchChanges invalidates mirrors when other store instances mutate the
// backing keys. Changes for keys outside the core's namespace are ignored,
// as are this instance's own writes.
func (s *State) WatchChanges(ctx context.Context, notifier kv.Notifier) error {
	changes, err := notifier.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for change := range changes {
			if change.Sender == notifier.SenderID() {
				continue
			}
			switch change.Key {
			case kv.KeyUsers, kv.KeyRequests, kv.KeyComments, kv.KeyFavorites:
				s.InvalidateCache(change.Key)
			}
		}
	}()
	return nil
}

func (s *State) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CacheStats{
		HasCurrentUser:     s.currentUser != nil,
		UsersCount:         len(s.users),
		RequestsCount:      len(s.requests),
		CommentsCount:      len(s.comments),
		FavoritesCount:     len(s.favorites),
		UserRequestsCached: len(s.requestsByUser),
		UserLookupsCached:  len(s.userByID),
	}
}

// --- helpers ---

// read fetches a durable key, treating both absence and storage errors as an
// empty value. Storage errors are logged; callers always get a usable
// collection.
func (s *State) read(ctx context.Context, key string) string {
	raw, err := s.durable.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn().Str("key", key).Err(err).Msg("durable read failed, substituting empty")
		}
		return ""
	}
	return raw
}

func oldestRequestIndex(requests []Request) int {
	oldest := 0
	for i := 1; i < len(requests); i++ {
		if lessSubmitted(requests[i], requests[oldest]) {
			oldest = i
		}
	}
	return oldest
}

// lessSubmitted orders requests by submittedDate. ISO-8601 UTC timestamps
// compare correctly as strings; unparseable dates sort oldest so junk is
// evicted first.
func lessSubmitted(a, b Request) bool {
	at, aerr := time.Parse(time.RFC3339, a.SubmittedDate)
	bt, berr := time.Parse(time.RFC3339, b.SubmittedDate)
	if aerr != nil || berr != nil {
		return a.SubmittedDate < b.SubmittedDate
	}
	return at.Before(bt)
}

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// clone detaches a request from the mirror's backing arrays. A shallow
// copy is not enough: decoded slices keep cap > len, so two callers
// appending to the same shared Timeline would write the same slot.
func (r Request) clone() Request {
	if r.Files != nil {
		r.Files = cloneSlice(r.Files)
	}
	if r.Timeline != nil {
		r.Timeline = cloneSlice(r.Timeline)
	}
	return r
}

func cloneRequests(in []Request) []Request {
	out := make([]Request, len(in))
	for i, r := range in {
		out[i] = r.clone()
	}
	return out
}
