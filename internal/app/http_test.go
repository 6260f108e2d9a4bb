package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"frontdoor/api/internal/intake"
	"frontdoor/api/internal/kv"
	"frontdoor/api/internal/store"
)

func newTestServer(t *testing.T) (*HTTPServer, *store.State) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := kv.NewRedisStore("redis://"+mr.Addr(), "frontdoor:")
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	t.Cleanup(func() { rs.Close() })

	session := rs.Session(time.Hour)
	limits := store.Limits{
		MaxRequests:           500,
		MaxCommentsPerRequest: 100,
		MaxCommentsTotal:      2000,
		CommentEvictBatch:     10,
		RequestIDBase:         1001,
		IDLockTimeout:         2 * time.Second,
		IDLockRetries:         10,
	}
	state := store.New(rs, session, limits, zerolog.Nop())
	autosaver := intake.NewAutosaver(rs, 10*time.Millisecond, 7*24*time.Hour, zerolog.Nop())
	intakeSvc := intake.NewService(state, session, autosaver, zerolog.Nop())

	server := NewHTTPServer(state, intakeSvc, rs.Ping, "*", zerolog.Nop())
	return server, state
}

func doRequest(t *testing.T, server *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
}

func login(t *testing.T, state *store.State) {
	t.Helper()
	user := store.User{ID: "2", Name: "Priya Raman", Role: store.RoleEmployee, Department: "Sales"}
	if err := state.SetCurrentUser(context.Background(), user); err != nil {
		t.Fatalf("SetCurrentUser failed: %v", err)
	}
}

func createTestRequest(t *testing.T, state *store.State, title string) *store.Request {
	t.Helper()
	created, err := state.CreateRequest(context.Background(), store.CreateRequestInput{Title: title, Type: "Contract Review"})
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	return created
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	decodeResponse(t, rr, &response)
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/api/ready", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestReadyEndpointReportsStorageFailure(t *testing.T) {
	server, _ := newTestServer(t)
	server.ping = func(context.Context) error { return errors.New("connection refused") }

	rr := doRequest(t, server, http.MethodGet, "/api/ready", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
}

func TestUsersEndpoints(t *testing.T) {
	server, state := newTestServer(t)
	if err := state.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	rr := doRequest(t, server, http.MethodGet, "/api/users", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var users []store.User
	decodeResponse(t, rr, &users)
	if len(users) != 5 {
		t.Errorf("expected 5 seeded users, got %d", len(users))
	}

	rr = doRequest(t, server, http.MethodGet, "/api/users/4", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var user store.User
	decodeResponse(t, rr, &user)
	if user.Name != "Elena Vasquez" {
		t.Errorf("unexpected user %+v", user)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/users/999", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", rr.Code)
	}
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	server, state := newTestServer(t)
	login(t, state)
	created := createTestRequest(t, state, "Review MSA")

	// Fetch by ID.
	rr := doRequest(t, server, http.MethodGet, "/api/requests/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	// In Progress while unassigned is a guard violation.
	rr = doRequest(t, server, http.MethodPatch, "/api/requests/"+created.ID+"/status",
		`{"status":"In Progress","userId":"4"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 guard violation, got %d: %s", rr.Code, rr.Body.String())
	}

	// Assign, then the transition passes.
	rr = doRequest(t, server, http.MethodPatch, "/api/requests/"+created.ID+"/assignment",
		`{"assignedTo":"4","userId":"4"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodPatch, "/api/requests/"+created.ID+"/status",
		`{"status":"In Progress","userId":"4"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated store.Request
	decodeResponse(t, rr, &updated)
	if updated.Status != store.StatusInProgress || len(updated.Timeline) != 3 {
		t.Errorf("unexpected request after transition: %+v", updated)
	}

	// Unknown status values are rejected.
	rr = doRequest(t, server, http.MethodPatch, "/api/requests/"+created.ID+"/status",
		`{"status":"Escalated","userId":"4"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestDeleteRequestOverHTTP(t *testing.T) {
	server, state := newTestServer(t)
	login(t, state)
	created := createTestRequest(t, state, "Doomed")

	rr := doRequest(t, server, http.MethodDelete, "/api/requests/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/requests/"+created.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodDelete, "/api/requests/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown request, got %d", rr.Code)
	}
}

func TestCommentsOverHTTP(t *testing.T) {
	server, state := newTestServer(t)
	login(t, state)
	created := createTestRequest(t, state, "Review MSA")

	rr := doRequest(t, server, http.MethodPost, "/api/requests/"+created.ID+"/comments",
		`{"userId":"2","text":"Any update?"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodPost, "/api/requests/"+created.ID+"/comments",
		`{"userId":"2","text":"  "}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank comment, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/requests/"+created.ID+"/comments", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var comments []store.Comment
	decodeResponse(t, rr, &comments)
	if len(comments) != 1 || comments[0].Text != "Any update?" {
		t.Errorf("unexpected comments %+v", comments)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/requests/nope/comments", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown request, got %d", rr.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/api/session", "")
	var response map[string]any
	decodeResponse(t, rr, &response)
	if response["authenticated"] != false {
		t.Errorf("expected unauthenticated session, got %v", response)
	}

	rr = doRequest(t, server, http.MethodPut, "/api/session",
		`{"id":"2","name":"Priya Raman","role":"employee","department":"Sales"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodGet, "/api/session", "")
	decodeResponse(t, rr, &response)
	if response["authenticated"] != true {
		t.Errorf("expected authenticated session, got %v", response)
	}

	rr = doRequest(t, server, http.MethodDelete, "/api/session", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = doRequest(t, server, http.MethodGet, "/api/session", "")
	decodeResponse(t, rr, &response)
	if response["authenticated"] != false {
		t.Errorf("expected session cleared, got %v", response)
	}
}

func TestSessionPutRejectsIncompleteUser(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodPut, "/api/session", `{"id":"","name":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestIntakeValidateEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodPost, "/api/intake/validate",
		`{"helpType":"contractPull","agreementName":"MSA"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var response struct {
		Valid     bool                `json:"valid"`
		Errors    []intake.FieldError `json:"errors"`
		Completed int                 `json:"completed"`
		Total     int                 `json:"total"`
		NextField string              `json:"nextField"`
	}
	decodeResponse(t, rr, &response)
	if response.Valid {
		t.Error("expected incomplete form reported invalid")
	}
	if len(response.Errors) != 3 {
		t.Errorf("expected 3 violations, got %+v", response.Errors)
	}
	if response.Completed != 2 || response.Total != 5 {
		t.Errorf("expected 2/5 progress, got %d/%d", response.Completed, response.Total)
	}
	if response.NextField != "salesContract" {
		t.Errorf("expected salesContract next, got %q", response.NextField)
	}
}

func TestIntakeSubmitEndpoint(t *testing.T) {
	server, state := newTestServer(t)
	login(t, state)

	body := `{"helpType":"contractPull","salesContract":"yes","originatingEntity":"domestic","agreementName":"Cohesity-Acme MSA","contractPullDescription":"Need redline"}`
	rr := doRequest(t, server, http.MethodPost, "/api/intake/submit", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var created store.Request
	decodeResponse(t, rr, &created)
	if !strings.Contains(created.Title, "Cohesity-Acme MSA") || created.Status != store.StatusSubmitted {
		t.Errorf("unexpected created request %+v", created)
	}
}

func TestIntakeSubmitValidationFailure(t *testing.T) {
	server, state := newTestServer(t)
	login(t, state)

	rr := doRequest(t, server, http.MethodPost, "/api/intake/submit", `{"helpType":"other"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	var response map[string]any
	decodeResponse(t, rr, &response)
	if response["code"] != "FORM_INCOMPLETE" {
		t.Errorf("expected FORM_INCOMPLETE, got %v", response["code"])
	}
}

func TestIntakeSubmitWithoutSession(t *testing.T) {
	server, _ := newTestServer(t)

	body := `{"helpType":"other","otherDescription":"Need general advice."}`
	rr := doRequest(t, server, http.MethodPost, "/api/intake/submit", body)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestIntakeDraftEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/api/intake/draft", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a draft, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodPut, "/api/intake/draft",
		`{"helpType":"other","otherDescription":"work in progress"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}

	// The save is debounced; poll until it lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rr = doRequest(t, server, http.MethodGet, "/api/intake/draft", "")
		if rr.Code == http.StatusOK || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("draft never became readable, last status %d", rr.Code)
	}

	var response struct {
		Form intake.FormState `json:"form"`
	}
	decodeResponse(t, rr, &response)
	if response.Form.OtherDescription != "work in progress" {
		t.Errorf("unexpected draft %+v", response.Form)
	}

	rr = doRequest(t, server, http.MethodDelete, "/api/intake/draft", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = doRequest(t, server, http.MethodGet, "/api/intake/draft", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 after clear, got %d", rr.Code)
	}
}

func TestFavoritesEndpoint(t *testing.T) {
	server, state := newTestServer(t)
	if err := state.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	rr := doRequest(t, server, http.MethodGet, "/api/favorites?user=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/favorites", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user filter, got %d", rr.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/api/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
