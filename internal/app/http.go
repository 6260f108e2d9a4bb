// Package app exposes the request tracking core over a JSON HTTP API.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"frontdoor/api/internal/intake"
	"frontdoor/api/internal/store"
)

type HTTPServer struct {
	state      *store.State
	intake     *intake.Service
	ping       func(ctx context.Context) error
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(state *store.State, intakeSvc *intake.Service, ping func(ctx context.Context) error, corsOrigin string, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		state:      state,
		intake:     intakeSvc,
		ping:       ping,
		corsOrigin: corsOrigin,
		log:        log.With().Str("component", "http").Logger(),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":     false,
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ready"})
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 2 && parts[0] == "api" && parts[1] == "users" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.state.GetUsers(r.Context()))
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "users" && r.Method == http.MethodGet {
		user, ok := s.state.GetUser(r.Context(), parts[2])
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, user)
		return
	}

	if len(parts) == 2 && parts[0] == "api" && parts[1] == "requests" && r.Method == http.MethodGet {
		if userID := r.URL.Query().Get("user"); userID != "" {
			writeJSON(w, http.StatusOK, s.state.GetUserRequests(r.Context(), userID))
			return
		}
		writeJSON(w, http.StatusOK, s.state.GetAllRequests(r.Context()))
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "requests" {
		s.handleRequest(w, r, parts[2])
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "requests" {
		s.handleRequestSub(w, r, parts[2], parts[3])
		return
	}

	if len(parts) == 2 && parts[0] == "api" && parts[1] == "favorites" && r.Method == http.MethodGet {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "user query parameter is required", nil)
			return
		}
		writeJSON(w, http.StatusOK, s.state.GetUserFavorites(r.Context(), userID))
		return
	}

	if len(parts) == 2 && parts[0] == "api" && parts[1] == "session" {
		s.handleSession(w, r)
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "intake" {
		s.handleIntake(w, r, parts[2:])
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "diagnostics" && parts[2] == "cache" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.state.Stats())
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	switch r.Method {
	case http.MethodGet:
		request, ok := s.state.GetRequest(r.Context(), requestID)
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Request not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, request)

	case http.MethodDelete:
		if err := s.state.DeleteRequest(r.Context(), requestID); err != nil {
			status, code, message := mapStoreError(err)
			writeError(w, status, code, message, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleRequestSub(w http.ResponseWriter, r *http.Request, requestID, sub string) {
	switch {
	case sub == "status" && r.Method == http.MethodPatch:
		var body struct {
			Status string `json:"status"`
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.state.UpdateRequestStatus(r.Context(), requestID, body.Status, body.UserID)
		if err != nil {
			status, code, message := mapStoreError(err)
			writeError(w, status, code, message, nil)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case sub == "assignment" && r.Method == http.MethodPatch:
		var body struct {
			AssignedTo string `json:"assignedTo"`
			UserID     string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.state.UpdateRequestAssignment(r.Context(), requestID, body.AssignedTo, body.UserID)
		if err != nil {
			status, code, message := mapStoreError(err)
			writeError(w, status, code, message, nil)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case sub == "comments" && r.Method == http.MethodGet:
		if _, ok := s.state.GetRequest(r.Context(), requestID); !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Request not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, s.state.GetRequestComments(r.Context(), requestID))

	case sub == "comments" && r.Method == http.MethodPost:
		if _, ok := s.state.GetRequest(r.Context(), requestID); !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Request not found", nil)
			return
		}
		var body struct {
			UserID string `json:"userId"`
			Text   string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Text) == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "Comment text is required", nil)
			return
		}
		comment, err := s.state.AddComment(r.Context(), requestID, body.UserID, body.Text)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
			return
		}
		if comment == nil {
			writeError(w, http.StatusConflict, "COMMENT_LIMIT", "Comment limit reached for this request", nil)
			return
		}
		writeJSON(w, http.StatusCreated, comment)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		user := s.state.GetCurrentUser(r.Context())
		if user == nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "user": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user})

	case http.MethodPut:
		var user store.User
		if err := decodeBody(r, &user); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if user.ID == "" || user.Name == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "User id and name are required", nil)
			return
		}
		if err := s.state.SetCurrentUser(r.Context(), user); err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case http.MethodDelete:
		if err := s.state.ClearCurrentUser(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleIntake(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case parts[0] == "draft" && r.Method == http.MethodGet:
		form, ok := s.intake.Autosaver().Load(r.Context())
		if !ok {
			writeError(w, http.StatusNotFound, "NO_DRAFT", "No restorable draft", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"form": form, "status": s.intake.Autosaver().Status()})

	case parts[0] == "draft" && r.Method == http.MethodPut:
		var form intake.FormState
		if err := decodeBody(r, &form); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.intake.Autosaver().Schedule(form)
		writeJSON(w, http.StatusAccepted, map[string]any{"scheduled": true})

	case parts[0] == "draft" && r.Method == http.MethodDelete:
		if err := s.intake.Autosaver().Clear(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case parts[0] == "validate" && r.Method == http.MethodPost:
		var form intake.FormState
		if err := decodeBody(r, &form); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		form = intake.ApplyVisibility(form)
		fieldErrs := intake.ValidateForm(form)
		completed, total, percent := intake.Progress(form)
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":          len(fieldErrs) == 0,
			"errors":         fieldErrs,
			"requiredFields": intake.ComputeRequiredFields(form),
			"completed":      completed,
			"total":          total,
			"percent":        percent,
			"nextField":      intake.NextIncompleteField(form),
		})

	case parts[0] == "prefill" && r.Method == http.MethodPost:
		var body struct {
			Department string `json:"department"`
			Type       string `json:"type"`
			Title      string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		prefill := intake.Prefill{Department: body.Department, Type: body.Type, Title: body.Title}
		if err := s.intake.StagePrefill(r.Context(), prefill); err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case parts[0] == "submit" && r.Method == http.MethodPost:
		var form intake.FormState
		if err := decodeBody(r, &form); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.intake.Submit(r.Context(), form)
		if err != nil {
			var verr *intake.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusUnprocessableEntity, "FORM_INCOMPLETE", "Required fields are missing", verr.Fields)
				return
			}
			var cerr *intake.ContentError
			if errors.As(err, &cerr) {
				writeError(w, http.StatusUnprocessableEntity, "CONTENT_INVALID", "Content validation failed", cerr.Problems)
				return
			}
			if errors.Is(err, store.ErrNoCurrentUser) {
				writeError(w, http.StatusUnauthorized, "NO_SESSION", "No current user", nil)
				return
			}
			s.log.Error().Err(err).Msg("intake submit")
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func mapStoreError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, store.ErrRequestNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Request not found"
	case errors.Is(err, store.ErrUnknownStatus):
		return http.StatusBadRequest, "INVALID_STATUS", err.Error()
	case errors.Is(err, store.ErrInProgressUnassigned), errors.Is(err, store.ErrUnassignWhileInProgress):
		return http.StatusConflict, "GUARD_VIOLATION", err.Error()
	case errors.Is(err, store.ErrNoCurrentUser):
		return http.StatusUnauthorized, "NO_SESSION", "No current user"
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error"
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
