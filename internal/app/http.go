package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskforge/api/internal/export"
	"taskforge/api/internal/realtime"
	"taskforge/api/internal/search"
	"taskforge/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
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
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/documents/ingest" {
		s.handleIngest(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/tasks" {
		s.handleListTasks(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "tasks" {
		taskID := parts[2]
		switch {
		case len(parts) == 3 && r.Method == http.MethodGet:
			s.handleGetTask(w, r, taskID)
		case len(parts) == 3 && r.Method == http.MethodPut:
			s.handleUpdateTask(w, r, taskID)
		case len(parts) == 3 && r.Method == http.MethodDelete:
			s.handleDeleteTask(w, r, taskID)
		case len(parts) == 4 && parts[3] == "status" && r.Method == http.MethodPut:
			s.handleUpdateStatus(w, r, taskID)
		case len(parts) == 4 && parts[3] == "assign" && r.Method == http.MethodPut:
			s.handleAssign(w, r, taskID)
		case len(parts) == 4 && parts[3] == "branch" && r.Method == http.MethodPost:
			s.handleCreateBranch(w, r, taskID)
		case len(parts) == 4 && parts[3] == "activity" && r.Method == http.MethodGet:
			s.handleActivity(w, r, taskID)
		case len(parts) == 5 && parts[3] == "activity" && parts[4] == "summary" && r.Method == http.MethodGet:
			s.handleActivitySummary(w, r, taskID)
		case len(parts) == 4 && parts[3] == "comments" && r.Method == http.MethodGet:
			s.handleListComments(w, r, taskID)
		case len(parts) == 4 && parts[3] == "comments" && r.Method == http.MethodPost:
			s.handleCreateComment(w, r, taskID)
		case len(parts) == 4 && parts[3] == "events" && r.Method == http.MethodGet:
			s.handleTaskEvents(w, r, taskID)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "comments" {
		commentID := parts[2]
		switch r.Method {
		case http.MethodPut:
			s.handleUpdateComment(w, r, commentID)
		case http.MethodDelete:
			s.handleDeleteComment(w, r, commentID)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "projects" {
		projectID := parts[2]
		switch {
		case parts[3] == "export" && r.Method == http.MethodGet:
			s.handleExport(w, r, projectID)
		case parts[3] == "history" && r.Method == http.MethodGet:
			s.handleHistory(w, r, projectID)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
		"redis":    map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if err := s.service.PingRealtime(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var body struct {
		ProjectID  string `json:"projectId"`
		Kind       string `json:"kind"`
		SourceFile string `json:"sourceFile"`
		Content    string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	result, err := s.service.IngestDocument(r.Context(), IngestRequest{
		ProjectID:  body.ProjectID,
		Kind:       body.Kind,
		SourceFile: body.SourceFile,
		Content:    body.Content,
		Actor:      actor,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	tasks, err := s.service.ListTasks(r.Context(), store.TaskFilter{
		ProjectID:  query.Get("projectId"),
		Epic:       query.Get("epic"),
		Status:     query.Get("status"),
		AssignedTo: query.Get("assignedTo"),
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *HTTPServer) handleGetTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := s.service.GetTask(r.Context(), taskID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleUpdateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	actor, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if err := decodeBody(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	task, err := s.service.UpdateTaskFields(r.Context(), taskID, fields, actor)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	actor, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	task, err := s.service.UpdateTaskStatus(r.Context(), taskID, body.Status, actor)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleAssign(w http.ResponseWriter, r *http.Request, taskID string) {
	actor, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var body struct {
		AssigneeID   string `json:"assigneeId"`
		AssigneeName string `json:"assigneeName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	task, err := s.service.AssignTask(r.Context(), taskID, body.AssigneeID, body.AssigneeName, actor)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if _, ok := s.requireIdentity(w, r); !ok {
		return
	}
	if err := s.service.DeleteTask(r.Context(), taskID); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCreateBranch(w http.ResponseWriter, r *http.Request, taskID string) {
	if _, ok := s.requireIdentity(w, r); !ok {
		return
	}
	if err := s.service.CreateTaskBranch(r.Context(), taskID); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"branch": "task/" + taskID})
}

func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request, taskID string) {
	query := r.URL.Query()
	views, err := s.service.TaskActivity(r.Context(), taskID, ActivityQuery{
		ActionType: query.Get("actionType"),
		UserID:     query.Get("userId"),
		FieldName:  query.Get("field"),
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": views})
}

func (s *HTTPServer) handleActivitySummary(w http.ResponseWriter, r *http.Request, taskID string) {
	summary, err := s.service.TaskActivitySummary(r.Context(), taskID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request, taskID string) {
	comments, err := s.service.ListComments(r.Context(), taskID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request, taskID string) {
	actor, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	comment, err := s.service.CreateComment(r.Context(), taskID, actor, body.Content)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *HTTPServer) handleUpdateComment(w http.ResponseWriter, r *http.Request, commentID string) {
	actor, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	comment, err := s.service.UpdateComment(r.Context(), commentID, actor, body.Content)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request, commentID string) {
	actor, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteComment(r.Context(), commentID, actor); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	response := s.service.Search(r.Context(), search.Query{
		Text:      query.Get("q"),
		ProjectID: query.Get("projectId"),
		Epic:      query.Get("epic"),
		Status:    query.Get("status"),
		Limit:     limit,
		Offset:    offset,
	})
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, projectID string) {
	query := r.URL.Query()
	format := export.Format(query.Get("format"))
	if format == "" {
		format = export.FormatHTML
	}
	result, err := s.service.ExportReport(r.Context(), export.Request{
		ProjectID: projectID,
		Title:     query.Get("title"),
		Format:    format,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, projectID string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 50
	}
	history, err := s.service.ProjectHistory(r.Context(), projectID, limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": history})
}

// handleTaskEvents streams refetch hints over SSE. Each realtime notification
// becomes one "refetch" event; clients respond by re-fetching the concern.
func (s *HTTPServer) handleTaskEvents(w http.ResponseWriter, r *http.Request, taskID string) {
	concern := r.URL.Query().Get("concern")
	if concern == "" {
		concern = realtime.ConcernActivity
	}
	if concern != realtime.ConcernActivity && concern != realtime.ConcernComments {
		writeError(w, http.StatusBadRequest, "INVALID_CONCERN", "concern must be activity or comments", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "streaming unsupported", nil)
		return
	}

	notifications, cancel, err := s.service.SubscribeTask(r.Context(), taskID, concern)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case n, open := <-notifications:
			if !open {
				return
			}
			payload, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: refetch\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// requireIdentity reads the acting user from headers. The service trusts the
// fronting gateway to have authenticated the caller.
func (s *HTTPServer) requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	identity := Identity{
		UserID:    strings.TrimSpace(r.Header.Get("X-User-Id")),
		UserName:  strings.TrimSpace(r.Header.Get("X-User-Name")),
		UserEmail: strings.TrimSpace(r.Header.Get("X-User-Email")),
	}
	if identity.UserID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "X-User-Id header is required", nil)
		return Identity{}, false
	}
	if identity.UserName == "" {
		identity.UserName = identity.UserID
	}
	return identity, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-User-Id, X-User-Name, X-User-Email")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
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

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
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

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
