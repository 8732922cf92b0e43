package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bugtrackhq/bugtrack/internal/lifecycle"
	"github.com/bugtrackhq/bugtrack/internal/models"
	"github.com/bugtrackhq/bugtrack/internal/presence"
	"github.com/bugtrackhq/bugtrack/internal/store"
	"github.com/bugtrackhq/bugtrack/internal/wagate"
)

// Server provides the REST API handlers.
type Server struct {
	store     store.Store
	lifecycle *lifecycle.Service
	gateway   wagate.Gateway
	presence  *presence.Tracker
	log       *slog.Logger
}

// NewServer creates a new API server. A nil logger falls back to
// slog.Default.
func NewServer(s store.Store, lc *lifecycle.Service, gw wagate.Gateway, pt *presence.Tracker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: s, lifecycle: lc, gateway: gw, presence: pt, log: log}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/users", s.listUsers)
	mux.HandleFunc("POST /api/v1/users", s.createUser)
	mux.HandleFunc("GET /api/v1/users/{id}", s.getUser)

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)

	mux.HandleFunc("GET /api/v1/bugs", s.listBugs)
	mux.HandleFunc("POST /api/v1/bugs", s.createBug)
	mux.HandleFunc("GET /api/v1/bugs/{id}", s.getBug)
	mux.HandleFunc("DELETE /api/v1/bugs/{id}", s.deleteBug)
	mux.HandleFunc("POST /api/v1/bugs/{id}/status", s.moveBug)
	mux.HandleFunc("GET /api/v1/bugs/{id}/attachments", s.listAttachments)
	mux.HandleFunc("POST /api/v1/bugs/{id}/attachments", s.addAttachment)

	mux.HandleFunc("GET /api/v1/notifications", s.listNotifications)
	mux.HandleFunc("GET /api/v1/notifications/unread-count", s.unreadCount)
	mux.HandleFunc("POST /api/v1/notifications/{id}/read", s.markNotificationRead)

	mux.HandleFunc("GET /api/v1/wa/device", s.deviceStatus)
	mux.HandleFunc("GET /api/v1/presence", s.presenceSnapshot)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinels to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrNotAllowed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidStatus), errors.Is(err, lifecycle.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// currentUser resolves the acting user from the X-User-ID header. Session
// handling itself lives in front of this service; the API trusts the
// header the way the teacher of record trusts its reverse proxy.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) *models.User {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return nil
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return nil
	}
	s.presence.Touch(u.ID)
	return u
}

// --- Users ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(w, r) == nil {
		return
	}
	role := models.Role(r.URL.Query().Get("role"))
	users, err := s.store.ListUsers(r.Context(), role)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}
	if actor.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "only admins can create users")
		return
	}

	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if u.Name == "" || u.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}
	if u.Role != "" && !u.Role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if err := s.store.CreateUser(r.Context(), &u); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(w, r) == nil {
		return
	}
	u, err := s.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(w, r) == nil {
		return
	}
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}
	if actor.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "only admins can create projects")
		return
	}

	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(w, r) == nil {
		return
	}
	p, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}
	if actor.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "only admins can delete projects")
		return
	}
	if err := s.store.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Bugs ---

func (s *Server) listBugs(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}

	q := r.URL.Query()
	filter := store.BugListFilter{
		ProjectID:  q.Get("project_id"),
		Status:     models.BugStatus(q.Get("status")),
		Priority:   models.BugPriority(q.Get("priority")),
		Type:       models.BugType(q.Get("type")),
		AssignedTo: q.Get("assigned_to"),
		ReportedBy: q.Get("reported_by"),
	}
	// Clients only ever see their own reports.
	if actor.Role == models.RoleClient {
		filter.ReportedBy = actor.ID
	}

	bugs, err := s.store.ListBugs(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bugs)
}

type createBugRequest struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Type        string `json:"type"`
	AssignedTo  string `json:"assigned_to"`
	DueAt       string `json:"due_at"` // RFC 3339
}

func (s *Server) createBug(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}

	var req createBugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	params := lifecycle.ReportParams{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.BugPriority(req.Priority),
		Type:        models.BugType(req.Type),
		AssignedTo:  req.AssignedTo,
	}
	if req.DueAt != "" {
		due, err := time.Parse(time.RFC3339, req.DueAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "due_at must be RFC 3339")
			return
		}
		params.DueAt = &due
	}

	b, err := s.lifecycle.Report(r.Context(), params, actor)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) getBug(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(w, r) == nil {
		return
	}
	b, err := s.store.GetBug(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) deleteBug(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}
	if actor.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "only admins can delete bugs")
		return
	}
	if err := s.store.DeleteBug(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) moveBug(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	b, err := s.lifecycle.Transition(r.Context(), r.PathValue("id"), models.BugStatus(req.Status), actor)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// --- Attachments ---

func (s *Server) listAttachments(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(w, r) == nil {
		return
	}
	attachments, err := s.store.ListAttachments(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attachments)
}

// addAttachment records attachment metadata. The blob itself is stored
// by the upload collaborator before this is called.
func (s *Server) addAttachment(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(w, r) == nil {
		return
	}

	bugID := r.PathValue("id")
	if _, err := s.store.GetBug(r.Context(), bugID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req struct {
		FileName  string `json:"file_name"`
		StorePath string `json:"store_path"`
		Size      int64  `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "file_name is required")
		return
	}
	a := models.Attachment{
		BugID:     bugID,
		FileName:  req.FileName,
		StorePath: req.StorePath,
		Size:      req.Size,
	}
	if err := s.store.AddAttachment(r.Context(), &a); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// --- Notifications ---

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "1"
	notifications, err := s.store.ListNotifications(r.Context(), actor.ID, unreadOnly)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}
	count, err := s.store.CountUnreadNotifications(r.Context(), actor.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor := s.currentUser(w, r)
	if actor == nil {
		return
	}
	if err := s.store.MarkNotificationRead(r.Context(), r.PathValue("id"), actor.ID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Gateway / presence ---

func (s *Server) deviceStatus(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(w, r) == nil {
		return
	}
	device, err := s.gateway.DeviceStatus(r.Context())
	if err != nil {
		// Diagnostic endpoint: report the failure, don't 500.
		writeJSON(w, http.StatusOK, map[string]any{"online": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) presenceSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(w, r) == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"online": s.presence.Snapshot()})
}
