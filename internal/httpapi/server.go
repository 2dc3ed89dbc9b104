package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activity"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/formatting"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/streaming"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/tracing"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/workflows"
)

// Session identification.
const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"
)

const maxBodyBytes = 1 << 20

// Server exposes the conversation over JSON HTTP.
type Server struct {
	store      *session.Store
	controller *workflows.Controller
	acts       *activities.Activities
	events     *streaming.Manager
	logger     *zap.Logger
}

// NewServer wires the API handlers. A nil events manager uses the process-wide one.
func NewServer(store *session.Store, controller *workflows.Controller, acts *activities.Activities, events *streaming.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = streaming.Get()
	}
	return &Server{store: store, controller: controller, acts: acts, events: events, logger: logger}
}

// RegisterRoutes registers the API and progress stream routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("POST /api/regenerate-section", s.handleRegenerate)
	mux.HandleFunc("GET /api/progress", s.handleProgress)
	NewStreamingHandler(s.events, s.logger).RegisterRoutes(mux)
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply            string           `json:"reply"`
	Stage            session.Stage    `json:"stage"`
	SessionID        string           `json:"session_id"`
	ProgressLog      []string         `json:"progress_log"`
	HasAccountPlan   bool             `json:"has_account_plan"`
	ResearchActivity []activity.Event `json:"research_activity"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sess := s.session(w, r)
	ctx, span := tracing.StartSpan(r.Context(), "api.chat", "session_id", sess.ID)
	defer span.End()

	unlock := s.store.Lock(sess.ID)
	reply := s.controller.HandleMessage(ctx, sess, message)
	unlock()

	snap := sess.Snapshot()
	s.writeJSON(w, http.StatusOK, chatResponse{
		Reply:            reply,
		Stage:            snap.Stage,
		SessionID:        sess.ID,
		ProgressLog:      snap.ProgressLog,
		HasAccountPlan:   sess.Report() != nil,
		ResearchActivity: snap.ResearchActivity,
	})
}

type reportResponse struct {
	CompanyName string            `json:"company_name,omitempty"`
	Scope       map[string]string `json:"scope,omitempty"`
	Sections    map[string]string `json:"sections"`
	Version     int               `json:"version,omitempty"`
	Sources     []research.Source `json:"sources"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	plan := sess.Report()
	markdown := strings.EqualFold(r.URL.Query().Get("format"), "markdown")

	if plan == nil {
		if markdown {
			s.writeError(w, http.StatusNotFound, "no account plan available")
			return
		}
		s.writeJSON(w, http.StatusOK, reportResponse{Sections: map[string]string{}, Sources: []research.Source{}})
		return
	}

	var sources []research.Source
	if b := sess.Bundle(); b != nil {
		sources = b.Sources
	}
	exp := plan.ToExport(sources)

	if markdown {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", exportFilename(exp.CompanyName)))
		_, _ = io.WriteString(w, formatting.FormatReportMarkdown(exp))
		return
	}

	sections := make(map[string]string, len(exp.Sections))
	for _, sec := range exp.Sections {
		sections[string(sec.ID)] = sec.Text
	}
	if exp.Sources == nil {
		exp.Sources = []research.Source{}
	}
	s.writeJSON(w, http.StatusOK, reportResponse{
		CompanyName: exp.CompanyName,
		Scope:       exp.Scope,
		Sections:    sections,
		Version:     exp.Version,
		Sources:     exp.Sources,
	})
}

type regenerateRequest struct {
	Section     string `json:"section"`
	Instruction string `json:"instruction"`
}

type regenerateResponse struct {
	Section report.Section `json:"section"`
	Version int            `json:"version"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Section) == "" {
		s.writeError(w, http.StatusBadRequest, "section is required")
		return
	}
	sec, err := report.ParseSection(req.Section)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unknown section: "+req.Section)
		return
	}

	sess := s.session(w, r)
	unlock := s.store.Lock(sess.ID)
	defer unlock()

	if sess.Stage().Busy() {
		s.writeError(w, http.StatusConflict, "session is busy: "+string(sess.Stage()))
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), "api.regenerate_section", "session_id", sess.ID, "section", string(sec))
	defer span.End()

	updated, err := s.acts.RegenerateSection(ctx, sess, sec, strings.TrimSpace(req.Instruction))
	switch {
	case errors.Is(err, activities.ErrMissingBundle), errors.Is(err, activities.ErrMissingReport):
		s.writeError(w, http.StatusConflict, "no plan available to regenerate")
		return
	case err != nil:
		s.logger.Warn("Regeneration failed", zap.String("session_id", sess.ID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, regenerateResponse{Section: sec, Version: updated.Version})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

// session resolves the caller's session, creating one on first contact, and
// echoes its id back as a header and cookie.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, created := s.store.GetOrCreate(requestSessionID(r))
	if created {
		s.logger.Debug("Session started over HTTP", zap.String("session_id", sess.ID))
	}
	w.Header().Set(SessionHeader, sess.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// requestSessionID reads the header first, then the cookie, then the query.
func requestSessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	return strings.TrimSpace(r.URL.Query().Get(SessionCookie))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func exportFilename(company string) string {
	name := strings.Join(strings.Fields(company), "_")
	if name == "" {
		name = "account"
	}
	return name + "_account_plan.md"
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
