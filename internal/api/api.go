// Package api serves the call-session HTTP API: starting and ending calls,
// pushing utterances, marking questions asked, exporting reports and
// streaming snapshots over a websocket.
//
// Errors are JSON objects of the form {"error": "..."}. An unknown call id
// yields 404 and a change to an ended call yields 409.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/closepath/internal/export"
	"github.com/MrWong99/closepath/internal/observe"
	"github.com/MrWong99/closepath/internal/session"
)

const maxBodyBytes = 1 << 16

// Calls is the call registry the API drives. [*session.Manager] satisfies it.
type Calls interface {
	Start(mode session.Mode) (*session.Call, error)
	Get(id string) (*session.Call, error)
	End(id string) (session.Snapshot, error)
}

// Option configures a [Server].
type Option func(*Server)

// WithClock replaces time.Now for export timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithOriginPatterns allows websocket upgrades from the given host patterns
// in addition to same-origin requests.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, patterns...) }
}

// Server implements the call routes.
type Server struct {
	calls   Calls
	now     func() time.Time
	origins []string
}

// New returns a Server backed by calls.
func New(calls Calls, opts ...Option) *Server {
	s := &Server{calls: calls, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the call routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/calls", s.startCall)
	mux.HandleFunc("GET /api/calls/{id}", s.getCall)
	mux.HandleFunc("DELETE /api/calls/{id}", s.endCall)
	mux.HandleFunc("POST /api/calls/{id}/utterances", s.appendUtterance)
	mux.HandleFunc("POST /api/calls/{id}/asked", s.markAsked)
	mux.HandleFunc("GET /api/calls/{id}/export", s.exportCall)
	mux.HandleFunc("GET /api/calls/{id}/ws", s.stream)
}

type startRequest struct {
	Mode string `json:"mode"`
}

type utteranceRequest struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type askedRequest struct {
	Question string `json:"question"`
}

func (s *Server) startCall(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.calls.Start(mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("api: call started", "call_id", c.ID(), "mode", mode)
	writeJSON(w, http.StatusCreated, c.Snapshot())
}

func (s *Server) getCall(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) endCall(w http.ResponseWriter, r *http.Request) {
	snap, err := s.calls.End(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) appendUtterance(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req utteranceRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := c.AppendUtterance(req.Speaker, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) markAsked(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req askedRequest
	if !decode(w, r, &req) {
		return
	}
	if err := c.MarkAsked(req.Question); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) exportCall(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown export format"})
		return
	}
	body, err := export.Render(export.NewReport(c.Snapshot(), s.now()), format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(c.ID(), format)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Call, bool) {
	c, err := s.calls.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return c, true
}

// ── Helpers ───────────────────────────────────────────────────────────────────

type errorBody struct {
	Error string `json:"error"`
}

// decode reads a required JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

// decodeOptional is decode that also accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

// statusFor maps session errors to HTTP status and client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrCallNotFound):
		return http.StatusNotFound, "call not found"
	case errors.Is(err, session.ErrCallEnded):
		return http.StatusConflict, "call ended"
	case errors.Is(err, session.ErrNotLive):
		return http.StatusConflict, "call is not in live mode"
	case errors.Is(err, session.ErrInvalidMode):
		return http.StatusBadRequest, "invalid mode"
	case errors.Is(err, session.ErrEmptyText):
		return http.StatusBadRequest, "text is required"
	case errors.Is(err, session.ErrShutdown):
		return http.StatusServiceUnavailable, "server is shutting down"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("api: request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}
