package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrWong99/closepath/internal/analysis"
	"github.com/MrWong99/closepath/internal/observe"
	"github.com/MrWong99/closepath/pkg/provider/llm"
)

// maxBodyBytes bounds the request body of /api/analyze.
const maxBodyBytes = 1 << 20

// errorBody is the JSON error envelope of /api/analyze.
type errorBody struct {
	Error   string `json:"error"`
	Raw     string `json:"raw,omitempty"`
	Details any    `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

// Handler serves POST /api/analyze on top of a [Service].
type Handler struct {
	svc *Service
}

var _ http.Handler = (*Handler)(nil)

// NewHandler returns a Handler for svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ServeHTTP implements [http.Handler].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
		return
	}

	var body struct {
		Transcript json.RawMessage `json:"transcript"`
		CallID     string          `json:"callId"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid transcript data"})
		return
	}
	var lines []analysis.Line
	raw := bytes.TrimSpace(body.Transcript)
	if len(raw) == 0 || raw[0] != '[' || json.Unmarshal(raw, &lines) != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid transcript data"})
		return
	}

	a, err := h.svc.Analyze(r.Context(), body.CallID, lines, h.svc.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := observe.Logger(r.Context())

	var parseErr *analysis.ParseError
	if errors.As(err, &parseErr) {
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "Failed to parse model response",
			Raw:   parseErr.Raw,
		})
		return
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		log.Error("analyzer: model api error", "provider", apiErr.Provider, "status", apiErr.StatusCode, "err", err)
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorBody{
			Error:   "Model API request failed",
			Details: details(apiErr.Body),
		})
		return
	}

	log.Error("analyzer: request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error:   "Internal server error",
		Message: err.Error(),
	})
}

// details returns body as decoded JSON when it is JSON, otherwise as a string.
func details(body string) any {
	if body == "" {
		return nil
	}
	var v any
	if json.Unmarshal([]byte(body), &v) == nil {
		return v
	}
	return body
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("analyzer: encode response", "err", err)
	}
}
