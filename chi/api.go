package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fwojciec/dataops"
	dataopsjson "github.com/fwojciec/dataops/json"
	"github.com/go-chi/chi/v5"
)

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type queryRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type consentRequest struct {
	InvocationID string `json:"invocation_id"`
	Approve      bool   `json:"approve"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := s.cfg.Agent.CreateSession(r.Context(), req.UserID)
	if err != nil {
		s.respondErr(w, "create session", err)
		return
	}
	writeSession(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Sessions == nil {
		respondError(w, http.StatusNotImplemented, "session lookup is not available")
		return
	}
	sess, err := s.cfg.Sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, "get session", err)
		return
	}
	writeSession(w, http.StatusOK, sess)
}

func writeSession(w http.ResponseWriter, status int, sess dataops.Session) {
	data, err := dataopsjson.MarshalSession(sess)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode session")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// handleQuery streams one invocation as server-sent events: an "event"
// message per pipeline event, then either "error" or "done".
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req := dataops.QueryRequest{UserID: body.UserID, SessionID: chi.URLParam(r, "id"), Message: body.Message}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sse, ok := newSSE(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	err := s.cfg.Agent.StreamQuery(r.Context(), req, func(e dataops.Event) {
		data, err := dataopsjson.MarshalEvent(e)
		if err != nil {
			s.log.Error("failed to encode event", "invocation", e.InvocationID, "seq", e.Seq, "error", err)
			return
		}
		sse.send("event", data)
	})
	if err != nil {
		s.log.Error("query failed", "session", req.SessionID, "error", err)
		data, _ := json.Marshal(errorResponse{Error: err.Error()})
		sse.send("error", data)
		return
	}
	sse.send("done", []byte("{}"))
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InvocationID == "" {
		respondError(w, http.StatusBadRequest, "invocation_id is required")
		return
	}
	if err := s.cfg.Agent.Consent(r.Context(), chi.URLParam(r, "id"), req.InvocationID, req.Approve); err != nil {
		s.respondErr(w, "consent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondErr maps domain errors to status codes.
func (s *Server) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, dataops.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dataops.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dataops.ErrNoPendingConsent):
		respondError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error(op+" failed", "error", err)
		respondError(w, http.StatusInternalServerError, op+" failed")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// sse writes server-sent events.
type sse struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSE(w http.ResponseWriter) (*sse, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &sse{w: w, f: f}, true
}

// send writes one event. data must not contain newlines other than as
// line separators; each line becomes a data field.
func (s *sse) send(event string, data []byte) {
	fmt.Fprintf(s.w, "event: %s\n", event)
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(s.w, "data: %s\n", line)
	}
	fmt.Fprint(s.w, "\n")
	s.f.Flush()
}
