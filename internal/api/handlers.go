package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/do-one-thing/internal/blocker"
	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/pattern"
)

var errBadRequest = errors.New("bad request")

type classifyRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type batchRequest struct {
	Requests []classifyRequest `json:"requests"`
}

type batchResponse struct {
	Verdicts []model.Verdict `json:"verdicts"`
}

type startRequest struct {
	Intent string `json:"intent"`
}

type allowRequest struct {
	URL string `json:"url"`
}

type sessionResponse struct {
	Session *model.FocusSession `json:"session"`
}

type statsResponse struct {
	Stats      model.Stats         `json:"stats"`
	TopBlocked []model.DomainCount `json:"topBlocked"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := validateURL(req.URL); err != nil {
		s.writeError(w, err)
		return
	}

	verdict := s.deps.Decider.Classify(r.Context(), model.ClassificationRequest{URL: req.URL, Title: req.Title})
	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.Requests) > MaxBatchSize {
		s.writeError(w, fmt.Errorf("%w: at most %d requests per batch", errBadRequest, MaxBatchSize))
		return
	}

	reqs := make([]model.ClassificationRequest, len(req.Requests))
	for i, item := range req.Requests {
		if err := validateURL(item.URL); err != nil {
			s.writeError(w, fmt.Errorf("request %d: %w", i, err))
			return
		}
		reqs[i] = model.ClassificationRequest{URL: item.URL, Title: item.Title}
	}

	writeJSON(w, http.StatusOK, batchResponse{Verdicts: s.deps.Decider.ClassifyBatch(r.Context(), reqs)})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var nav blocker.Navigation
	if err := decodeJSON(w, r, &nav); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(nav.URL) == "" {
		s.writeError(w, fmt.Errorf("%w: url is required", errBadRequest))
		return
	}

	outcome, err := s.deps.Navigator.HandleNavigation(r.Context(), nav)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.Sessions.Current(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	session, err := s.deps.Sessions.Start(r.Context(), req.Intent)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.Sessions.End(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

func (s *Server) handleSessionAllow(w http.ResponseWriter, r *http.Request) {
	var req allowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	session, err := s.deps.Sessions.AllowDomain(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.State.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: stats, TopBlocked: stats.TopBlocked(10)})
}

func (s *Server) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.State.ResetStats(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.State.Settings(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var update model.SettingsUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		s.writeError(w, err)
		return
	}
	if update.Strictness != nil {
		if _, err := model.ParseStrictness(string(*update.Strictness)); err != nil {
			s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
	}

	settings, err := s.deps.State.UpdateSettings(r.Context(), update)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Cache.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: url is required", errBadRequest)
	}
	return pattern.Validate(rawURL)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var userErr *common.UserError
	switch {
	case common.IsConfigurationError(err):
		return http.StatusPreconditionFailed
	case errors.Is(err, common.ErrNoActiveSession):
		return http.StatusConflict
	case errors.Is(err, errBadRequest), errors.Is(err, common.ErrInvalidURL), errors.As(err, &userErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		message = userErr.UserMessage
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
