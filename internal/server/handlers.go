package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claimlens/claimlens/internal/batch"
	"github.com/claimlens/claimlens/internal/claims"
	"github.com/claimlens/claimlens/internal/nlp"
	"github.com/claimlens/claimlens/internal/redact"
)

type analyzeRequest struct {
	Text *string `json:"text"`
}

type batchRequest struct {
	Claims []batch.Claim `json:"claims"`
}

type errorBody struct {
	Error     string `json:"error"`
	Stage     string `json:"stage,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		respondError(w, r, http.StatusBadRequest, "missing text", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	res, err := s.analyzer.Analyze(ctx, *req.Text)
	if err != nil {
		s.respondAnalysisError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Claims) == 0 {
		respondError(w, r, http.StatusBadRequest, "claims must not be empty", "")
		return
	}
	if limit := s.cfg.MaxBatchClaims; limit > 0 && len(req.Claims) > limit {
		respondError(w, r, http.StatusRequestEntityTooLarge, "too many claims in batch", "")
		return
	}
	for i := range req.Claims {
		if req.Claims[i].ID == "" {
			req.Claims[i].ID = batch.DefaultClaimID(i)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	rep, err := s.runner.Run(ctx, req.Claims)
	if err != nil {
		s.respondAnalysisError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// decode reads a size-limited JSON body and writes 413/400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "request body too large", "")
			return false
		}
		respondError(w, r, http.StatusBadRequest, "invalid JSON body", "")
		return false
	}
	return true
}

func (s *Server) respondAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	stage := claims.FailedStage(err)
	switch {
	case errors.Is(err, nlp.ErrModelUnavailable):
		redact.Logf("analysis unavailable stage=%s request_id=%s: %v", stage, nlp.RequestIDFromContext(r.Context()), err)
		respondError(w, r, http.StatusServiceUnavailable, "model unavailable", stage)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "analysis timed out", stage)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		redact.Logf("analysis failed stage=%s request_id=%s: %v", stage, nlp.RequestIDFromContext(r.Context()), err)
		respondError(w, r, http.StatusInternalServerError, "analysis failed", stage)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		redact.Logf("failed to write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message, stage string) {
	respondJSON(w, status, errorBody{
		Error:     message,
		Stage:     stage,
		RequestID: nlp.RequestIDFromContext(r.Context()),
	})
}
