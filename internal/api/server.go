// Package api exposes the aggregation engine over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-quorum/infrastructure/storage"
	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
)

// Evaluator scores candidates and selects a winner.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string, candidates []domain.CandidateResponse) (domain.EvaluationResult, error)
}

// HistoryStore persists and serves past evaluations.
type HistoryStore interface {
	SaveResult(ctx context.Context, prompt string, result domain.EvaluationResult) error
	List(ctx context.Context, offset, limit int) ([]storage.Record, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Token is the bearer token required on the /api routes.
	Token string

	// RequestTimeout bounds one aggregation request end to end.
	RequestTimeout time.Duration
}

// Server routes HTTP requests to the aggregation engine.
type Server struct {
	candidates ports.CandidateProvider
	evaluator  Evaluator
	history    HistoryStore
	config     ServerConfig
	mux        *http.ServeMux
}

// NewServer wires the handlers. The history store may be nil, which
// disables persistence and the history endpoints' content.
func NewServer(candidates ports.CandidateProvider, evaluator Evaluator, history HistoryStore, config ServerConfig) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 2 * time.Minute
	}

	s := &Server{
		candidates: candidates,
		evaluator:  evaluator,
		history:    history,
		config:     config,
		mux:        http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.Handle("POST /api/aggregate", s.requireAuth(http.HandlerFunc(s.handleAggregate)))
	s.mux.Handle("GET /api/history", s.requireAuth(http.HandlerFunc(s.handleHistoryList)))
	s.mux.Handle("DELETE /api/history/{id}", s.requireAuth(http.HandlerFunc(s.handleHistoryDelete)))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// requireAuth enforces the bearer token on protected routes.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type aggregateRequest struct {
	Prompt string `json:"prompt"`
}

type aggregateResponse struct {
	ID            string                   `json:"id"`
	Prompt        string                   `json:"prompt"`
	Winner        *domain.ScoredCandidate  `json:"winner"`
	Explanation   string                   `json:"explanation"`
	AllCandidates []domain.ScoredCandidate `json:"all_candidates"`
	Timestamp     time.Time                `json:"timestamp"`
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()
	log := clog.FromContext(ctx)

	var req aggregateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(w, http.StatusBadRequest, domain.ErrEmptyPrompt.Error())
		return
	}

	candidates, err := s.candidates.GetCandidates(ctx, prompt)
	if err != nil {
		log.Errorf("candidate fan-out failed: %v", err)
		writeError(w, http.StatusBadGateway, "failed to query providers")
		return
	}
	if len(candidates) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no providers returned a response")
		return
	}

	result, err := s.evaluator.Evaluate(ctx, prompt, candidates)
	if err != nil {
		log.Errorf("evaluation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	// Persistence is best effort; a full history table must never block
	// an answer.
	if s.history != nil {
		if err := s.history.SaveResult(ctx, prompt, result); err != nil {
			log.Warnf("saving history failed: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, aggregateResponse{
		ID:            result.ID,
		Prompt:        prompt,
		Winner:        result.Winner,
		Explanation:   result.Explainability,
		AllCandidates: result.AllCandidates,
		Timestamp:     result.Timestamp,
	})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []storage.Record{})
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	records, err := s.history.List(r.Context(), offset, limit)
	if err != nil {
		clog.FromContext(r.Context()).Errorf("listing history failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	id := r.PathValue("id")
	existed, err := s.history.Delete(r.Context(), id)
	if err != nil {
		clog.FromContext(r.Context()).Errorf("deleting history record failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return defaultVal
	}
	return val
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
