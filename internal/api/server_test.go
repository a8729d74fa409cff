package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-quorum/infrastructure/storage"
	"github.com/ahrav/go-quorum/internal/domain"
)

const testToken = "test-token"

// stubCandidates returns canned candidates or an error.
type stubCandidates struct {
	candidates []domain.CandidateResponse
	err        error
}

func (s *stubCandidates) GetCandidates(context.Context, string) ([]domain.CandidateResponse, error) {
	return s.candidates, s.err
}

// stubEvaluator returns a canned result.
type stubEvaluator struct {
	result domain.EvaluationResult
	err    error
}

func (s *stubEvaluator) Evaluate(context.Context, string, []domain.CandidateResponse) (domain.EvaluationResult, error) {
	return s.result, s.err
}

// memoryHistory is an in-memory HistoryStore.
type memoryHistory struct {
	records []storage.Record
	saveErr error
}

func (m *memoryHistory) SaveResult(_ context.Context, prompt string, result domain.EvaluationResult) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, storage.Record{ID: result.ID, Prompt: prompt})
	return nil
}

func (m *memoryHistory) List(_ context.Context, offset, limit int) ([]storage.Record, error) {
	if offset >= len(m.records) {
		return []storage.Record{}, nil
	}
	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}
	return m.records[offset:end], nil
}

func (m *memoryHistory) Delete(_ context.Context, id string) (bool, error) {
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func sampleEvaluation() domain.EvaluationResult {
	winner := domain.ScoredCandidate{
		CandidateID: 0,
		FinalScore:  0.8,
		Response:    domain.CandidateResponse{ProviderName: "OpenAI", Text: "answer", ModelName: "m"},
	}
	return domain.EvaluationResult{
		ID:             "result-1",
		Winner:         &winner,
		Explainability: "Selected OpenAI (score: 0.80). Evidence: 0.00, Consensus: 0.00, Clarity: 0.00",
		AllCandidates:  []domain.ScoredCandidate{winner},
		Timestamp:      time.Now().UTC(),
	}
}

func newTestServer(candidates *stubCandidates, evaluator *stubEvaluator, history HistoryStore) *Server {
	return NewServer(candidates, evaluator, history, ServerConfig{Token: testToken})
}

func doRequest(t *testing.T, server *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

// TestServer_Auth verifies the bearer token gate on the API routes.
func TestServer_Auth(t *testing.T) {
	server := newTestServer(&stubCandidates{}, &stubEvaluator{}, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "not-the-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, server, http.MethodPost, "/api/aggregate", tt.token, aggregateRequest{Prompt: "q"})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	t.Run("health endpoint is public", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// TestServer_Aggregate verifies the main aggregation flow and its error
// mapping.
func TestServer_Aggregate(t *testing.T) {
	candidates := []domain.CandidateResponse{{ProviderName: "OpenAI", Text: "answer", ModelName: "m"}}

	t.Run("successful aggregation persists and responds", func(t *testing.T) {
		history := &memoryHistory{}
		server := newTestServer(
			&stubCandidates{candidates: candidates},
			&stubEvaluator{result: sampleEvaluation()},
			history,
		)

		rec := doRequest(t, server, http.MethodPost, "/api/aggregate", testToken, aggregateRequest{Prompt: "what is rain?"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp aggregateResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "result-1", resp.ID)
		assert.Equal(t, "what is rain?", resp.Prompt)
		require.NotNil(t, resp.Winner)
		assert.Equal(t, "OpenAI", resp.Winner.Response.ProviderName)
		require.Len(t, history.records, 1)
	})

	t.Run("blank prompt is rejected", func(t *testing.T) {
		server := newTestServer(&stubCandidates{candidates: candidates}, &stubEvaluator{}, nil)
		rec := doRequest(t, server, http.MethodPost, "/api/aggregate", testToken, aggregateRequest{Prompt: "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body is rejected", func(t *testing.T) {
		server := newTestServer(&stubCandidates{candidates: candidates}, &stubEvaluator{}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/aggregate", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Authorization", "Bearer "+testToken)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no candidates maps to service unavailable", func(t *testing.T) {
		server := newTestServer(&stubCandidates{}, &stubEvaluator{}, nil)
		rec := doRequest(t, server, http.MethodPost, "/api/aggregate", testToken, aggregateRequest{Prompt: "q"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("fan-out failure maps to bad gateway", func(t *testing.T) {
		server := newTestServer(&stubCandidates{err: errors.New("all providers down")}, &stubEvaluator{}, nil)
		rec := doRequest(t, server, http.MethodPost, "/api/aggregate", testToken, aggregateRequest{Prompt: "q"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("history save failure does not fail the request", func(t *testing.T) {
		server := newTestServer(
			&stubCandidates{candidates: candidates},
			&stubEvaluator{result: sampleEvaluation()},
			&memoryHistory{saveErr: errors.New("disk full")},
		)
		rec := doRequest(t, server, http.MethodPost, "/api/aggregate", testToken, aggregateRequest{Prompt: "q"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// TestServer_History verifies the history endpoints.
func TestServer_History(t *testing.T) {
	t.Run("list returns saved records", func(t *testing.T) {
		history := &memoryHistory{records: []storage.Record{{ID: "a"}, {ID: "b"}}}
		server := newTestServer(&stubCandidates{}, &stubEvaluator{}, history)

		rec := doRequest(t, server, http.MethodGet, "/api/history?limit=1", testToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var records []storage.Record
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
		assert.Len(t, records, 1)
	})

	t.Run("delete removes a record", func(t *testing.T) {
		history := &memoryHistory{records: []storage.Record{{ID: "a"}}}
		server := newTestServer(&stubCandidates{}, &stubEvaluator{}, history)

		rec := doRequest(t, server, http.MethodDelete, "/api/history/a", testToken, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, history.records)

		rec = doRequest(t, server, http.MethodDelete, "/api/history/a", testToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("nil history store lists empty", func(t *testing.T) {
		server := newTestServer(&stubCandidates{}, &stubEvaluator{}, nil)
		rec := doRequest(t, server, http.MethodGet, "/api/history", testToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})
}
