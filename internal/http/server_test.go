package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgrovelabs/tutord/internal/directive"
	"github.com/ashgrovelabs/tutord/internal/evaluation"
	"github.com/ashgrovelabs/tutord/internal/gateway"
	"github.com/ashgrovelabs/tutord/internal/tutor"
)

const testCfgJSON = `{
	"context_instructions": "You are a strict math tutor.",
	"directives": {
		"feedback": "Give feedback on {{.output}}",
		"correctness": "Answer Correct or Incorrect for {{.output}}"
	},
	"model_name": "gpt-4o-mini"
}`

// verdictCompleter grades everything as the configured verdict and echoes
// other prompts.
type verdictCompleter struct {
	verdict string
}

func (f verdictCompleter) Complete(_ context.Context, req gateway.Request) (string, error) {
	if strings.HasPrefix(req.Prompt, "Answer Correct or Incorrect") {
		return f.verdict, nil
	}
	return "reply to: " + req.Prompt, nil
}

func testService(t *testing.T) *evaluation.Service {
	t.Helper()
	cfg, err := directive.ParseConfig([]byte(testCfgJSON), directive.DefaultContract())
	require.NoError(t, err)
	tut, err := tutor.New(cfg, verdictCompleter{verdict: "Correct"}, tutor.Options{}, nil)
	require.NoError(t, err)
	svc, err := evaluation.NewService(tut, evaluation.Options{}, nil)
	require.NoError(t, err)
	return svc
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	svc := testService(t)
	boot := evaluation.NewBootstrap(func(ctx context.Context) (*evaluation.Service, error) {
		return svc, nil
	})
	server, err := NewServer(boot, nil, nil)
	require.NoError(t, err)
	return server
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		svc := testService(t)
		boot := evaluation.NewBootstrap(func(ctx context.Context) (*evaluation.Service, error) {
			return svc, nil
		})

		cfg := &Config{Host: "localhost", Port: 9090}
		server, err := NewServer(boot, nil, cfg)
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server := setupTestServer(t)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
	})

	t.Run("returns error when bootstrap is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bootstrap cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Ready, "the service initializes lazily")

	// First evaluation initializes the service; health flips to ready.
	postJSON(t, server, "/api/v1/evaluation", evaluation.Request{
		Response: "q#Answer: a",
	})

	rec = httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
}

func TestHandleEvaluation(t *testing.T) {
	server := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/evaluation", evaluation.Request{
		Response: "What is 2+2?#Answer: The answer is 4.",
		Answer:   json.RawMessage(`"No exemplary solution provided"`),
		Params:   evaluation.Params{ModelName: "gpt-4o-mini"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var result evaluation.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.IsCorrect)
	assert.NotEmpty(t, result.Feedback)
}

func TestHandleEvaluation_BadRequests(t *testing.T) {
	server := setupTestServer(t)

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluation",
			strings.NewReader("{not json"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing response field", func(t *testing.T) {
		rec := postJSON(t, server, "/api/v1/evaluation", evaluation.Request{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleEvaluation_QuotaRefusal(t *testing.T) {
	server := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/evaluation", evaluation.Request{
		Response: "q#Answer: a",
		Params: evaluation.Params{
			SubmissionContext: &evaluation.SubmissionContext{
				SubmissionsPerStudentPerResponseArea: 6,
			},
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code, "a refusal is a result, not an HTTP error")

	var result evaluation.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.IsCorrect)
	assert.Contains(t, result.Feedback, "maximum number of submissions")
}

func TestHandleEvaluation_ServiceUnavailable(t *testing.T) {
	boot := evaluation.NewBootstrap(func(ctx context.Context) (*evaluation.Service, error) {
		return nil, errors.New("no usable grading config")
	})
	server, err := NewServer(boot, nil, nil)
	require.NoError(t, err)

	rec := postJSON(t, server, "/api/v1/evaluation", evaluation.Request{
		Response: "q#Answer: a",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = postJSON(t, server, "/api/v1/evaluation/batch", BatchRequest{
		Requests: []evaluation.Request{{Response: "q#Answer: a"}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleBatch(t *testing.T) {
	server := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/evaluation/batch", BatchRequest{
		Requests: []evaluation.Request{
			{Response: "q0#Answer: alpha"},
			{Response: "q1#Answer: beta"},
			{Response: "q2#Answer: gamma"},
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	for i, want := range []string{"alpha", "beta", "gamma"} {
		assert.Contains(t, resp.Results[i].Feedback, want, "result %d out of order", i)
	}
}

func TestHandleBatch_BadRequests(t *testing.T) {
	server := setupTestServer(t)

	t.Run("empty batch", func(t *testing.T) {
		rec := postJSON(t, server, "/api/v1/evaluation/batch", BatchRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized batch", func(t *testing.T) {
		reqs := make([]evaluation.Request, maxBatchItems+1)
		for i := range reqs {
			reqs[i] = evaluation.Request{Response: "q#Answer: a"}
		}
		rec := postJSON(t, server, "/api/v1/evaluation/batch", BatchRequest{Requests: reqs})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "exceeds limit")
	})
}

func TestHandleRestart(t *testing.T) {
	svc := testService(t)
	broken := true
	boot := evaluation.NewBootstrap(func(ctx context.Context) (*evaluation.Service, error) {
		if broken {
			return nil, errors.New("no usable grading config")
		}
		return svc, nil
	})
	server, err := NewServer(boot, nil, nil)
	require.NoError(t, err)

	// Initialization fails and the failure is cached.
	rec := postJSON(t, server, "/api/v1/evaluation", evaluation.Request{Response: "q#Answer: a"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = postJSON(t, server, "/api/v1/restart", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "initialization failed")

	// Repair the deployment; only an explicit restart picks it up.
	broken = false
	rec = postJSON(t, server, "/api/v1/evaluation", evaluation.Request{Response: "q#Answer: a"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "failures stay cached until restart")

	rec = postJSON(t, server, "/api/v1/restart", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, server, "/api/v1/evaluation", evaluation.Request{Response: "q#Answer: a"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t)

	// Generate one request so the counters exist.
	postJSON(t, server, "/api/v1/evaluation", evaluation.Request{Response: "q#Answer: a"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
