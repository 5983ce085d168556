package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evoplan/internal/config"
	"evoplan/internal/events"
	"evoplan/internal/models"
	"evoplan/internal/provider"
	"evoplan/internal/store"
)

const (
	feedbackText = `Category: Bug Reports (4)
Category: Performance (3)

Sentiment: positive 40%, neutral 30%, negative 30%`

	featuresText = `FEATURE 1:
Name: Crash Fixes
Description: Eliminate startup crashes
Priority: High
Complexity: Medium`

	technicalText = `FEATURE 1:
Name: Crash Fixes
Complexity: 2
Effort: 5
Feasibility: 80`

	sprintText = `SPRINT 1:
Duration: 2 weeks
Features: Crash Fixes
Goals: Stabilize the app`

	stakeholderText = `Highlights:
- Crash fixes scheduled first

Next Steps:
- Start sprint 1`
)

type stubProvider struct {
	mu    sync.Mutex
	calls []provider.Request
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(_ context.Context, req provider.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	switch {
	case strings.Contains(req.Prompt, "update for stakeholders"):
		return stakeholderText, nil
	case strings.Contains(req.Prompt, "Create a sprint plan"):
		return sprintText, nil
	case strings.Contains(req.Prompt, "technical feasibility"):
		return technicalText, nil
	case strings.Contains(req.Prompt, "feature proposals"):
		return featuresText, nil
	default:
		return feedbackText, nil
	}
}

func (s *stubProvider) requests() []provider.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Request(nil), s.calls...)
}

func newTestServer(t *testing.T) (*httptest.Server, *stubProvider) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "evoplan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	cfg := &config.Config{
		APIKey:        "test-key",
		Model:         config.DefaultModel,
		Mode:          models.ModeSequential,
		MaxIterations: 3,
		Timeout:       30 * time.Second,
	}

	stub := &stubProvider{}
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewService(cfg, st, bus, logger, func(string, time.Duration) provider.Provider { return stub })
	srv := NewServer(svc, bus, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, stub
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeRun(t *testing.T, resp *http.Response) *models.PipelineRun {
	t.Helper()
	defer resp.Body.Close()
	var run models.PipelineRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	return &run
}

func getRun(t *testing.T, base, id string) *models.PipelineRun {
	t.Helper()
	resp, err := http.Get(base + "/api/v1/runs/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeRun(t, resp)
}

func waitForState(t *testing.T, base, id string, state models.RunState) *models.PipelineRun {
	t.Helper()
	var run *models.PipelineRun
	require.Eventually(t, func() bool {
		run = getRun(t, base, id)
		return run.State == state
	}, 5*time.Second, 20*time.Millisecond, "run never reached state %s", state)
	return run
}

func TestCreateRunAndCompletion(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/runs", StartRunRequest{Feedback: "User 1: the app crashes"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeRun(t, resp)
	require.NotEmpty(t, created.ID)

	run := waitForState(t, ts.URL, created.ID, models.RunStateFinished)
	assert.Equal(t, models.OutcomeComplete, run.Outcome)
	for _, id := range run.StageOrder {
		require.NotNil(t, run.Tasks[id])
		assert.Equal(t, models.StageStatusDone, run.Tasks[id].Status, "stage %s", id)
	}

	// Single stage view.
	resp2, err := http.Get(ts.URL + "/api/v1/runs/" + created.ID + "/stages/analyze_feedback")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var task models.Task
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&task))
	assert.Equal(t, models.StageStatusDone, task.Status)
	assert.NotEmpty(t, task.RawText)

	// Execution log has been recorded.
	resp3, err := http.Get(ts.URL + "/api/v1/runs/" + created.ID + "/log")
	require.NoError(t, err)
	defer resp3.Body.Close()
	var entries []models.LogEntry
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&entries))
	assert.NotEmpty(t, entries)
}

func TestCreateRunFromCSV(t *testing.T) {
	ts, stub := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/runs", StartRunRequest{
		CSV: "feedback\nthe app crashes on upload\n",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeRun(t, resp)

	waitForState(t, ts.URL, created.ID, models.RunStateFinished)

	reqs := stub.requests()
	require.NotEmpty(t, reqs)
	assert.Contains(t, reqs[0].Prompt, "User 1: the app crashes on upload")
}

func TestCreateRunValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/runs", StartRunRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/v1/runs", StartRunRequest{Mode: "warp", Feedback: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckpointResumeFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/runs", StartRunRequest{
		Feedback:   "User 1: the app crashes",
		Checkpoint: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeRun(t, resp)

	waitForState(t, ts.URL, created.ID, models.RunStateAwaitingInput)

	resumeURL := ts.URL + "/api/v1/runs/" + created.ID + "/resume"
	resp = postJSON(t, resumeURL, models.ResumeInput{
		Notes:              "focus on bugs",
		SelectedCategories: []string{"bug"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	run := waitForState(t, ts.URL, created.ID, models.RunStateFinished)
	assert.Equal(t, models.OutcomeComplete, run.Outcome)
	require.NotNil(t, run.Resume)
	assert.Equal(t, "focus on bugs", run.Resume.Notes)

	// Resuming a finished run conflicts.
	resp = postJSON(t, resumeURL, models.ResumeInput{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestResumeWithoutCheckpointConflicts(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/runs", StartRunRequest{Feedback: "User 1: hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeRun(t, resp)
	waitForState(t, ts.URL, created.ID, models.RunStateFinished)

	resp = postJSON(t, ts.URL+"/api/v1/runs/"+created.ID+"/resume", models.ResumeInput{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestRunNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/runs/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/v1/runs/nope/resume", models.ResumeInput{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestStageNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/runs", StartRunRequest{Feedback: "User 1: hello"})
	created := decodeRun(t, resp)
	waitForState(t, ts.URL, created.ID, models.RunStateFinished)

	resp2, err := http.Get(ts.URL + "/api/v1/runs/" + created.ID + "/stages/compose_symphony")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	resp2.Body.Close()
}

func TestReset(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/runs", StartRunRequest{Feedback: "User 1: hello"})
	created := decodeRun(t, resp)
	waitForState(t, ts.URL, created.ID, models.RunStateFinished)

	resp2 := postJSON(t, ts.URL+"/api/v1/reset", struct{}{})
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	resp2.Body.Close()

	resp3, err := http.Get(ts.URL + "/api/v1/runs/" + created.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
	resp3.Body.Close()
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSSEHandshake(t *testing.T) {
	ts, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, "event: connected", scanner.Text())
	require.True(t, scanner.Scan())
	assert.True(t, strings.HasPrefix(scanner.Text(), "data: "))
}
