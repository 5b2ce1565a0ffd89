package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-concierge/internal/agents"
	"github.com/example/conference-concierge/internal/guardrail"
	"github.com/example/conference-concierge/internal/orchestrator"
	"github.com/example/conference-concierge/internal/providers/llm"
	"github.com/example/conference-concierge/internal/rag"
	"github.com/example/conference-concierge/internal/session"
	"github.com/example/conference-concierge/internal/tools"
)

const testScheduleJSON = `{"schedule":{"conference":{"title":"ConfX","days":[{"date":"2025-01-01","rooms":{"Main":[{"title":"Keynote","start":"09:00","track":"General"}]}}]}}}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	client := &llm.MockClient{}
	store, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	index := rag.NewIndex(store.BaseDir(), client, nil, 20, 5)

	registry := tools.NewRegistry()
	registry.Register(&tools.ScheduleOverviewTool{Index: index})
	registry.Register(&tools.RAGSearchTool{Index: index})

	orch := orchestrator.New(
		agents.NewIntakeAgent(client, nil),
		agents.NewPlanningAgent(client, nil),
		agents.NewExecutorAgent(client, registry, nil, 5, 0),
		guardrail.New(client, nil),
		store,
		nil,
	)
	return NewServer(orch, store, index, nil, ":0")
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/sessions", map[string]string{"title": "test"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var meta session.Meta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	return meta.ID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	id := createSession(t, h)

	rec := doJSON(t, h, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []session.Meta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = doJSON(t, h, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatClarifies(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h)

	rec := doJSON(t, h, http.MethodPost, "/sessions/"+id+"/chat", map[string]string{"message": "I want a schedule."})
	require.Equal(t, http.StatusOK, rec.Code)

	var result orchestrator.StepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "intake", result.Stage)
	assert.NotEmpty(t, result.Reply)
}

func TestChatUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/sessions/nope/chat", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadScheduleAndPlan(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "schedule.json")
	require.NoError(t, err)
	_, err = fw.Write([]byte(testScheduleJSON))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/schedule", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Indexed 1 sessions")

	rec = doJSON(t, h, http.MethodGet, "/sessions/"+id+"/plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestUploadScheduleRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "schedule.json")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not a schedule"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/schedule", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCheckpointsAndStateEndpoints(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h)

	rec := doJSON(t, h, http.MethodPost, "/sessions/"+id+"/chat", map[string]string{"message": "I want a schedule."})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/sessions/"+id+"/checkpoints", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cps []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cps))
	require.NotEmpty(t, cps)

	rec = doJSON(t, h, http.MethodGet, "/sessions/"+id+"/state?step=0", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/sessions/"+id+"/state?step=999", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/sessions/"+id+"/resume", map[string]int{"step_index": 0})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/sessions/"+id+"/checkpoints", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cps = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cps))
	assert.Len(t, cps, 1)
}
