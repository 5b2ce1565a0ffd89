package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-concierge/internal/providers/llm"
)

func writeSchedule(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "schedule.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleScheduleJSON), 0o644))
	return path
}

func TestIndexFileAndOverview(t *testing.T) {
	dataDir := t.TempDir()
	ix := NewIndex(dataDir, &llm.MockClient{}, nil, 20, 5)

	msg, err := ix.IndexFile(context.Background(), "sess-1", writeSchedule(t, t.TempDir()))
	require.NoError(t, err)
	assert.Contains(t, msg, "3 sessions")

	overview := ix.Overview("sess-1")
	assert.Contains(t, overview, "# PyCon DE 2025")
	assert.Contains(t, overview, "Opening Keynote")
}

func TestOverviewWithoutUpload(t *testing.T) {
	ix := NewIndex(t.TempDir(), &llm.MockClient{}, nil, 20, 5)
	assert.Equal(t, NoOverviewMessage, ix.Overview("sess-unknown"))
}

func TestSearchWithoutUpload(t *testing.T) {
	ix := NewIndex(t.TempDir(), &llm.MockClient{}, nil, 20, 5)
	out, err := ix.Search(context.Background(), "sess-unknown", "machine learning")
	require.NoError(t, err)
	assert.Equal(t, NoScheduleMessage, out)
}

func TestSearchWithRerank(t *testing.T) {
	client := &llm.MockClient{
		GenerateJSONFunc: func(ctx context.Context, system, user string, schema *llm.Schema, out any) error {
			// keep the first retrieved entry only
			return json.Unmarshal([]byte(`{"results": [{"index": 0, "score": 9, "reason": "match"}]}`), out)
		},
	}
	ix := NewIndex(t.TempDir(), client, nil, 20, 5)
	_, err := ix.IndexFile(context.Background(), "sess-1", writeSchedule(t, t.TempDir()))
	require.NoError(t, err)

	out, err := ix.Search(context.Background(), "sess-1", "retrieval augmented generation")
	require.NoError(t, err)
	assert.Contains(t, out, "--- Result 1 ---")
	assert.Contains(t, out, "Title: ")
	assert.NotContains(t, out, "--- Result 2 ---")
}

func TestSearchRerankFailureFallsBackToVectorOrder(t *testing.T) {
	client := &llm.MockClient{
		GenerateJSONFunc: func(ctx context.Context, system, user string, schema *llm.Schema, out any) error {
			return fmt.Errorf("rerank model down")
		},
	}
	ix := NewIndex(t.TempDir(), client, nil, 20, 2)
	_, err := ix.IndexFile(context.Background(), "sess-1", writeSchedule(t, t.TempDir()))
	require.NoError(t, err)

	out, err := ix.Search(context.Background(), "sess-1", "keynote")
	require.NoError(t, err)
	assert.Contains(t, out, "--- Result 1 ---")
	assert.Contains(t, out, "--- Result 2 ---")
	assert.NotContains(t, out, "--- Result 3 ---", "top_k caps the fallback")
}

func TestReindexReplacesPreviousUpload(t *testing.T) {
	ix := NewIndex(t.TempDir(), &llm.MockClient{}, nil, 20, 5)
	dir := t.TempDir()
	_, err := ix.IndexFile(context.Background(), "sess-1", writeSchedule(t, dir))
	require.NoError(t, err)

	single := `{"schedule":{"conference":{"title":"Tiny","days":[{"date":"2025-01-01","rooms":{"A":[{"title":"Only Talk","start":"10:00"}]}}]}}}`
	path := filepath.Join(dir, "schedule2.json")
	require.NoError(t, os.WriteFile(path, []byte(single), 0o644))
	msg, err := ix.IndexFile(context.Background(), "sess-1", path)
	require.NoError(t, err)
	assert.Contains(t, msg, "1 sessions")
	assert.Contains(t, ix.Overview("sess-1"), "# Tiny")
}

func TestIndexFileRejectsEmptySchedule(t *testing.T) {
	ix := NewIndex(t.TempDir(), &llm.MockClient{}, nil, 20, 5)
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"conference":{"title":"X","days":[{"date":"d","rooms":{}}]}}`), 0o644))
	_, err := ix.IndexFile(context.Background(), "sess-1", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no talks")
}
