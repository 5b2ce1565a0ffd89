package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/example/conference-concierge/internal/providers/llm"
)

const (
	chromaSubdir         = "chroma"
	collectionName       = "schedule"
	overviewFilename     = "schedule_overview.txt"
	maxRerankExcerptLen  = 600
	maxResultExcerptLen  = 800
	defaultRetrieveLimit = 20
	defaultTopK          = 5

	// NoScheduleMessage is the explicit "not available" signal for sessions
	// without an indexed schedule.
	NoScheduleMessage = "No schedule has been indexed for this session. Upload a schedule file first."
	// NoOverviewMessage signals a missing overview file.
	NoOverviewMessage = "No schedule overview for this session. Upload a schedule file first."

	rerankPrompt = `You are a re-ranker for conference schedule search results.
Given a user query and a list of retrieved schedule entries (each with index, title, room, track, and excerpt):
1. Evaluate how relevant each entry is to the query.
2. Drop entries that are clearly irrelevant.
3. Return the remaining entries in order of relevance (most relevant first).
Respond with a JSON object holding "results": an array of {"index", "score" (1-10), "reason"} for entries to KEEP.
If nothing is relevant, return an empty array.`
)

var rerankSchema = &llm.Schema{
	Type: "object",
	Properties: map[string]*llm.Schema{
		"results": {
			Type: "array",
			Items: &llm.Schema{
				Type: "object",
				Properties: map[string]*llm.Schema{
					"index":  {Type: "integer", Description: "The original index of the entry"},
					"score":  {Type: "integer", Description: "Relevance from 1 to 10"},
					"reason": {Type: "string", Description: "One short phrase why it's relevant"},
				},
				Required: []string{"index", "score"},
			},
		},
	},
	Required: []string{"results"},
}

type rerankResult struct {
	Index  int    `json:"index"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// Index is the per-session schedule retrieval index: an embedded vector
// store plus a plain-text overview, both under dataDir/<session_id>/.
type Index struct {
	dataDir   string
	client    llm.Client
	logger    *zap.Logger
	retrieveK int
	topK      int

	mu  sync.Mutex
	dbs map[string]*chromem.DB
}

func NewIndex(dataDir string, client llm.Client, logger *zap.Logger, retrieveK, topK int) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retrieveK <= 0 {
		retrieveK = defaultRetrieveLimit
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Index{
		dataDir:   dataDir,
		client:    client,
		logger:    logger,
		retrieveK: retrieveK,
		topK:      topK,
		dbs:       map[string]*chromem.DB{},
	}
}

func (ix *Index) sessionDir(sessionID string) string {
	return filepath.Join(ix.dataDir, sessionID)
}

func (ix *Index) db(sessionID string) (*chromem.DB, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if db, ok := ix.dbs[sessionID]; ok {
		return db, nil
	}
	path := filepath.Join(ix.sessionDir(sessionID), chromaSubdir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	ix.dbs[sessionID] = db
	return db, nil
}

func (ix *Index) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if strings.TrimSpace(text) == "" {
			text = " "
		}
		return ix.client.Embed(ctx, text)
	}
}

// IndexFile parses the uploaded schedule (JSON or PDF), writes the overview
// and rebuilds the session's vector collection. Returns a status message
// suitable for showing the user.
func (ix *Index) IndexFile(ctx context.Context, sessionID, path string) (string, error) {
	var docs []Document
	var overview string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		var err error
		docs, overview, err = extractPDF(path)
		if err != nil {
			return "", err
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading schedule file: %w", err)
		}
		sched, err := ParseSchedule(data)
		if err != nil {
			return "", err
		}
		docs = sched.Documents()
		overview = sched.Overview()
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("no talks found in schedule")
	}

	dir := ix.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating session dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, overviewFilename), []byte(overview), 0o644); err != nil {
		return "", fmt.Errorf("writing overview: %w", err)
	}

	db, err := ix.db(sessionID)
	if err != nil {
		return "", err
	}
	// rebuild from scratch so re-uploads replace the previous index
	_ = db.DeleteCollection(collectionName)
	coll, err := db.GetOrCreateCollection(collectionName, nil, ix.embeddingFunc())
	if err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}
	cdocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		cdocs = append(cdocs, chromem.Document{ID: d.ID, Content: d.Content, Metadata: d.Metadata})
	}
	if err := coll.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return "", fmt.Errorf("indexing documents: %w", err)
	}
	ix.logger.Info("schedule indexed",
		zap.String("session_id", sessionID),
		zap.Int("documents", len(docs)),
	)
	return fmt.Sprintf("Indexed %d sessions for retrieval and saved the schedule overview.", len(docs)), nil
}

// Overview returns the stored schedule overview, or the explicit
// not-available message when nothing was uploaded.
func (ix *Index) Overview(sessionID string) string {
	b, err := os.ReadFile(filepath.Join(ix.sessionDir(sessionID), overviewFilename))
	if err != nil {
		return NoOverviewMessage
	}
	return string(b)
}

// Search runs semantic retrieval over the session's schedule followed by an
// LLM rerank, and formats the surviving top results.
func (ix *Index) Search(ctx context.Context, sessionID, query string) (string, error) {
	db, err := ix.db(sessionID)
	if err != nil {
		return "", err
	}
	coll := db.GetCollection(collectionName, ix.embeddingFunc())
	if coll == nil {
		return NoScheduleMessage, nil
	}
	n := coll.Count()
	if n == 0 {
		return NoScheduleMessage, nil
	}
	if n > ix.retrieveK {
		n = ix.retrieveK
	}
	hits, err := coll.Query(ctx, query, n, nil, nil)
	if err != nil {
		return "", fmt.Errorf("querying index: %w", err)
	}
	if len(hits) == 0 {
		return "No matching sessions found.", nil
	}

	keep := ix.rerank(ctx, query, hits)
	if len(keep) == 0 {
		return "No relevant sessions found after re-ranking.", nil
	}

	var out []string
	for i, rr := range keep {
		if rr.Index < 0 || rr.Index >= len(hits) {
			continue
		}
		hit := hits[rr.Index]
		meta := hit.Metadata
		out = append(out,
			fmt.Sprintf("--- Result %d ---", i+1),
			"Title: "+orDefault(meta["title"], "(no title)"),
			"Room: "+meta["room"],
			"Date: "+meta["date"],
			"Start: "+meta["start"],
			"Track: "+meta["track"],
			"Excerpt: "+excerpt(hit.Content, maxResultExcerptLen),
			"",
		)
	}
	return strings.TrimSpace(strings.Join(out, "\n")), nil
}

// rerank asks the model to keep and order relevant hits. On any failure it
// falls back to vector order so retrieval keeps working without the
// reranker.
func (ix *Index) rerank(ctx context.Context, query string, hits []chromem.Result) []rerankResult {
	blocks := make([]string, 0, len(hits))
	for i, hit := range hits {
		blocks = append(blocks, fmt.Sprintf("[%d] Title: %s\nRoom: %s | Track: %s\nExcerpt: %s",
			i,
			orDefault(hit.Metadata["title"], "(no title)"),
			hit.Metadata["room"],
			hit.Metadata["track"],
			excerpt(hit.Content, maxRerankExcerptLen),
		))
	}
	user := "Query: " + query + "\n\nRetrieved entries:\n" + strings.Join(blocks, "\n\n")

	var resp rerankResponse
	if err := ix.client.GenerateJSON(ctx, rerankPrompt, user, rerankSchema, &resp); err != nil {
		ix.logger.Warn("rerank failed, falling back to vector order", zap.Error(err))
		return fallbackOrder(len(hits), ix.topK)
	}
	results := resp.Results
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > ix.topK {
		results = results[:ix.topK]
	}
	return results
}

func fallbackOrder(n, k int) []rerankResult {
	if n > k {
		n = k
	}
	out := make([]rerankResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rerankResult{Index: i})
	}
	return out
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
