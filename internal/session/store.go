// Package session provides filesystem persistence for conversations: session
// metadata, interaction history, plan, checkpoint log and uploaded files,
// all keyed by session id under one data directory.
package session

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/conference-concierge/internal/models"
)

const (
	metaFilename        = "meta.json"
	historyFilename     = "history.json"
	planFilename        = "plan.json"
	checkpointsFilename = "checkpoints.json"
	uploadedSubdir      = "uploaded"
)

// Meta describes one session.
type Meta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	baseDir string
	logger  *zap.Logger
}

func NewStore(baseDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Store{baseDir: baseDir, logger: logger}, nil
}

// BaseDir is the root data directory; the retrieval index shares it.
func (s *Store) BaseDir() string { return s.baseDir }

func (s *Store) sessionDir(id string) string { return filepath.Join(s.baseDir, id) }

// validateID rejects ids that could escape the data directory.
func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

// Create makes a new session directory with metadata. An empty title gets a
// default derived from the id.
func (s *Store) Create(title string) (*Meta, error) {
	id := uuid.NewString()
	if title == "" {
		title = "Session " + id[:8]
	}
	meta := &Meta{ID: id, Title: title, CreatedAt: time.Now().UTC()}
	if err := os.MkdirAll(s.sessionDir(id), 0o755); err != nil {
		return nil, fmt.Errorf("creating session dir: %w", err)
	}
	if err := s.writeJSON(id, metaFilename, meta); err != nil {
		return nil, err
	}
	// plan.json exists from the start so the UI can always render it
	if err := s.SavePlan(id, models.Plan{}); err != nil {
		return nil, err
	}
	s.logger.Info("session created", zap.String("session_id", id))
	return meta, nil
}

// List returns all sessions, newest first. Directories without readable
// metadata still show up with a fallback title.
func (s *Store) List() ([]*Meta, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading data dir: %w", err)
	}
	var out []*Meta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		var meta Meta
		if err := s.readJSON(id, metaFilename, &meta); err != nil {
			meta = Meta{ID: id, Title: "Session " + clip8(id), CreatedAt: time.Now().UTC()}
		}
		out = append(out, &meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Exists reports whether a session directory is present.
func (s *Store) Exists(id string) bool {
	if validateID(id) != nil {
		return false
	}
	info, err := os.Stat(s.sessionDir(id))
	return err == nil && info.IsDir()
}

// Delete removes a session and everything stored under it.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.RemoveAll(s.sessionDir(id)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

func (s *Store) SaveHistory(id string, history []models.Message) error {
	return s.writeJSON(id, historyFilename, history)
}

func (s *Store) LoadHistory(id string) ([]models.Message, error) {
	var out []models.Message
	if err := s.readJSON(id, historyFilename, &out); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func (s *Store) SavePlan(id string, plan models.Plan) error {
	if plan == nil {
		plan = models.Plan{}
	}
	return s.writeJSON(id, planFilename, plan)
}

func (s *Store) LoadPlan(id string) (models.Plan, error) {
	var out models.Plan
	if err := s.readJSON(id, planFilename, &out); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// SaveCheckpoints persists the whole checkpoint log. The log is append-only
// upstream; rewriting the file keeps the on-disk format simple.
func (s *Store) SaveCheckpoints(id string, cps []models.Checkpoint) error {
	if cps == nil {
		cps = []models.Checkpoint{}
	}
	return s.writeJSON(id, checkpointsFilename, cps)
}

func (s *Store) LoadCheckpoints(id string) ([]models.Checkpoint, error) {
	var out []models.Checkpoint
	if err := s.readJSON(id, checkpointsFilename, &out); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// SaveUploadedFile stores an uploaded schedule under the session's uploaded/
// subdir and returns the stored path.
func (s *Store) SaveUploadedFile(id, filename string, r io.Reader) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	dir := filepath.Join(s.sessionDir(id), uploadedSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	path := filepath.Join(dir, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return path, nil
}

// ListUploadedFiles returns stored upload paths, sorted by name.
func (s *Store) ListUploadedFiles(id string) ([]string, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.sessionDir(id), uploadedSubdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) writeJSON(id, name string, v any) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(s.sessionDir(id), 0o755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	path := filepath.Join(s.sessionDir(id), name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

func (s *Store) readJSON(id, name string, v any) error {
	if err := validateID(id); err != nil {
		return err
	}
	b, err := os.ReadFile(filepath.Join(s.sessionDir(id), name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", name, err)
	}
	return nil
}

func clip8(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
