package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Artifact describes a single file written by a collection run.
type Artifact struct {
	Path        string    `json:"path"`
	Format      string    `json:"format"`
	RecordCount int       `json:"record_count"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Manifest is the run-level summary written alongside the artifacts.
type Manifest struct {
	RunID       string     `json:"run_id"`
	App         string     `json:"app"`
	Version     string     `json:"version"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
	Artifacts   []Artifact `json:"artifacts"`
}

// Generator accumulates artifact entries over one collection run and
// writes the final manifest. Safe for concurrent AddArtifact calls.
type Generator struct {
	mu        sync.Mutex
	app       string
	version   string
	runID     string
	startedAt time.Time
	artifacts []Artifact
}

// NewGenerator starts a manifest for one run.
func NewGenerator(app, version string) *Generator {
	return &Generator{
		app:       app,
		version:   version,
		runID:     uuid.NewString(),
		startedAt: time.Now().UTC(),
	}
}

// RunID returns the unique id of this run.
func (g *Generator) RunID() string {
	return g.runID
}

// AddArtifact records a written file. Size is read from disk so callers
// only supply what they know: the path, format and record count.
func (g *Generator) AddArtifact(path, format string, recordCount int) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat artifact %s: %w", path, err)
	}

	g.mu.Lock()
	g.artifacts = append(g.artifacts, Artifact{
		Path:        path,
		Format:      format,
		RecordCount: recordCount,
		SizeBytes:   info.Size(),
		CreatedAt:   time.Now().UTC(),
	})
	g.mu.Unlock()
	return nil
}

// Artifacts returns a copy of the recorded artifact list.
func (g *Generator) Artifacts() []Artifact {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Artifact, len(g.artifacts))
	copy(out, g.artifacts)
	return out
}

// Write finalizes the manifest and writes manifest.json into dir,
// returning the written path.
func (g *Generator) Write(dir string) (string, error) {
	g.mu.Lock()
	manifest := Manifest{
		RunID:       g.runID,
		App:         g.app,
		Version:     g.version,
		StartedAt:   g.startedAt,
		CompletedAt: time.Now().UTC(),
		Artifacts:   g.artifacts,
	}
	g.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	b, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
