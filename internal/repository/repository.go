// Package repository provides read access to candidate and job records.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/records"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository is the source of candidate and job snapshots. Returned records must not be mutated.
type Repository interface {
	Candidate(ctx context.Context, id string) (*records.Candidate, error)
	Job(ctx context.Context, id string) (*records.Job, error)
	Candidates(ctx context.Context) ([]*records.Candidate, error)
	Jobs(ctx context.Context) ([]*records.Job, error)
}

// Memory is a concurrency-safe in-memory repository.
type Memory struct {
	mu         sync.RWMutex
	candidates map[string]*records.Candidate
	jobs       map[string]*records.Job
}

func NewMemory() *Memory {
	return &Memory{
		candidates: make(map[string]*records.Candidate),
		jobs:       make(map[string]*records.Job),
	}
}

func (m *Memory) PutCandidate(c *records.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[c.ID] = c
}

func (m *Memory) PutJob(j *records.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
}

func (m *Memory) DeleteCandidate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.candidates, id)
}

func (m *Memory) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

func (m *Memory) Candidate(_ context.Context, id string) (*records.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *Memory) Job(_ context.Context, id string) (*records.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return j, nil
}

// Candidates returns every candidate sorted by id.
func (m *Memory) Candidates(context.Context) ([]*records.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*records.Candidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *records.Candidate) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Jobs returns every job sorted by id.
func (m *Memory) Jobs(context.Context) ([]*records.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*records.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	slices.SortFunc(out, func(a, b *records.Job) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

type recordsFile struct {
	Candidates []map[string]any `json:"candidates"`
	Jobs       []map[string]any `json:"jobs"`
}

// LoadFile reads a JSON document with "candidates" and "jobs" arrays of free-form records. Records
// that fail to decode are logged and skipped.
func (m *Memory) LoadFile(path string, opts records.DecodeOptions, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read records file: %w", err)
	}

	var doc recordsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parse records file %s: %w", path, err)
	}

	loaded := 0
	for idx, raw := range doc.Candidates {
		c, err := records.DecodeCandidate(raw, opts)
		if err != nil {
			logger.Warn("skipping candidate record", zap.Int("index", idx), zap.Error(err))
			continue
		}
		m.PutCandidate(c)
		loaded++
	}
	for idx, raw := range doc.Jobs {
		j, err := records.DecodeJob(raw)
		if err != nil {
			logger.Warn("skipping job record", zap.Int("index", idx), zap.Error(err))
			continue
		}
		m.PutJob(j)
		loaded++
	}

	logger.Info("records loaded",
		zap.String("path", path),
		zap.Int("candidates", len(doc.Candidates)),
		zap.Int("jobs", len(doc.Jobs)),
		zap.Int("loaded", loaded),
	)
	return loaded, nil
}
