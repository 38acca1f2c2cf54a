// Package runstore keeps an in-memory record of runs for the status
// endpoints. Records are observability only; the tracking comment is the
// authoritative report of a run.
package runstore

import (
	"sort"
	"sync"
	"time"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusSkipped   RunStatus = "skipped"
)

// Run is one dispatched event's record.
type Run struct {
	ID           string    `json:"id"`
	Platform     string    `json:"platform"`
	Repository   string    `json:"repository"`
	EntityKind   string    `json:"entity_kind"`
	EntityNumber int       `json:"entity_number"`
	Actor        string    `json:"actor"`
	Status       RunStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	Branch       string    `json:"branch,omitempty"`
	Disposition  string    `json:"branch_disposition,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// maxRuns caps retained records; the oldest are evicted past it.
const maxRuns = 500

type Store struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewStore() *Store {
	return &Store{runs: make(map[string]*Run)}
}

func (s *Store) Create(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.CreatedAt = time.Now()
	run.UpdatedAt = run.CreatedAt
	if run.Status == "" {
		run.Status = StatusRunning
	}
	s.runs[run.ID] = run
	s.evictLocked()
}

func (s *Store) Get(id string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}

// List returns runs newest first.
func (s *Store) List() []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs
}

// Finish marks a run terminal with its branch outcome.
func (s *Store) Finish(id string, status RunStatus, errText, branch, disposition string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return
	}
	run.Status = status
	run.Error = errText
	run.Branch = branch
	run.Disposition = disposition
	run.UpdatedAt = time.Now()
}

func (s *Store) evictLocked() {
	if len(s.runs) <= maxRuns {
		return
	}

	oldestID := ""
	var oldest time.Time
	for id, run := range s.runs {
		if oldestID == "" || run.CreatedAt.Before(oldest) {
			oldestID = id
			oldest = run.CreatedAt
		}
	}
	delete(s.runs, oldestID)
}
