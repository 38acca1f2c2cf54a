package runstore

import (
	"fmt"
	"testing"
)

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore()
	s.Create(&Run{ID: "run-1", Platform: "github", Repository: "acme/widgets", Actor: "alice"})

	run, ok := s.Get("run-1")
	if !ok {
		t.Fatalf("Get() did not find the run")
	}
	if run.Status != StatusRunning {
		t.Errorf("Status = %s, want running default", run.Status)
	}
	if run.CreatedAt.IsZero() || run.UpdatedAt.IsZero() {
		t.Errorf("timestamps not set: %+v", run)
	}

	if _, ok := s.Get("missing"); ok {
		t.Errorf("Get() found a run that was never created")
	}
}

func TestStoreFinish(t *testing.T) {
	s := NewStore()
	s.Create(&Run{ID: "run-1"})

	s.Finish("run-1", StatusCompleted, "", "claude/issue-1-x", "kept")

	run, _ := s.Get("run-1")
	if run.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", run.Status)
	}
	if run.Branch != "claude/issue-1-x" || run.Disposition != "kept" {
		t.Errorf("branch outcome = %q/%q", run.Branch, run.Disposition)
	}

	s.Finish("run-2", StatusFailed, "boom", "", "")
	if _, ok := s.Get("run-2"); ok {
		t.Errorf("Finish() must not create records")
	}
}

func TestStoreFinishRecordsError(t *testing.T) {
	s := NewStore()
	s.Create(&Run{ID: "run-1"})

	s.Finish("run-1", StatusFailed, "agent run failed", "", "")

	run, _ := s.Get("run-1")
	if run.Status != StatusFailed || run.Error != "agent run failed" {
		t.Errorf("run = %+v", run)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	s := NewStore()
	for i := 0; i < 3; i++ {
		s.Create(&Run{ID: fmt.Sprintf("run-%d", i)})
	}

	runs := s.List()
	if len(runs) != 3 {
		t.Fatalf("List() = %d runs, want 3", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].CreatedAt.After(runs[i-1].CreatedAt) {
			t.Errorf("List() not newest first at index %d", i)
		}
	}
}

func TestStoreEviction(t *testing.T) {
	s := NewStore()
	for i := 0; i <= maxRuns; i++ {
		s.Create(&Run{ID: fmt.Sprintf("run-%d", i)})
	}

	if len(s.List()) != maxRuns {
		t.Errorf("store holds %d runs, want cap %d", len(s.List()), maxRuns)
	}
	if _, ok := s.Get("run-0"); ok {
		t.Errorf("oldest run must be evicted past the cap")
	}
}
