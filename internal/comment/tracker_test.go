package comment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/summonlabs/summon/internal/scm"
)

// mockProvider implements the comment-related slice of scm.Provider.
// Everything else comes from the embedded interface and panics if called.
type mockProvider struct {
	scm.Provider

	createFunc  func(ctx context.Context, body string) (scm.CommentHandle, error)
	updateFunc  func(ctx context.Context, h scm.CommentHandle, body string) error
	getFunc     func(ctx context.Context, h scm.CommentHandle) (string, error)
	findBotFunc func(ctx context.Context, botLogin, body string) (scm.CommentHandle, string, error)

	createCalls int
	updates     []string
}

func (m *mockProvider) CreateComment(ctx context.Context, body string) (scm.CommentHandle, error) {
	m.createCalls++
	if m.createFunc != nil {
		return m.createFunc(ctx, body)
	}
	return scm.CommentHandle{Kind: scm.IssueComment, ID: 100}, nil
}

func (m *mockProvider) UpdateComment(ctx context.Context, h scm.CommentHandle, body string) error {
	m.updates = append(m.updates, body)
	if m.updateFunc != nil {
		return m.updateFunc(ctx, h, body)
	}
	return nil
}

func (m *mockProvider) GetComment(ctx context.Context, h scm.CommentHandle) (string, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, h)
	}
	return "", nil
}

func (m *mockProvider) FindBotComment(ctx context.Context, botLogin, body string) (scm.CommentHandle, string, error) {
	if m.findBotFunc != nil {
		return m.findBotFunc(ctx, botLogin, body)
	}
	return scm.CommentHandle{}, "", nil
}

func newTestTracker(p scm.Provider, sticky bool) *Tracker {
	return NewTracker(p, Options{
		AgentName: "Claude",
		Username:  "alice",
		Sticky:    sticky,
		BotLogin:  "claude-bot",
		StartTime: time.Now(),
	})
}

func TestTrackerCreate(t *testing.T) {
	p := &mockProvider{}
	tr := newTestTracker(p, false)

	if err := tr.Create(context.Background()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !tr.Handle().Valid() {
		t.Fatalf("Create() left no valid handle")
	}
	if p.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", p.createCalls)
	}
}

func TestTrackerCreateRetriesOnce(t *testing.T) {
	p := &mockProvider{}
	p.createFunc = func(ctx context.Context, body string) (scm.CommentHandle, error) {
		if p.createCalls == 1 {
			return scm.CommentHandle{}, errors.New("transient")
		}
		return scm.CommentHandle{Kind: scm.IssueComment, ID: 7}, nil
	}
	tr := newTestTracker(p, false)

	if err := tr.Create(context.Background()); err != nil {
		t.Fatalf("Create() error after retry: %v", err)
	}
	if p.createCalls != 2 {
		t.Errorf("createCalls = %d, want 2", p.createCalls)
	}
	if tr.Handle().ID != 7 {
		t.Errorf("Handle().ID = %d, want 7", tr.Handle().ID)
	}
}

func TestTrackerCreateFailsAfterRetry(t *testing.T) {
	p := &mockProvider{
		createFunc: func(ctx context.Context, body string) (scm.CommentHandle, error) {
			return scm.CommentHandle{}, errors.New("persistent failure")
		},
	}
	tr := newTestTracker(p, false)

	if err := tr.Create(context.Background()); err == nil {
		t.Fatalf("Create() must fail when both attempts fail")
	}
	if p.createCalls != 2 {
		t.Errorf("createCalls = %d, want exactly 2", p.createCalls)
	}
}

func TestTrackerStickyReuse(t *testing.T) {
	existing := scm.CommentHandle{Kind: scm.IssueComment, ID: 55}
	p := &mockProvider{
		findBotFunc: func(ctx context.Context, botLogin, body string) (scm.CommentHandle, string, error) {
			if botLogin != "claude-bot" {
				t.Errorf("FindBotComment login = %q, want claude-bot", botLogin)
			}
			return existing, "old body", nil
		},
	}
	tr := newTestTracker(p, true)

	if err := tr.Create(context.Background()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if tr.Handle() != existing {
		t.Errorf("Handle() = %+v, want reused %+v", tr.Handle(), existing)
	}
	if p.createCalls != 0 {
		t.Errorf("sticky reuse must not create a new comment")
	}
	if len(p.updates) != 1 {
		t.Fatalf("sticky reuse must reset the comment body, updates = %d", len(p.updates))
	}
}

func TestTrackerStickyFallsBackToCreate(t *testing.T) {
	p := &mockProvider{
		findBotFunc: func(ctx context.Context, botLogin, body string) (scm.CommentHandle, string, error) {
			return scm.CommentHandle{}, "", errors.New("search failed")
		},
	}
	tr := newTestTracker(p, true)

	if err := tr.Create(context.Background()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if p.createCalls != 1 {
		t.Errorf("lookup failure must fall back to creating, createCalls = %d", p.createCalls)
	}
}

func TestTrackerAttachBranch(t *testing.T) {
	p := &mockProvider{}
	tr := newTestTracker(p, false)
	if err := tr.Create(context.Background()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	tr.AttachBranch(context.Background(), "claude/issue-1-x", "https://example.com/tree/claude/issue-1-x")

	if len(p.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(p.updates))
	}
	if !strings.Contains(p.updates[0], "[`claude/issue-1-x`]") {
		t.Errorf("branch link missing from update: %q", p.updates[0])
	}
}

func TestTrackerFinalizeSuccess(t *testing.T) {
	p := &mockProvider{
		getFunc: func(ctx context.Context, h scm.CommentHandle) (string, error) {
			return "Claude is working on @alice's task " + spinnerImg + "\n\n- [x] Did the work", nil
		},
	}
	tr := newTestTracker(p, false)
	if err := tr.Create(context.Background()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	err := tr.Finalize(context.Background(), FinalizeInput{
		Success:    true,
		BranchName: "claude/issue-1-x",
		BranchURL:  "https://example.com/tree/claude/issue-1-x",
		EndTime:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	final := p.updates[len(p.updates)-1]
	if !strings.Contains(final, "finished @alice's task") {
		t.Errorf("final body missing success header: %q", final)
	}
	if !strings.Contains(final, "- [x] Did the work") {
		t.Errorf("final body must preserve the narrative: %q", final)
	}
	if strings.Contains(final, "octocat-spinner") {
		t.Errorf("final body must not keep the spinner: %q", final)
	}
}

func TestTrackerFinalizeFailure(t *testing.T) {
	p := &mockProvider{}
	tr := newTestTracker(p, false)
	if err := tr.Create(context.Background()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	err := tr.Finalize(context.Background(), FinalizeInput{
		Success:      false,
		ErrorDetails: "agent run failed: exit status 1",
		EndTime:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	final := p.updates[len(p.updates)-1]
	if !strings.Contains(final, "encountered an error") {
		t.Errorf("final body missing failure header: %q", final)
	}
	if !strings.Contains(final, "agent run failed: exit status 1") {
		t.Errorf("final body missing error details: %q", final)
	}
}

func TestTrackerFinalizeUpdateFailurePropagates(t *testing.T) {
	p := &mockProvider{
		updateFunc: func(ctx context.Context, h scm.CommentHandle, body string) error {
			return errors.New("api down")
		},
	}
	tr := newTestTracker(p, false)
	if err := tr.Create(context.Background()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := tr.Finalize(context.Background(), FinalizeInput{Success: true, EndTime: time.Now()}); err == nil {
		t.Fatalf("Finalize() must surface the update failure")
	}
}

func TestTrackerFinalizeSurvivesFetchFailure(t *testing.T) {
	p := &mockProvider{
		getFunc: func(ctx context.Context, h scm.CommentHandle) (string, error) {
			return "", errors.New("api down")
		},
	}
	tr := newTestTracker(p, false)
	if err := tr.Create(context.Background()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := tr.Finalize(context.Background(), FinalizeInput{Success: true, EndTime: time.Now()}); err != nil {
		t.Fatalf("fetch failure must not block finalize: %v", err)
	}

	final := p.updates[len(p.updates)-1]
	if !strings.Contains(final, "finished @alice's task") {
		t.Errorf("terminal header missing despite fetch failure: %q", final)
	}
}

func TestTrackerFinalizeWithoutCreate(t *testing.T) {
	tr := newTestTracker(&mockProvider{}, false)
	if err := tr.Finalize(context.Background(), FinalizeInput{Success: true}); err == nil {
		t.Fatalf("Finalize() without a comment must fail")
	}
}
