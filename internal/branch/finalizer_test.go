package branch

import (
	"context"
	"errors"
	"testing"

	"github.com/summonlabs/summon/internal/scm"
)

func newPlan(signing bool) *Plan {
	return &Plan{
		BaseBranch:         "main",
		WorkingBranch:      "claude/issue-42-20260823-1504",
		WorkingBranchIsNew: true,
		CommitSigning:      signing,
		RefCreated:         !signing,
	}
}

func TestFinalizeReusedBranchIsUntouched(t *testing.T) {
	p := &mockProvider{}

	out := Finalize(context.Background(), p, &mockLocalTree{}, &Plan{
		BaseBranch:         "main",
		WorkingBranch:      "feature/existing",
		WorkingBranchIsNew: false,
	})

	if out.Disposition != Kept {
		t.Errorf("Disposition = %s, want Kept", out.Disposition)
	}
	if out.BranchName != "" || out.PRURL != "" {
		t.Errorf("reused head branch must not get links, got %+v", out)
	}
	if len(p.deletedBranches) != 0 {
		t.Errorf("reused branch must never be deleted")
	}
}

func TestFinalizeNilPlan(t *testing.T) {
	out := Finalize(context.Background(), &mockProvider{}, nil, nil)
	if out.Disposition != Kept {
		t.Errorf("Disposition = %s, want Kept", out.Disposition)
	}
}

func TestFinalizeBranchWithCommitsIsKept(t *testing.T) {
	p := &mockProvider{
		compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
			return &scm.Comparison{
				TotalCommits: 3,
				ChangedFiles: []scm.ChangedFile{{Path: "main.go", ChangeType: "modified"}},
			}, nil
		},
	}
	plan := newPlan(false)

	out := Finalize(context.Background(), p, &mockLocalTree{}, plan)

	if out.Disposition != Kept {
		t.Errorf("Disposition = %s, want Kept", out.Disposition)
	}
	if out.BranchName != plan.WorkingBranch {
		t.Errorf("BranchName = %q, want %q", out.BranchName, plan.WorkingBranch)
	}
	if out.BranchURL == "" {
		t.Errorf("kept branch must carry a branch link")
	}
	if out.PRURL == "" {
		t.Errorf("non-empty diff must produce a create-PR link")
	}
	if len(p.deletedBranches) != 0 {
		t.Errorf("branch with commits must not be deleted")
	}
}

func TestFinalizeCommitsButEmptyDiff(t *testing.T) {
	// Commits that net out to zero changed files: keep the branch but skip
	// the create-PR link.
	p := &mockProvider{
		compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
			return &scm.Comparison{TotalCommits: 2}, nil
		},
	}

	out := Finalize(context.Background(), p, &mockLocalTree{}, newPlan(false))

	if out.Disposition != Kept {
		t.Errorf("Disposition = %s, want Kept", out.Disposition)
	}
	if out.PRURL != "" {
		t.Errorf("empty diff must not produce a create-PR link")
	}
}

func TestFinalizeEmptyBranchIsDeleted(t *testing.T) {
	p := &mockProvider{
		compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
			return &scm.Comparison{TotalCommits: 0}, nil
		},
	}
	plan := newPlan(false)

	out := Finalize(context.Background(), p, &mockLocalTree{dirty: false}, plan)

	if out.Disposition != Deleted {
		t.Errorf("Disposition = %s, want Deleted", out.Disposition)
	}
	if out.BranchName != "" || out.BranchURL != "" || out.PRURL != "" {
		t.Errorf("deleted branch must carry no links, got %+v", out)
	}
	if len(p.deletedBranches) != 1 || p.deletedBranches[0] != plan.WorkingBranch {
		t.Errorf("expected delete of %q, got %v", plan.WorkingBranch, p.deletedBranches)
	}
}

func TestFinalizeSigningModeNeverAutoCommits(t *testing.T) {
	p := &mockProvider{
		compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
			return &scm.Comparison{TotalCommits: 0}, nil
		},
	}
	local := &mockLocalTree{dirty: true}

	out := Finalize(context.Background(), p, local, newPlan(true))

	if out.Disposition != Deleted {
		t.Errorf("Disposition = %s, want Deleted", out.Disposition)
	}
	if len(local.committed) != 0 {
		t.Errorf("signing mode must never auto-commit, committed %v", local.committed)
	}
}

func TestFinalizeNeverCreatedRefIsDeleted(t *testing.T) {
	p := &mockProvider{
		getBranchFunc: func(ctx context.Context, name string) (*scm.Branch, error) {
			return nil, nil
		},
	}

	out := Finalize(context.Background(), p, &mockLocalTree{}, newPlan(true))

	if out.Disposition != Deleted {
		t.Errorf("Disposition = %s, want Deleted", out.Disposition)
	}
	if len(p.deletedBranches) != 0 {
		t.Errorf("a ref that never existed must not be deleted remotely")
	}
}

func TestFinalizeDirtyTreeAutoCommits(t *testing.T) {
	p := &mockProvider{
		compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
			return &scm.Comparison{TotalCommits: 0}, nil
		},
	}
	local := &mockLocalTree{dirty: true}
	plan := newPlan(false)

	out := Finalize(context.Background(), p, local, plan)

	if out.Disposition != AutoCommitted {
		t.Errorf("Disposition = %s, want AutoCommitted", out.Disposition)
	}
	if len(local.committed) != 1 {
		t.Fatalf("expected one auto-commit, got %v", local.committed)
	}
	if len(local.pushed) != 1 || local.pushed[0] != plan.WorkingBranch {
		t.Errorf("expected push of %q, got %v", plan.WorkingBranch, local.pushed)
	}
	if out.BranchURL == "" || out.PRURL == "" {
		t.Errorf("auto-committed branch must carry branch and create-PR links")
	}
}

func TestFinalizeErrorsBiasTowardKept(t *testing.T) {
	tests := []struct {
		name string
		p    *mockProvider
		tree *mockLocalTree
	}{
		{
			name: "branch lookup fails",
			p: &mockProvider{
				getBranchFunc: func(ctx context.Context, name string) (*scm.Branch, error) {
					return nil, errors.New("api down")
				},
			},
			tree: &mockLocalTree{},
		},
		{
			name: "comparison fails",
			p: &mockProvider{
				compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
					return nil, errors.New("api down")
				},
			},
			tree: &mockLocalTree{},
		},
		{
			name: "worktree inspection fails",
			p: &mockProvider{
				compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
					return &scm.Comparison{TotalCommits: 0}, nil
				},
			},
			tree: &mockLocalTree{dirtyErr: errors.New("fs error")},
		},
		{
			name: "auto-commit fails",
			p: &mockProvider{
				compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
					return &scm.Comparison{TotalCommits: 0}, nil
				},
			},
			tree: &mockLocalTree{dirty: true, commitErr: errors.New("index locked")},
		},
		{
			name: "push fails",
			p: &mockProvider{
				compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
					return &scm.Comparison{TotalCommits: 0}, nil
				},
			},
			tree: &mockLocalTree{dirty: true, pushErr: errors.New("remote rejected")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Finalize(context.Background(), tt.p, tt.tree, newPlan(false))
			if out.Disposition != Kept {
				t.Errorf("Disposition = %s, want Kept on error", out.Disposition)
			}
			if len(tt.p.deletedBranches) != 0 {
				t.Errorf("errors must never lead to deletion, deleted %v", tt.p.deletedBranches)
			}
		})
	}
}

func TestFinalizeDeleteFailureReportsKept(t *testing.T) {
	p := &mockProvider{
		compareRefsFunc: func(ctx context.Context, base, head string) (*scm.Comparison, error) {
			return &scm.Comparison{TotalCommits: 0}, nil
		},
		deleteBranchFunc: func(ctx context.Context, name string) error {
			return errors.New("protected branch")
		},
	}
	plan := newPlan(false)

	out := Finalize(context.Background(), p, &mockLocalTree{}, plan)

	if out.Disposition != Kept {
		t.Errorf("Disposition = %s, want Kept when delete fails", out.Disposition)
	}
	if out.BranchName != plan.WorkingBranch {
		t.Errorf("surviving branch must be reported with its name")
	}
}
