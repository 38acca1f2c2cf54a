package branch

import (
	"context"
	"fmt"

	"github.com/summonlabs/summon/internal/scm"
)

// mockProvider implements the scm.Provider methods the branch package
// exercises. Unused methods come from the embedded interface and panic if
// called.
type mockProvider struct {
	scm.Provider

	getEntityFunc     func(ctx context.Context) (*scm.Entity, error)
	defaultBranchFunc func(ctx context.Context) (string, error)
	getBranchFunc     func(ctx context.Context, name string) (*scm.Branch, error)
	createBranchFunc  func(ctx context.Context, name, fromSHA string) error
	deleteBranchFunc  func(ctx context.Context, name string) error
	compareRefsFunc   func(ctx context.Context, base, head string) (*scm.Comparison, error)

	createdBranches []string
	deletedBranches []string
}

func (m *mockProvider) GetEntity(ctx context.Context) (*scm.Entity, error) {
	if m.getEntityFunc != nil {
		return m.getEntityFunc(ctx)
	}
	return nil, fmt.Errorf("no entity configured")
}

func (m *mockProvider) DefaultBranch(ctx context.Context) (string, error) {
	if m.defaultBranchFunc != nil {
		return m.defaultBranchFunc(ctx)
	}
	return "main", nil
}

func (m *mockProvider) GetBranch(ctx context.Context, name string) (*scm.Branch, error) {
	if m.getBranchFunc != nil {
		return m.getBranchFunc(ctx, name)
	}
	return &scm.Branch{Name: name, SHA: "abc123"}, nil
}

func (m *mockProvider) CreateBranch(ctx context.Context, name, fromSHA string) error {
	m.createdBranches = append(m.createdBranches, name)
	if m.createBranchFunc != nil {
		return m.createBranchFunc(ctx, name, fromSHA)
	}
	return nil
}

func (m *mockProvider) DeleteBranch(ctx context.Context, name string) error {
	m.deletedBranches = append(m.deletedBranches, name)
	if m.deleteBranchFunc != nil {
		return m.deleteBranchFunc(ctx, name)
	}
	return nil
}

func (m *mockProvider) CompareRefs(ctx context.Context, base, head string) (*scm.Comparison, error) {
	if m.compareRefsFunc != nil {
		return m.compareRefsFunc(ctx, base, head)
	}
	return &scm.Comparison{}, nil
}

func (m *mockProvider) BranchURL(name string) string {
	return "https://example.com/owner/repo/tree/" + name
}

func (m *mockProvider) CreatePullURL(base, head, title, body string) string {
	return fmt.Sprintf("https://example.com/owner/repo/compare/%s...%s?quick_pull=1", base, head)
}

// mockLocalTree implements LocalTree for finalizer tests.
type mockLocalTree struct {
	dirty     bool
	dirtyErr  error
	commitSHA string
	commitErr error
	pushErr   error

	committed []string
	pushed    []string
}

func (m *mockLocalTree) HasUncommittedChanges() (bool, error) {
	return m.dirty, m.dirtyErr
}

func (m *mockLocalTree) CommitAll(message string) (string, error) {
	if m.commitErr != nil {
		return "", m.commitErr
	}
	m.committed = append(m.committed, message)
	if m.commitSHA == "" {
		return "deadbeef", nil
	}
	return m.commitSHA, nil
}

func (m *mockLocalTree) Push(ctx context.Context, branch string) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.pushed = append(m.pushed, branch)
	return nil
}
