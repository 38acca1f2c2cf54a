// Package localrepo manages the local working tree the agent edits. It is
// the go-git backend behind the branch finalizer's LocalTree seam.
package localrepo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/summonlabs/summon/internal/scm"
)

const cloneDirPrefix = "summon-workspace-"

// Options configures a clone.
type Options struct {
	// URL is the authenticated clone URL from the provider.
	URL string

	// Branch is the ref to check out after cloning.
	Branch string

	// Depth limits history fetched; zero means full history.
	Depth int

	// Author identity for commits made on the agent's behalf.
	AuthorName  string
	AuthorEmail string
}

// Repo is a cloned working tree. It implements branch.LocalTree.
type Repo struct {
	dir  string
	repo *git.Repository

	authorName  string
	authorEmail string
}

// Clone clones into a fresh temp directory and checks out opts.Branch.
func Clone(ctx context.Context, opts Options) (*Repo, error) {
	if opts.URL == "" {
		return nil, errors.New("clone URL cannot be empty")
	}
	if opts.Branch == "" {
		return nil, errors.New("branch cannot be empty")
	}

	dir, err := os.MkdirTemp("", cloneDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace dir: %w", err)
	}

	log.Printf("[LocalRepo] Cloning %s (depth %d) into %s", opts.Branch, opts.Depth, dir)
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           opts.URL,
		ReferenceName: plumbing.NewBranchReferenceName(opts.Branch),
		SingleBranch:  true,
		Depth:         opts.Depth,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	return &Repo{
		dir:         dir,
		repo:        repo,
		authorName:  opts.AuthorName,
		authorEmail: opts.AuthorEmail,
	}, nil
}

// Dir returns the working tree root on disk.
func (r *Repo) Dir() string {
	return r.dir
}

// CheckoutNewBranch creates a local branch at the current HEAD and switches
// to it. Used when the working branch's remote ref creation is deferred.
func (r *Repo) CheckoutNewBranch(name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	}); err != nil {
		return fmt.Errorf("failed to checkout branch %s: %w", name, err)
	}
	return nil
}

// HasUncommittedChanges reports whether the working tree has staged or
// unstaged modifications.
func (r *Repo) HasUncommittedChanges() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree status: %w", err)
	}
	return !status.IsClean(), nil
}

// ChangedFiles lists the working tree's uncommitted changes with their
// current contents, ordered by path. Used when commits happen through the
// platform API instead of locally.
func (r *Repo) ChangedFiles() ([]scm.FileChange, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree status: %w", err)
	}

	var changes []scm.FileChange
	for path, st := range status {
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		if st.Worktree == git.Deleted || st.Staging == git.Deleted {
			changes = append(changes, scm.FileChange{Path: path, Delete: true})
			continue
		}

		content, err := os.ReadFile(filepath.Join(r.dir, path))
		if err != nil {
			return nil, fmt.Errorf("failed to read changed file %s: %w", path, err)
		}
		changes = append(changes, scm.FileChange{Path: path, Content: content})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// CommitAll stages everything and commits it, returning the commit SHA.
func (r *Repo) CommitAll(message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("failed to stage changes: %w", err)
	}

	name := r.authorName
	if name == "" {
		name = "summon"
	}
	email := r.authorEmail
	if email == "" {
		email = "summon@localhost"
	}

	sha, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  name,
			Email: email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return sha.String(), nil
}

// Push pushes the named local branch to origin.
func (r *Repo) Push(ctx context.Context, branch string) error {
	spec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))

	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{spec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push %s: %w", branch, err)
	}
	return nil
}

// Cleanup removes the clone from disk.
func (r *Repo) Cleanup() {
	if r.dir != "" {
		os.RemoveAll(r.dir)
	}
}
