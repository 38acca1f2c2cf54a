package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v66/github"

	"github.com/summonlabs/summon/internal/scm"
)

// Commits created through the Git Data API are signed by GitHub itself.
// Commit-signing mode routes all branch content through here instead of
// pushing locally made commits: blob tree, commit object, ref update.

func (p *Provider) CommitFiles(ctx context.Context, branch, fromBranch, message string, changes []scm.FileChange) (string, error) {
	if len(changes) == 0 {
		return "", fmt.Errorf("no changes to commit to %s", branch)
	}

	headSHA, err := p.getOrCreateBranchRef(ctx, branch, fromBranch)
	if err != nil {
		return "", err
	}

	parent, _, err := p.client.Git.GetCommit(ctx, p.repo.Owner, p.repo.Name, headSHA)
	if err != nil {
		return "", fmt.Errorf("failed to get commit %s: %w", headSHA, err)
	}

	entries := make([]*gh.TreeEntry, 0, len(changes))
	for _, c := range changes {
		entry := &gh.TreeEntry{
			Path: gh.String(c.Path),
			Mode: gh.String("100644"),
			Type: gh.String("blob"),
		}
		if !c.Delete {
			// Entries with neither content nor SHA delete the path.
			entry.Content = gh.String(string(c.Content))
		}
		entries = append(entries, entry)
	}

	tree, _, err := p.client.Git.CreateTree(ctx, p.repo.Owner, p.repo.Name, parent.GetTree().GetSHA(), entries)
	if err != nil {
		return "", fmt.Errorf("failed to create tree for %s: %w", branch, err)
	}

	commit, _, err := p.client.Git.CreateCommit(ctx, p.repo.Owner, p.repo.Name, &gh.Commit{
		Message: gh.String(message),
		Tree:    tree,
		Parents: []*gh.Commit{{SHA: gh.String(headSHA)}},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create commit on %s: %w", branch, err)
	}

	_, _, err = p.client.Git.UpdateRef(ctx, p.repo.Owner, p.repo.Name, &gh.Reference{
		Ref:    gh.String("refs/heads/" + branch),
		Object: &gh.GitObject{SHA: commit.SHA},
	}, false)
	if err != nil {
		return "", fmt.Errorf("failed to advance %s to %s: %w", branch, commit.GetSHA(), err)
	}

	return commit.GetSHA(), nil
}

// getOrCreateBranchRef returns the branch head SHA, creating the ref off
// fromBranch when the branch does not exist yet.
func (p *Provider) getOrCreateBranchRef(ctx context.Context, branch, fromBranch string) (string, error) {
	ref, resp, err := p.client.Git.GetRef(ctx, p.repo.Owner, p.repo.Name, "heads/"+branch)
	if err == nil {
		return ref.GetObject().GetSHA(), nil
	}
	if resp == nil || resp.StatusCode != 404 {
		return "", fmt.Errorf("failed to get ref for %s: %w", branch, err)
	}

	baseRef, _, err := p.client.Git.GetRef(ctx, p.repo.Owner, p.repo.Name, "heads/"+fromBranch)
	if err != nil {
		return "", fmt.Errorf("failed to get ref for base %s: %w", fromBranch, err)
	}

	created, _, err := p.client.Git.CreateRef(ctx, p.repo.Owner, p.repo.Name, &gh.Reference{
		Ref:    gh.String("refs/heads/" + branch),
		Object: &gh.GitObject{SHA: baseRef.GetObject().SHA},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create ref for %s: %w", branch, err)
	}

	warnf("Created %s off %s for API commits", branch, fromBranch)
	return created.GetObject().GetSHA(), nil
}
