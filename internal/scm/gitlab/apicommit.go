package gitlab

import (
	"context"
	"fmt"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/summonlabs/summon/internal/scm"
)

// CommitFiles commits the changes through the commits API in a single
// request. GitLab creates the branch itself via start_branch when it does
// not exist, and the resulting commit is attributed and signed server-side.
func (p *Provider) CommitFiles(ctx context.Context, branch, fromBranch, message string, changes []scm.FileChange) (string, error) {
	if len(changes) == 0 {
		return "", fmt.Errorf("no changes to commit to %s", branch)
	}

	existing, err := p.GetBranch(ctx, branch)
	if err != nil {
		return "", err
	}

	// The commits API distinguishes create from update per file, so check
	// each path against the ref the commit will be based on.
	baseRef := fromBranch
	if existing != nil {
		baseRef = branch
	}

	actions := make([]*gl.CommitActionOptions, 0, len(changes))
	for _, c := range changes {
		action := gl.FileUpdate
		switch {
		case c.Delete:
			action = gl.FileDelete
		default:
			if _, err := p.GetFileContent(ctx, baseRef, c.Path); err != nil {
				action = gl.FileCreate
			}
		}

		opt := &gl.CommitActionOptions{
			Action:   gl.Ptr(action),
			FilePath: gl.Ptr(c.Path),
		}
		if !c.Delete {
			opt.Content = gl.Ptr(string(c.Content))
		}
		actions = append(actions, opt)
	}

	opts := &gl.CreateCommitOptions{
		Branch:        gl.Ptr(branch),
		CommitMessage: gl.Ptr(message),
		Actions:       actions,
	}
	if existing == nil {
		opts.StartBranch = gl.Ptr(fromBranch)
	}

	commit, _, err := p.client.Commits.CreateCommit(p.pid(), opts, gl.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to commit %d changes to %s: %w", len(changes), branch, err)
	}
	return commit.ID, nil
}
