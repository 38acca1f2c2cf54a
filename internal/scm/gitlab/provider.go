// Package gitlab implements the scm.Provider interface on top of the GitLab
// REST API. GitHub PR semantics map onto merge requests and GitLab's single
// note namespace backs all comment operations.
package gitlab

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/summonlabs/summon/internal/scm"
)

const defaultServerURL = "https://gitlab.com"

// Provider is the GitLab implementation of scm.Provider. A provider is bound
// to one project and optionally to one entity (issue or merge request).
type Provider struct {
	client    *gl.Client
	repo      scm.Repository
	entity    int // IID; 0 when no entity context
	isMR      bool
	token     string
	serverURL string
}

// New creates a provider for a project without an entity context.
func New(client *gl.Client, repo scm.Repository) *Provider {
	return &Provider{
		client:    client,
		repo:      repo,
		serverURL: defaultServerURL,
	}
}

// NewWithToken creates a provider with a token-authenticated client.
// baseURL may be empty for gitlab.com.
func NewWithToken(token, baseURL string, repo scm.Repository) (*Provider, error) {
	var opts []gl.ClientOptionFunc
	serverURL := defaultServerURL
	if baseURL != "" {
		opts = append(opts, gl.WithBaseURL(baseURL))
		serverURL = strings.TrimSuffix(baseURL, "/api/v4")
	}

	client, err := gl.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	p := New(client, repo)
	p.token = token
	p.serverURL = serverURL
	return p, nil
}

// WithEntity binds the provider to an issue or merge request and returns it.
func (p *Provider) WithEntity(iid int, isMR bool) *Provider {
	p.entity = iid
	p.isMR = isMR
	return p
}

func (p *Provider) Platform() scm.Platform { return scm.PlatformGitLab }

func (p *Provider) Repo() scm.Repository { return p.repo }

func (p *Provider) pid() string {
	return p.repo.Owner + "/" + p.repo.Name
}

func (p *Provider) requireEntity(op string) error {
	if p.entity <= 0 {
		return &scm.NoEntityContextError{Op: op}
	}
	return nil
}

// HasWritePermission resolves the actor's effective access level including
// membership inherited from groups. Developer (30) or above counts as write.
// Fails closed on lookup errors; a plain non-member resolves to false
// without error.
func (p *Provider) HasWritePermission(ctx context.Context, actor string) (bool, error) {
	user, err := p.lookupUser(ctx, actor)
	if err != nil {
		return false, err
	}

	member, resp, err := p.client.ProjectMembers.GetInheritedProjectMember(
		p.pid(), user.ID, gl.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("failed to get project member %s: %w", actor, err)
	}

	return member.AccessLevel >= gl.DeveloperPermissions, nil
}

// IsHumanActor reports false for project/group access-token bots, which
// GitLab flags on the user record.
func (p *Provider) IsHumanActor(ctx context.Context, actor string) (bool, error) {
	if strings.HasPrefix(actor, "project_") && strings.Contains(actor, "_bot") {
		return false, nil
	}

	user, err := p.lookupUser(ctx, actor)
	if err != nil {
		return false, err
	}
	return !user.Bot, nil
}

func (p *Provider) lookupUser(ctx context.Context, username string) (*gl.User, error) {
	users, _, err := p.client.Users.ListUsers(
		&gl.ListUsersOptions{Username: gl.Ptr(username)}, gl.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", username, err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %s not found", username)
	}
	return users[0], nil
}

func (p *Provider) DefaultBranch(ctx context.Context) (string, error) {
	project, _, err := p.client.Projects.GetProject(p.pid(), &gl.GetProjectOptions{}, gl.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to get project: %w", err)
	}
	return project.DefaultBranch, nil
}

func (p *Provider) GetBranch(ctx context.Context, name string) (*scm.Branch, error) {
	branch, resp, err := p.client.Branches.GetBranch(p.pid(), name, gl.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get branch %s: %w", name, err)
	}

	sha := ""
	if branch.Commit != nil {
		sha = branch.Commit.ID
	}
	return &scm.Branch{Name: branch.Name, SHA: sha}, nil
}

func (p *Provider) CreateBranch(ctx context.Context, name, fromSHA string) error {
	return scm.RetryWithBackoff(func() error {
		_, _, err := p.client.Branches.CreateBranch(p.pid(), &gl.CreateBranchOptions{
			Branch: gl.Ptr(name),
			Ref:    gl.Ptr(fromSHA),
		}, gl.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to create branch %s: %w", name, err)
		}
		return nil
	})
}

func (p *Provider) DeleteBranch(ctx context.Context, name string) error {
	if _, err := p.client.Branches.DeleteBranch(p.pid(), name, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	return nil
}

func (p *Provider) CompareRefs(ctx context.Context, base, head string) (*scm.Comparison, error) {
	compare, _, err := p.client.Repositories.Compare(p.pid(), &gl.CompareOptions{
		From: gl.Ptr(base),
		To:   gl.Ptr(head),
	}, gl.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to compare %s...%s: %w", base, head, err)
	}

	result := &scm.Comparison{TotalCommits: len(compare.Commits)}
	for _, d := range compare.Diffs {
		result.ChangedFiles = append(result.ChangedFiles, scm.ChangedFile{
			Path:       d.NewPath,
			ChangeType: diffChangeType(d.NewFile, d.DeletedFile, d.RenamedFile),
		})
	}
	return result, nil
}

func diffChangeType(newFile, deleted, renamed bool) string {
	switch {
	case newFile:
		return "added"
	case deleted:
		return "removed"
	case renamed:
		return "renamed"
	default:
		return "modified"
	}
}

func (p *Provider) GetFileContent(ctx context.Context, ref, path string) ([]byte, error) {
	raw, _, err := p.client.RepositoryFiles.GetRawFile(p.pid(), path, &gl.GetRawFileOptions{
		Ref: gl.Ptr(ref),
	}, gl.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get raw file %s at %s: %w", path, ref, err)
	}
	return raw, nil
}

func (p *Provider) GetEntity(ctx context.Context) (*scm.Entity, error) {
	if err := p.requireEntity("GetEntity"); err != nil {
		return nil, err
	}

	if p.isMR {
		mr, _, err := p.client.MergeRequests.GetMergeRequest(
			p.pid(), p.entity, &gl.GetMergeRequestsOptions{}, gl.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to get MR !%d: %w", p.entity, err)
		}

		commits, _, err := p.client.MergeRequests.GetMergeRequestCommits(
			p.pid(), p.entity, &gl.GetMergeRequestCommitsOptions{}, gl.WithContext(ctx))
		if err != nil {
			log.Printf("[GitLab] Failed to count commits for !%d: %v", p.entity, err)
		}

		return &scm.Entity{
			Kind:        scm.KindMergeRequest,
			Number:      mr.IID,
			Title:       mr.Title,
			Body:        mr.Description,
			State:       normalizeState(mr.State),
			HeadRef:     mr.SourceBranch,
			BaseRef:     mr.TargetBranch,
			HeadSHA:     mr.SHA,
			CommitCount: len(commits),
		}, nil
	}

	issue, _, err := p.client.Issues.GetIssue(p.pid(), p.entity, gl.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get issue #%d: %w", p.entity, err)
	}
	return &scm.Entity{
		Kind:   scm.KindIssue,
		Number: issue.IID,
		Title:  issue.Title,
		Body:   issue.Description,
		State:  normalizeState(issue.State),
	}, nil
}

// normalizeState maps GitLab's "opened" onto the platform-neutral "open".
func normalizeState(state string) string {
	if state == "opened" {
		return "open"
	}
	return state
}

func (p *Provider) GetChangedFiles(ctx context.Context) ([]scm.ChangedFile, error) {
	if err := p.requireEntity("GetChangedFiles"); err != nil {
		return nil, err
	}

	diffs, _, err := p.client.MergeRequests.ListMergeRequestDiffs(
		p.pid(), p.entity, &gl.ListMergeRequestDiffsOptions{}, gl.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list diffs for !%d: %w", p.entity, err)
	}

	var files []scm.ChangedFile
	for _, d := range diffs {
		files = append(files, scm.ChangedFile{
			Path:       d.NewPath,
			ChangeType: diffChangeType(d.NewFile, d.DeletedFile, d.RenamedFile),
		})
	}
	return files, nil
}

func (p *Provider) GetDiff(ctx context.Context) (string, error) {
	if err := p.requireEntity("GetDiff"); err != nil {
		return "", err
	}

	diffs, _, err := p.client.MergeRequests.ListMergeRequestDiffs(
		p.pid(), p.entity, &gl.ListMergeRequestDiffsOptions{}, gl.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to get diff for !%d: %w", p.entity, err)
	}

	var b strings.Builder
	for _, d := range diffs {
		fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n%s\n", d.OldPath, d.NewPath, d.Diff)
	}
	return b.String(), nil
}

// ApplySuggestions posts suggestion blocks as positioned MR discussions,
// GitLab's equivalent of GitHub inline review suggestions.
func (p *Provider) ApplySuggestions(ctx context.Context, suggestions []scm.Suggestion) error {
	if err := p.requireEntity("ApplySuggestions"); err != nil {
		return err
	}

	mr, _, err := p.client.MergeRequests.GetMergeRequest(
		p.pid(), p.entity, &gl.GetMergeRequestsOptions{}, gl.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to get MR !%d: %w", p.entity, err)
	}
	if mr.DiffRefs.BaseSha == "" && mr.DiffRefs.HeadSha == "" && mr.DiffRefs.StartSha == "" {
		return fmt.Errorf("MR !%d has no diff refs", p.entity)
	}

	for _, s := range suggestions {
		body := fmt.Sprintf("```suggestion:-0+0\n%s\n```", s.Body)
		_, _, err := p.client.Discussions.CreateMergeRequestDiscussion(
			p.pid(), p.entity, &gl.CreateMergeRequestDiscussionOptions{
				Body: gl.Ptr(body),
				Position: &gl.PositionOptions{
					BaseSHA:      gl.Ptr(mr.DiffRefs.BaseSha),
					StartSHA:     gl.Ptr(mr.DiffRefs.StartSha),
					HeadSHA:      gl.Ptr(mr.DiffRefs.HeadSha),
					PositionType: gl.Ptr("text"),
					NewPath:      gl.Ptr(s.Path),
					NewLine:      gl.Ptr(s.Line),
				},
			}, gl.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to create suggestion discussion on %s:%d: %w", s.Path, s.Line, err)
		}
	}
	return nil
}

func (p *Provider) CloneURL() string {
	if p.token != "" {
		return fmt.Sprintf("%s/%s/%s.git",
			strings.Replace(p.serverURL, "https://", "https://oauth2:"+p.token+"@", 1),
			p.repo.Owner, p.repo.Name)
	}
	return fmt.Sprintf("%s/%s/%s.git", p.serverURL, p.repo.Owner, p.repo.Name)
}

func (p *Provider) BranchURL(name string) string {
	return fmt.Sprintf("%s/%s/%s/-/tree/%s", p.serverURL, p.repo.Owner, p.repo.Name, name)
}

// CreatePullURL builds a pre-filled new-MR URL. Opening it in a browser is
// the only way an MR gets created; the orchestrator never creates one.
func (p *Provider) CreatePullURL(base, head, title, body string) string {
	q := url.Values{}
	q.Set("merge_request[source_branch]", head)
	q.Set("merge_request[target_branch]", base)
	q.Set("merge_request[title]", title)
	q.Set("merge_request[description]", body)
	return fmt.Sprintf("%s/%s/%s/-/merge_requests/new?%s",
		p.serverURL, p.repo.Owner, p.repo.Name, q.Encode())
}
