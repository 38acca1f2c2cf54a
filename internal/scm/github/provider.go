// Package github implements the scm.Provider interface on top of the GitHub
// REST API.
package github

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/summonlabs/summon/internal/scm"
)

const defaultServerURL = "https://github.com"

// Provider is the GitHub implementation of scm.Provider. A provider is bound
// to one repository and optionally to one entity (issue or PR).
type Provider struct {
	client    *gh.Client
	repo      scm.Repository
	entity    int // 0 when no entity context
	isPR      bool
	token     string
	serverURL string
}

// New creates a provider for a repository without an entity context.
func New(client *gh.Client, repo scm.Repository) *Provider {
	return &Provider{
		client:    client,
		repo:      repo,
		serverURL: defaultServerURL,
	}
}

// NewWithToken creates a provider with a token-authenticated client.
func NewWithToken(ctx context.Context, token string, repo scm.Repository) *Provider {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	p := New(gh.NewClient(oauth2.NewClient(ctx, ts)), repo)
	p.token = token
	return p
}

// WithEntity binds the provider to an issue or pull request and returns it.
func (p *Provider) WithEntity(number int, isPR bool) *Provider {
	p.entity = number
	p.isPR = isPR
	return p
}

func (p *Provider) Platform() scm.Platform { return scm.PlatformGitHub }

func (p *Provider) Repo() scm.Repository { return p.repo }

func (p *Provider) requireEntity(op string) error {
	if p.entity <= 0 {
		return &scm.NoEntityContextError{Op: op}
	}
	return nil
}

// HasWritePermission resolves the actor's effective permission level,
// including permissions inherited through teams and org membership. Fails
// closed: any lookup error yields false.
func (p *Provider) HasWritePermission(ctx context.Context, actor string) (bool, error) {
	perm, _, err := p.client.Repositories.GetPermissionLevel(ctx, p.repo.Owner, p.repo.Name, actor)
	if err != nil {
		return false, fmt.Errorf("failed to get permission level for %s: %w", actor, err)
	}

	permission := perm.GetPermission()
	return permission == "write" || permission == "admin", nil
}

// IsHumanActor reports false for GitHub App bots (type "Bot") and accounts
// with a "[bot]" login suffix.
func (p *Provider) IsHumanActor(ctx context.Context, actor string) (bool, error) {
	if strings.HasSuffix(actor, "[bot]") {
		return false, nil
	}

	user, _, err := p.client.Users.Get(ctx, actor)
	if err != nil {
		return false, fmt.Errorf("failed to look up user %s: %w", actor, err)
	}

	return user.GetType() != "Bot", nil
}

func (p *Provider) DefaultBranch(ctx context.Context) (string, error) {
	repo, _, err := p.client.Repositories.Get(ctx, p.repo.Owner, p.repo.Name)
	if err != nil {
		return "", fmt.Errorf("failed to get repository: %w", err)
	}
	return repo.GetDefaultBranch(), nil
}

func (p *Provider) GetBranch(ctx context.Context, name string) (*scm.Branch, error) {
	branch, resp, err := p.client.Repositories.GetBranch(ctx, p.repo.Owner, p.repo.Name, name, 0)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get branch %s: %w", name, err)
	}

	return &scm.Branch{
		Name: branch.GetName(),
		SHA:  branch.GetCommit().GetSHA(),
	}, nil
}

func (p *Provider) CreateBranch(ctx context.Context, name, fromSHA string) error {
	ref := &gh.Reference{
		Ref:    gh.String("refs/heads/" + name),
		Object: &gh.GitObject{SHA: gh.String(fromSHA)},
	}

	return scm.RetryWithBackoff(func() error {
		if _, _, err := p.client.Git.CreateRef(ctx, p.repo.Owner, p.repo.Name, ref); err != nil {
			return fmt.Errorf("failed to create branch %s: %w", name, err)
		}
		return nil
	})
}

func (p *Provider) DeleteBranch(ctx context.Context, name string) error {
	_, err := p.client.Git.DeleteRef(ctx, p.repo.Owner, p.repo.Name, "heads/"+name)
	if err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	return nil
}

func (p *Provider) CompareRefs(ctx context.Context, base, head string) (*scm.Comparison, error) {
	comparison, _, err := p.client.Repositories.CompareCommits(
		ctx, p.repo.Owner, p.repo.Name, base, head, &gh.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to compare %s...%s: %w", base, head, err)
	}

	result := &scm.Comparison{TotalCommits: comparison.GetTotalCommits()}
	for _, f := range comparison.Files {
		result.ChangedFiles = append(result.ChangedFiles, scm.ChangedFile{
			Path:       f.GetFilename(),
			ChangeType: f.GetStatus(),
			Additions:  f.GetAdditions(),
			Deletions:  f.GetDeletions(),
		})
	}
	return result, nil
}

func (p *Provider) GetFileContent(ctx context.Context, ref, path string) ([]byte, error) {
	file, _, _, err := p.client.Repositories.GetContents(
		ctx, p.repo.Owner, p.repo.Name, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s at %s: %w", path, ref, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s at %s is not a file", path, ref)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode contents of %s: %w", path, err)
	}
	return []byte(content), nil
}

func (p *Provider) GetEntity(ctx context.Context) (*scm.Entity, error) {
	if err := p.requireEntity("GetEntity"); err != nil {
		return nil, err
	}

	if p.isPR {
		pr, _, err := p.client.PullRequests.Get(ctx, p.repo.Owner, p.repo.Name, p.entity)
		if err != nil {
			return nil, fmt.Errorf("failed to get PR #%d: %w", p.entity, err)
		}

		state := pr.GetState()
		if pr.GetMerged() {
			state = "merged"
		}
		return &scm.Entity{
			Kind:        scm.KindPullRequest,
			Number:      pr.GetNumber(),
			Title:       pr.GetTitle(),
			Body:        pr.GetBody(),
			State:       state,
			HeadRef:     pr.GetHead().GetRef(),
			BaseRef:     pr.GetBase().GetRef(),
			HeadSHA:     pr.GetHead().GetSHA(),
			CommitCount: pr.GetCommits(),
		}, nil
	}

	issue, _, err := p.client.Issues.Get(ctx, p.repo.Owner, p.repo.Name, p.entity)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue #%d: %w", p.entity, err)
	}
	return &scm.Entity{
		Kind:   scm.KindIssue,
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		State:  issue.GetState(),
	}, nil
}

func (p *Provider) GetChangedFiles(ctx context.Context) ([]scm.ChangedFile, error) {
	if err := p.requireEntity("GetChangedFiles"); err != nil {
		return nil, err
	}

	var files []scm.ChangedFile
	opts := &gh.ListOptions{PerPage: 100}
	for {
		page, resp, err := p.client.PullRequests.ListFiles(ctx, p.repo.Owner, p.repo.Name, p.entity, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list files for #%d: %w", p.entity, err)
		}
		for _, f := range page {
			files = append(files, scm.ChangedFile{
				Path:       f.GetFilename(),
				ChangeType: f.GetStatus(),
				Additions:  f.GetAdditions(),
				Deletions:  f.GetDeletions(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func (p *Provider) GetDiff(ctx context.Context) (string, error) {
	if err := p.requireEntity("GetDiff"); err != nil {
		return "", err
	}

	diff, _, err := p.client.PullRequests.GetRaw(
		ctx, p.repo.Owner, p.repo.Name, p.entity, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", fmt.Errorf("failed to get diff for #%d: %w", p.entity, err)
	}
	return diff, nil
}

// ApplySuggestions posts inline review suggestions on the PR head commit.
func (p *Provider) ApplySuggestions(ctx context.Context, suggestions []scm.Suggestion) error {
	if err := p.requireEntity("ApplySuggestions"); err != nil {
		return err
	}

	pr, _, err := p.client.PullRequests.Get(ctx, p.repo.Owner, p.repo.Name, p.entity)
	if err != nil {
		return fmt.Errorf("failed to get PR #%d: %w", p.entity, err)
	}
	headSHA := pr.GetHead().GetSHA()

	for _, s := range suggestions {
		body := fmt.Sprintf("```suggestion\n%s\n```", s.Body)
		comment := &gh.PullRequestComment{
			Body:     gh.String(body),
			Path:     gh.String(s.Path),
			CommitID: gh.String(headSHA),
			Line:     gh.Int(s.Line),
			Side:     gh.String("RIGHT"),
		}
		if s.StartLine > 0 && s.StartLine < s.Line {
			comment.StartLine = gh.Int(s.StartLine)
			comment.StartSide = gh.String("RIGHT")
		}

		if _, _, err := p.client.PullRequests.CreateComment(ctx, p.repo.Owner, p.repo.Name, p.entity, comment); err != nil {
			return fmt.Errorf("failed to create suggestion on %s:%d: %w", s.Path, s.Line, err)
		}
	}
	return nil
}

func (p *Provider) CloneURL() string {
	if p.token != "" {
		return fmt.Sprintf("%s/%s/%s.git", strings.Replace(p.serverURL, "https://", "https://x-access-token:"+p.token+"@", 1), p.repo.Owner, p.repo.Name)
	}
	return fmt.Sprintf("%s/%s/%s.git", p.serverURL, p.repo.Owner, p.repo.Name)
}

func (p *Provider) BranchURL(name string) string {
	return fmt.Sprintf("%s/%s/%s/tree/%s", p.serverURL, p.repo.Owner, p.repo.Name, name)
}

// CreatePullURL builds a quick_pull compare URL with a pre-filled title and
// body. Opening it in a browser is the only way a PR gets created; the
// orchestrator never creates one itself.
func (p *Provider) CreatePullURL(base, head, title, body string) string {
	return fmt.Sprintf("%s/%s/%s/compare/%s...%s?quick_pull=1&title=%s&body=%s",
		p.serverURL, p.repo.Owner, p.repo.Name,
		base, head,
		url.QueryEscape(title), url.QueryEscape(body),
	)
}

// warnf keeps provider-side logging uniform.
func warnf(format string, args ...any) {
	log.Printf("[GitHub] "+format, args...)
}
