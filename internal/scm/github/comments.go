package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/summonlabs/summon/internal/scm"
)

// GitHub keeps issue comments and inline PR review comments in two disjoint
// ID namespaces served by different endpoints. The handle's kind records
// which API created a comment; updates route to that API first and retry the
// other namespace on a 404, since a handle can outlive knowledge of its
// origin (sticky mode reattaches to comments found by listing).

func (p *Provider) CreateComment(ctx context.Context, body string) (scm.CommentHandle, error) {
	if err := p.requireEntity("CreateComment"); err != nil {
		return scm.CommentHandle{}, err
	}

	var handle scm.CommentHandle
	err := scm.RetryWithBackoff(func() error {
		comment, _, err := p.client.Issues.CreateComment(
			ctx, p.repo.Owner, p.repo.Name, p.entity, &gh.IssueComment{Body: gh.String(body)})
		if err != nil {
			return fmt.Errorf("failed to create comment on #%d: %w", p.entity, err)
		}
		handle = scm.CommentHandle{Kind: scm.IssueComment, ID: comment.GetID()}
		return nil
	})
	return handle, err
}

func (p *Provider) UpdateComment(ctx context.Context, h scm.CommentHandle, body string) error {
	if !h.Valid() {
		return fmt.Errorf("invalid comment handle")
	}

	var firstErr error
	switch h.Kind {
	case scm.ReviewComment:
		firstErr = p.editReviewComment(ctx, h.ID, body)
		if !isNotFound(firstErr) {
			return firstErr
		}
		warnf("Review comment %d not found, retrying issue comment namespace", h.ID)
		return p.editIssueComment(ctx, h.ID, body)
	default:
		firstErr = p.editIssueComment(ctx, h.ID, body)
		if !isNotFound(firstErr) {
			return firstErr
		}
		warnf("Issue comment %d not found, retrying review comment namespace", h.ID)
		return p.editReviewComment(ctx, h.ID, body)
	}
}

func (p *Provider) editIssueComment(ctx context.Context, id int64, body string) error {
	_, resp, err := p.client.Issues.EditComment(
		ctx, p.repo.Owner, p.repo.Name, id, &gh.IssueComment{Body: gh.String(body)})
	return wrapStatus(resp, err, fmt.Sprintf("failed to update issue comment %d", id))
}

func (p *Provider) editReviewComment(ctx context.Context, id int64, body string) error {
	_, resp, err := p.client.PullRequests.EditComment(
		ctx, p.repo.Owner, p.repo.Name, id, &gh.PullRequestComment{Body: gh.String(body)})
	return wrapStatus(resp, err, fmt.Sprintf("failed to update review comment %d", id))
}

func (p *Provider) GetComment(ctx context.Context, h scm.CommentHandle) (string, error) {
	if !h.Valid() {
		return "", fmt.Errorf("invalid comment handle")
	}

	if h.Kind == scm.ReviewComment {
		comment, resp, err := p.client.PullRequests.GetComment(ctx, p.repo.Owner, p.repo.Name, h.ID)
		if err == nil {
			return comment.GetBody(), nil
		}
		if wrapped := wrapStatus(resp, err, fmt.Sprintf("failed to get review comment %d", h.ID)); !isNotFound(wrapped) {
			return "", wrapped
		}
	}

	comment, resp, err := p.client.Issues.GetComment(ctx, p.repo.Owner, p.repo.Name, h.ID)
	if err != nil {
		return "", wrapStatus(resp, err, fmt.Sprintf("failed to get comment %d", h.ID))
	}
	return comment.GetBody(), nil
}

// FindBotComment scans the entity's issue comments newest-first for one
// authored by botLogin (with or without the "[bot]" suffix) or whose body is
// byte-identical to body.
func (p *Provider) FindBotComment(ctx context.Context, botLogin, body string) (scm.CommentHandle, string, error) {
	if err := p.requireEntity("FindBotComment"); err != nil {
		return scm.CommentHandle{}, "", err
	}

	opts := &gh.IssueListCommentsOptions{
		Sort:        gh.String("created"),
		Direction:   gh.String("desc"),
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	comments, _, err := p.client.Issues.ListComments(ctx, p.repo.Owner, p.repo.Name, p.entity, opts)
	if err != nil {
		return scm.CommentHandle{}, "", fmt.Errorf("failed to list comments on #%d: %w", p.entity, err)
	}

	for _, c := range comments {
		login := c.GetUser().GetLogin()
		if matchesBotLogin(login, botLogin) || c.GetBody() == body {
			return scm.CommentHandle{Kind: scm.IssueComment, ID: c.GetID()}, c.GetBody(), nil
		}
	}
	return scm.CommentHandle{}, "", nil
}

func matchesBotLogin(login, botLogin string) bool {
	if botLogin == "" || login == "" {
		return false
	}
	return login == botLogin ||
		login == botLogin+"[bot]" ||
		strings.TrimSuffix(login, "[bot]") == botLogin
}

// statusError carries the HTTP status of a failed API call so namespace
// routing can distinguish 404s from real failures.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func wrapStatus(resp *gh.Response, err error, msg string) error {
	if err == nil {
		return nil
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return &statusError{status: status, err: fmt.Errorf("%s: %w", msg, err)}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	se, ok := err.(*statusError)
	return ok && se.status == 404
}
