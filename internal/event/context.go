// Package event normalizes raw platform webhook events into a
// platform-neutral context record. The Context is immutable once built;
// downstream components only read it.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/summonlabs/summon/internal/scm"
)

// TriggerEvent classifies what kind of surface carried the trigger.
type TriggerEvent string

const (
	// TriggerComment is a comment on an issue, PR, or MR.
	TriggerComment TriggerEvent = "comment"
	// TriggerReview is a PR review body or inline review comment.
	TriggerReview TriggerEvent = "review"
	// TriggerCreated is an issue/PR/MR being opened (title + description).
	TriggerCreated TriggerEvent = "created"
	// TriggerAssigned is an assignment event.
	TriggerAssigned TriggerEvent = "assigned"
	// TriggerLabeled is a label being added.
	TriggerLabeled TriggerEvent = "labeled"
)

// Context is the platform-neutral record a run is driven by.
type Context struct {
	Platform       scm.Platform
	IsMergeRequest bool // true for PRs and MRs
	EntityKind     scm.EntityKind
	EntityNumber   int
	Actor          string
	TriggerEvent   TriggerEvent
	Repository     scm.Repository
	RunID          string

	// Trigger surfaces. Title/Body are the entity's; CommentBody is the
	// triggering comment's when TriggerEvent is a comment/review kind.
	Title       string
	Body        string
	CommentBody string
	CommentID   int64
	Assignee    string
	Label       string

	// Branches, populated for PR/MR payloads that carry them.
	BaseBranch string
	HeadBranch string

	// IsMRNote is set on GitLab note events attached to a merge request
	// (as opposed to an issue note).
	IsMRNote bool
}

// newRunID salts the run with the wall clock so branch and comment
// identifiers from concurrent runs on the same entity cannot collide.
func newRunID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// ParseGitHubEvent builds a Context from a GitHub webhook event.
func ParseGitHubEvent(eventType string, payload []byte) (*Context, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	ctx := &Context{
		Platform: scm.PlatformGitHub,
		RunID:    newRunID(),
	}

	if repo, ok := data["repository"].(map[string]interface{}); ok {
		ctx.Repository = scm.Repository{
			Owner: getStringField(repo, "owner", "login"),
			Name:  getStringField(repo, "name"),
		}
	}
	if sender, ok := data["sender"].(map[string]interface{}); ok {
		ctx.Actor = getStringField(sender, "login")
	}

	action := getStringField(data, "action")

	switch eventType {
	case "issue_comment":
		parseGitHubIssue(ctx, data)
		parseGitHubComment(ctx, data, "comment")
		ctx.TriggerEvent = TriggerComment
	case "pull_request_review_comment":
		parseGitHubPullRequest(ctx, data)
		parseGitHubComment(ctx, data, "comment")
		ctx.TriggerEvent = TriggerReview
	case "pull_request_review":
		parseGitHubPullRequest(ctx, data)
		parseGitHubComment(ctx, data, "review")
		ctx.TriggerEvent = TriggerReview
	case "issues":
		parseGitHubIssue(ctx, data)
		switch action {
		case "assigned":
			ctx.TriggerEvent = TriggerAssigned
			if assignee, ok := data["assignee"].(map[string]interface{}); ok {
				ctx.Assignee = getStringField(assignee, "login")
			}
		case "labeled":
			ctx.TriggerEvent = TriggerLabeled
			if label, ok := data["label"].(map[string]interface{}); ok {
				ctx.Label = getStringField(label, "name")
			}
		default:
			ctx.TriggerEvent = TriggerCreated
		}
	case "pull_request":
		parseGitHubPullRequest(ctx, data)
		switch action {
		case "assigned":
			ctx.TriggerEvent = TriggerAssigned
			if assignee, ok := data["assignee"].(map[string]interface{}); ok {
				ctx.Assignee = getStringField(assignee, "login")
			}
		case "labeled":
			ctx.TriggerEvent = TriggerLabeled
			if label, ok := data["label"].(map[string]interface{}); ok {
				ctx.Label = getStringField(label, "name")
			}
		default:
			ctx.TriggerEvent = TriggerCreated
		}
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}

	if ctx.EntityNumber == 0 {
		return nil, fmt.Errorf("event %s carries no entity number", eventType)
	}
	return ctx, nil
}

func parseGitHubIssue(ctx *Context, data map[string]interface{}) {
	issue, ok := data["issue"].(map[string]interface{})
	if !ok {
		return
	}

	ctx.EntityNumber = int(getNumberField(issue, "number"))
	ctx.Title = getStringField(issue, "title")
	ctx.Body = getStringField(issue, "body")
	ctx.EntityKind = scm.KindIssue

	// Comments on PRs arrive as issue_comment events with a pull_request
	// marker on the issue object.
	if pr, hasPR := issue["pull_request"]; hasPR && pr != nil {
		ctx.EntityKind = scm.KindPullRequest
		ctx.IsMergeRequest = true
	}
}

func parseGitHubPullRequest(ctx *Context, data map[string]interface{}) {
	pr, ok := data["pull_request"].(map[string]interface{})
	if !ok {
		return
	}

	ctx.EntityNumber = int(getNumberField(pr, "number"))
	ctx.Title = getStringField(pr, "title")
	ctx.Body = getStringField(pr, "body")
	ctx.EntityKind = scm.KindPullRequest
	ctx.IsMergeRequest = true

	if base, ok := pr["base"].(map[string]interface{}); ok {
		ctx.BaseBranch = getStringField(base, "ref")
	}
	if head, ok := pr["head"].(map[string]interface{}); ok {
		ctx.HeadBranch = getStringField(head, "ref")
	}
}

func parseGitHubComment(ctx *Context, data map[string]interface{}, key string) {
	comment, ok := data[key].(map[string]interface{})
	if !ok {
		return
	}
	ctx.CommentID = int64(getNumberField(comment, "id"))
	ctx.CommentBody = getStringField(comment, "body")
	if user, ok := comment["user"].(map[string]interface{}); ok {
		ctx.Actor = getStringField(user, "login")
	}
}

// ParseGitLabEvent builds a Context from a GitLab webhook event. GitLab
// routes everything through object_kind: "note", "issue", "merge_request".
func ParseGitLabEvent(payload []byte) (*Context, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	ctx := &Context{
		Platform: scm.PlatformGitLab,
		RunID:    newRunID(),
	}

	if project, ok := data["project"].(map[string]interface{}); ok {
		ctx.Repository = splitPathWithNamespace(getStringField(project, "path_with_namespace"))
	}
	if user, ok := data["user"].(map[string]interface{}); ok {
		ctx.Actor = getStringField(user, "username")
	}

	objectKind := getStringField(data, "object_kind")
	attrs, _ := data["object_attributes"].(map[string]interface{})

	switch objectKind {
	case "note":
		ctx.TriggerEvent = TriggerComment
		if attrs != nil {
			ctx.CommentID = int64(getNumberField(attrs, "id"))
			ctx.CommentBody = getStringField(attrs, "note")
		}
		if mr, ok := data["merge_request"].(map[string]interface{}); ok {
			ctx.EntityKind = scm.KindMergeRequest
			ctx.IsMergeRequest = true
			ctx.IsMRNote = true
			ctx.EntityNumber = int(getNumberField(mr, "iid"))
			ctx.Title = getStringField(mr, "title")
			ctx.Body = getStringField(mr, "description")
			ctx.BaseBranch = getStringField(mr, "target_branch")
			ctx.HeadBranch = getStringField(mr, "source_branch")
		} else if issue, ok := data["issue"].(map[string]interface{}); ok {
			ctx.EntityKind = scm.KindIssue
			ctx.EntityNumber = int(getNumberField(issue, "iid"))
			ctx.Title = getStringField(issue, "title")
			ctx.Body = getStringField(issue, "description")
		}
	case "issue":
		ctx.EntityKind = scm.KindIssue
		if attrs != nil {
			ctx.EntityNumber = int(getNumberField(attrs, "iid"))
			ctx.Title = getStringField(attrs, "title")
			ctx.Body = getStringField(attrs, "description")
		}
		parseGitLabAction(ctx, data, attrs)
	case "merge_request":
		ctx.EntityKind = scm.KindMergeRequest
		ctx.IsMergeRequest = true
		if attrs != nil {
			ctx.EntityNumber = int(getNumberField(attrs, "iid"))
			ctx.Title = getStringField(attrs, "title")
			ctx.Body = getStringField(attrs, "description")
			ctx.BaseBranch = getStringField(attrs, "target_branch")
			ctx.HeadBranch = getStringField(attrs, "source_branch")
		}
		parseGitLabAction(ctx, data, attrs)
	default:
		return nil, fmt.Errorf("unsupported object_kind: %s", objectKind)
	}

	if ctx.EntityNumber == 0 {
		return nil, fmt.Errorf("event %s carries no entity number", objectKind)
	}
	return ctx, nil
}

func parseGitLabAction(ctx *Context, data, attrs map[string]interface{}) {
	action := ""
	if attrs != nil {
		action = getStringField(attrs, "action")
	}

	switch action {
	case "update":
		// Assignment and label changes arrive as updates with a changes map.
		if changes, ok := data["changes"].(map[string]interface{}); ok {
			if assignees, ok := changes["assignees"].(map[string]interface{}); ok {
				ctx.TriggerEvent = TriggerAssigned
				if current, ok := assignees["current"].([]interface{}); ok && len(current) > 0 {
					if a, ok := current[len(current)-1].(map[string]interface{}); ok {
						ctx.Assignee = getStringField(a, "username")
					}
				}
				return
			}
			if labels, ok := changes["labels"].(map[string]interface{}); ok {
				ctx.TriggerEvent = TriggerLabeled
				if current, ok := labels["current"].([]interface{}); ok && len(current) > 0 {
					if l, ok := current[len(current)-1].(map[string]interface{}); ok {
						ctx.Label = getStringField(l, "title")
					}
				}
				return
			}
		}
		ctx.TriggerEvent = TriggerCreated
	default:
		ctx.TriggerEvent = TriggerCreated
	}
}

func splitPathWithNamespace(path string) scm.Repository {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return scm.Repository{Owner: path[:i], Name: path[i+1:]}
		}
	}
	return scm.Repository{Name: path}
}

// Helper functions for safe nested map access.
func getStringField(data map[string]interface{}, keys ...string) string {
	current := data
	for i, key := range keys {
		if i == len(keys)-1 {
			if val, ok := current[key].(string); ok {
				return val
			}
			return ""
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return ""
		}
	}
	return ""
}

func getNumberField(data map[string]interface{}, keys ...string) float64 {
	current := data
	for i, key := range keys {
		if i == len(keys)-1 {
			if val, ok := current[key].(float64); ok {
				return val
			}
			return 0
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return 0
		}
	}
	return 0
}
