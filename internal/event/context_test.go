package event

import (
	"testing"

	"github.com/summonlabs/summon/internal/scm"
)

func TestParseGitHubIssueComment(t *testing.T) {
	payload := []byte(`{
		"action": "created",
		"repository": {"name": "widgets", "owner": {"login": "acme"}},
		"sender": {"login": "someone"},
		"issue": {"number": 42, "title": "Parser bug", "body": "It crashes"},
		"comment": {"id": 9001, "body": "@claude fix this", "user": {"login": "alice"}}
	}`)

	ctx, err := ParseGitHubEvent("issue_comment", payload)
	if err != nil {
		t.Fatalf("ParseGitHubEvent() error: %v", err)
	}

	if ctx.Platform != scm.PlatformGitHub {
		t.Errorf("Platform = %s", ctx.Platform)
	}
	if ctx.Repository.Owner != "acme" || ctx.Repository.Name != "widgets" {
		t.Errorf("Repository = %+v", ctx.Repository)
	}
	if ctx.EntityKind != scm.KindIssue || ctx.EntityNumber != 42 {
		t.Errorf("entity = %s #%d, want issue #42", ctx.EntityKind, ctx.EntityNumber)
	}
	if ctx.IsMergeRequest {
		t.Errorf("plain issue must not be flagged as merge request")
	}
	if ctx.TriggerEvent != TriggerComment {
		t.Errorf("TriggerEvent = %s", ctx.TriggerEvent)
	}
	if ctx.CommentID != 9001 || ctx.CommentBody != "@claude fix this" {
		t.Errorf("comment = %d %q", ctx.CommentID, ctx.CommentBody)
	}
	if ctx.Actor != "alice" {
		t.Errorf("Actor = %q, want comment author", ctx.Actor)
	}
	if ctx.RunID == "" {
		t.Errorf("RunID must be set")
	}
}

func TestParseGitHubPRCommentMarker(t *testing.T) {
	// Comments on PRs arrive as issue_comment with a pull_request marker.
	payload := []byte(`{
		"repository": {"name": "widgets", "owner": {"login": "acme"}},
		"sender": {"login": "alice"},
		"issue": {"number": 7, "title": "Add feature", "body": "", "pull_request": {"url": "x"}},
		"comment": {"id": 1, "body": "@claude review"}
	}`)

	ctx, err := ParseGitHubEvent("issue_comment", payload)
	if err != nil {
		t.Fatalf("ParseGitHubEvent() error: %v", err)
	}
	if ctx.EntityKind != scm.KindPullRequest {
		t.Errorf("EntityKind = %s, want pr", ctx.EntityKind)
	}
	if !ctx.IsMergeRequest {
		t.Errorf("PR comment must set IsMergeRequest")
	}
}

func TestParseGitHubPullRequestEvent(t *testing.T) {
	payload := []byte(`{
		"action": "opened",
		"repository": {"name": "widgets", "owner": {"login": "acme"}},
		"sender": {"login": "alice"},
		"pull_request": {
			"number": 12, "title": "New parser", "body": "@claude check edge cases",
			"base": {"ref": "main"}, "head": {"ref": "feature/parser"}
		}
	}`)

	ctx, err := ParseGitHubEvent("pull_request", payload)
	if err != nil {
		t.Fatalf("ParseGitHubEvent() error: %v", err)
	}
	if ctx.TriggerEvent != TriggerCreated {
		t.Errorf("TriggerEvent = %s, want created", ctx.TriggerEvent)
	}
	if ctx.BaseBranch != "main" || ctx.HeadBranch != "feature/parser" {
		t.Errorf("branches = %q/%q", ctx.BaseBranch, ctx.HeadBranch)
	}
}

func TestParseGitHubAssignedAndLabeled(t *testing.T) {
	assigned := []byte(`{
		"action": "assigned",
		"repository": {"name": "w", "owner": {"login": "a"}},
		"sender": {"login": "alice"},
		"issue": {"number": 3, "title": "t", "body": ""},
		"assignee": {"login": "claude-bot"}
	}`)

	ctx, err := ParseGitHubEvent("issues", assigned)
	if err != nil {
		t.Fatalf("ParseGitHubEvent() error: %v", err)
	}
	if ctx.TriggerEvent != TriggerAssigned || ctx.Assignee != "claude-bot" {
		t.Errorf("assigned event = %s %q", ctx.TriggerEvent, ctx.Assignee)
	}

	labeled := []byte(`{
		"action": "labeled",
		"repository": {"name": "w", "owner": {"login": "a"}},
		"sender": {"login": "alice"},
		"issue": {"number": 3, "title": "t", "body": ""},
		"label": {"name": "ai-assist"}
	}`)

	ctx, err = ParseGitHubEvent("issues", labeled)
	if err != nil {
		t.Fatalf("ParseGitHubEvent() error: %v", err)
	}
	if ctx.TriggerEvent != TriggerLabeled || ctx.Label != "ai-assist" {
		t.Errorf("labeled event = %s %q", ctx.TriggerEvent, ctx.Label)
	}
}

func TestParseGitHubUnsupportedEvent(t *testing.T) {
	if _, err := ParseGitHubEvent("push", []byte(`{}`)); err == nil {
		t.Fatalf("push events must be rejected")
	}
}

func TestParseGitHubMissingEntityNumber(t *testing.T) {
	payload := []byte(`{
		"repository": {"name": "w", "owner": {"login": "a"}},
		"comment": {"id": 1, "body": "x"}
	}`)
	if _, err := ParseGitHubEvent("issue_comment", payload); err == nil {
		t.Fatalf("events without an entity number must be rejected")
	}
}

func TestParseGitLabMRNote(t *testing.T) {
	payload := []byte(`{
		"object_kind": "note",
		"project": {"path_with_namespace": "group/sub/widgets"},
		"user": {"username": "alice"},
		"object_attributes": {"id": 501, "note": "@claude please fix"},
		"merge_request": {
			"iid": 9, "title": "Fix parser", "description": "desc",
			"target_branch": "main", "source_branch": "fix/parser"
		}
	}`)

	ctx, err := ParseGitLabEvent(payload)
	if err != nil {
		t.Fatalf("ParseGitLabEvent() error: %v", err)
	}

	if ctx.Platform != scm.PlatformGitLab {
		t.Errorf("Platform = %s", ctx.Platform)
	}
	if ctx.Repository.Owner != "group/sub" || ctx.Repository.Name != "widgets" {
		t.Errorf("Repository = %+v, want nested namespace split", ctx.Repository)
	}
	if !ctx.IsMRNote || !ctx.IsMergeRequest {
		t.Errorf("MR note flags not set: %+v", ctx)
	}
	if ctx.EntityKind != scm.KindMergeRequest || ctx.EntityNumber != 9 {
		t.Errorf("entity = %s #%d", ctx.EntityKind, ctx.EntityNumber)
	}
	if ctx.CommentID != 501 || ctx.CommentBody != "@claude please fix" {
		t.Errorf("note = %d %q", ctx.CommentID, ctx.CommentBody)
	}
	if ctx.BaseBranch != "main" || ctx.HeadBranch != "fix/parser" {
		t.Errorf("branches = %q/%q", ctx.BaseBranch, ctx.HeadBranch)
	}
}

func TestParseGitLabIssueNote(t *testing.T) {
	payload := []byte(`{
		"object_kind": "note",
		"project": {"path_with_namespace": "acme/widgets"},
		"user": {"username": "alice"},
		"object_attributes": {"id": 77, "note": "@claude help"},
		"issue": {"iid": 4, "title": "Bug", "description": "d"}
	}`)

	ctx, err := ParseGitLabEvent(payload)
	if err != nil {
		t.Fatalf("ParseGitLabEvent() error: %v", err)
	}
	if ctx.IsMRNote {
		t.Errorf("issue note must not set IsMRNote")
	}
	if ctx.EntityKind != scm.KindIssue || ctx.EntityNumber != 4 {
		t.Errorf("entity = %s #%d", ctx.EntityKind, ctx.EntityNumber)
	}
}

func TestParseGitLabIssueOpened(t *testing.T) {
	payload := []byte(`{
		"object_kind": "issue",
		"project": {"path_with_namespace": "acme/widgets"},
		"user": {"username": "alice"},
		"object_attributes": {"iid": 15, "title": "Crash", "description": "@claude investigate", "action": "open"}
	}`)

	ctx, err := ParseGitLabEvent(payload)
	if err != nil {
		t.Fatalf("ParseGitLabEvent() error: %v", err)
	}
	if ctx.TriggerEvent != TriggerCreated {
		t.Errorf("TriggerEvent = %s, want created", ctx.TriggerEvent)
	}
	if ctx.Body != "@claude investigate" {
		t.Errorf("Body = %q", ctx.Body)
	}
}

func TestParseGitLabAssigneeChange(t *testing.T) {
	payload := []byte(`{
		"object_kind": "issue",
		"project": {"path_with_namespace": "acme/widgets"},
		"user": {"username": "alice"},
		"object_attributes": {"iid": 15, "title": "t", "description": "", "action": "update"},
		"changes": {
			"assignees": {
				"previous": [],
				"current": [{"username": "claude-bot"}]
			}
		}
	}`)

	ctx, err := ParseGitLabEvent(payload)
	if err != nil {
		t.Fatalf("ParseGitLabEvent() error: %v", err)
	}
	if ctx.TriggerEvent != TriggerAssigned || ctx.Assignee != "claude-bot" {
		t.Errorf("assignment = %s %q", ctx.TriggerEvent, ctx.Assignee)
	}
}

func TestParseGitLabUnsupportedKind(t *testing.T) {
	if _, err := ParseGitLabEvent([]byte(`{"object_kind": "pipeline"}`)); err == nil {
		t.Fatalf("pipeline events must be rejected")
	}
}
