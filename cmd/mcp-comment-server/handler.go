package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/summonlabs/summon/internal/scm"
	"github.com/summonlabs/summon/internal/scm/github"
	"github.com/summonlabs/summon/internal/scm/gitlab"
)

// UpdateCommentParams defines the input parameters for the tool.
type UpdateCommentParams struct {
	Body string `json:"body" jsonschema:"The updated comment content"`
}

// HandleUpdateComment handles the update_agent_comment tool call.
func HandleUpdateComment(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params UpdateCommentParams,
) (*mcp.CallToolResult, any, error) {
	log.Printf("[MCP Comment Server] Received update_agent_comment request")

	if params.Body == "" {
		return nil, nil, fmt.Errorf("body parameter is required")
	}

	commentID, err := strconv.ParseInt(os.Getenv("AGENT_COMMENT_ID"), 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid AGENT_COMMENT_ID: %w", err)
	}

	provider, err := providerFromEnv(ctx)
	if err != nil {
		return nil, nil, err
	}

	kind := scm.CommentKind(os.Getenv("COMMENT_KIND"))
	if kind == "" {
		if provider.Platform() == scm.PlatformGitLab {
			kind = scm.Note
		} else {
			kind = scm.IssueComment
		}
	}
	handle := scm.CommentHandle{Kind: kind, ID: commentID}

	log.Printf("[MCP Comment Server] Updating comment %d (%d characters)", commentID, len(params.Body))
	if err := provider.UpdateComment(ctx, handle, params.Body); err != nil {
		log.Printf("[MCP Comment Server] Failed to update comment: %v", err)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)},
			},
			IsError: true,
		}, nil, nil
	}

	resultText := fmt.Sprintf(`{"success": true, "comment_id": %d, "body_length": %d}`, commentID, len(params.Body))
	log.Printf("[MCP Comment Server] Successfully updated comment %d", commentID)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: resultText},
		},
	}, nil, nil
}

// providerFromEnv builds an entity-bound provider from the environment the
// orchestrator launched this process with.
func providerFromEnv(ctx context.Context) (scm.Provider, error) {
	repo := scm.Repository{
		Owner: os.Getenv("REPO_OWNER"),
		Name:  os.Getenv("REPO_NAME"),
	}
	token := os.Getenv("SCM_TOKEN")
	entityNumber, _ := strconv.Atoi(os.Getenv("ENTITY_NUMBER"))
	isMR := os.Getenv("COMMENT_KIND") == string(scm.ReviewComment)

	switch os.Getenv("SCM_PLATFORM") {
	case string(scm.PlatformGitLab):
		p, err := gitlab.NewWithToken(token, os.Getenv("GITLAB_BASE_URL"), repo)
		if err != nil {
			return nil, fmt.Errorf("failed to build GitLab client: %w", err)
		}
		return p.WithEntity(entityNumber, isMR), nil
	default:
		return github.NewWithToken(ctx, token, repo).WithEntity(entityNumber, isMR), nil
	}
}
