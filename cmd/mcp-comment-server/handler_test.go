package main

import (
	"context"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestHandleUpdateCommentRequiresBody(t *testing.T) {
	_, _, err := HandleUpdateComment(context.Background(), &mcp.CallToolRequest{}, UpdateCommentParams{})
	if err == nil {
		t.Fatalf("empty body must be rejected")
	}
	if !strings.Contains(err.Error(), "body") {
		t.Errorf("error should name the missing parameter: %v", err)
	}
}

func TestHandleUpdateCommentRequiresCommentID(t *testing.T) {
	t.Setenv("AGENT_COMMENT_ID", "")

	_, _, err := HandleUpdateComment(context.Background(), &mcp.CallToolRequest{}, UpdateCommentParams{Body: "update"})
	if err == nil {
		t.Fatalf("missing AGENT_COMMENT_ID must be rejected")
	}
	if !strings.Contains(err.Error(), "AGENT_COMMENT_ID") {
		t.Errorf("error should name the broken variable: %v", err)
	}
}

func TestHandleUpdateCommentRejectsNonNumericID(t *testing.T) {
	t.Setenv("AGENT_COMMENT_ID", "not-a-number")

	if _, _, err := HandleUpdateComment(context.Background(), &mcp.CallToolRequest{}, UpdateCommentParams{Body: "update"}); err == nil {
		t.Fatalf("non-numeric AGENT_COMMENT_ID must be rejected")
	}
}
