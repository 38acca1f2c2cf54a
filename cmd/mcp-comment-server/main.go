// mcp-comment-server is the stdio MCP server the coding agent uses to
// update its tracking comment. The orchestrator launches it with the
// platform, token, repository, and comment handle in the environment.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	requiredEnv := []string{"SCM_PLATFORM", "SCM_TOKEN", "REPO_OWNER", "REPO_NAME", "AGENT_COMMENT_ID"}
	for _, env := range requiredEnv {
		if os.Getenv(env) == "" {
			log.Fatalf("[MCP Comment Server] Missing required environment variable: %s", env)
		}
	}

	log.Println("[MCP Comment Server] Starting comment MCP server")
	log.Printf("[MCP Comment Server] Platform: %s", os.Getenv("SCM_PLATFORM"))
	log.Printf("[MCP Comment Server] Repository: %s/%s", os.Getenv("REPO_OWNER"), os.Getenv("REPO_NAME"))
	log.Printf("[MCP Comment Server] Comment ID: %s", os.Getenv("AGENT_COMMENT_ID"))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "comment-server",
		Version: "v1.0.0",
	}, nil)

	tool := &mcp.Tool{
		Name:        "update_agent_comment",
		Description: "Update the agent's tracking comment with progress and results (handles issue, PR, and MR comments)",
	}
	mcp.AddTool(server, tool, HandleUpdateComment)
	log.Println("[MCP Comment Server] Registered tool: update_agent_comment")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[MCP Comment Server] Received shutdown signal")
		cancel()
	}()

	log.Println("[MCP Comment Server] Starting on stdio transport...")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("[MCP Comment Server] Server error: %v", err)
	}
	log.Println("[MCP Comment Server] Server stopped gracefully")
}
