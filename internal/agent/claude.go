package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// cliResult is the JSON envelope the Claude CLI emits in -p mode.
type cliResult struct {
	Result  string  `json:"result"`
	IsError bool    `json:"isError"`
	CostUSD float64 `json:"costUSD"`
}

// ClaudeRunner runs the Claude Code CLI as the coding agent.
type ClaudeRunner struct {
	model string
}

// NewClaudeRunner sets up CLI credentials from the given API key.
func NewClaudeRunner(apiKey, model string) *ClaudeRunner {
	_ = os.Setenv("ANTHROPIC_API_KEY", apiKey)
	_ = os.Setenv("ANTHROPIC_AUTH_TOKEN", apiKey)

	if baseURL := os.Getenv("ANTHROPIC_BASE_URL"); baseURL != "" {
		log.Printf("[Agent] Using custom API endpoint: %s", baseURL)
	}

	return &ClaudeRunner{model: model}
}

func (r *ClaudeRunner) Name() string {
	return "claude"
}

// Run executes the CLI in req.WorkDir and parses its JSON result.
func (r *ClaudeRunner) Run(ctx context.Context, req *Request) (*Result, error) {
	if req.WorkDir == "" {
		return nil, fmt.Errorf("working directory is required")
	}
	if _, err := os.Stat(req.WorkDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("working directory does not exist: %s", req.WorkDir)
	}

	mcpConfig, err := buildMCPConfig(req.Context)
	if err != nil {
		log.Printf("[Agent] Failed to build MCP config, continuing without: %v", err)
		mcpConfig = ""
	}

	args := []string{"-p", "--output-format", "json"}
	if r.model != "" {
		args = append(args, "--model", r.model)
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}
	if len(req.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(req.DisallowedTools, ","))
	}
	if mcpConfig != "" {
		args = append(args, "--mcp-config", mcpConfig)
	}

	cmd := exec.CommandContext(ctx, "claude", args...)
	cmd.Dir = req.WorkDir
	cmd.Stdin = strings.NewReader(req.Prompt)
	cmd.Env = os.Environ()

	var outputBuf bytes.Buffer
	cmd.Stdout = io.MultiWriter(os.Stdout, &outputBuf)
	cmd.Stderr = os.Stderr

	log.Printf("[Agent] Claude CLI started (prompt %d chars, model %s)", len(req.Prompt), r.model)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)
	output := outputBuf.Bytes()

	if runErr != nil {
		preview := truncate(string(output), 1000)
		log.Printf("[Agent] Claude CLI failed after %v: %v", duration, runErr)
		return nil, fmt.Errorf("claude CLI execution failed: %w (output preview: %s)", runErr, preview)
	}
	log.Printf("[Agent] Claude CLI completed in %v", duration)

	var parsed cliResult
	if err := json.Unmarshal(output, &parsed); err != nil {
		preview := truncate(string(output), 1000)
		return nil, fmt.Errorf("failed to parse claude CLI response: %w (output preview: %s)", err, preview)
	}
	if parsed.IsError {
		return nil, fmt.Errorf("claude CLI error: %s", parsed.Result)
	}

	log.Printf("[Agent] Response %d chars, cost $%.4f", len(parsed.Result), parsed.CostUSD)
	return &Result{Summary: parsed.Result, CostUSD: parsed.CostUSD}, nil
}

// buildMCPConfig generates the MCP server configuration the CLI is launched
// with. Generated per run so the tracking comment handle and tokens never
// touch the user's own config.
func buildMCPConfig(ctx map[string]string) (string, error) {
	type serverConfig struct {
		Type    string            `json:"type,omitempty"`
		URL     string            `json:"url,omitempty"`
		Headers map[string]string `json:"headers,omitempty"`
		Command string            `json:"command,omitempty"`
		Args    []string          `json:"args,omitempty"`
		Env     map[string]string `json:"env,omitempty"`
	}
	config := struct {
		MCPServers map[string]serverConfig `json:"mcpServers"`
	}{MCPServers: make(map[string]serverConfig)}

	if token := ctx["github_token"]; token != "" {
		config.MCPServers["github"] = serverConfig{
			Type:    "http",
			URL:     "https://api.githubcopilot.com/mcp",
			Headers: map[string]string{"Authorization": "Bearer " + token},
		}
	}

	// Comment updater lets the agent edit its own tracking comment.
	if commentID := ctx["comment_id"]; commentID != "" {
		if _, err := exec.LookPath("mcp-comment-server"); err == nil {
			config.MCPServers["comment_updater"] = serverConfig{
				Command: "mcp-comment-server",
				Env: map[string]string{
					"SCM_PLATFORM":     ctx["platform"],
					"SCM_TOKEN":        ctx["scm_token"],
					"REPO_OWNER":       ctx["repo_owner"],
					"REPO_NAME":        ctx["repo_name"],
					"AGENT_COMMENT_ID": commentID,
					"COMMENT_KIND":     ctx["comment_kind"],
					"ENTITY_NUMBER":    ctx["entity_number"],
				},
			}
		} else {
			log.Printf("[Agent] mcp-comment-server not in PATH, comment updates via MCP unavailable")
		}
	}

	if _, err := exec.LookPath("uvx"); err == nil {
		config.MCPServers["git"] = serverConfig{
			Command: "uvx",
			Args:    []string{"mcp-server-git"},
		}
	}

	names := make([]string, 0, len(config.MCPServers))
	for name := range config.MCPServers {
		names = append(names, name)
	}
	log.Printf("[Agent] MCP servers configured: %d (%v)", len(names), names)

	blob, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal MCP config: %w", err)
	}
	return string(blob), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
