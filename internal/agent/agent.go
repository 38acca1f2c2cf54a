// Package agent abstracts the coding agent the orchestrator runs inside the
// cloned working tree.
package agent

import "context"

// Request carries everything a run needs: the prompt, the checkout to work
// in, and the context the agent's MCP servers use to reach back to the
// platform.
type Request struct {
	WorkDir string
	Prompt  string

	// Context feeds the MCP server configuration: platform tokens, repo
	// coordinates and the tracking comment to update.
	Context map[string]string

	AllowedTools    []string
	DisallowedTools []string
}

// Result is the agent's verdict for one run.
type Result struct {
	Summary string
	CostUSD float64
}

// Runner executes one agent run to completion.
type Runner interface {
	Name() string
	Run(ctx context.Context, req *Request) (*Result, error)
}
