// Package comment owns the single tracking comment each run reports
// through. The comment body is the only store: status is rendered into
// Markdown and recovered from it, with no sidecar state.
package comment

import (
	"fmt"
	"time"
)

// Status is the tracking comment's lifecycle state. Working is the only
// non-terminal state; Done and Failed are terminal.
type Status string

const (
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// State holds everything needed to render the tracking comment body.
type State struct {
	Status Status

	// AgentName is the display name in headers, e.g. "Claude".
	AgentName string
	// Username is the login of the human whose task this run is.
	Username string

	StartTime time.Time
	EndTime   *time.Time

	// Links row.
	JobURL     string
	BranchName string
	BranchURL  string
	PRURL      string

	// ErrorDetails is rendered in a fenced block on failure.
	ErrorDetails string
}

// Duration renders the execution time as "1m 5s" or "45s". Empty while the
// run is still in progress.
func (s *State) Duration() string {
	if s.EndTime == nil {
		return ""
	}

	totalSeconds := int(s.EndTime.Sub(s.StartTime).Seconds())
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60

	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// IsTerminal reports whether the state machine has reached Done or Failed.
func (s *State) IsTerminal() bool {
	return s.Status == StatusDone || s.Status == StatusFailed
}

func (s *State) agentName() string {
	if s.AgentName == "" {
		return "Claude"
	}
	return s.AgentName
}

func (s *State) username() string {
	if s.Username == "" {
		return "user"
	}
	return s.Username
}
