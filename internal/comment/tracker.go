package comment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/summonlabs/summon/internal/scm"
)

// Tracker drives one tracking comment through its lifecycle:
// Create (WORKING) -> optional AttachBranch -> Finalize (DONE or FAILED).
type Tracker struct {
	provider scm.Provider
	handle   scm.CommentHandle
	state    *State

	// sticky reuses an existing bot comment instead of posting a new one,
	// so repeated runs on the same entity converge on a single comment.
	sticky   bool
	botLogin string
}

// Options configures a Tracker for one run.
type Options struct {
	AgentName string
	Username  string
	JobURL    string

	// Sticky reuses a prior tracking comment when one is found. BotLogin is
	// the login the reuse search matches against.
	Sticky   bool
	BotLogin string

	StartTime time.Time
}

func NewTracker(p scm.Provider, opts Options) *Tracker {
	start := opts.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	return &Tracker{
		provider: p,
		sticky:   opts.Sticky,
		botLogin: opts.BotLogin,
		state: &State{
			Status:    StatusWorking,
			AgentName: opts.AgentName,
			Username:  opts.Username,
			JobURL:    opts.JobURL,
			StartTime: start,
		},
	}
}

// Handle returns the comment handle once Create has succeeded. Other
// processes (the agent's own progress updates) write through this handle.
func (t *Tracker) Handle() scm.CommentHandle {
	return t.handle
}

// Create posts the WORKING comment, or in sticky mode takes over an
// existing bot comment. A failed create is retried once; if both attempts
// fail the error propagates and the run must not proceed.
func (t *Tracker) Create(ctx context.Context) error {
	body := renderWorking(t.state, "", "")

	if t.sticky {
		existing, _, err := t.provider.FindBotComment(ctx, t.botLogin, body)
		if err != nil {
			log.Printf("[Tracker] Sticky lookup failed, posting a new comment: %v", err)
		} else if existing.Valid() {
			if err := t.provider.UpdateComment(ctx, existing, body); err != nil {
				return fmt.Errorf("failed to reset sticky comment: %w", err)
			}
			t.handle = existing
			log.Printf("[Tracker] Reusing sticky comment %d", existing.ID)
			return nil
		}
	}

	handle, err := t.provider.CreateComment(ctx, body)
	if err != nil {
		log.Printf("[Tracker] Comment creation failed, retrying once: %v", err)
		handle, err = t.provider.CreateComment(ctx, body)
		if err != nil {
			return fmt.Errorf("failed to create tracking comment: %w", err)
		}
	}
	t.handle = handle
	return nil
}

// AttachBranch re-renders the WORKING comment with a link to the freshly
// created working branch. Used on the issue flow only; open PRs already
// display their head branch. Failure is non-fatal: the link also appears at
// finalize time.
func (t *Tracker) AttachBranch(ctx context.Context, branchName, branchURL string) {
	if !t.handle.Valid() {
		return
	}
	t.state.BranchName = branchName
	t.state.BranchURL = branchURL

	body := renderWorking(t.state, branchName, branchURL)
	if err := t.provider.UpdateComment(ctx, t.handle, body); err != nil {
		log.Printf("[Tracker] Failed to attach branch link to comment %d: %v", t.handle.ID, err)
	}
}

// FinalizeInput carries the run verdict and the links the terminal comment
// should render.
type FinalizeInput struct {
	Success      bool
	ErrorDetails string

	BranchName string
	BranchURL  string
	PRURL      string

	EndTime time.Time
}

// Finalize rewrites the comment into its terminal form: header, links row,
// error block on failure, then whatever narrative the agent wrote,
// stripped of stale chrome. The rewrite is deterministic, so finalizing an
// already-final comment is a no-op in content terms.
//
// An update failure here is returned to the caller: a run whose terminal
// status never reached the comment must surface as failed.
func (t *Tracker) Finalize(ctx context.Context, in FinalizeInput) error {
	if !t.handle.Valid() {
		return fmt.Errorf("no tracking comment to finalize")
	}

	if in.Success {
		t.state.Status = StatusDone
	} else {
		t.state.Status = StatusFailed
		t.state.ErrorDetails = in.ErrorDetails
	}
	end := in.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	t.state.EndTime = &end

	if in.BranchName != "" {
		t.state.BranchName = in.BranchName
		t.state.BranchURL = in.BranchURL
	}
	t.state.PRURL = in.PRURL

	narrative := ""
	currentBody, err := t.provider.GetComment(ctx, t.handle)
	if err != nil {
		// The narrative is best-effort; the terminal header is not.
		log.Printf("[Tracker] Cannot fetch comment %d before finalize, dropping narrative: %v", t.handle.ID, err)
	} else {
		narrative = extractNarrative(currentBody)
	}

	body := renderFinal(t.state, narrative)
	if err := t.provider.UpdateComment(ctx, t.handle, body); err != nil {
		return fmt.Errorf("failed to finalize tracking comment: %w", err)
	}

	log.Printf("[Tracker] Finalized comment %d as %s", t.handle.ID, t.state.Status)
	return nil
}
