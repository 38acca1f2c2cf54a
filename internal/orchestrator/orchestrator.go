// Package orchestrator drives one run end to end: trigger gate, tracking
// comment, branch plan, agent execution, branch finalization, comment
// finalization.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/summonlabs/summon/internal/agent"
	"github.com/summonlabs/summon/internal/branch"
	"github.com/summonlabs/summon/internal/comment"
	"github.com/summonlabs/summon/internal/config"
	"github.com/summonlabs/summon/internal/event"
	"github.com/summonlabs/summon/internal/localrepo"
	"github.com/summonlabs/summon/internal/scm"
	"github.com/summonlabs/summon/internal/trigger"
)

// Orchestrator runs triggered tasks against one repository.
type Orchestrator struct {
	provider scm.Provider
	runner   agent.Runner
	cfg      *config.Config
	notifier *Notifier

	// token is the raw platform token, needed for the agent's MCP
	// environment; the provider keeps its own copy for API calls.
	token string
}

// New wires an orchestrator. notifier may be nil.
func New(p scm.Provider, runner agent.Runner, cfg *config.Config, token string, notifier *Notifier) *Orchestrator {
	return &Orchestrator{
		provider: p,
		runner:   runner,
		cfg:      cfg,
		notifier: notifier,
		token:    token,
	}
}

// Result summarizes one Run for callers that record it.
type Result struct {
	Triggered bool
	Outcome   *branch.Outcome
}

// Run executes the full pipeline for one normalized event.
//
// Everything before the tracking comment exists fails silently into logs:
// there is no comment to report through and posting errors for untriggered
// events would be noise. Once the comment exists, failures are reported
// through it, best-effort.
func (o *Orchestrator) Run(ctx context.Context, ectx *event.Context) (*Result, error) {
	start := time.Now()
	ectx.Sanitize()

	triggered := trigger.ShouldTrigger(ectx, trigger.Config{
		TriggerPhrase:   o.cfg.TriggerPhrase,
		AssigneeTrigger: o.cfg.AssigneeTrigger,
		LabelTrigger:    o.cfg.LabelTrigger,
		DirectPrompt:    o.cfg.DirectPrompt,
	})
	if !triggered {
		return &Result{}, nil
	}
	log.Printf("[Run %s] Triggered by @%s on %s #%d", ectx.RunID, ectx.Actor, ectx.EntityKind, ectx.EntityNumber)

	allowed, err := o.provider.HasWritePermission(ctx, ectx.Actor)
	if err != nil || !allowed {
		// Fails closed; a permission check error is a denial.
		log.Printf("[Run %s] Actor @%s lacks write permission (err=%v), aborting", ectx.RunID, ectx.Actor, err)
		return &Result{}, nil
	}
	human, err := o.provider.IsHumanActor(ctx, ectx.Actor)
	if err != nil || !human {
		log.Printf("[Run %s] Actor @%s is not a human actor (err=%v), aborting", ectx.RunID, ectx.Actor, err)
		return &Result{}, nil
	}

	tracker := comment.NewTracker(o.provider, comment.Options{
		AgentName: o.cfg.AgentName,
		Username:  ectx.Actor,
		JobURL:    o.jobURL(ectx.RunID),
		Sticky:    o.cfg.StickyComment,
		BotLogin:  o.cfg.BotLogin,
		StartTime: start,
	})
	if err := tracker.Create(ctx); err != nil {
		// No comment means no channel to report through; the run stops here.
		return &Result{Triggered: true}, fmt.Errorf("run %s: %w", ectx.RunID, err)
	}

	outcome, runErr := o.execute(ctx, ectx, tracker)

	in := comment.FinalizeInput{
		Success: runErr == nil,
		EndTime: time.Now(),
	}
	if runErr != nil {
		in.ErrorDetails = runErr.Error()
	}
	if outcome != nil {
		in.BranchName = outcome.BranchName
		in.BranchURL = outcome.BranchURL
		in.PRURL = outcome.PRURL
	}
	res := &Result{Triggered: true, Outcome: outcome}

	if finErr := tracker.Finalize(ctx, in); finErr != nil {
		// A run whose terminal status never reached the comment is a failed
		// run regardless of what the agent did.
		if runErr != nil {
			return res, fmt.Errorf("run %s: %v (additionally: %w)", ectx.RunID, runErr, finErr)
		}
		return res, fmt.Errorf("run %s: %w", ectx.RunID, finErr)
	}

	o.notify(ectx, runErr, outcome, time.Since(start))

	if runErr != nil {
		return res, fmt.Errorf("run %s: %w", ectx.RunID, runErr)
	}
	log.Printf("[Run %s] Completed in %v", ectx.RunID, time.Since(start))
	return res, nil
}

// maxOriginalFiles caps how many base-branch file versions are fetched for
// the PR/MR prompt context.
const maxOriginalFiles = 8

// localTree is the working-tree surface execute depends on. localrepo.Repo
// satisfies it; the indirection keeps the git backend swappable.
type localTree interface {
	branch.LocalTree
	Dir() string
	CheckoutNewBranch(name string) error
	ChangedFiles() ([]scm.FileChange, error)
	Cleanup()
}

// cloneRepo creates the working tree for a run.
var cloneRepo = func(ctx context.Context, opts localrepo.Options) (localTree, error) {
	return localrepo.Clone(ctx, opts)
}

// execute is the post-comment pipeline: branch plan, clone, agent run,
// branch finalization. Its error lands in the FAILED comment body.
func (o *Orchestrator) execute(ctx context.Context, ectx *event.Context, tracker *comment.Tracker) (*branch.Outcome, error) {
	plan, err := branch.Setup(ctx, o.provider, ectx, branch.Config{
		BaseOverride:  o.cfg.BaseBranch,
		Prefix:        o.cfg.BranchPrefix,
		CommitSigning: o.cfg.CommitSigning,
	})
	if err != nil {
		return nil, fmt.Errorf("branch setup failed: %w", err)
	}

	if plan.WorkingBranchIsNew {
		tracker.AttachBranch(ctx, plan.WorkingBranch, o.provider.BranchURL(plan.WorkingBranch))
	}

	checkout := plan.WorkingBranch
	if !plan.RefCreated {
		// Signing mode: the remote ref does not exist yet, start from base.
		checkout = plan.BaseBranch
	}
	local, err := cloneRepo(ctx, localrepo.Options{
		URL:         o.provider.CloneURL(),
		Branch:      checkout,
		Depth:       plan.FetchDepth,
		AuthorName:  o.cfg.AgentName,
		AuthorEmail: o.cfg.BotLogin + "@users.noreply." + string(o.provider.Platform()) + ".com",
	})
	if err != nil {
		out := branch.Finalize(ctx, o.provider, nil, plan)
		return out, fmt.Errorf("clone failed: %w", err)
	}
	defer local.Cleanup()

	if !plan.RefCreated {
		if err := local.CheckoutNewBranch(plan.WorkingBranch); err != nil {
			out := branch.Finalize(ctx, o.provider, local, plan)
			return out, fmt.Errorf("local branch checkout failed: %w", err)
		}
	}

	req := &agent.Request{
		WorkDir: local.Dir(),
		Prompt:  agent.BuildPrompt(ectx, o.promptOptions(ctx, ectx, plan)),
		Context: o.agentContext(ectx, tracker),
	}
	if o.cfg.DisallowedTools != "" {
		req.DisallowedTools = []string{o.cfg.DisallowedTools}
	}

	result, runErr := o.runner.Run(ctx, req)
	if result != nil {
		log.Printf("[Run %s] Agent finished (cost $%.4f)", ectx.RunID, result.CostUSD)
	}

	if plan.CommitSigning {
		o.commitViaAPI(ctx, ectx, local, plan)
	} else if err := local.Push(ctx, plan.WorkingBranch); err != nil {
		// Locally made commits must land before the finalizer compares
		// against base, or real work reads as an empty branch.
		log.Printf("[Run %s] Failed to push agent commits on %s: %v", ectx.RunID, plan.WorkingBranch, err)
	}

	outcome := branch.Finalize(ctx, o.provider, local, plan)
	if runErr != nil {
		return outcome, fmt.Errorf("agent run failed: %w", runErr)
	}
	return outcome, nil
}

// promptOptions assembles the prompt inputs beyond the event itself. For
// PR/MR runs it enriches the prompt with the diff'd paths and their
// base-branch versions; fetch failures degrade to a plain prompt.
func (o *Orchestrator) promptOptions(ctx context.Context, ectx *event.Context, plan *branch.Plan) agent.PromptOptions {
	opts := agent.PromptOptions{
		BaseBranch:    plan.BaseBranch,
		WorkingBranch: plan.WorkingBranch,
		DirectPrompt:  o.cfg.DirectPrompt,
		CommitViaAPI:  plan.CommitSigning,
	}
	if !ectx.IsMergeRequest {
		return opts
	}

	files, err := o.provider.GetChangedFiles(ctx)
	if err != nil {
		log.Printf("[Run %s] Cannot list changed files: %v", ectx.RunID, err)
		return opts
	}
	opts.ChangedFiles = files

	var paths []string
	for _, f := range files {
		if f.ChangeType == "added" {
			// No base version exists for a new file.
			continue
		}
		paths = append(paths, f.Path)
		if len(paths) == maxOriginalFiles {
			break
		}
	}
	opts.BaseContents = scm.BatchFileContents(ctx, o.provider, plan.BaseBranch, paths)
	return opts
}

// commitViaAPI lands the agent's working-tree changes as a single signed
// commit through the platform, creating the deferred ref on first content.
// Failures are logged, not fatal: the finalizer reports what actually
// reached the branch.
func (o *Orchestrator) commitViaAPI(ctx context.Context, ectx *event.Context, local localTree, plan *branch.Plan) {
	changes, err := local.ChangedFiles()
	if err != nil {
		log.Printf("[Run %s] Cannot read working tree changes: %v", ectx.RunID, err)
		return
	}
	if len(changes) == 0 {
		log.Printf("[Run %s] No working tree changes to commit", ectx.RunID)
		return
	}

	message := fmt.Sprintf("Changes for %s #%d", ectx.EntityKind, ectx.EntityNumber)
	sha, err := o.provider.CommitFiles(ctx, plan.WorkingBranch, plan.BaseBranch, message, changes)
	if err != nil {
		log.Printf("[Run %s] Signed commit to %s failed: %v", ectx.RunID, plan.WorkingBranch, err)
		return
	}
	log.Printf("[Run %s] Committed %d files to %s via platform API (%s)", ectx.RunID, len(changes), plan.WorkingBranch, sha)
}

// jobURL links the tracking comment to this run's status page, when the
// service has a public address.
func (o *Orchestrator) jobURL(runID string) string {
	if o.cfg.PublicURL == "" {
		return ""
	}
	return o.cfg.PublicURL + "/runs/" + runID
}

func (o *Orchestrator) agentContext(ectx *event.Context, tracker *comment.Tracker) map[string]string {
	mctx := map[string]string{
		"platform":      string(ectx.Platform),
		"scm_token":     o.token,
		"repo_owner":    ectx.Repository.Owner,
		"repo_name":     ectx.Repository.Name,
		"entity_number": strconv.Itoa(ectx.EntityNumber),
	}
	if ectx.Platform == scm.PlatformGitHub {
		mctx["github_token"] = o.token
	}
	if h := tracker.Handle(); h.Valid() {
		mctx["comment_id"] = strconv.FormatInt(h.ID, 10)
		mctx["comment_kind"] = string(h.Kind)
	}
	return mctx
}
