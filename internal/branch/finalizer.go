package branch

import (
	"context"
	"fmt"
	"log"

	"github.com/summonlabs/summon/internal/scm"
)

// Disposition classifies what happened to the working branch at run end.
type Disposition string

const (
	// Kept: the branch has commits (or an unverifiable state) and survives.
	Kept Disposition = "kept"
	// AutoCommitted: leftover uncommitted work was committed and pushed.
	AutoCommitted Disposition = "auto-committed"
	// Deleted: the branch ended empty against base and was removed.
	Deleted Disposition = "deleted"
)

// LocalTree is the local working-tree seam the finalizer needs. It is
// deliberately narrow so the git backend can be swapped independently of the
// remote provider.
type LocalTree interface {
	HasUncommittedChanges() (bool, error)
	CommitAll(message string) (string, error)
	Push(ctx context.Context, branch string) error
}

// Outcome is the finalizer's verdict plus the links the tracking comment
// should render.
type Outcome struct {
	Disposition Disposition
	BranchName  string
	BranchURL   string
	PRURL       string
}

const autoCommitMessage = "Auto-commit: save uncommitted changes"

// Finalize reconciles the working branch after the agent run.
//
// Dispositions follow from a remote comparison plus local inspection:
// commits on the branch keep it; an empty branch in signing mode is deleted
// (it was never created, or created empty); an empty branch otherwise is
// auto-committed when the local tree has leftover changes, deleted when
// clean. Comparison errors bias toward Kept: deletion only ever follows a
// confirmed zero-diff outcome.
func Finalize(ctx context.Context, p scm.Provider, local LocalTree, plan *Plan) *Outcome {
	if plan == nil || !plan.WorkingBranchIsNew {
		// Open-PR flow: the head branch is not ours to reconcile.
		return &Outcome{Disposition: Kept}
	}

	remote, err := p.GetBranch(ctx, plan.WorkingBranch)
	if err != nil {
		log.Printf("[Finalizer] Cannot verify branch %s, keeping it: %v", plan.WorkingBranch, err)
		return keptOutcome(p, plan, false)
	}
	if remote == nil {
		if plan.CommitSigning {
			// Deferred ref never materialized: nothing was committed.
			log.Printf("[Finalizer] Branch %s was never created", plan.WorkingBranch)
			return &Outcome{Disposition: Deleted}
		}
		log.Printf("[Finalizer] Branch %s disappeared, nothing to reconcile", plan.WorkingBranch)
		return &Outcome{Disposition: Deleted}
	}

	cmp, err := p.CompareRefs(ctx, plan.BaseBranch, plan.WorkingBranch)
	if err != nil {
		log.Printf("[Finalizer] Comparison against %s failed, keeping %s: %v", plan.BaseBranch, plan.WorkingBranch, err)
		return keptOutcome(p, plan, false)
	}

	if cmp.TotalCommits > 0 {
		return keptOutcome(p, plan, len(cmp.ChangedFiles) > 0)
	}

	// Zero commits against base, confirmed.
	if plan.CommitSigning {
		// Signed commits are the only way content reaches the branch, so
		// zero commits means empty by construction.
		return deleteBranch(ctx, p, plan)
	}

	dirty := false
	if local != nil {
		dirty, err = local.HasUncommittedChanges()
		if err != nil {
			log.Printf("[Finalizer] Cannot inspect working tree, keeping %s: %v", plan.WorkingBranch, err)
			return keptOutcome(p, plan, false)
		}
	}

	if !dirty {
		return deleteBranch(ctx, p, plan)
	}

	sha, err := local.CommitAll(autoCommitMessage)
	if err != nil {
		log.Printf("[Finalizer] Auto-commit failed, keeping %s: %v", plan.WorkingBranch, err)
		return keptOutcome(p, plan, false)
	}
	if err := local.Push(ctx, plan.WorkingBranch); err != nil {
		log.Printf("[Finalizer] Push of auto-commit %s failed, keeping %s: %v", sha, plan.WorkingBranch, err)
		return keptOutcome(p, plan, false)
	}

	log.Printf("[Finalizer] Auto-committed leftover changes to %s (%s)", plan.WorkingBranch, sha)
	out := keptOutcome(p, plan, true)
	out.Disposition = AutoCommitted
	return out
}

// keptOutcome builds a Kept outcome with a branch link and, when the diff
// against base is known non-empty, a pre-filled create-PR link.
func keptOutcome(p scm.Provider, plan *Plan, hasDiff bool) *Outcome {
	out := &Outcome{
		Disposition: Kept,
		BranchName:  plan.WorkingBranch,
		BranchURL:   p.BranchURL(plan.WorkingBranch),
	}
	if hasDiff {
		out.PRURL = createPullURL(p, plan)
	}
	return out
}

func deleteBranch(ctx context.Context, p scm.Provider, plan *Plan) *Outcome {
	if err := p.DeleteBranch(ctx, plan.WorkingBranch); err != nil {
		// The branch survives a failed delete; report what is actually true.
		log.Printf("[Finalizer] Failed to delete empty branch %s, reporting it kept: %v", plan.WorkingBranch, err)
		return &Outcome{
			Disposition: Kept,
			BranchName:  plan.WorkingBranch,
			BranchURL:   p.BranchURL(plan.WorkingBranch),
		}
	}
	log.Printf("[Finalizer] Deleted empty branch %s", plan.WorkingBranch)
	return &Outcome{Disposition: Deleted}
}

func createPullURL(p scm.Provider, plan *Plan) string {
	title := fmt.Sprintf("Changes from %s", plan.WorkingBranch)
	body := fmt.Sprintf("Automated changes on `%s`.", plan.WorkingBranch)
	return p.CreatePullURL(plan.BaseBranch, plan.WorkingBranch, title, body)
}
