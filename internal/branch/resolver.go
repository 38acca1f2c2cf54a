package branch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/summonlabs/summon/internal/event"
	"github.com/summonlabs/summon/internal/scm"
)

// minFetchDepth is the floor for checkout fetch depth on existing PR/MR
// branches.
const minFetchDepth = 20

// Plan is the resolved base/working branch decision for one run. It is
// computed once by Setup and read-only afterwards.
type Plan struct {
	BaseBranch         string
	WorkingBranch      string
	WorkingBranchIsNew bool

	// CommitSigning defers remote ref creation to the first signed commit;
	// the local checkout stays on the base branch until then.
	CommitSigning bool

	// RefCreated records whether the remote ref exists already. False for
	// open-PR flows (the head ref pre-exists, nothing was created) only
	// when WorkingBranchIsNew is also false; for new branches it is false
	// while signing mode has deferred creation.
	RefCreated bool

	// FetchDepth is the git fetch depth for the local checkout.
	FetchDepth int
}

// Config is the branch-resolution slice of the run configuration.
type Config struct {
	// BaseOverride, when set, replaces the repository default branch as
	// the base for newly created branches.
	BaseOverride string

	// Prefix namespaces generated branch names, e.g. "claude/".
	Prefix string

	CommitSigning bool
}

// Setup computes the branch plan for the run.
//
// An open PR/MR reuses its own head branch against its target branch and
// creates nothing. Everything else (issues, closed or merged PRs/MRs) gets a
// fresh timestamp-salted branch off the base. Failure to resolve the base
// branch is fatal: a run without a defined base cannot be finalized.
func Setup(ctx context.Context, p scm.Provider, ectx *event.Context, cfg Config) (*Plan, error) {
	if ectx.IsMergeRequest {
		entity, err := p.GetEntity(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve entity for branch setup: %w", err)
		}

		if entity.IsOpen() {
			depth := entity.CommitCount
			if depth < minFetchDepth {
				depth = minFetchDepth
			}
			log.Printf("[Branch] Reusing head branch %s of open %s #%d (fetch depth %d)",
				entity.HeadRef, entity.Kind, entity.Number, depth)
			return &Plan{
				BaseBranch:         entity.BaseRef,
				WorkingBranch:      entity.HeadRef,
				WorkingBranchIsNew: false,
				CommitSigning:      cfg.CommitSigning,
				RefCreated:         true,
				FetchDepth:         depth,
			}, nil
		}
		log.Printf("[Branch] %s #%d is %s, creating a fresh branch", entity.Kind, entity.Number, entity.State)
	}

	base := cfg.BaseOverride
	if base == "" {
		var err error
		base, err = p.DefaultBranch(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve base branch: %w", err)
		}
	}

	name := GenerateName(cfg.Prefix, ectx.EntityKind, ectx.EntityNumber, time.Now())
	if !ValidateName(name) {
		return nil, fmt.Errorf("generated branch name %q is invalid", name)
	}

	plan := &Plan{
		BaseBranch:         base,
		WorkingBranch:      name,
		WorkingBranchIsNew: true,
		CommitSigning:      cfg.CommitSigning,
		FetchDepth:         minFetchDepth,
	}

	if cfg.CommitSigning {
		// Ref creation is deferred to the first signed commit; only the
		// name is decided here.
		log.Printf("[Branch] Signing mode: deferring creation of %s off %s", name, base)
		return plan, nil
	}

	baseBranch, err := p.GetBranch(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch base branch %s: %w", base, err)
	}
	if baseBranch == nil {
		return nil, fmt.Errorf("base branch %s does not exist", base)
	}

	if err := p.CreateBranch(ctx, name, baseBranch.SHA); err != nil {
		return nil, fmt.Errorf("failed to create working branch: %w", err)
	}
	plan.RefCreated = true

	log.Printf("[Branch] Created %s off %s at %s", name, base, baseBranch.SHA)
	return plan, nil
}
