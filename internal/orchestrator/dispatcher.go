package orchestrator

import (
	"context"
	"fmt"

	"github.com/summonlabs/summon/internal/agent"
	"github.com/summonlabs/summon/internal/config"
	"github.com/summonlabs/summon/internal/event"
	"github.com/summonlabs/summon/internal/runstore"
	"github.com/summonlabs/summon/internal/scm"
	"github.com/summonlabs/summon/internal/scm/github"
	"github.com/summonlabs/summon/internal/scm/gitlab"
)

// Dispatcher builds a repository-bound provider for each incoming event and
// runs the orchestrator pipeline with it. It implements the webhook
// package's Dispatcher seam.
type Dispatcher struct {
	cfg      *config.Config
	runner   agent.Runner
	notifier *Notifier
	store    *runstore.Store
	appAuth  *github.AppAuth
}

// NewDispatcher wires a dispatcher. notifier and store may be nil.
func NewDispatcher(cfg *config.Config, runner agent.Runner, notifier *Notifier, store *runstore.Store) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		runner:   runner,
		notifier: notifier,
		store:    store,
	}
	if cfg.GitHubAppID != "" && cfg.GitHubPrivateKey != "" {
		d.appAuth = &github.AppAuth{
			AppID:      cfg.GitHubAppID,
			PrivateKey: cfg.GitHubPrivateKey,
		}
	}
	return d
}

// Dispatch runs the full pipeline for one event and records the run.
func (d *Dispatcher) Dispatch(ctx context.Context, ectx *event.Context) error {
	provider, token, err := d.providerFor(ctx, ectx)
	if err != nil {
		return fmt.Errorf("failed to build provider: %w", err)
	}

	d.record(ectx)

	orch := New(provider, d.runner, d.cfg, token, d.notifier)
	res, runErr := orch.Run(ctx, ectx)

	d.finish(ectx, res, runErr)
	return runErr
}

func (d *Dispatcher) record(ectx *event.Context) {
	if d.store == nil {
		return
	}
	d.store.Create(&runstore.Run{
		ID:           ectx.RunID,
		Platform:     string(ectx.Platform),
		Repository:   ectx.Repository.Owner + "/" + ectx.Repository.Name,
		EntityKind:   string(ectx.EntityKind),
		EntityNumber: ectx.EntityNumber,
		Actor:        ectx.Actor,
		Status:       runstore.StatusRunning,
	})
}

func (d *Dispatcher) finish(ectx *event.Context, res *Result, runErr error) {
	if d.store == nil {
		return
	}

	status := runstore.StatusCompleted
	errText := ""
	branchName := ""
	disposition := ""

	switch {
	case runErr != nil:
		status = runstore.StatusFailed
		errText = runErr.Error()
	case res != nil && !res.Triggered:
		status = runstore.StatusSkipped
	}
	if res != nil && res.Outcome != nil {
		branchName = res.Outcome.BranchName
		disposition = string(res.Outcome.Disposition)
	}

	d.store.Finish(ectx.RunID, status, errText, branchName, disposition)
}

func (d *Dispatcher) providerFor(ctx context.Context, ectx *event.Context) (scm.Provider, string, error) {
	switch ectx.Platform {
	case scm.PlatformGitHub:
		token := d.cfg.GitHubToken
		if token == "" && d.appAuth != nil {
			repo := ectx.Repository.Owner + "/" + ectx.Repository.Name
			installation, err := d.appAuth.GetInstallationToken(repo)
			if err != nil {
				return nil, "", fmt.Errorf("failed to get installation token: %w", err)
			}
			token = installation.Token
		}
		if token == "" {
			return nil, "", fmt.Errorf("no GitHub credentials configured")
		}
		p := github.NewWithToken(ctx, token, ectx.Repository).
			WithEntity(ectx.EntityNumber, ectx.IsMergeRequest)
		return p, token, nil

	case scm.PlatformGitLab:
		p, err := gitlab.NewWithToken(d.cfg.GitLabToken, d.cfg.GitLabBaseURL, ectx.Repository)
		if err != nil {
			return nil, "", err
		}
		return p.WithEntity(ectx.EntityNumber, ectx.IsMergeRequest), d.cfg.GitLabToken, nil

	default:
		return nil, "", fmt.Errorf("unsupported platform: %s", ectx.Platform)
	}
}
