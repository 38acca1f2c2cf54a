// Package scm defines the platform-neutral capability interface the
// orchestrator consumes. GitHub and GitLab implementations live in the
// subpackages; both expose one semantic operation per method with identical
// guarantees, so platform quirks stay local to the implementing type.
package scm

import (
	"context"
	"errors"
	"fmt"
)

// Platform identifies the hosting platform behind a Provider.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// EntityKind classifies the issue/PR/MR a run is attached to.
type EntityKind string

const (
	KindIssue        EntityKind = "issue"
	KindPullRequest  EntityKind = "pr"
	KindMergeRequest EntityKind = "mr"
)

// Repository identifies a repository on the hosting platform.
type Repository struct {
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Entity is the issue, pull request, or merge request a triggering event
// is attached to.
type Entity struct {
	Kind        EntityKind
	Number      int
	Title       string
	Body        string
	State       string // "open", "closed", "merged"
	HeadRef     string // PR/MR only
	BaseRef     string // PR/MR only
	HeadSHA     string // PR/MR only
	CommitCount int    // PR/MR only
}

// IsOpen reports whether the entity accepts new commits on its own branch.
func (e *Entity) IsOpen() bool {
	return e.State == "open"
}

// Branch is a remote branch reference.
type Branch struct {
	Name string
	SHA  string
}

// ChangedFile describes one file in a diff or comparison.
type ChangedFile struct {
	Path       string
	ChangeType string // "added", "modified", "removed", "renamed"
	Additions  int
	Deletions  int
}

// Comparison is the result of comparing two refs.
type Comparison struct {
	TotalCommits int
	ChangedFiles []ChangedFile
}

// FileContent pairs a path with its fetched content.
type FileContent struct {
	Path    string
	Content []byte
}

// FileChange is one working-tree change to be committed through the
// platform's commit API.
type FileChange struct {
	Path    string
	Content []byte
	Delete  bool
}

// Suggestion is an inline code suggestion anchored to a file position.
// GitHub renders it as a review suggestion, GitLab as a discussion with a
// position and a suggestion block.
type Suggestion struct {
	Path      string
	Line      int
	StartLine int // 0 for single-line suggestions
	Body      string
}

// CommentKind distinguishes the API namespace a comment belongs to. GitHub
// keeps issue comments and inline PR review comments in two disjoint ID
// namespaces; GitLab has a single note namespace.
type CommentKind string

const (
	IssueComment  CommentKind = "issue"
	ReviewComment CommentKind = "review"
	Note          CommentKind = "note"
)

// CommentHandle identifies a comment created through a Provider. The handle
// is opaque to the orchestrator: only the provider that issued it interprets
// the kind/ID pair.
type CommentHandle struct {
	Kind CommentKind
	ID   int64
}

// Valid reports whether the handle refers to a created comment.
func (h CommentHandle) Valid() bool {
	return h.ID > 0
}

// Provider is the single capability interface over GitHub and GitLab.
//
// Entity-scoped operations (GetEntity, GetChangedFiles, GetDiff,
// ApplySuggestions, comment operations) return a *NoEntityContextError when
// the provider was constructed without an entity number.
type Provider interface {
	Platform() Platform
	Repo() Repository

	// HasWritePermission resolves the actor's effective access level,
	// including inherited permissions. It fails closed: any lookup error
	// yields false alongside the error.
	HasWritePermission(ctx context.Context, actor string) (bool, error)

	// IsHumanActor reports false for bot accounts by platform-specific
	// signal, preventing the agent from re-triggering itself or other bots.
	IsHumanActor(ctx context.Context, actor string) (bool, error)

	DefaultBranch(ctx context.Context) (string, error)
	GetBranch(ctx context.Context, name string) (*Branch, error)
	CreateBranch(ctx context.Context, name, fromSHA string) error
	DeleteBranch(ctx context.Context, name string) error
	CompareRefs(ctx context.Context, base, head string) (*Comparison, error)
	GetFileContent(ctx context.Context, ref, path string) ([]byte, error)

	// CommitFiles commits the given changes to branch through the platform
	// API, creating the branch ref from the head of fromBranch when it does
	// not exist yet. Commits made this way carry the platform's verified
	// signature. Returns the new commit SHA.
	CommitFiles(ctx context.Context, branch, fromBranch, message string, changes []FileChange) (string, error)

	GetEntity(ctx context.Context) (*Entity, error)
	GetChangedFiles(ctx context.Context) ([]ChangedFile, error)
	GetDiff(ctx context.Context) (string, error)
	ApplySuggestions(ctx context.Context, suggestions []Suggestion) error

	CreateComment(ctx context.Context, body string) (CommentHandle, error)
	UpdateComment(ctx context.Context, h CommentHandle, body string) error
	GetComment(ctx context.Context, h CommentHandle) (string, error)

	// FindBotComment returns the newest comment on the entity authored by
	// the given bot login (or a bot-suffixed variant of it), or whose body
	// equals the given body. A zero handle means no match.
	FindBotComment(ctx context.Context, botLogin, body string) (CommentHandle, string, error)

	// CloneURL returns an authenticated HTTPS clone URL for the repository.
	CloneURL() string

	// BranchURL returns the browser URL for a branch.
	BranchURL(name string) string

	// CreatePullURL returns a pre-filled compare-view URL for opening a
	// PR/MR from head into base. It does not create anything.
	CreatePullURL(base, head, title, body string) string
}

// NoEntityContextError is returned by entity-scoped operations invoked on a
// provider that has no issue/PR/MR bound.
type NoEntityContextError struct {
	Op string
}

func (e *NoEntityContextError) Error() string {
	return fmt.Sprintf("%s requires an issue or merge request context", e.Op)
}

// IsNoEntityContext reports whether err originated from an entity-scoped
// operation called outside an entity context.
func IsNoEntityContext(err error) bool {
	var target *NoEntityContextError
	return errors.As(err, &target)
}
