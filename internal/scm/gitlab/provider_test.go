package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/summonlabs/summon/internal/scm"
)

func testRepo() scm.Repository {
	return scm.Repository{Owner: "acme", Name: "widgets"}
}

// newTestProvider points a provider at a local httptest server.
func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewWithToken("glpat-test", srv.URL, testRepo())
	if err != nil {
		t.Fatalf("NewWithToken: %v", err)
	}
	return p
}

func rejectAllCalls(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected API call: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})
}

func TestEntityScopedOpsRequireEntity(t *testing.T) {
	p := newTestProvider(t, rejectAllCalls(t))
	ctx := context.Background()
	h := scm.CommentHandle{Kind: scm.Note, ID: 5}

	checks := map[string]error{}
	_, err := p.GetEntity(ctx)
	checks["GetEntity"] = err
	_, err = p.GetChangedFiles(ctx)
	checks["GetChangedFiles"] = err
	_, err = p.GetDiff(ctx)
	checks["GetDiff"] = err
	checks["ApplySuggestions"] = p.ApplySuggestions(ctx, []scm.Suggestion{{Path: "a.go", Line: 1, Body: "x"}})
	_, err = p.CreateComment(ctx, "body")
	checks["CreateComment"] = err
	checks["UpdateComment"] = p.UpdateComment(ctx, h, "body")
	_, err = p.GetComment(ctx, h)
	checks["GetComment"] = err
	_, _, err = p.FindBotComment(ctx, "claude-bot", "")
	checks["FindBotComment"] = err

	for op, err := range checks {
		if !scm.IsNoEntityContext(err) {
			t.Errorf("%s without entity: err = %v, want NoEntityContextError", op, err)
		}
	}
}

func TestGetBranchMissingReturnsNil(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"404 Branch Not Found"}`))
	}))

	b, err := p.GetBranch(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetBranch on a missing branch must not error: %v", err)
	}
	if b != nil {
		t.Errorf("GetBranch = %+v, want nil for a missing branch", b)
	}
}

func TestFindBotCommentSkipsSystemNotes(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/issues/7/notes") {
			t.Errorf("unexpected API call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[
			{"id":1,"system":true,"body":"changed the description","author":{"username":"claude-bot"}},
			{"id":2,"system":false,"body":"working on it","author":{"username":"claude-bot"}}
		]`))
	}))
	p.WithEntity(7, false)

	h, body, err := p.FindBotComment(context.Background(), "claude-bot", "")
	if err != nil {
		t.Fatalf("FindBotComment: %v", err)
	}
	if h.ID != 2 || h.Kind != scm.Note {
		t.Errorf("handle = %+v, want the non-system note 2", h)
	}
	if body != "working on it" {
		t.Errorf("body = %q", body)
	}
}

// CommitFiles starts the branch off the base via start_branch when the
// branch does not exist yet and marks unknown paths as create actions.
func TestCommitFilesStartsMissingBranch(t *testing.T) {
	var payload struct {
		Branch      string `json:"branch"`
		StartBranch string `json:"start_branch"`
		Actions     []struct {
			Action   string `json:"action"`
			FilePath string `json:"file_path"`
		} `json:"actions"`
	}

	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && strings.Contains(r.URL.Path, "/repository/branches/"):
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"404 Branch Not Found"}`))
		case r.Method == "GET" && strings.Contains(r.URL.Path, "/repository/files/"):
			// The path does not exist on the base branch either.
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"404 File Not Found"}`))
		case r.Method == "POST" && strings.HasSuffix(r.URL.Path, "/repository/commits"):
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode commit payload: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"abc123"}`))
		default:
			t.Errorf("unexpected API call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	sha, err := p.CommitFiles(context.Background(), "claude/issue-9-x", "main", "Changes for issue #9",
		[]scm.FileChange{{Path: "main.go", Content: []byte("package main\n")}})
	if err != nil {
		t.Fatalf("CommitFiles: %v", err)
	}
	if sha != "abc123" {
		t.Errorf("CommitFiles SHA = %q, want abc123", sha)
	}
	if payload.Branch != "claude/issue-9-x" || payload.StartBranch != "main" {
		t.Errorf("commit payload branch = %q start_branch = %q", payload.Branch, payload.StartBranch)
	}
	if len(payload.Actions) != 1 || payload.Actions[0].Action != "create" || payload.Actions[0].FilePath != "main.go" {
		t.Errorf("commit actions = %+v", payload.Actions)
	}
}

func TestCommitFilesRejectsEmptyChangeSet(t *testing.T) {
	p := newTestProvider(t, rejectAllCalls(t))
	if _, err := p.CommitFiles(context.Background(), "b", "main", "msg", nil); err == nil {
		t.Fatalf("CommitFiles must reject an empty change set")
	}
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"opened", "open"},
		{"closed", "closed"},
		{"merged", "merged"},
	}
	for _, tt := range tests {
		if got := normalizeState(tt.in); got != tt.want {
			t.Errorf("normalizeState(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchesBotLogin(t *testing.T) {
	tests := []struct {
		login    string
		botLogin string
		want     bool
	}{
		{"claude-bot", "claude-bot", true},
		{"project_42_bot_ab12", "project_42_bot_cd34", true},
		{"project_42_bot_ab12", "alice", false},
		{"alice", "claude-bot", false},
		{"", "claude-bot", false},
	}

	for _, tt := range tests {
		if got := matchesBotLogin(tt.login, tt.botLogin); got != tt.want {
			t.Errorf("matchesBotLogin(%q, %q) = %v, want %v", tt.login, tt.botLogin, got, tt.want)
		}
	}
}
