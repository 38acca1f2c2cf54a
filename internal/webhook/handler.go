// Package webhook receives platform webhooks, authenticates them, and hands
// normalized events to the run dispatcher.
package webhook

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/summonlabs/summon/internal/event"
)

// runTimeout bounds one background run end to end.
const runTimeout = 60 * time.Minute

// Dispatcher receives a normalized event and runs it to completion.
type Dispatcher interface {
	Dispatch(ctx context.Context, ectx *event.Context) error
}

// Handler authenticates incoming webhooks and dispatches runs.
type Handler struct {
	githubSecret string
	gitlabSecret string
	dispatcher   Dispatcher
	deduper      *commentDeduper
}

func NewHandler(githubSecret, gitlabSecret string, dispatcher Dispatcher) *Handler {
	return &Handler{
		githubSecret: githubSecret,
		gitlabSecret: gitlabSecret,
		dispatcher:   dispatcher,
		deduper:      newCommentDeduper(12 * time.Hour),
	}
}

// Register wires the webhook routes onto the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/webhook/github", h.HandleGitHub).Methods("POST")
	r.HandleFunc("/webhook/gitlab", h.HandleGitLab).Methods("POST")
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// HandleGitHub handles GitHub webhook deliveries.
func (h *Handler) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading payload", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if err := ValidateSignatureHeader(signature); err != nil {
		log.Printf("[Webhook] Invalid signature header: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}
	if !VerifyGitHubSignature(payload, signature, h.githubSecret) {
		log.Printf("[Webhook] GitHub signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "ping" {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "pong")
		return
	}

	ectx, err := event.ParseGitHubEvent(eventType, payload)
	if err != nil {
		// Unsupported events are acknowledged, not errors.
		log.Printf("[Webhook] Ignoring GitHub event %s: %v", eventType, err)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Event ignored")
		return
	}

	h.accept(w, ectx)
}

// HandleGitLab handles GitLab webhook deliveries.
func (h *Handler) HandleGitLab(w http.ResponseWriter, r *http.Request) {
	if !VerifyGitLabToken(r.Header.Get("X-Gitlab-Token"), h.gitlabSecret) {
		log.Printf("[Webhook] GitLab token verification failed")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading payload", http.StatusBadRequest)
		return
	}

	ectx, err := event.ParseGitLabEvent(payload)
	if err != nil {
		log.Printf("[Webhook] Ignoring GitLab event: %v", err)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Event ignored")
		return
	}

	h.accept(w, ectx)
}

// accept dedupes comment events and starts the run in the background. The
// webhook response never waits for the run.
func (h *Handler) accept(w http.ResponseWriter, ectx *event.Context) {
	if ectx.CommentID != 0 && !h.deduper.markIfNew(ectx.CommentID) {
		log.Printf("[Webhook] Duplicate delivery for comment %d, skipping", ectx.CommentID)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Duplicate delivery")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := h.dispatcher.Dispatch(ctx, ectx); err != nil {
			log.Printf("[Webhook] Run %s failed: %v", ectx.RunID, err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprint(w, "Accepted")
}
