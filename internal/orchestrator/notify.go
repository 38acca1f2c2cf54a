package orchestrator

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/summonlabs/summon/internal/branch"
	"github.com/summonlabs/summon/internal/event"
)

// Notifier posts run completion events to an external webhook. Delivery is
// fire-and-forget: a failed notification never affects the run result.
type Notifier struct {
	url    string
	client *http.Client
}

func NewNotifier(url string) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type notification struct {
	RunID        string `json:"run_id"`
	Platform     string `json:"platform"`
	Repository   string `json:"repository"`
	EntityKind   string `json:"entity_kind"`
	EntityNumber int    `json:"entity_number"`
	Actor        string `json:"actor"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	Disposition  string `json:"branch_disposition,omitempty"`
	BranchName   string `json:"branch_name,omitempty"`
	DurationSecs int    `json:"duration_secs"`
}

func (o *Orchestrator) notify(ectx *event.Context, runErr error, outcome *branch.Outcome, elapsed time.Duration) {
	if o.notifier == nil || o.notifier.url == "" {
		return
	}

	n := notification{
		RunID:        ectx.RunID,
		Platform:     string(ectx.Platform),
		Repository:   ectx.Repository.Owner + "/" + ectx.Repository.Name,
		EntityKind:   string(ectx.EntityKind),
		EntityNumber: ectx.EntityNumber,
		Actor:        ectx.Actor,
		Success:      runErr == nil,
		DurationSecs: int(elapsed.Seconds()),
	}
	if runErr != nil {
		n.Error = runErr.Error()
	}
	if outcome != nil {
		n.Disposition = string(outcome.Disposition)
		n.BranchName = outcome.BranchName
	}

	go o.notifier.send(n)
}

func (n *Notifier) send(payload notification) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Notify] Failed to marshal notification: %v", err)
		return
	}

	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Notify] Delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("[Notify] Endpoint returned %d", resp.StatusCode)
	}
}
