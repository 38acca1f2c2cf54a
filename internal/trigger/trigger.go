// Package trigger decides whether an inbound event should start a run.
// ShouldTrigger is a pure predicate over the event context and trigger
// configuration; a negative answer is not an error and has no side effects
// beyond an info log.
package trigger

import (
	"log"
	"regexp"
	"strings"

	"github.com/summonlabs/summon/internal/event"
	"github.com/summonlabs/summon/internal/scm"
)

// Config is the read-only trigger configuration.
type Config struct {
	// TriggerPhrase is matched at token boundaries, case-insensitively,
	// in comment bodies and entity descriptions. Typically "@claude".
	TriggerPhrase string

	// AssigneeTrigger fires on assignment events when the new assignee
	// matches (a leading "@" is ignored).
	AssigneeTrigger string

	// LabelTrigger fires when the named label is added.
	LabelTrigger string

	// DirectPrompt bypasses all detection: a non-empty value always
	// triggers.
	DirectPrompt string
}

// ShouldTrigger reports whether the event should start a run.
//
// Priority: direct prompt, then assignment, then label, then a phrase scan
// over the event-appropriate text (title + description on creation,
// comment/review body on comment events). On GitLab, comment-triggered runs
// are restricted to merge-request notes; issue notes never trigger.
func ShouldTrigger(ectx *event.Context, cfg Config) bool {
	if strings.TrimSpace(cfg.DirectPrompt) != "" {
		return true
	}

	switch ectx.TriggerEvent {
	case event.TriggerAssigned:
		want := strings.TrimPrefix(cfg.AssigneeTrigger, "@")
		if want == "" || ectx.Assignee != want {
			log.Printf("[Trigger] Assignment of %q does not match assignee trigger %q", ectx.Assignee, cfg.AssigneeTrigger)
			return false
		}
		return true

	case event.TriggerLabeled:
		if cfg.LabelTrigger == "" || ectx.Label != cfg.LabelTrigger {
			log.Printf("[Trigger] Label %q does not match label trigger %q", ectx.Label, cfg.LabelTrigger)
			return false
		}
		return true

	case event.TriggerCreated:
		if containsPhrase(ectx.Title+"\n"+ectx.Body, cfg.TriggerPhrase) {
			return true
		}
		log.Printf("[Trigger] No trigger phrase %q in title/description of %s #%d", cfg.TriggerPhrase, ectx.EntityKind, ectx.EntityNumber)
		return false

	case event.TriggerComment, event.TriggerReview:
		// GitLab issue notes never trigger; only MR notes do. Issues still
		// trigger via their description at creation time.
		if ectx.Platform == scm.PlatformGitLab && !ectx.IsMRNote {
			log.Printf("[Trigger] Ignoring GitLab issue note on #%d", ectx.EntityNumber)
			return false
		}
		if containsPhrase(ectx.CommentBody, cfg.TriggerPhrase) {
			return true
		}
		log.Printf("[Trigger] No trigger phrase %q in comment on %s #%d", cfg.TriggerPhrase, ectx.EntityKind, ectx.EntityNumber)
		return false
	}

	return false
}

// containsPhrase reports whether phrase occurs in text bounded by
// whitespace/string-edge on the left and whitespace, sentence punctuation,
// or string-edge on the right. The phrase is regex-escaped before embedding,
// so "@claude" matches while "claudette" and "x@claude.com" do not.
func containsPhrase(text, phrase string) bool {
	if phrase == "" || text == "" {
		return false
	}

	pattern := `(?i)(^|\s)` + regexp.QuoteMeta(phrase) + `($|\s|[.,!?;:])`
	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Printf("[Trigger] Failed to compile phrase pattern for %q: %v", phrase, err)
		return false
	}
	return re.MatchString(text)
}
