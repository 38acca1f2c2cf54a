// Package branch computes the working-branch plan for a run and reconciles
// the branch's final disposition after the agent has finished.
package branch

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/summonlabs/summon/internal/scm"
)

// maxNameLength is the stricter of the GitHub/GitLab branch name limits we
// hold ourselves to.
const maxNameLength = 50

var validNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*(/[a-z0-9][a-z0-9-]*)?$`)

// GenerateName builds the deterministic working-branch name
// <prefix><entityKind>-<entityNumber>-<compactTimestamp>, e.g.
// "claude/issue-42-20260823-1504". The timestamp salt makes names from
// concurrent runs on the same entity unique; there is no collision check.
func GenerateName(prefix string, kind scm.EntityKind, number int, ts time.Time) string {
	compact := ts.UTC().Format("20060102-1504")
	name := fmt.Sprintf("%s%s-%d-%s", sanitizePrefix(prefix), kind, number, compact)

	if len(name) > maxNameLength {
		name = strings.TrimRight(name[:maxNameLength], "-")
	}
	return name
}

// sanitizePrefix lower-cases the prefix and guarantees a trailing slash so
// generated branches group under one namespace.
func sanitizePrefix(prefix string) string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// ValidateName reports whether a name satisfies the stricter platform rules:
// lowercase alphanumerics and hyphens, at most one namespace slash, at most
// 50 characters.
func ValidateName(name string) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	return validNamePattern.MatchString(name)
}
