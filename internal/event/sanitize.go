package event

import (
	"regexp"
	"strings"
)

// Untrusted comment and issue text flows into agent prompts; the cleaning
// below removes the channels for hidden instructions (invisible characters,
// HTML comments, hidden attributes) and redacts anything token-shaped.
var (
	reInvisible  = regexp.MustCompile("[\u200B\u200C\u200D\uFEFF\u00AD]")
	reControl    = regexp.MustCompile("[\u0000-\u0008\u000B\u000C\u000E-\u001F\u007F-\u009F]")
	reBidi       = regexp.MustCompile("[\u202A-\u202E\u2066-\u2069]")
	reHTMLHidden = regexp.MustCompile(`<!--[\s\S]*?-->`)

	reHiddenAttr = regexp.MustCompile(`\s(?:alt|title|aria-label|placeholder|data-[a-zA-Z0-9-]+)\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)

	reGitHubToken = regexp.MustCompile(`\b(?:gh[posru]_[A-Za-z0-9]{36}|github_pat_[A-Za-z0-9_]{11,221})\b`)
	reGitLabToken = regexp.MustCompile(`\bglpat-[A-Za-z0-9_-]{20,}\b`)
)

// SanitizeContent cleans one piece of untrusted text before it is embedded
// in a prompt or re-posted in a comment.
func SanitizeContent(s string) string {
	if s == "" {
		return s
	}
	s = reHTMLHidden.ReplaceAllString(s, "")
	s = reInvisible.ReplaceAllString(s, "")
	s = reControl.ReplaceAllString(s, "")
	s = reBidi.ReplaceAllString(s, "")
	s = reHiddenAttr.ReplaceAllString(s, "")
	s = RedactTokens(s)
	return strings.TrimSpace(s)
}

// RedactTokens censors credential-shaped strings from both platforms.
func RedactTokens(s string) string {
	s = reGitHubToken.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = reGitLabToken.ReplaceAllString(s, "[REDACTED_TOKEN]")
	return s
}

// Sanitize cleans the user-supplied fields of a Context in place.
func (c *Context) Sanitize() {
	c.Title = SanitizeContent(c.Title)
	c.Body = SanitizeContent(c.Body)
	c.CommentBody = SanitizeContent(c.CommentBody)
}
