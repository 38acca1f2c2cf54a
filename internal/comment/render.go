package comment

import (
	"fmt"
	"regexp"
	"strings"
)

// spinnerImg is the loading marker shown while the run is in progress.
const spinnerImg = `<img src="https://github.githubassets.com/images/spinners/octocat-spinner-32.gif" width="20" height="20" alt="loading" />`

// Generated chrome is recognized by pattern so a finalize pass can strip
// what a previous pass (or the working render) produced and rebuild it from
// scratch. Headers and link rows are never appended on top of old ones.
var (
	workingLinePattern = regexp.MustCompile(`^.+ is working on @.+'s task\b`)
	headerLinePattern  = regexp.MustCompile(`^\*\*.+ (finished @.+'s task|encountered an error)`)
	linkRowPattern     = regexp.MustCompile(`^(—— )?\[.*\]\(.*\)( • .*)?$`)
)

// renderWorking builds the initial WORKING body: the working sentence with a
// spinner, an empty checklist (the agent fills it in), and optionally a
// links row carrying the branch link once one exists.
func renderWorking(s *State, branchName, branchURL string) string {
	line := fmt.Sprintf("%s is working on @%s's task %s", s.agentName(), s.username(), spinnerImg)
	if branchName == "" {
		return line
	}
	return line + "\n\n" + fmt.Sprintf("[`%s`](%s)", branchName, branchURL)
}

// renderFinal builds a terminal body from scratch: one-line header, links
// row, fenced error on failure, then the preserved narrative. Rendering the
// same state and narrative twice yields identical text.
func renderFinal(s *State, narrative string) string {
	var sections []string

	header := s.buildHeader()
	if links := s.buildLinks(); links != "" {
		header += " —— " + links
	}
	sections = append(sections, header)

	if s.Status == StatusFailed && s.ErrorDetails != "" {
		sections = append(sections, "", "```", strings.TrimRight(s.ErrorDetails, "\n"), "```")
	}

	if narrative = strings.TrimSpace(narrative); narrative != "" {
		sections = append(sections, "", narrative)
	}

	return strings.Join(sections, "\n")
}

func (s *State) buildHeader() string {
	switch s.Status {
	case StatusDone:
		if d := s.Duration(); d != "" {
			return fmt.Sprintf("**%s finished @%s's task in %s**", s.agentName(), s.username(), d)
		}
		return fmt.Sprintf("**%s finished @%s's task**", s.agentName(), s.username())
	case StatusFailed:
		if d := s.Duration(); d != "" {
			return fmt.Sprintf("**%s encountered an error after %s**", s.agentName(), d)
		}
		return fmt.Sprintf("**%s encountered an error**", s.agentName())
	default:
		return fmt.Sprintf("**%s is working on @%s's task**", s.agentName(), s.username())
	}
}

// buildLinks renders the links row: job link first, branch link when the
// branch survived, create-PR link when one applies.
func (s *State) buildLinks() string {
	var links []string
	if s.JobURL != "" {
		links = append(links, fmt.Sprintf("[View job](%s)", s.JobURL))
	}
	if s.BranchName != "" {
		if s.BranchURL != "" {
			links = append(links, fmt.Sprintf("[`%s`](%s)", s.BranchName, s.BranchURL))
		} else {
			links = append(links, fmt.Sprintf("`%s`", s.BranchName))
		}
	}
	if s.PRURL != "" {
		links = append(links, fmt.Sprintf("[Create PR ➔](%s)", s.PRURL))
	}
	return strings.Join(links, " • ")
}

// extractNarrative strips all generated chrome from a comment body and
// returns what remains: the checklist/narrative the agent wrote. It removes
// the working sentence, terminal headers, stale link rows, and the fenced
// error block a previous finalize appended directly under its header.
func extractNarrative(body string) string {
	lines := strings.Split(body, "\n")
	var kept []string

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if workingLinePattern.MatchString(trimmed) || headerLinePattern.MatchString(trimmed) {
			failed := strings.Contains(trimmed, "encountered an error")
			i++
			// Only a failure header carries a fenced error block as chrome;
			// a fence under any other header is agent narrative and stays.
			if failed {
				j := i
				for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
					j++
				}
				if j < len(lines) && strings.TrimSpace(lines[j]) == "```" {
					j++
					for j < len(lines) && strings.TrimSpace(lines[j]) != "```" {
						j++
					}
					i = j + 1 // past the closing fence
				}
			}
			continue
		}

		if trimmed != "" && linkRowPattern.MatchString(trimmed) {
			i++
			continue
		}
		if strings.Contains(trimmed, spinnerImg) {
			i++
			continue
		}

		kept = append(kept, line)
		i++
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}
