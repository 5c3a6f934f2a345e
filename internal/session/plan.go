package session

import (
	"regexp"
	"strings"
)

// Plan markers. The markers match the system prompt's contract; detection is
// anchored rather than substring-sniffed.
var (
	planMarker     = regexp.MustCompile(`(?m)^\s*PLAN:`)
	progressMarker = regexp.MustCompile(`(?m)^\s*PROGRESS:`)
	numberedLine   = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+\S`)
	completedTask  = regexp.MustCompile(`(?i)Completed task`)
)

// updatePlan scans a thought for plan and progress markers and updates the
// session's counters.
func (s *Session) updatePlan(thought string) {
	if s.PlannedTasks == 0 && (planMarker.MatchString(thought) || numberedLine.MatchString(thought)) {
		count := len(numberedLine.FindAllString(thought, -1))
		if count > 0 {
			s.Plan = strings.TrimSpace(thought)
			s.PlannedTasks = count
		}
	} else if progressMarker.MatchString(thought) || completedTask.MatchString(thought) {
		if s.CompletedTasks < s.PlannedTasks {
			s.CompletedTasks++
		}
	}
}

// planIncomplete reports whether a final should be held back for unfinished
// planned tasks.
func (s *Session) planIncomplete() bool {
	return s.PlannedTasks > 0 && s.CompletedTasks < s.PlannedTasks
}
