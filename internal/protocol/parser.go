// Package protocol extracts structured fields from loosely formatted model
// replies. Parsing is lenient: lines that do not match are dropped and
// missing sections fall back to defaults, so a sloppy reply degrades the
// result instead of failing the workflow.
package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

// subtaskLineRe matches lines like "SUBTASK 1: desc", "1. desc", "2: desc".
var subtaskLineRe = regexp.MustCompile(`(?i)^(?:SUBTASK\s+)?(\d+)[.:]\s*(.+)$`)

// ParseSubtasks extracts numbered subtask descriptions in line order.
func ParseSubtasks(planText string) []string {
	var subtasks []string
	for _, line := range strings.Split(strings.TrimSpace(planText), "\n") {
		line = strings.TrimSpace(line)
		m := subtaskLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[2])
		if desc != "" {
			subtasks = append(subtasks, desc)
		}
	}
	return subtasks
}

// FormatSubtasks renders subtasks in the canonical "SUBTASK i: desc" form.
// ParseSubtasks(FormatSubtasks(x)) == x.
func FormatSubtasks(subtasks []string) string {
	var b strings.Builder
	for i, s := range subtasks {
		fmt.Fprintf(&b, "SUBTASK %d: %s\n", i+1, s)
	}
	return b.String()
}

type Assessment string

const (
	AssessKeepPlan   Assessment = "KEEP_PLAN"
	AssessRevisePlan Assessment = "REVISE_PLAN"
	AssessAbortTask  Assessment = "ABORT_TASK"
)

type RevisionAssessment struct {
	Assessment    Assessment
	Reasoning     string
	RevisedPlan   []string
	RevisionNotes string
}

var (
	reasoningRe = regexp.MustCompile(`(?s)REASONING:\s*(.*?)(?:REVISED_PLAN:|REVISION_NOTES:|$)`)
	planRe      = regexp.MustCompile(`(?s)REVISED_PLAN:\s*(.*?)(?:REVISION_NOTES:|$)`)
	notesRe     = regexp.MustCompile(`(?s)REVISION_NOTES:\s*(.*)$`)
)

// ParseRevisionAssessment extracts the ASSESSMENT / REASONING / REVISED_PLAN /
// REVISION_NOTES sections. KEEP_PLAN is the default when no recognized token
// appears on the ASSESSMENT line. A REVISED_PLAN section reading exactly
// "No changes needed" is treated as absent.
func ParseRevisionAssessment(text string) RevisionAssessment {
	result := RevisionAssessment{Assessment: AssessKeepPlan}

	if strings.Contains(text, "ASSESSMENT:") {
		for _, line := range strings.Split(text, "\n") {
			if !strings.Contains(line, "ASSESSMENT:") {
				continue
			}
			upper := strings.ToUpper(line)
			if strings.Contains(upper, string(AssessRevisePlan)) {
				result.Assessment = AssessRevisePlan
			} else if strings.Contains(upper, string(AssessAbortTask)) {
				result.Assessment = AssessAbortTask
			}
			break
		}
	}

	if m := reasoningRe.FindStringSubmatch(text); m != nil {
		result.Reasoning = strings.TrimSpace(m[1])
	}
	if m := planRe.FindStringSubmatch(text); m != nil {
		planText := strings.TrimSpace(m[1])
		if planText != "" && planText != "No changes needed" {
			result.RevisedPlan = ParseSubtasks(planText)
		}
	}
	if m := notesRe.FindStringSubmatch(text); m != nil {
		result.RevisionNotes = strings.TrimSpace(m[1])
	}
	return result
}

type Verdict string

const (
	VerdictSatisfactory     Verdict = "SATISFACTORY"
	VerdictNeedsImprovement Verdict = "NEEDS_IMPROVEMENT"
)

// ParseVerdict reads a critique's verdict. The phrase "NEEDS IMPROVEMENT"
// anywhere (case-insensitive) is state-determining; everything else reads
// as SATISFACTORY. Absence of explicit dissatisfaction counts as approval,
// which biases the refine loop toward termination.
func ParseVerdict(critique string) Verdict {
	if strings.Contains(strings.ToUpper(critique), "NEEDS IMPROVEMENT") {
		return VerdictNeedsImprovement
	}
	return VerdictSatisfactory
}
