// Package obstacle classifies subtask output by scanning for indicator
// phrases. Keyword matching, not semantic analysis: deterministic and good
// enough to decide whether the plan assessor should be consulted.
package obstacle

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindToolFailure       Kind = "tool_failure"
	KindInsufficientInfo  Kind = "insufficient_info"
	KindContradictoryInfo Kind = "contradictory_info"
	KindApproachIssue     Kind = "approach_issue"
)

type Outcome struct {
	Detected    bool
	Kind        Kind
	Description string
}

// indicators is a priority order, not independent detection: the first kind
// with any matching indicator wins when a text matches several kinds.
var indicators = []struct {
	kind    Kind
	phrases []string
}{
	{KindToolFailure, []string{"error", "failed", "timeout", "unavailable", "exception"}},
	{KindInsufficientInfo, []string{"not enough information", "insufficient data", "cannot find", "no results", "unable to locate"}},
	{KindContradictoryInfo, []string{"contradicts", "conflicts with", "inconsistent"}},
	{KindApproachIssue, []string{"better approach", "more efficient", "alternative method"}},
}

// Detect scans the subtask output for obstacle indicators. Tool results
// containing "error" are appended as corroborating evidence but never change
// the detected kind.
func Detect(subtaskOutput string, toolResults []string) Outcome {
	outputLower := strings.ToLower(subtaskOutput)

	for _, entry := range indicators {
		if !matchesAny(outputLower, entry.phrases) {
			continue
		}

		var toolFailures []string
		for _, r := range toolResults {
			if strings.Contains(strings.ToLower(r), "error") {
				toolFailures = append(toolFailures, r)
			}
		}

		desc := fmt.Sprintf("Detected %s during execution. Output: %s...", entry.kind, prefix(subtaskOutput, 200))
		if len(toolFailures) > 0 {
			desc += fmt.Sprintf(" Tool errors: %s", strings.Join(toolFailures, "; "))
		}
		return Outcome{Detected: true, Kind: entry.kind, Description: desc}
	}

	return Outcome{}
}

func matchesAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
