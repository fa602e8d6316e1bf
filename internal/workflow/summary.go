package workflow

import (
	"fmt"
	"io"
	"strings"

	"github.com/scribeworks/scribe/internal/protocol"
)

// summaryEvent renders the end-of-run summary as one progress event carrying
// the full revision and reflection detail.
func summaryEvent(res Result) map[string]any {
	revisions := make([]map[string]any, 0, len(res.PlanRevisions))
	for _, r := range res.PlanRevisions {
		revisions = append(revisions, map[string]any{
			"sequence":  r.Sequence,
			"trigger":   r.Trigger,
			"reasoning": r.Reasoning,
			"notes":     r.Notes,
		})
	}
	reflections := make([]map[string]any, 0, len(res.ReflectionHistory))
	for _, r := range res.ReflectionHistory {
		reflections = append(reflections, map[string]any{
			"iteration":    r.Iteration,
			"assessment":   string(r.Assessment),
			"action_taken": r.ActionTaken,
		})
	}
	return map[string]any{
		"event":              "run_summary",
		"status":             res.Status,
		"subtasks_completed": res.CompletedSubtasks,
		"original_plan_size": res.OriginalPlanSize,
		"final_plan_size":    res.FinalPlanSize,
		"revisions":          revisions,
		"reflections":        reflections,
	}
}

// WriteSummary prints the execution summary for a finished run: the subtasks
// executed, every reflection cycle with its assessment and action, and every
// plan revision with its trigger, reasoning, and notes.
func WriteSummary(w io.Writer, res Result) {
	banner := strings.Repeat("=", 60)

	fmt.Fprintln(w, banner)
	fmt.Fprintln(w, "EXECUTION SUMMARY")
	fmt.Fprintln(w, banner)
	fmt.Fprintf(w, "Total subtasks: %d\n", res.FinalPlanSize)
	fmt.Fprintf(w, "Completed: %d\n", len(res.CompletedSubtasks))
	fmt.Fprintln(w, "Subtasks executed:")
	for i, subtask := range res.CompletedSubtasks {
		fmt.Fprintf(w, "  %d. %s\n", i+1, subtask)
	}

	fmt.Fprintln(w, banner)
	fmt.Fprintln(w, "SELF-REFLECTION SUMMARY")
	fmt.Fprintln(w, banner)
	fmt.Fprintf(w, "Reflection cycles: %d\n", len(res.ReflectionHistory))
	if len(res.ReflectionHistory) == 1 && res.ReflectionHistory[0].Assessment == protocol.VerdictSatisfactory {
		fmt.Fprintln(w, "Result: Content was satisfactory on first evaluation - no refinement needed")
	} else {
		fmt.Fprintln(w, "Refinement process:")
		for _, rec := range res.ReflectionHistory {
			fmt.Fprintf(w, "  Cycle %d: %s - %s\n", rec.Iteration, rec.Assessment, rec.ActionTaken)
		}
	}

	fmt.Fprintln(w, banner)
	fmt.Fprintln(w, "PLAN REVISION SUMMARY")
	fmt.Fprintln(w, banner)
	if len(res.PlanRevisions) == 0 {
		fmt.Fprintln(w, "No plan revisions were needed during execution.")
	} else {
		fmt.Fprintf(w, "Total plan revisions: %d\n", len(res.PlanRevisions))
		fmt.Fprintf(w, "Original plan size: %d subtasks\n", res.OriginalPlanSize)
		fmt.Fprintf(w, "Final plan size: %d subtasks\n", res.FinalPlanSize)
		fmt.Fprintln(w, "Revision details:")
		for _, rev := range res.PlanRevisions {
			fmt.Fprintf(w, "Revision #%d:\n", rev.Sequence)
			fmt.Fprintf(w, "  Trigger: %s\n", clip(rev.Trigger, 80))
			fmt.Fprintf(w, "  Reasoning: %s\n", clip(rev.Reasoning, 100))
			fmt.Fprintf(w, "  Notes: %s\n", clip(rev.Notes, 100))
		}
	}
	fmt.Fprintln(w, banner)
}

// clip bounds a string to n runes, marking the cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
