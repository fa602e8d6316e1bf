package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/scribeworks/scribe/internal/llm"
	"github.com/scribeworks/scribe/internal/obstacle"
	"github.com/scribeworks/scribe/internal/protocol"
)

// createPlan decomposes the topic into an ordered subtask plan. Failure here
// is fatal: nothing downstream can run without a plan.
func createPlan(ctx context.Context, exec *Execution) (Update, error) {
	st := exec.State

	req := llm.Request{
		Messages: []llm.Message{
			llm.System(planningSystemPrompt),
			llm.User(planningUserPrompt(st.Topic)),
		},
		MaxTokens: ptr(exec.Config.Budgets.Plan),
	}

	planText, _, err := exec.Gateway.Call(ctx, req)
	if err != nil {
		return Update{}, fmt.Errorf("plan creation: %w", err)
	}

	subtasks := protocol.ParseSubtasks(planText)
	if len(subtasks) == 0 {
		return Update{}, fmt.Errorf("plan creation: no subtasks parsed from reply")
	}

	exec.Emit(map[string]any{
		"event":    "plan_created",
		"subtasks": len(subtasks),
	})

	return Update{
		FullPlan:            ptr(subtasks),
		OriginalPlan:        ptr(subtasks),
		CurrentSubtaskIndex: ptr(0),
		RevisionCount:       ptr(0),
	}, nil
}

// executeSubtask runs one subtask to a terminal outcome via the bounded
// reasoning loop. Every terminal path appends exactly one SubtaskResult and
// one completed-subtask entry and advances the index.
func executeSubtask(ctx context.Context, exec *Execution) (Update, error) {
	st := exec.State

	if st.CurrentSubtaskIndex >= len(st.FullPlan) {
		return Update{
			ExecutionComplete: ptr(true),
			ObstacleDetected:  ptr(false),
		}, nil
	}

	subtask := st.FullPlan[st.CurrentSubtaskIndex]
	exec.Emit(map[string]any{
		"event":   "subtask_started",
		"index":   st.CurrentSubtaskIndex,
		"subtask": subtask,
	})

	system := subtaskExecutionPrompt(st.FullPlan, st.CompletedSubtasks, subtask)
	messages := []llm.Message{
		llm.System(system),
		llm.User("Execute this subtask: " + subtask),
	}

	var outputs []string
	var toolResults []string

	finish := func(completed, obstacleFlag bool, info string) Update {
		exec.Emit(map[string]any{
			"event":     "subtask_finished",
			"index":     st.CurrentSubtaskIndex,
			"completed": completed,
			"obstacle":  obstacleFlag,
		})
		u := Update{
			SubtaskResults: []SubtaskResult{{
				Description:      subtask,
				Output:           strings.Join(outputs, "\n"),
				Completed:        completed,
				ObstacleDetected: obstacleFlag,
			}},
			CompletedSubtasks:   []string{subtask},
			CurrentSubtaskIndex: ptr(st.CurrentSubtaskIndex + 1),
			NeedsRevision:       ptr(obstacleFlag),
			ObstacleDetected:    ptr(obstacleFlag),
		}
		if info != "" {
			u.ObstacleInfo = ptr(info)
		}
		return u
	}

	for cycle := 0; cycle < exec.Config.Limits.SubtaskCycles; cycle++ {
		req := llm.Request{
			Messages:  messages,
			Tools:     exec.Tools.Definitions(),
			MaxTokens: ptr(exec.Config.Budgets.Subtask),
		}

		_, resp, err := exec.Gateway.Call(ctx, req)
		if err != nil {
			outcomeInfo := "Error during execution: " + err.Error()
			return finish(false, true, outcomeInfo), nil
		}

		var toolMessages []llm.Message
		markerSeen := false
		for _, part := range resp.Message.Content {
			switch part.Kind {
			case llm.ContentText:
				if part.Text == "" {
					continue
				}
				outputs = append(outputs, part.Text)
				if strings.Contains(strings.ToUpper(part.Text), "SUBTASK COMPLETE") {
					// Tool calls earlier in this reply have already run;
					// anything after the marker is ignored.
					markerSeen = true
				}
			case llm.ContentToolCall:
				if part.ToolCall == nil {
					continue
				}
				res := exec.Tools.ExecuteCall(ctx, *part.ToolCall)
				toolResults = append(toolResults, res.FullOutput)
				toolMessages = append(toolMessages,
					llm.ToolResultNamed(res.CallID, res.ToolName, res.Output, res.IsError))
			}
			if markerSeen {
				break
			}
		}

		if markerSeen {
			outcome := obstacle.Detect(strings.Join(outputs, "\n"), toolResults)
			return finish(true, outcome.Detected, outcome.Description), nil
		}

		if len(toolMessages) == 0 && resp.Finish.Reason == "stop" {
			// Natural end of turn with no explicit marker: implicit completion.
			return finish(true, false, ""), nil
		}

		messages = append(messages, resp.Message)
		messages = append(messages, toolMessages...)
	}

	info := "Max iterations reached while executing subtask: " + subtask
	return finish(false, true, info), nil
}

// assessRevision consults the model about whether the remaining plan survives
// the obstacle. Gateway failure degrades to keeping the current plan.
func assessRevision(ctx context.Context, exec *Execution) (Update, error) {
	st := exec.State

	prompt := planRevisionPrompt(st.Topic, st.FullPlan, st.CompletedSubtasks, st.RemainingPlan(), st.ObstacleInfo)
	req := llm.Request{
		Messages:  []llm.Message{llm.User(prompt)},
		MaxTokens: ptr(exec.Config.Budgets.Assessment),
	}

	clearFlags := Update{
		NeedsRevision:    ptr(false),
		ObstacleDetected: ptr(false),
	}

	text, _, err := exec.Gateway.Call(ctx, req)
	if err != nil || strings.TrimSpace(text) == "" {
		exec.Emit(map[string]any{
			"event":    "revision_assessed",
			"decision": "KEEP_PLAN",
			"fallback": true,
		})
		return clearFlags, nil
	}

	assessment := protocol.ParseRevisionAssessment(text)
	exec.Emit(map[string]any{
		"event":    "revision_assessed",
		"decision": string(assessment.Assessment),
	})

	switch assessment.Assessment {
	case protocol.AssessAbortTask:
		// The remaining plan is unrecoverable. Exhaust the plan index so the
		// next routing step moves to synthesis over what did complete.
		return Update{
			CurrentSubtaskIndex: ptr(len(st.FullPlan)),
			NeedsRevision:       ptr(false),
			ObstacleDetected:    ptr(false),
		}, nil

	case protocol.AssessRevisePlan:
		// A revision with no parsed subtasks truncates the plan to what has
		// completed; the recorded revision preserves why.
		newPlan := append(cloneStrings(st.CompletedSubtasks), assessment.RevisedPlan...)
		record := RevisionRecord{
			Sequence:   st.RevisionCount + 1,
			PlanBefore: cloneStrings(st.FullPlan),
			PlanAfter:  cloneStrings(newPlan),
			Trigger:    st.ObstacleInfo,
			Reasoning:  assessment.Reasoning,
			Notes:      assessment.RevisionNotes,
		}
		return Update{
			FullPlan:         ptr(newPlan),
			PlanRevisions:    []RevisionRecord{record},
			RevisionCount:    ptr(st.RevisionCount + 1),
			NeedsRevision:    ptr(false),
			ObstacleDetected: ptr(false),
		}, nil

	default:
		return clearFlags, nil
	}
}

// synthesize combines every subtask result into one draft. Failure is fatal:
// there is nothing to reflect on without a draft.
func synthesize(ctx context.Context, exec *Execution) (Update, error) {
	st := exec.State

	req := llm.Request{
		Messages: []llm.Message{
			llm.System(synthesisPrompt(st.Topic, st.SubtaskResults)),
			llm.User("Synthesize all the subtask results into a final, cohesive blog post."),
		},
		MaxTokens: ptr(exec.Config.Budgets.Synthesis),
	}

	content, _, err := exec.Gateway.Call(ctx, req)
	if err != nil {
		return Update{}, fmt.Errorf("synthesis: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return Update{}, fmt.Errorf("synthesis: reply contained no draft text")
	}

	return Update{SynthesizedContent: ptr(content)}, nil
}

// reflect critiques the current draft and decides whether the loop continues.
// A ReflectionRecord is appended on every cycle, failures included.
func reflectDraft(ctx context.Context, exec *Execution) (Update, error) {
	st := exec.State
	iteration := len(st.ReflectionHistory) + 1

	req := llm.Request{
		Messages:  []llm.Message{llm.User(reflectionPrompt(st.Topic, st.SynthesizedContent))},
		MaxTokens: ptr(exec.Config.Budgets.Reflection),
	}

	critique, _, err := exec.Gateway.Call(ctx, req)
	if err != nil || strings.TrimSpace(critique) == "" {
		record := ReflectionRecord{
			Iteration:   iteration,
			Critique:    critique,
			Assessment:  protocol.VerdictSatisfactory,
			ActionTaken: "Critique unavailable - accepting current content",
		}
		exec.Emit(map[string]any{
			"event":     "reflection",
			"iteration": iteration,
			"verdict":   string(record.Assessment),
			"fallback":  true,
		})
		return Update{
			ReflectionHistory: []ReflectionRecord{record},
			FinalContent:      ptr(st.SynthesizedContent),
			ExecutionComplete: ptr(true),
		}, nil
	}

	verdict := protocol.ParseVerdict(critique)
	record := ReflectionRecord{
		Iteration:  iteration,
		Critique:   critique,
		Assessment: verdict,
	}
	exec.Emit(map[string]any{
		"event":     "reflection",
		"iteration": iteration,
		"verdict":   string(verdict),
	})

	if verdict == protocol.VerdictSatisfactory {
		record.ActionTaken = "Accepted - no changes needed"
		return Update{
			ReflectionHistory: []ReflectionRecord{record},
			FinalContent:      ptr(st.SynthesizedContent),
			ExecutionComplete: ptr(true),
		}, nil
	}

	if iteration >= exec.Config.Limits.ReflectionCycles {
		record.ActionTaken = "Max iterations reached - accepting current content"
		return Update{
			ReflectionHistory: []ReflectionRecord{record},
			FinalContent:      ptr(st.SynthesizedContent),
			ExecutionComplete: ptr(true),
		}, nil
	}

	record.ActionTaken = "Needs refinement"
	return Update{
		ReflectionHistory: []ReflectionRecord{record},
		ExecutionComplete: ptr(false),
	}, nil
}

// refine rewrites the draft against the latest critique. On failure the
// previous draft is kept; the loop never regresses to an empty draft.
func refineDraft(ctx context.Context, exec *Execution) (Update, error) {
	st := exec.State

	feedback := ""
	if len(st.ReflectionHistory) > 0 {
		feedback = st.ReflectionHistory[len(st.ReflectionHistory)-1].Critique
	}

	req := llm.Request{
		Messages:  []llm.Message{llm.User(refinementPrompt(st.Topic, st.SynthesizedContent, feedback))},
		MaxTokens: ptr(exec.Config.Budgets.Refinement),
	}

	refined, _, err := exec.Gateway.Call(ctx, req)
	if err != nil || strings.TrimSpace(refined) == "" {
		exec.Emit(map[string]any{"event": "refinement_kept_previous"})
		return Update{}, nil
	}

	return Update{SynthesizedContent: ptr(refined)}, nil
}
