package workflow

import (
	"fmt"
	"strings"
)

const planningSystemPrompt = `You are a task planning expert. Your job is to decompose complex tasks into clear, actionable subtasks.

Given a task, you must create a comprehensive plan with numbered subtasks that:
1. Are specific and actionable
2. Follow a logical order
3. Cover all aspects of the task
4. Can be executed independently

For a technical blog post, a good plan typically includes:
- Research subtasks (gather information)
- Content creation subtasks (writing different sections)
- Review subtasks (quality check)

Output your plan in this EXACT format:
SUBTASK 1: [Description of first subtask]
SUBTASK 2: [Description of second subtask]
SUBTASK 3: [Description of third subtask]
...

Be comprehensive but realistic. Aim for 6-10 subtasks for a blog post.`

const subtaskExecutionPromptTmpl = `You are executing a specific subtask as part of a larger plan.

FULL PLAN CONTEXT:
%s

COMPLETED SUBTASKS:
%s

YOUR CURRENT SUBTASK:
%s

Execute ONLY this subtask using the ReAct pattern (Thought -> Action -> Observation).
Use available tools as needed. When this specific subtask is complete, clearly state "SUBTASK COMPLETE" and summarize what you accomplished.

Stay focused on this subtask - don't try to do work from other subtasks.`

const planRevisionPromptTmpl = `You are a plan revision expert. An obstacle was encountered while executing a task plan, and you must decide whether the remaining plan is still viable.

ORIGINAL TASK:
%s

CURRENT PLAN:
%s

COMPLETED SUBTASKS:
%s

REMAINING SUBTASKS:
%s

OBSTACLE ENCOUNTERED:
%s

Assess the situation and respond in this EXACT format:

ASSESSMENT: [KEEP_PLAN, REVISE_PLAN, or ABORT_TASK]
REASONING: [Why you chose this assessment]
REVISED_PLAN:
[If REVISE_PLAN: the new remaining subtasks in "SUBTASK N: description" format. Otherwise write "No changes needed"]
REVISION_NOTES: [What changed and why, or "None"]

Choose KEEP_PLAN when the obstacle is recoverable within the current plan, REVISE_PLAN when the remaining subtasks need to change, and ABORT_TASK only when the task cannot be completed at all.`

const synthesisPromptTmpl = `You are synthesizing results from multiple subtasks into a final blog post.

ORIGINAL TASK:
%s

COMPLETED SUBTASKS AND RESULTS:
%s

Your job is to:
1. Review all subtask outputs
2. Combine research findings
3. Integrate written sections
4. Create a cohesive, well-structured technical blog post
5. Ensure consistent tone and style throughout

Output the complete final blog post in markdown format.`

const reflectionPromptTmpl = `You are a critical editor reviewing a technical blog post.

ORIGINAL TASK:
%s

CONTENT TO REVIEW:
%s

Evaluate the content for accuracy, completeness, structure, clarity, and technical depth.

If the content meets a high standard, state "SATISFACTORY" and briefly explain why.
If it does not, state "NEEDS IMPROVEMENT" and list the specific issues that must be fixed.`

const refinementPromptTmpl = `You are revising a technical blog post based on editorial feedback.

ORIGINAL TASK:
%s

CURRENT CONTENT:
%s

FEEDBACK TO ADDRESS:
%s

Rewrite the blog post to address every issue in the feedback while preserving what already works.
Output the complete revised blog post in markdown format.`

func originalTask(topic string) string {
	return fmt.Sprintf("Write a technical blog post about: %s", topic)
}

func planningUserPrompt(topic string) string {
	return fmt.Sprintf("Create a detailed task plan for writing a technical blog post about: %s\n\nBreak this down into specific subtasks that will result in a high-quality, well-researched blog post.", topic)
}

func subtaskExecutionPrompt(fullPlan, completed []string, current string) string {
	return fmt.Sprintf(subtaskExecutionPromptTmpl,
		numberedList(fullPlan),
		completedChecklist(completed),
		current)
}

func planRevisionPrompt(topic string, fullPlan, completed, remaining []string, obstacleInfo string) string {
	return fmt.Sprintf(planRevisionPromptTmpl,
		originalTask(topic),
		numberedList(fullPlan),
		completedChecklist(completed),
		numberedListOr(remaining, "None"),
		obstacleInfo)
}

func synthesisPrompt(topic string, results []SubtaskResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "\nSUBTASK %d: %s\nOUTPUT:\n%s\n%s\n", i+1, r.Description, r.Output, strings.Repeat("-", 40))
	}
	return fmt.Sprintf(synthesisPromptTmpl, originalTask(topic), b.String())
}

func reflectionPrompt(topic, content string) string {
	return fmt.Sprintf(reflectionPromptTmpl, originalTask(topic), content)
}

func refinementPrompt(topic, content, feedback string) string {
	return fmt.Sprintf(refinementPromptTmpl, originalTask(topic), content, feedback)
}

func numberedList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	return strings.TrimRight(b.String(), "\n")
}

func numberedListOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return numberedList(items)
}

func completedChecklist(completed []string) string {
	if len(completed) == 0 {
		return "None yet"
	}
	var b strings.Builder
	for _, item := range completed {
		fmt.Fprintf(&b, "✓ %s\n", item)
	}
	return strings.TrimRight(b.String(), "\n")
}
