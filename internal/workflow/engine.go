package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/scribeworks/scribe/internal/artifact"
	"github.com/scribeworks/scribe/internal/gateway"
	"github.com/scribeworks/scribe/internal/tools"
)

// Engine owns the workflow state and drives the step graph to a terminal
// outcome. Execution is single threaded: one step runs to completion before
// the next is selected.
type Engine struct {
	Graph   *Graph
	Gateway *gateway.Gateway
	Tools   *tools.Registry
	Drafts  *artifact.Store
	Config  *Config

	RunID    string
	LogsRoot string

	State State

	progressMu   sync.Mutex
	progressFile *os.File
}

// Result summarizes a finished run.
type Result struct {
	RunID            string
	Status           string
	FailureReason    string
	DraftPath        string
	Subtasks         int
	Revisions        int
	ReflectionCycles int

	CompletedSubtasks []string
	PlanRevisions     []RevisionRecord
	ReflectionHistory []ReflectionRecord
	OriginalPlanSize  int
	FinalPlanSize     int
}

func NewEngine(g *Graph, gw *gateway.Gateway, reg *tools.Registry, drafts *artifact.Store, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		Graph:   g,
		Gateway: gw,
		Tools:   reg,
		Drafts:  drafts,
		Config:  cfg,
		RunID:   ulid.Make().String(),
	}
}

// Run executes the workflow for one topic. The returned Result is also
// written as final.json under the run's log directory.
func (e *Engine) Run(ctx context.Context, topic string) (Result, error) {
	if err := e.Graph.Validate(); err != nil {
		return Result{}, err
	}
	if err := e.openProgress(); err != nil {
		return Result{}, err
	}
	defer e.closeProgress()

	if e.Gateway != nil {
		e.Gateway.OnRetry = func(attempt int, reason string) {
			e.emit(map[string]any{
				"event":   "gateway_retry",
				"attempt": attempt,
				"reason":  reason,
			})
		}
	}

	if err := e.State.Apply(Update{Topic: ptr(topic)}); err != nil {
		return Result{}, err
	}

	e.emit(map[string]any{"event": "run_started", "topic": topic})

	exec := &Execution{
		State:   &e.State,
		Gateway: e.Gateway,
		Tools:   e.Tools,
		Drafts:  e.Drafts,
		Config:  e.Config,
		emit:    e.emit,
	}

	step := e.Graph.Start
	transitions := 0
	var runErr error

	for step != StepDone {
		transitions++
		if transitions > e.Config.Limits.StepTransitions {
			runErr = fmt.Errorf("step transition limit %d exceeded at %q", e.Config.Limits.StepTransitions, step)
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		node, ok := e.Graph.Node(step)
		if !ok {
			runErr = fmt.Errorf("unknown step %q", step)
			break
		}

		e.emit(map[string]any{"event": "step_started", "step": step})
		update, err := node.Handler.Execute(ctx, exec)
		if err != nil {
			runErr = fmt.Errorf("step %s: %w", step, err)
			break
		}
		if err := e.State.Apply(update); err != nil {
			runErr = fmt.Errorf("step %s: applying update: %w", step, err)
			break
		}
		e.emit(map[string]any{"event": "step_finished", "step": step})

		next, err := e.Graph.NextStep(step, &e.State)
		if err != nil {
			runErr = err
			break
		}
		e.emit(map[string]any{"event": "edge_selected", "from": step, "to": next})
		step = next
	}

	res := Result{
		RunID:             e.RunID,
		Subtasks:          len(e.State.CompletedSubtasks),
		Revisions:         e.State.RevisionCount,
		ReflectionCycles:  len(e.State.ReflectionHistory),
		CompletedSubtasks: cloneStrings(e.State.CompletedSubtasks),
		PlanRevisions:     append([]RevisionRecord(nil), e.State.PlanRevisions...),
		ReflectionHistory: append([]ReflectionRecord(nil), e.State.ReflectionHistory...),
		OriginalPlanSize:  len(e.State.OriginalPlan),
		FinalPlanSize:     len(e.State.FullPlan),
	}

	if runErr != nil {
		res.Status = "failed"
		res.FailureReason = runErr.Error()
	} else {
		res.Status = "completed"
		if e.Drafts != nil && e.State.FinalContent != "" {
			name := artifact.DerivedName(topic, e.Config.Output.FilenameStemLimit)
			saved, err := e.Drafts.Save(e.State.FinalContent, name)
			if err != nil {
				res.Status = "failed"
				res.FailureReason = fmt.Sprintf("persisting final draft: %v", err)
				runErr = fmt.Errorf("persisting final draft: %w", err)
			} else {
				res.DraftPath = saved.Path
			}
		}
	}

	e.emit(summaryEvent(res))
	e.emit(map[string]any{
		"event":  "run_finished",
		"status": res.Status,
		"draft":  res.DraftPath,
	})
	e.writeFinal(res)

	return res, runErr
}

func (e *Engine) runDir() string {
	root := e.LogsRoot
	if root == "" {
		root = "logs"
	}
	return filepath.Join(root, e.RunID)
}

func (e *Engine) openProgress() error {
	dir := e.runDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "progress.ndjson"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	e.progressFile = f
	return nil
}

func (e *Engine) closeProgress() {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	if e.progressFile != nil {
		e.progressFile.Close()
		e.progressFile = nil
	}
}

// emit appends one NDJSON event to the run's progress log. Events are best
// effort; a write failure never interrupts the workflow.
func (e *Engine) emit(event map[string]any) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	if e.progressFile == nil {
		return
	}
	event["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	event["run_id"] = e.RunID
	b, err := json.Marshal(event)
	if err != nil {
		return
	}
	e.progressFile.Write(append(b, '\n'))
}

func (e *Engine) writeFinal(res Result) {
	b, err := json.MarshalIndent(map[string]any{
		"run_id":            res.RunID,
		"status":            res.Status,
		"failure_reason":    res.FailureReason,
		"draft_path":        res.DraftPath,
		"subtasks":          res.Subtasks,
		"revisions":         res.Revisions,
		"reflection_cycles": res.ReflectionCycles,
	}, "", "  ")
	if err != nil {
		return
	}
	os.WriteFile(filepath.Join(e.runDir(), "final.json"), append(b, '\n'), 0o644)
}
