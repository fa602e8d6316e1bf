package workflow

import (
	"context"
	"fmt"

	"github.com/scribeworks/scribe/internal/artifact"
	"github.com/scribeworks/scribe/internal/gateway"
	"github.com/scribeworks/scribe/internal/tools"
)

// Handler executes one step of the workflow. It reads shared context from the
// Execution and returns a partial state update; it never mutates state
// directly.
type Handler interface {
	Execute(ctx context.Context, exec *Execution) (Update, error)
}

type HandlerFunc func(ctx context.Context, exec *Execution) (Update, error)

func (f HandlerFunc) Execute(ctx context.Context, exec *Execution) (Update, error) {
	return f(ctx, exec)
}

// Execution is the shared context handed to every handler.
type Execution struct {
	State   *State
	Gateway *gateway.Gateway
	Tools   *tools.Registry
	Drafts  *artifact.Store
	Config  *Config

	emit func(event map[string]any)
}

// Emit records a progress event for the running engine. Safe to call when no
// sink is attached.
func (e *Execution) Emit(event map[string]any) {
	if e.emit != nil {
		e.emit(event)
	}
}

type Edge struct {
	From string
	To   string

	// Condition is evaluated by EvaluateCondition; empty means always.
	Condition string
}

type Node struct {
	Name    string
	Handler Handler
}

// Graph is a fixed step topology. Outgoing edges are evaluated in declaration
// order and the first matching edge is taken; an unconditional edge acts as
// the default when listed last.
type Graph struct {
	Start string
	nodes map[string]Node
	edges map[string][]Edge
}

const StepDone = "done"

func NewGraph(start string) *Graph {
	return &Graph{
		Start: start,
		nodes: map[string]Node{},
		edges: map[string][]Edge{},
	}
}

func (g *Graph) AddNode(name string, h Handler) {
	g.nodes[name] = Node{Name: name, Handler: h}
}

func (g *Graph) AddEdge(from, to, condition string) {
	g.edges[from] = append(g.edges[from], Edge{From: from, To: to, Condition: condition})
}

func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// NextStep selects the successor of a step given the current state.
func (g *Graph) NextStep(from string, st *State) (string, error) {
	edges := g.edges[from]
	if len(edges) == 0 {
		return "", fmt.Errorf("step %q has no outgoing edges", from)
	}
	for _, e := range edges {
		ok, err := EvaluateCondition(e.Condition, st)
		if err != nil {
			return "", fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
		}
		if ok {
			return e.To, nil
		}
	}
	return "", fmt.Errorf("step %q: no edge condition matched", from)
}

// Validate checks that every edge points at a registered node and that the
// start node exists. The done step is an implicit terminal.
func (g *Graph) Validate() error {
	if _, ok := g.nodes[g.Start]; !ok {
		return fmt.Errorf("start step %q is not registered", g.Start)
	}
	for from, edges := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("edge source %q is not registered", from)
		}
		for _, e := range edges {
			if e.To == StepDone {
				continue
			}
			if _, ok := g.nodes[e.To]; !ok {
				return fmt.Errorf("edge %s -> %s: target is not registered", e.From, e.To)
			}
		}
	}
	return nil
}

const (
	StepCreatePlan     = "create_plan"
	StepExecuteSubtask = "execute_subtask"
	StepAssessRevision = "assess_revision"
	StepSynthesize     = "synthesize"
	StepReflect        = "reflect"
	StepRefine         = "refine"
)

// DefaultGraph wires the standard topology: plan, then the subtask loop with
// its revision detour, then synthesis and the bounded reflect/refine loop.
func DefaultGraph() *Graph {
	g := NewGraph(StepCreatePlan)

	g.AddNode(StepCreatePlan, HandlerFunc(createPlan))
	g.AddNode(StepExecuteSubtask, HandlerFunc(executeSubtask))
	g.AddNode(StepAssessRevision, HandlerFunc(assessRevision))
	g.AddNode(StepSynthesize, HandlerFunc(synthesize))
	g.AddNode(StepReflect, HandlerFunc(reflectDraft))
	g.AddNode(StepRefine, HandlerFunc(refineDraft))

	g.AddEdge(StepCreatePlan, StepExecuteSubtask, "")

	g.AddEdge(StepExecuteSubtask, StepAssessRevision, "needs_revision=true")
	g.AddEdge(StepExecuteSubtask, StepSynthesize, "plan_exhausted=true")
	g.AddEdge(StepExecuteSubtask, StepExecuteSubtask, "")

	g.AddEdge(StepAssessRevision, StepSynthesize, "plan_exhausted=true")
	g.AddEdge(StepAssessRevision, StepExecuteSubtask, "")

	g.AddEdge(StepSynthesize, StepReflect, "")

	g.AddEdge(StepReflect, StepRefine, "execution_complete=false")
	g.AddEdge(StepReflect, StepDone, "")

	g.AddEdge(StepRefine, StepReflect, "")

	return g
}
