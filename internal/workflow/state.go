package workflow

import (
	"fmt"

	"github.com/scribeworks/scribe/internal/protocol"
)

// SubtaskResult is created once per subtask attempt and never mutated after
// being appended.
type SubtaskResult struct {
	Description      string
	Output           string
	Completed        bool
	ObstacleDetected bool
}

// RevisionRecord is immutable once created; ordering is the sole index.
type RevisionRecord struct {
	Sequence   int
	PlanBefore []string
	PlanAfter  []string
	Trigger    string
	Reasoning  string
	Notes      string
}

type ReflectionRecord struct {
	Iteration   int
	Critique    string
	Assessment  protocol.Verdict
	ActionTaken string
}

// State is the single record threaded through every step. Steps never touch
// it directly: they return a partial Update and the engine merges it with
// Apply, which enforces each field's fixed merge rule.
type State struct {
	Topic string

	// Plan management.
	FullPlan            []string // overwrite: full replacement on revision
	CompletedSubtasks   []string // accumulate
	CurrentSubtaskIndex int

	// Results.
	SubtaskResults []SubtaskResult  // accumulate
	PlanRevisions  []RevisionRecord // accumulate
	OriginalPlan   []string         // set once, never mutated after
	RevisionCount  int

	// Synthesis and reflection.
	SynthesizedContent string
	ReflectionHistory  []ReflectionRecord // accumulate
	FinalContent       string

	// Control flags.
	ExecutionComplete bool
	NeedsRevision     bool
	ObstacleDetected  bool
	ObstacleInfo      string

	originalPlanSet bool
}

// Update is a partial state delta. Overwrite fields are pointers (nil means
// unchanged); accumulate fields are slices that are always appended, never
// substituted.
type Update struct {
	Topic               *string
	FullPlan            *[]string
	CurrentSubtaskIndex *int
	OriginalPlan        *[]string
	RevisionCount       *int
	SynthesizedContent  *string
	FinalContent        *string
	ExecutionComplete   *bool
	NeedsRevision       *bool
	ObstacleDetected    *bool
	ObstacleInfo        *string

	CompletedSubtasks []string
	SubtaskResults    []SubtaskResult
	PlanRevisions     []RevisionRecord
	ReflectionHistory []ReflectionRecord
}

// Apply merges an update into the state. The merge rule per field is fixed
// here and nowhere else; no step can bypass it.
func (s *State) Apply(u Update) error {
	if u.OriginalPlan != nil {
		if s.originalPlanSet {
			return fmt.Errorf("original plan is set once and may not be overwritten")
		}
		s.OriginalPlan = cloneStrings(*u.OriginalPlan)
		s.originalPlanSet = true
	}
	if u.Topic != nil {
		s.Topic = *u.Topic
	}
	if u.FullPlan != nil {
		s.FullPlan = cloneStrings(*u.FullPlan)
	}
	if u.CurrentSubtaskIndex != nil {
		idx := *u.CurrentSubtaskIndex
		if idx < 0 || idx > len(s.FullPlan) {
			return fmt.Errorf("subtask index %d out of range for plan of %d", idx, len(s.FullPlan))
		}
		s.CurrentSubtaskIndex = idx
	}
	if u.RevisionCount != nil {
		s.RevisionCount = *u.RevisionCount
	}
	if u.SynthesizedContent != nil {
		s.SynthesizedContent = *u.SynthesizedContent
	}
	if u.FinalContent != nil {
		s.FinalContent = *u.FinalContent
	}
	if u.ExecutionComplete != nil {
		s.ExecutionComplete = *u.ExecutionComplete
	}
	if u.NeedsRevision != nil {
		s.NeedsRevision = *u.NeedsRevision
	}
	if u.ObstacleDetected != nil {
		s.ObstacleDetected = *u.ObstacleDetected
	}
	if u.ObstacleInfo != nil {
		s.ObstacleInfo = *u.ObstacleInfo
	}

	s.CompletedSubtasks = append(s.CompletedSubtasks, u.CompletedSubtasks...)
	s.SubtaskResults = append(s.SubtaskResults, u.SubtaskResults...)
	s.PlanRevisions = append(s.PlanRevisions, u.PlanRevisions...)
	s.ReflectionHistory = append(s.ReflectionHistory, u.ReflectionHistory...)

	if s.RevisionCount != len(s.PlanRevisions) {
		return fmt.Errorf("revision count %d does not match %d recorded revisions", s.RevisionCount, len(s.PlanRevisions))
	}
	return nil
}

// PlanExhausted reports whether every subtask in the current plan has been
// attempted.
func (s *State) PlanExhausted() bool {
	return s.CurrentSubtaskIndex >= len(s.FullPlan)
}

// RemainingPlan returns the unexecuted tail of the plan.
func (s *State) RemainingPlan() []string {
	if len(s.CompletedSubtasks) >= len(s.FullPlan) {
		return nil
	}
	return cloneStrings(s.FullPlan[len(s.CompletedSubtasks):])
}

// LastAssessment returns the most recent reflection verdict, or "" when no
// reflection has run.
func (s *State) LastAssessment() protocol.Verdict {
	if len(s.ReflectionHistory) == 0 {
		return ""
	}
	return s.ReflectionHistory[len(s.ReflectionHistory)-1].Assessment
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func ptr[T any](v T) *T { return &v }
