package workflow

import (
	"testing"

	"github.com/scribeworks/scribe/internal/protocol"
)

func TestEvaluateCondition(t *testing.T) {
	st := &State{
		FullPlan:          []string{"a", "b"},
		NeedsRevision:     true,
		ReflectionHistory: []ReflectionRecord{{Iteration: 1, Assessment: protocol.VerdictSatisfactory}},
	}

	tests := []struct {
		cond string
		want bool
	}{
		{"", true},
		{"needs_revision=true", true},
		{"needs_revision=false", false},
		{"needs_revision", true},
		{"execution_complete", false},
		{"execution_complete=false", true},
		{"plan_exhausted=true", false},
		{"satisfied=true", true},
		{"reflection_cycles=1", true},
		{"revision_count=0", true},
		{"needs_revision=true && plan_exhausted=false", true},
		{"needs_revision=true && execution_complete=true", false},
		{"needs_revision != false", true},
		{"unknown_key", false},
		{"unknown_key=", true},
	}

	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			got, err := EvaluateCondition(tt.cond, st)
			if err != nil {
				t.Fatalf("EvaluateCondition(%q) error = %v", tt.cond, err)
			}
			if got != tt.want {
				t.Errorf("EvaluateCondition(%q) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionPlanExhausted(t *testing.T) {
	st := &State{FullPlan: []string{"a"}, CurrentSubtaskIndex: 1}
	got, err := EvaluateCondition("plan_exhausted=true", st)
	if err != nil || !got {
		t.Errorf("plan_exhausted = %v (err %v), want true", got, err)
	}
}
