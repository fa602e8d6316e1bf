package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scribeworks/scribe/internal/protocol"
)

// EvaluateCondition evaluates the minimal AND-only condition language used on
// graph edges.
//
// Grammar:
//
//	ConditionExpr ::= Clause ( '&&' Clause )*
//	Clause        ::= Key Operator Literal | Key
//	Operator      ::= '=' | '!='
//
// Keys resolve against workflow state; missing keys resolve to the empty
// string. Comparisons are exact string comparisons. An empty condition is
// always true.
func EvaluateCondition(condition string, st *State) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}
	for _, clause := range strings.Split(condition, "&&") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		ok, err := evalClause(clause, st)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalClause(clause string, st *State) (bool, error) {
	if strings.Contains(clause, "!=") {
		parts := strings.SplitN(clause, "!=", 2)
		if len(parts) != 2 {
			return false, fmt.Errorf("invalid clause: %q", clause)
		}
		return resolveKey(strings.TrimSpace(parts[0]), st) != strings.TrimSpace(parts[1]), nil
	}
	if strings.Contains(clause, "=") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return false, fmt.Errorf("invalid clause: %q", clause)
		}
		return resolveKey(strings.TrimSpace(parts[0]), st) == strings.TrimSpace(parts[1]), nil
	}
	// Bare key: truthy if non-empty and not "false"/"0".
	got := resolveKey(clause, st)
	switch strings.ToLower(got) {
	case "", "false", "0", "no":
		return false, nil
	default:
		return true, nil
	}
}

func resolveKey(key string, st *State) string {
	if st == nil {
		return ""
	}
	switch key {
	case "needs_revision":
		return strconv.FormatBool(st.NeedsRevision)
	case "obstacle_detected":
		return strconv.FormatBool(st.ObstacleDetected)
	case "execution_complete":
		return strconv.FormatBool(st.ExecutionComplete)
	case "plan_exhausted":
		return strconv.FormatBool(st.PlanExhausted())
	case "satisfied":
		return strconv.FormatBool(st.LastAssessment() == protocol.VerdictSatisfactory)
	case "revision_count":
		return strconv.Itoa(st.RevisionCount)
	case "reflection_cycles":
		return strconv.Itoa(len(st.ReflectionHistory))
	default:
		return ""
	}
}
