package obstacle

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		tools    []string
		wantHit  bool
		wantKind Kind
	}{
		{
			name:     "tool failure",
			output:   "The web search failed with a timeout.",
			wantHit:  true,
			wantKind: KindToolFailure,
		},
		{
			name:     "insufficient info",
			output:   "There is not enough information available on this topic.",
			wantHit:  true,
			wantKind: KindInsufficientInfo,
		},
		{
			name:     "contradictory info",
			output:   "This source conflicts with the earlier benchmark numbers.",
			wantHit:  true,
			wantKind: KindContradictoryInfo,
		},
		{
			name:     "approach issue",
			output:   "A better approach would be to benchmark locally.",
			wantHit:  true,
			wantKind: KindApproachIssue,
		},
		{
			name:     "priority order picks earliest kind",
			output:   "The lookup failed and there is not enough information to continue.",
			wantHit:  true,
			wantKind: KindToolFailure,
		},
		{
			name:    "clean output",
			output:  "Research complete. SUBTASK COMPLETE.",
			wantHit: false,
		},
		{
			name:    "case insensitive matching",
			output:  "The request TIMEOUT was unexpected.",
			wantHit: true, wantKind: KindToolFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.output, tt.tools)
			if got.Detected != tt.wantHit {
				t.Fatalf("Detected = %v, want %v", got.Detected, tt.wantHit)
			}
			if got.Detected && got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
		})
	}
}

func TestDetectToolErrorCorroboration(t *testing.T) {
	out := Detect("The step failed midway.", []string{
		"RESULT 1: fine",
		"search error: connection refused",
	})
	if !out.Detected || out.Kind != KindToolFailure {
		t.Fatalf("expected tool_failure, got %+v", out)
	}
	if !strings.Contains(out.Description, "Tool errors:") {
		t.Errorf("description missing corroborating tool errors: %q", out.Description)
	}
	if !strings.Contains(out.Description, "connection refused") {
		t.Errorf("description missing failing tool result: %q", out.Description)
	}
	if strings.Contains(out.Description, "RESULT 1: fine") {
		t.Errorf("clean tool result leaked into description: %q", out.Description)
	}
}

func TestDetectDescriptionPrefixBounded(t *testing.T) {
	long := strings.Repeat("error ", 100)
	out := Detect(long, nil)
	if !out.Detected {
		t.Fatal("expected detection")
	}
	// Kind tag, the 200-char excerpt, and the ellipsis marker.
	if len(out.Description) > 300 {
		t.Errorf("description too long: %d chars", len(out.Description))
	}
	if !strings.Contains(out.Description, "...") {
		t.Errorf("long output not marked as truncated: %q", out.Description)
	}
}

func TestDetectDescriptionKeepsRunesIntact(t *testing.T) {
	long := "The lookup failed. " + strings.Repeat("日本語", 100)
	out := Detect(long, nil)
	if !out.Detected {
		t.Fatal("expected detection")
	}
	if !utf8.ValidString(out.Description) {
		t.Errorf("truncation split a multibyte rune: %q", out.Description)
	}
	if !strings.Contains(out.Description, "日本語") {
		t.Errorf("multibyte excerpt missing: %q", out.Description)
	}
}
