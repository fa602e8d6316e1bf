package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scribeworks/scribe/internal/artifact"
	"github.com/scribeworks/scribe/internal/llm"
)

func echoTool(name string) RegisteredTool {
	return RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        name,
			Description: "echoes its input",
			Parameters: map[string]any{
				"type":     "object",
				"required": []any{"text"},
				"properties": map[string]any{
					"text": map[string]any{"type": "string"},
				},
			},
		},
		Exec: func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	}
}

func TestExecuteCall(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := reg.ExecuteCall(context.Background(), llm.ToolCallData{
		ID:        "call_1",
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hello"}`),
	})
	if res.IsError {
		t.Fatalf("unexpected error result: %q", res.Output)
	}
	if res.Output != "hello" {
		t.Errorf("output = %q", res.Output)
	}
	if res.CallID != "call_1" || res.ToolName != "echo" {
		t.Errorf("identity = %s/%s", res.ToolName, res.CallID)
	}
}

func TestExecuteCallUnknownTool(t *testing.T) {
	reg := NewRegistry()
	res := reg.ExecuteCall(context.Background(), llm.ToolCallData{
		ID:        "call_x",
		Name:      "no_such_tool",
		Arguments: json.RawMessage(`{}`),
	})
	if !res.IsError {
		t.Fatal("unknown tool should produce an error result")
	}
	if !strings.Contains(res.Output, "unknown tool") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestExecuteCallSchemaViolation(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := reg.ExecuteCall(context.Background(), llm.ToolCallData{
		ID:        "call_2",
		Name:      "echo",
		Arguments: json.RawMessage(`{"wrong_field": 7}`),
	})
	if !res.IsError {
		t.Fatal("missing required arg should produce an error result")
	}
	if !strings.Contains(res.Output, "schema validation failed") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestExecuteCallInvalidJSON(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	res := reg.ExecuteCall(context.Background(), llm.ToolCallData{
		Name:      "echo",
		Arguments: json.RawMessage(`{not json`),
	})
	if !res.IsError {
		t.Fatal("invalid JSON should produce an error result")
	}
	if res.CallID == "" {
		t.Error("missing call id should be synthesized")
	}
}

func TestExecuteCallTruncatesLongOutput(t *testing.T) {
	reg := NewRegistry()
	tool := echoTool("chatty")
	tool.Limit = OutputLimit{MaxChars: 100, Strategy: TruncHeadTail}
	if err := reg.Register(tool); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	long := strings.Repeat("abcdefghij", 100)
	res := reg.ExecuteCall(context.Background(), llm.ToolCallData{
		ID:        "call_3",
		Name:      "chatty",
		Arguments: json.RawMessage(fmt.Sprintf(`{"text":%q}`, long)),
	})
	if res.IsError {
		t.Fatalf("unexpected error: %q", res.Output)
	}
	if len(res.Output) >= len(long) {
		t.Errorf("output not truncated: %d chars", len(res.Output))
	}
	if res.FullOutput != long {
		t.Error("full output must stay untruncated")
	}
}

func TestRegisterRejectsBadNames(t *testing.T) {
	reg := NewRegistry()
	bad := echoTool("has spaces")
	if err := reg.Register(bad); err == nil {
		t.Error("invalid tool name accepted")
	}
}

func TestCoreToolsFailureIsResultNotPanic(t *testing.T) {
	reg := NewRegistry()
	drafts := artifact.NewStore(filepath.Join(t.TempDir(), "out"), nil)
	// No searcher configured.
	if err := RegisterCoreTools(reg, Deps{Drafts: drafts}); err != nil {
		t.Fatalf("RegisterCoreTools() error = %v", err)
	}

	res := reg.ExecuteCall(context.Background(), llm.ToolCallData{
		ID:        "call_4",
		Name:      "web_search",
		Arguments: json.RawMessage(`{"query":"anything"}`),
	})
	if !res.IsError {
		t.Fatal("unconfigured search should yield an error result")
	}
	if !strings.Contains(res.Output, "error") {
		t.Errorf("output = %q, want status object text", res.Output)
	}
}

func TestCoreSaveDraftWithoutStore(t *testing.T) {
	reg := NewRegistry()
	// No draft store configured.
	if err := RegisterCoreTools(reg, Deps{}); err != nil {
		t.Fatalf("RegisterCoreTools() error = %v", err)
	}

	res := reg.ExecuteCall(context.Background(), llm.ToolCallData{
		ID:        "call_7",
		Name:      "save_draft",
		Arguments: json.RawMessage(`{"content":"# Draft"}`),
	})
	if !res.IsError {
		t.Fatal("unconfigured draft store should yield an error result")
	}
	if !strings.Contains(res.Output, "not configured") {
		t.Errorf("output = %q, want configuration message", res.Output)
	}
}

func TestCoreSaveDraft(t *testing.T) {
	reg := NewRegistry()
	drafts := artifact.NewStore(filepath.Join(t.TempDir(), "out"), nil)
	if err := RegisterCoreTools(reg, Deps{Drafts: drafts}); err != nil {
		t.Fatalf("RegisterCoreTools() error = %v", err)
	}

	res := reg.ExecuteCall(context.Background(), llm.ToolCallData{
		ID:        "call_5",
		Name:      "save_draft",
		Arguments: json.RawMessage(`{"content":"# Draft","filename":"wip"}`),
	})
	if res.IsError {
		t.Fatalf("save failed: %q", res.Output)
	}
	if !strings.Contains(res.Output, "wip.md") {
		t.Errorf("output = %q, want normalized filename", res.Output)
	}

	// Empty content comes back as an error result, not a raised error.
	res = reg.ExecuteCall(context.Background(), llm.ToolCallData{
		ID:        "call_6",
		Name:      "save_draft",
		Arguments: json.RawMessage(`{"content":"   "}`),
	})
	if !res.IsError {
		t.Error("whitespace-only content should yield an error result")
	}
}

func TestSearchClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if body["query"] != "go runtime" {
			t.Errorf("query = %v", body["query"])
		}
		if body["api_key"] != "test-key" {
			t.Errorf("api_key = %v", body["api_key"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"query":  "go runtime",
			"answer": "An answer.",
			"results": []map[string]any{
				{"title": "Runtime docs", "url": "https://example.com", "content": "Details."},
			},
		})
	}))
	defer srv.Close()

	client := NewSearchClient(srv.URL, "test-key")
	res, err := client.Search(context.Background(), "go runtime")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Title != "Runtime docs" {
		t.Errorf("results = %+v", res.Results)
	}

	text := res.FormatText()
	if !strings.Contains(text, "ANSWER: An answer.") || !strings.Contains(text, "RESULT 1: Runtime docs") {
		t.Errorf("formatted = %q", text)
	}
}

func TestSearchClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewSearchClient(srv.URL, "test-key")
	if _, err := client.Search(context.Background(), "anything"); err == nil {
		t.Error("expected error on non-2xx status")
	}
}
