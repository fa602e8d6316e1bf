package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/scribeworks/scribe/internal/llm"
)

type scriptedAdapter struct {
	name  string
	steps []func(req llm.Request) (llm.Response, error)
	calls []llm.Request
}

func (a *scriptedAdapter) Name() string {
	if a.name == "" {
		return "scripted"
	}
	return a.name
}

func (a *scriptedAdapter) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	i := len(a.calls)
	a.calls = append(a.calls, req)
	if i >= len(a.steps) {
		return llm.Response{}, fmt.Errorf("unexpected call %d", i)
	}
	return a.steps[i](req)
}

func newTestGateway(steps ...func(req llm.Request) (llm.Response, error)) (*Gateway, *scriptedAdapter) {
	adapter := &scriptedAdapter{steps: steps}
	client := llm.NewClient()
	client.Register(adapter)
	gw := New(client, "test-model")
	gw.Sleep = func(time.Duration) {}
	return gw, adapter
}

func textResponse(text, stopReason string) llm.Response {
	return llm.Response{
		Message: llm.Assistant(text),
		Finish:  llm.NormalizeFinishReason("anthropic", stopReason),
	}
}

func truncatedEmptyResponse() llm.Response {
	return llm.Response{
		Message: llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentPart{{Kind: llm.ContentText, Text: ""}}},
		Finish:  llm.NormalizeFinishReason("anthropic", "max_tokens"),
	}
}

func TestCallReturnsTextFirstTry(t *testing.T) {
	gw, adapter := newTestGateway(func(req llm.Request) (llm.Response, error) {
		return textResponse("hello", "end_turn"), nil
	})

	text, _, err := gw.Call(context.Background(), llm.Request{
		Messages:  []llm.Message{llm.User("hi")},
		MaxTokens: intPtr(100),
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if text != "hello" {
		t.Errorf("text = %q, want %q", text, "hello")
	}
	if len(adapter.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(adapter.calls))
	}
}

func TestCallDoublesBudgetOnTruncatedEmptyReply(t *testing.T) {
	gw, adapter := newTestGateway(
		func(req llm.Request) (llm.Response, error) {
			return truncatedEmptyResponse(), nil
		},
		func(req llm.Request) (llm.Response, error) {
			return textResponse("full reply", "end_turn"), nil
		},
	)

	text, _, err := gw.Call(context.Background(), llm.Request{
		Messages:  []llm.Message{llm.User("go")},
		MaxTokens: intPtr(1024),
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if text != "full reply" {
		t.Errorf("text = %q", text)
	}
	if len(adapter.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(adapter.calls))
	}
	if got := *adapter.calls[0].MaxTokens; got != 1024 {
		t.Errorf("first budget = %d, want 1024", got)
	}
	if got := *adapter.calls[1].MaxTokens; got != 2048 {
		t.Errorf("second budget = %d, want 2048", got)
	}
}

func TestCallRetriesTransportErrors(t *testing.T) {
	gw, adapter := newTestGateway(
		func(req llm.Request) (llm.Response, error) {
			return llm.Response{}, &llm.TransportError{Prov: "anthropic", Err: errors.New("connection reset")}
		},
		func(req llm.Request) (llm.Response, error) {
			return textResponse("recovered", "end_turn"), nil
		},
	)

	text, _, err := gw.Call(context.Background(), llm.Request{
		Messages:  []llm.Message{llm.User("go")},
		MaxTokens: intPtr(256),
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if text != "recovered" {
		t.Errorf("text = %q", text)
	}
	if len(adapter.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(adapter.calls))
	}
}

func TestCallExhaustsAfterThreeAttempts(t *testing.T) {
	fail := func(req llm.Request) (llm.Response, error) {
		return truncatedEmptyResponse(), nil
	}
	gw, adapter := newTestGateway(fail, fail, fail)

	_, _, err := gw.Call(context.Background(), llm.Request{
		Messages:  []llm.Message{llm.User("go")},
		MaxTokens: intPtr(512),
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if len(adapter.calls) != 3 {
		t.Errorf("calls = %d, want 3", len(adapter.calls))
	}
	if got := *adapter.calls[2].MaxTokens; got != 2048 {
		t.Errorf("final budget = %d, want 2048", got)
	}
}

func TestCallDoesNotRetryNonRetryableErrors(t *testing.T) {
	gw, adapter := newTestGateway(func(req llm.Request) (llm.Response, error) {
		return llm.Response{}, llm.ErrorFromHTTPStatus("anthropic", 401, "bad key", nil)
	})

	_, _, err := gw.Call(context.Background(), llm.Request{
		Messages:  []llm.Message{llm.User("go")},
		MaxTokens: intPtr(256),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrExhausted) {
		t.Errorf("auth failure should not be reported as exhaustion: %v", err)
	}
	if len(adapter.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(adapter.calls))
	}
}

func TestCallToolOnlyReplyIsLegitimatelyEmpty(t *testing.T) {
	gw, adapter := newTestGateway(func(req llm.Request) (llm.Response, error) {
		return llm.Response{
			Message: llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentPart{{
				Kind: llm.ContentToolCall,
				ToolCall: &llm.ToolCallData{
					ID:        "call_1",
					Name:      "web_search",
					Arguments: json.RawMessage(`{"query":"go"}`),
				},
			}}},
			Finish: llm.NormalizeFinishReason("anthropic", "tool_use"),
		}, nil
	})

	text, resp, err := gw.Call(context.Background(), llm.Request{
		Messages:  []llm.Message{llm.User("go")},
		MaxTokens: intPtr(256),
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
	if len(resp.ToolCalls()) != 1 {
		t.Errorf("tool calls = %d, want 1", len(resp.ToolCalls()))
	}
	if len(adapter.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(adapter.calls))
	}
}

func TestCallNotifiesRetries(t *testing.T) {
	gw, _ := newTestGateway(
		func(req llm.Request) (llm.Response, error) {
			return truncatedEmptyResponse(), nil
		},
		func(req llm.Request) (llm.Response, error) {
			return textResponse("ok", "end_turn"), nil
		},
	)
	var reasons []string
	gw.OnRetry = func(attempt int, reason string) {
		reasons = append(reasons, reason)
	}

	if _, _, err := gw.Call(context.Background(), llm.Request{
		Messages:  []llm.Message{llm.User("go")},
		MaxTokens: intPtr(64),
	}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(reasons) != 1 || reasons[0] != "truncated reply" {
		t.Errorf("retry reasons = %v", reasons)
	}
}

func TestDelayForAttemptDeterministic(t *testing.T) {
	cfg := BackoffConfig{InitialDelayMS: 200, BackoffFactor: 2.0, MaxDelayMS: 60_000, Jitter: true}
	a := DelayForAttempt(2, cfg, "model:2")
	b := DelayForAttempt(2, cfg, "model:2")
	if a != b {
		t.Errorf("jittered delay not deterministic: %v vs %v", a, b)
	}
	if a <= 0 {
		t.Errorf("delay = %v, want positive", a)
	}
}

func intPtr(v int) *int { return &v }
