package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scribeworks/scribe/internal/llm"
)

const defaultMaxTokens = 4096

type Adapter struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func New(apiKey, baseURL string) *Adapter {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://api.anthropic.com"
	}
	return &Adapter{
		APIKey:  strings.TrimSpace(apiKey),
		BaseURL: base,
		// Avoid short client-level timeouts; rely on request context deadlines instead.
		Client: &http.Client{Timeout: 0},
	}
}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if a.Client == nil {
		a.Client = &http.Client{Timeout: 0}
	}

	system, messages, err := toWireMessages(req.Messages)
	if err != nil {
		return llm.Response{}, err
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}

	body := map[string]any{
		"model":      req.Model,
		"max_tokens": maxTokens,
		"messages":   messages,
	}
	if strings.TrimSpace(system) != "" {
		body["system"] = system
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if len(req.StopSequences) > 0 {
		body["stop_sequences"] = req.StopSequences
	}
	if len(req.Tools) > 0 {
		body["tools"] = toWireTools(req.Tools)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return llm.Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v1/messages", bytes.NewReader(b))
	if err != nil {
		return llm.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return llm.Response{}, &llm.TransportError{Prov: a.Name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	rawBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ra := llm.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		msg := fmt.Sprintf("messages.create failed: %s", strings.TrimSpace(string(rawBytes)))
		return llm.Response{}, llm.ErrorFromHTTPStatus(a.Name(), resp.StatusCode, msg, ra)
	}

	var raw wireResponse
	if err := json.Unmarshal(rawBytes, &raw); err != nil {
		return llm.Response{}, &llm.TransportError{Prov: a.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	return fromWireResponse(a.Name(), &raw, req.Model), nil
}

// Wire mapping.

// toWireMessages splits system text out of the history and converts the rest
// to the Messages API shape. Tool-role messages become user tool_result blocks.
func toWireMessages(msgs []llm.Message) (string, []map[string]any, error) {
	var systemParts []string
	var out []map[string]any
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			if t := m.Text(); t != "" {
				systemParts = append(systemParts, t)
			}
		case llm.RoleUser:
			out = append(out, map[string]any{"role": "user", "content": m.Text()})
		case llm.RoleAssistant:
			blocks, err := toWireAssistantBlocks(m)
			if err != nil {
				return "", nil, err
			}
			out = append(out, map[string]any{"role": "assistant", "content": blocks})
		case llm.RoleTool:
			var blocks []map[string]any
			for _, p := range m.Content {
				if p.Kind != llm.ContentToolResult || p.ToolResult == nil {
					continue
				}
				blocks = append(blocks, map[string]any{
					"type":        "tool_result",
					"tool_use_id": p.ToolResult.ToolCallID,
					"content":     p.ToolResult.Content,
					"is_error":    p.ToolResult.IsError,
				})
			}
			if len(blocks) == 0 {
				return "", nil, &llm.ConfigurationError{Message: "tool message without tool_result content"}
			}
			out = append(out, map[string]any{"role": "user", "content": blocks})
		default:
			return "", nil, &llm.ConfigurationError{Message: "unsupported message role: " + string(m.Role)}
		}
	}
	return strings.Join(systemParts, "\n\n"), out, nil
}

func toWireAssistantBlocks(m llm.Message) ([]map[string]any, error) {
	var blocks []map[string]any
	for _, p := range m.Content {
		switch p.Kind {
		case llm.ContentText:
			blocks = append(blocks, map[string]any{"type": "text", "text": p.Text})
		case llm.ContentToolCall:
			if p.ToolCall == nil {
				continue
			}
			var input any = map[string]any{}
			if len(p.ToolCall.Arguments) > 0 {
				if err := json.Unmarshal(p.ToolCall.Arguments, &input); err != nil {
					return nil, &llm.ConfigurationError{Message: fmt.Sprintf("tool call %s arguments are not valid JSON", p.ToolCall.Name)}
				}
			}
			blocks = append(blocks, map[string]any{
				"type":  "tool_use",
				"id":    p.ToolCall.ID,
				"name":  p.ToolCall.Name,
				"input": input,
			})
		default:
			return nil, &llm.ConfigurationError{Message: "unsupported assistant content kind: " + string(p.Kind)}
		}
	}
	return blocks, nil
}

func toWireTools(tools []llm.ToolDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, map[string]any{
			"name":         t.Name,
			"description":  t.Description,
			"input_schema": params,
		})
	}
	return out
}

type wireResponse struct {
	ID         string      `json:"id"`
	Model      string      `json:"model"`
	Content    []wireBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      *wireUsage  `json:"usage"`
}

type wireBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func fromWireResponse(provider string, raw *wireResponse, requestedModel string) llm.Response {
	r := llm.Response{
		Provider: provider,
		Model:    raw.Model,
		Message:  llm.Message{Role: llm.RoleAssistant},
	}
	if r.Model == "" {
		r.Model = requestedModel
	}
	for _, blk := range raw.Content {
		switch blk.Type {
		case "text":
			r.Message.Content = append(r.Message.Content, llm.ContentPart{Kind: llm.ContentText, Text: blk.Text})
		case "tool_use":
			args := blk.Input
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			r.Message.Content = append(r.Message.Content, llm.ContentPart{
				Kind: llm.ContentToolCall,
				ToolCall: &llm.ToolCallData{
					ID:        blk.ID,
					Name:      blk.Name,
					Arguments: args,
				},
			})
		}
	}
	r.Finish = llm.NormalizeFinishReason(provider, raw.StopReason)
	if raw.Usage != nil {
		r.Usage = llm.Usage{InputTokens: raw.Usage.InputTokens, OutputTokens: raw.Usage.OutputTokens}
	}
	return r
}
