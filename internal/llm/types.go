package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
)

// ToolCallData is a single tool invocation requested by the model.
// Arguments is the raw JSON object the model produced; callers decode it.
type ToolCallData struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

type ToolResultData struct {
	ToolCallID string
	Name       string
	Content    string
	IsError    bool
}

type ContentPart struct {
	Kind       ContentKind
	Text       string
	ToolCall   *ToolCallData
	ToolResult *ToolResultData
}

type Message struct {
	Role    Role
	Content []ContentPart
}

func textMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentPart{{Kind: ContentText, Text: text}}}
}

func System(text string) Message    { return textMessage(RoleSystem, text) }
func User(text string) Message      { return textMessage(RoleUser, text) }
func Assistant(text string) Message { return textMessage(RoleAssistant, text) }

// ToolResultNamed builds a tool-role message carrying one tool result.
func ToolResultNamed(callID, name, content string, isError bool) Message {
	return Message{Role: RoleTool, Content: []ContentPart{{
		Kind: ContentToolResult,
		ToolResult: &ToolResultData{
			ToolCallID: callID,
			Name:       name,
			Content:    content,
			IsError:    isError,
		},
	}}}
}

// Text joins the message's text parts with blank lines.
func (m Message) Text() string {
	var parts []string
	for _, p := range m.Content {
		if p.Kind == ContentText && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is a JSON Schema object describing the tool's arguments.
	Parameters map[string]any
}

var toolNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

func ValidateToolName(name string) error {
	if !toolNameRe.MatchString(name) {
		return fmt.Errorf("invalid tool name: %q", name)
	}
	return nil
}

type Request struct {
	Provider string
	Model    string
	Messages []Message
	Tools    []ToolDefinition

	// MaxTokens is the response token budget. Nil means the adapter default.
	MaxTokens     *int
	Temperature   *float64
	StopSequences []string
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return &ConfigurationError{Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &ConfigurationError{Message: "at least one message is required"}
	}
	return nil
}

// FinishReason is the normalized stop condition of a response.
// Reason is one of: stop, length, tool_calls, content_filter, unknown.
type FinishReason struct {
	Reason string
	Raw    string
}

func NormalizeFinishReason(provider, raw string) FinishReason {
	fr := FinishReason{Reason: "unknown", Raw: raw}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "end_turn", "stop", "stop_sequence":
		fr.Reason = "stop"
	case "max_tokens", "length":
		fr.Reason = "length"
	case "tool_use", "tool_calls":
		fr.Reason = "tool_calls"
	case "content_filter", "refusal":
		fr.Reason = "content_filter"
	}
	_ = provider
	return fr
}

// Truncated reports whether the response stopped because the token budget ran out.
func (f FinishReason) Truncated() bool { return f.Reason == "length" }

type Usage struct {
	InputTokens  int
	OutputTokens int
}

type Response struct {
	Provider string
	Model    string
	Message  Message
	Finish   FinishReason
	Usage    Usage
}

func (r Response) Text() string { return r.Message.Text() }

func (r Response) ToolCalls() []ToolCallData {
	var calls []ToolCallData
	for _, p := range r.Message.Content {
		if p.Kind == ContentToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}
