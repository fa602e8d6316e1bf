package tools

import (
	"context"
	"fmt"

	"github.com/scribeworks/scribe/internal/artifact"
	"github.com/scribeworks/scribe/internal/llm"
)

// Deps carries the external capabilities the core tools close over.
type Deps struct {
	Search Searcher
	Drafts *artifact.Store
}

type statusResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func defWebSearch() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "web_search",
		Description: "Search the web for information on a given topic. Returns relevant articles and snippets.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []any{"query"},
		},
	}
}

func defSaveDraft() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "save_draft",
		Description: "Save content to a markdown file",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "The content to save",
				},
				"filename": map[string]any{
					"type":        "string",
					"description": "Filename to save to (default: draft.md)",
				},
			},
			"required": []any{"content"},
		},
	}
}

// RegisterCoreTools wires web_search and save_draft. Both tools surface
// failures as status objects in the result text so the model can observe and
// react to them.
func RegisterCoreTools(reg *Registry, deps Deps) error {
	if err := reg.Register(RegisteredTool{
		Definition: defWebSearch(),
		Exec: func(ctx context.Context, args map[string]any) (any, error) {
			query := fmt.Sprint(args["query"])
			if deps.Search == nil {
				return statusResult{Status: "error", Message: "search capability is not configured"}, fmt.Errorf("search capability is not configured")
			}
			res, err := deps.Search.Search(ctx, query)
			if err != nil {
				return statusResult{Status: "error", Message: err.Error()}, err
			}
			return res.FormatText(), nil
		},
	}); err != nil {
		return err
	}

	if err := reg.Register(RegisteredTool{
		Definition: defSaveDraft(),
		Exec: func(ctx context.Context, args map[string]any) (any, error) {
			_ = ctx
			if deps.Drafts == nil {
				return statusResult{Status: "error", Message: "draft store is not configured"}, fmt.Errorf("draft store is not configured")
			}
			content := fmt.Sprint(args["content"])
			name := "draft.md"
			if v, ok := args["filename"].(string); ok && v != "" {
				name = v
			}
			saved, err := deps.Drafts.Save(content, name)
			if err != nil {
				return statusResult{Status: "error", Message: err.Error()}, err
			}
			return statusResult{Status: "success", Message: fmt.Sprintf("Saved to %s", saved.Name)}, nil
		},
	}); err != nil {
		return err
	}

	return nil
}
