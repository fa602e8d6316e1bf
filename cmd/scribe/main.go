package main

import (
	"context"
	"fmt"
	"os"

	"github.com/scribeworks/scribe/internal/artifact"
	"github.com/scribeworks/scribe/internal/gateway"
	"github.com/scribeworks/scribe/internal/llm"
	"github.com/scribeworks/scribe/internal/llm/providers/anthropic"
	"github.com/scribeworks/scribe/internal/tools"
	"github.com/scribeworks/scribe/internal/workflow"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  scribe run --topic <text> [--config <run.yaml>] [--run-id <id>] [--logs-root <dir>] [--output-dir <dir>]")
}

func run(args []string) {
	var topic string
	var configPath string
	var runID string
	var logsRoot string
	var outputDir string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--topic":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--topic requires a value")
				os.Exit(1)
			}
			topic = args[i]
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			configPath = args[i]
		case "--run-id":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--run-id requires a value")
				os.Exit(1)
			}
			runID = args[i]
		case "--logs-root":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--logs-root requires a value")
				os.Exit(1)
			}
			logsRoot = args[i]
		case "--output-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--output-dir requires a value")
				os.Exit(1)
			}
			outputDir = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}

	if topic == "" {
		fmt.Fprintln(os.Stderr, "--topic is required")
		usage()
		os.Exit(1)
	}

	cfg := workflow.DefaultConfig()
	if configPath != "" {
		loaded, err := workflow.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if logsRoot != "" {
		cfg.LogsRoot = logsRoot
	}

	apiKey := os.Getenv(cfg.Provider.APIKeyEnv)
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "scribe: %s is not set\n", cfg.Provider.APIKeyEnv)
		os.Exit(1)
	}

	adapter := anthropic.New(apiKey, cfg.Provider.BaseURL)
	client := llm.NewClient()
	client.Register(adapter)
	client.SetDefaultProvider(adapter.Name())

	gw := gateway.New(client, cfg.Provider.Model)
	gw.MaxAttempts = cfg.Limits.GatewayAttempts
	gw.Backoff = gateway.BackoffConfig{
		InitialDelayMS: cfg.Retry.InitialDelayMS,
		BackoffFactor:  cfg.Retry.BackoffFactor,
		MaxDelayMS:     cfg.Retry.MaxDelayMS,
		Jitter:         cfg.Retry.Jitter,
	}

	drafts := artifact.NewStore(cfg.Output.Dir, cfg.Output.ManifestExcludeGlobs)

	registry := tools.NewRegistry()
	deps := tools.Deps{Drafts: drafts}
	if searchKey := os.Getenv(cfg.Search.APIKeyEnv); searchKey != "" {
		sc := tools.NewSearchClient(cfg.Search.BaseURL, searchKey)
		if cfg.Search.Depth != "" {
			sc.Depth = cfg.Search.Depth
		}
		deps.Search = sc
	}
	if err := tools.RegisterCoreTools(registry, deps); err != nil {
		fmt.Fprintf(os.Stderr, "scribe: registering tools: %v\n", err)
		os.Exit(1)
	}

	engine := workflow.NewEngine(workflow.DefaultGraph(), gw, registry, drafts, cfg)
	if runID != "" {
		engine.RunID = runID
	}
	engine.LogsRoot = cfg.LogsRoot

	res, err := engine.Run(context.Background(), topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: run %s failed: %v\n", engine.RunID, err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "run %s %s\n", res.RunID, res.Status)
	workflow.WriteSummary(os.Stderr, res)
	if res.DraftPath != "" {
		fmt.Fprintf(os.Stderr, "Draft saved to: %s\n", res.DraftPath)
	}
}
