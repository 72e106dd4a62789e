package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/rubybox/internal/catalog"
	"github.com/michaelbrown/rubybox/internal/config"
	"github.com/michaelbrown/rubybox/internal/logger"
	"github.com/michaelbrown/rubybox/internal/runner"
)

const maxToolOutput = 4000

type rubyService interface {
	Execute(ctx context.Context, code, version string) runner.Result
	AvailableVersions(ctx context.Context) (catalog.Snapshot, error)
}

type tools struct {
	svc rubyService
}

func main() {
	svc, closeFn, err := newService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ruby-runner: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	s := server.NewMCPServer("rubybox-ruby-runner", "0.1.0")
	t := &tools{svc: svc}

	s.AddTool(mcp.Tool{
		Name:        "ruby_run",
		Description: "Execute Ruby code in a throwaway Docker container with a chosen Ruby version. Use ruby_versions to see which versions can run.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Ruby source code to execute",
				},
				"version": map[string]any{
					"type":        "string",
					"description": "Ruby version, e.g. 3.3.0",
				},
			},
			Required: []string{"code", "version"},
		},
	}, t.handleRun)

	s.AddTool(mcp.Tool{
		Name:        "ruby_versions",
		Description: "List Ruby versions whose image is present and can run now, highest first.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, t.handleVersions)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	}
}

func newService() (*runner.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	// stdout carries the protocol; the logger writes to stderr.
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	rt, err := runner.NewRuntime(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return rt.Service, func() {
		rt.Close()
		log.Sync()
	}, nil
}

func (t *tools) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	code, _ := args["code"].(string)
	version, _ := args["version"].(string)

	res := t.svc.Execute(ctx, code, version)
	if !res.Success {
		text := "error: " + res.Error
		if res.Hint != "" {
			text += "\nhint: " + res.Hint
		}
		return errResult(text), nil
	}

	text := res.Output
	if len(text) > maxToolOutput {
		text = strings.ToValidUTF8(text[:maxToolOutput], "") + "\n... (output truncated)"
	}
	text += fmt.Sprintf("\n(ruby %s, %s)", res.Version, res.ExecutionTime)

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}, nil
}

func (t *tools) handleVersions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := t.svc.AvailableVersions(ctx)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(data)}},
	}, nil
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
