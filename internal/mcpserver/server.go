// SPDX-License-Identifier: MPL-2.0

package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/invowk/scriptrun/internal/scripts"
)

const (
	// ServerName is the implementation name reported during initialization.
	ServerName = "scriptrun"

	// ToolListScripts lists the named scripts.
	ToolListScripts = "list_scripts"
	// ToolRunScript runs a named script with JSON arguments.
	ToolRunScript   = "run_script"
	// ToolRunInline persists and runs submitted code.
	ToolRunInline   = "run_inline_code"
)

type (
	// Scripts is the part of scripts.Runner the tools call.
	Scripts interface {
		ListScripts() ([]scripts.Info, error)
		RunScript(ctx context.Context, name, argsJSON string, timeout time.Duration) scripts.Result
		RunInline(ctx context.Context, code, argsJSON string, timeout time.Duration, key string) scripts.Result
	}

	// RunScriptInput is the argument object of the run_script tool.
	RunScriptInput struct {
		ScriptName     string `json:"script_name" jsonschema:"name of the script in the script folder, without the .py extension"`
		ArgsJSON       string `json:"args_json,omitempty" jsonschema:"JSON object passed to run(input); defaults to {}"`
		TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"time limit in seconds; 0 uses the configured default"`
	}

	// RunInlineInput is the argument object of the run_inline_code tool.
	RunInlineInput struct {
		Code           string `json:"code" jsonschema:"Python source defining run(input)"`
		ArgsJSON       string `json:"args_json,omitempty" jsonschema:"JSON object passed to run(input); defaults to {}"`
		TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"time limit in seconds; 0 uses the configured default"`
		CodeKey        string `json:"code_key,omitempty" jsonschema:"stable name for the persisted file; defaults to the code hash"`
	}

	// Option configures New.
	Option func(*config)

	config struct {
		version string
		logger  *log.Logger
	}
)

// WithVersion sets the version reported to clients.
func WithVersion(v string) Option {
	return func(c *config) { c.version = v }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New builds an MCP server with the script tools registered.
func New(runner Scripts, opts ...Option) *mcp.Server {
	cfg := config{version: "dev"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.New(io.Discard)
	}
	h := &handlers{runner: runner, logger: cfg.logger}

	s := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: cfg.version}, nil)
	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolListScripts,
		Description: "List the named Python scripts available to run_script, with their metadata.",
	}, h.listScripts)
	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolRunScript,
		Description: "Run a named Python script's run(input) and return its JSON result or {\"error\": message}.",
	}, h.runScript)
	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolRunInline,
		Description: "Validate, persist and run inline Python code defining run(input). Returns its JSON result or {\"error\": message}.",
	}, h.runInline)
	return s
}

// Serve runs the server over stdin/stdout until ctx is done or the client
// disconnects.
func Serve(ctx context.Context, runner Scripts, opts ...Option) error {
	return New(runner, opts...).Run(ctx, &mcp.StdioTransport{})
}

type handlers struct {
	runner Scripts
	logger *log.Logger
}

func (h *handlers) listScripts(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	list, err := h.runner.ListScripts()
	if err != nil {
		return envelope(scripts.Result{Err: err}), nil, nil
	}
	if list == nil {
		list = []scripts.Info{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return envelope(scripts.Result{Err: err}), nil, nil
	}
	return envelope(scripts.Result{Output: data}), nil, nil
}

func (h *handlers) runScript(ctx context.Context, _ *mcp.CallToolRequest, in RunScriptInput) (*mcp.CallToolResult, any, error) {
	res := h.runner.RunScript(ctx, in.ScriptName, in.ArgsJSON, seconds(in.TimeoutSeconds))
	h.log(ToolRunScript, res)
	return envelope(res), nil, nil
}

func (h *handlers) runInline(ctx context.Context, _ *mcp.CallToolRequest, in RunInlineInput) (*mcp.CallToolResult, any, error) {
	res := h.runner.RunInline(ctx, in.Code, in.ArgsJSON, seconds(in.TimeoutSeconds), in.CodeKey)
	h.log(ToolRunInline, res)
	return envelope(res), nil, nil
}

func (h *handlers) log(tool string, res scripts.Result) {
	if res.Failed() {
		h.logger.Info("tool call failed", "tool", tool, "exec", res.ExecutionID, "kind", scripts.KindOf(res.Err), "err", res.Err)
		return
	}
	h.logger.Debug("tool call succeeded", "tool", tool, "exec", res.ExecutionID)
}

// envelope returns the JSON envelope as text content. Failures stay inside
// the envelope; IsError is never set.
func envelope(res scripts.Result) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: res.String()}},
	}
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
