// Package mcpsurface exposes the daemon's dispatch transforms as MCP
// tools over stdio, per spec.md §4.10/§6.5: a second, read-mostly
// interface an AI coding agent can speak instead of the editor's Unix
// socket protocol, sharing the same LSP registry and pending-request
// bookkeeping as the primary interface. It never touches event-loop-owned
// state directly — every call hands off through a wire.ExternalRequest
// and blocks on its reply channel, the way spec.md §5 requires of
// auxiliary goroutines.
package mcpsurface

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"rockerboo/yac-bridge/internal/wire"
)

// requestTimeout bounds how long a tool call waits for the event loop to
// resolve an LSP response, so a wedged server can't hang an MCP client
// forever.
const requestTimeout = 30 * time.Second

// Surface owns the MCP server and the channel it submits work through.
type Surface struct {
	log    *logrus.Entry
	mcp    *server.MCPServer
	submit chan<- wire.ExternalRequest
}

// New builds the MCP server and registers its five tools, per spec.md
// §6.5. submit is the daemon's ExternalRequests() channel.
func New(log *logrus.Entry, submit chan<- wire.ExternalRequest) *Surface {
	s := &Surface{
		log:    log,
		mcp:    server.NewMCPServer("yac-bridge", "0.1.0"),
		submit: submit,
	}

	s.mcp.AddTool(mcp.NewTool("lsp_hover",
		mcp.WithDescription("Hover information for a source position"),
		mcp.WithString("file", mcp.Required(), mcp.Description("absolute file path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("zero-based line number")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("zero-based column number")),
	), s.handlePosition("hover"))

	s.mcp.AddTool(mcp.NewTool("lsp_goto_definition",
		mcp.WithDescription("Jump to the definition of the symbol at a source position"),
		mcp.WithString("file", mcp.Required(), mcp.Description("absolute file path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("zero-based line number")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("zero-based column number")),
	), s.handlePosition("goto_definition"))

	s.mcp.AddTool(mcp.NewTool("lsp_references",
		mcp.WithDescription("Find references to the symbol at a source position"),
		mcp.WithString("file", mcp.Required(), mcp.Description("absolute file path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("zero-based line number")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("zero-based column number")),
	), s.handlePosition("references"))

	s.mcp.AddTool(mcp.NewTool("lsp_completion",
		mcp.WithDescription("Completion candidates at a source position"),
		mcp.WithString("file", mcp.Required(), mcp.Description("absolute file path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("zero-based line number")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("zero-based column number")),
	), s.handlePosition("completion"))

	s.mcp.AddTool(mcp.NewTool("lsp_document_symbols",
		mcp.WithDescription("Outline of symbols declared in a file"),
		mcp.WithString("file", mcp.Required(), mcp.Description("absolute file path")),
	), s.handleDocumentSymbols)

	return s
}

// Serve blocks, speaking MCP over stdio via server.ServeStdio.
func (s *Surface) Serve() error {
	return server.ServeStdio(s.mcp)
}

func (s *Surface) handlePosition(method string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		file, _ := args["file"].(string)
		if file == "" {
			return mcp.NewToolResultError("missing required 'file' argument"), nil
		}
		line := numericArg(args, "line")
		column := numericArg(args, "column")

		return s.call(ctx, wire.ExternalRequest{Method: method, File: file, Line: line, Column: column})
	}
}

func (s *Surface) handleDocumentSymbols(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	file, _ := args["file"].(string)
	if file == "" {
		return mcp.NewToolResultError("missing required 'file' argument"), nil
	}
	return s.call(ctx, wire.ExternalRequest{Method: "document_symbols", File: file})
}

// call submits req to the event loop and waits for its reply, bounding
// the wait by both the caller's context and requestTimeout.
func (s *Surface) call(ctx context.Context, req wire.ExternalRequest) (*mcp.CallToolResult, error) {
	reply := make(chan wire.ExternalReply, 1)
	req.Reply = reply

	select {
	case s.submit <- req:
	case <-ctx.Done():
		return mcp.NewToolResultError("request cancelled before submission"), nil
	case <-time.After(requestTimeout):
		return mcp.NewToolResultError("daemon did not accept request in time"), nil
	}

	select {
	case res := <-reply:
		if res.Err != nil {
			return mcp.NewToolResultError(res.Err.Error()), nil
		}
		body, err := json.Marshal(res.Value)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	case <-ctx.Done():
		return mcp.NewToolResultError("request cancelled"), nil
	case <-time.After(requestTimeout):
		return mcp.NewToolResultError("timed out waiting for LSP response"), nil
	}
}

func numericArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
