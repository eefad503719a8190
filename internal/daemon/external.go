package daemon

import (
	"fmt"

	"rockerboo/yac-bridge/internal/dispatch"
	"rockerboo/yac-bridge/internal/wire"
)

// ExternalRequests returns the send side of the hand-off channel the MCP
// tool surface (spec.md §4.10) uses to reach the event loop. Its own
// goroutine is the only writer; the event loop is the only reader.
func (d *Daemon) ExternalRequests() chan<- wire.ExternalRequest { return d.external }

// drainExternal folds any MCP tool-call requests into outbound LSP
// requests, the same non-blocking per-iteration drain pattern as
// drainFileChanges.
func (d *Daemon) drainExternal() {
	for {
		select {
		case req := <-d.external:
			d.handleExternalRequest(req)
		default:
			return
		}
	}
}

// externalMethods maps the MCP tool surface's five supported methods to
// the request each issues, per spec.md §6.5/§4.10: the same wire methods
// the editor protocol uses, so dispatch.RouteResult needs no new cases.
var externalMethods = map[string]string{
	"hover":            "textDocument/hover",
	"goto_definition":  "textDocument/definition",
	"references":       "textDocument/references",
	"completion":       "textDocument/completion",
	"document_symbols": "textDocument/documentSymbol",
}

func (d *Daemon) handleExternalRequest(req wire.ExternalRequest) {
	lspMethod, ok := externalMethods[req.Method]
	if !ok {
		req.Reply <- wire.ExternalReply{Err: fmt.Errorf("mcpsurface: unknown tool method %q", req.Method)}
		return
	}

	ensured, err := d.ensureClient(req.File)
	if err != nil {
		req.Reply <- wire.ExternalReply{Err: err}
		return
	}
	if !ensured.client.Initialized {
		req.Reply <- wire.ExternalReply{Err: fmt.Errorf("daemon: LSP still initializing for %s", req.File)}
		return
	}

	uri := dispatch.FileToURI(req.File)
	pos := dispatch.PositionParams{File: req.File, Line: req.Line, Column: req.Column}

	var params any
	switch lspMethod {
	case "textDocument/hover", "textDocument/definition", "textDocument/completion":
		params = dispatch.BuildTextDocumentPositionParams(pos, uri)
	case "textDocument/references":
		params = dispatch.BuildReferenceParams(pos, uri)
	case "textDocument/documentSymbol":
		params = dispatch.BuildDocumentParams(uri)
	}

	reqID, err := ensured.client.SendRequest(lspMethod, params)
	if err != nil {
		req.Reply <- wire.ExternalReply{Err: err}
		return
	}

	d.pending.PutLsp(wire.LspKey(ensured.key, reqID), wire.PendingLspRequest{
		Method:        lspMethod,
		File:          req.File,
		SSHHost:       ensured.sshHost,
		ExternalReply: req.Reply,
	})
}
