package daemon

import (
	"encoding/json"
	"fmt"

	"golang.org/x/sys/unix"

	"rockerboo/yac-bridge/internal/dispatch"
	"rockerboo/yac-bridge/internal/lsprpc"
	"rockerboo/yac-bridge/internal/lsptypes"
	"rockerboo/yac-bridge/internal/picker"
	"rockerboo/yac-bridge/internal/wire"
)

const readLSPScratchSize = 64 * 1024

// serviceLSP drains one LSP server's stdout and dispatches every complete
// frame, per spec.md §4.6 step 6.
func (d *Daemon) serviceLSP(key string, revents int16) {
	c, ok := d.registry.Lookup(key)
	if !ok {
		return
	}

	if revents&(unix.POLLHUP|unix.POLLERR) != 0 && revents&unix.POLLIN == 0 {
		d.handleLSPCrash(key, c)
		return
	}

	scratch := make([]byte, readLSPScratchSize)
	n, err := c.Stdout.Read(scratch)
	if n == 0 && err != nil {
		d.handleLSPCrash(key, c)
		return
	}
	c.FeedBytes(scratch[:n])

	msgs, err := c.ReadMessages()
	if err != nil {
		d.log.WithError(err).WithField("lsp_key", key).Warn("daemon: LSP framing error, dropping connection")
		d.handleLSPCrash(key, c)
		return
	}

	for _, msg := range msgs {
		switch msg.Kind {
		case lsprpc.KindResponse:
			d.handleLSPResponse(key, c, msg)
		case lsprpc.KindNotification:
			d.handleLSPNotification(key, c, msg)
		case lsprpc.KindServerRequest:
			d.handleLSPServerRequest(key, c, msg)
		}
	}
}

// handleLSPCrash reads the captured stderr tail, broadcasts a crash toast,
// discards the server's pending requests, and forgets it, per spec.md
// §4.6 step 7.
func (d *Daemon) handleLSPCrash(key string, c *lsprpc.Client) {
	tail := c.StderrTail()
	d.log.WithField("lsp_key", key).WithField("stderr", tail).Warn("daemon: LSP server exited")
	d.pending.RemoveServerLsp(key)
	d.broadcastEx(fmt.Sprintf("LSP server crashed (%s): %s", c.Language, tail))
	d.registry.Remove(key)
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func (d *Daemon) handleLSPResponse(key string, c *lsprpc.Client, msg lsprpc.Message) {
	if msg.ID.IsString {
		return
	}
	id := msg.ID.Num

	if c.IsInitializeResponse(id) {
		d.completeHandshake(key, c, msg)
		return
	}

	req, ok := d.pending.TakeLsp(wire.LspKey(key, id))
	if !ok {
		d.log.WithField("lsp_key", key).WithField("id", id).Debug("daemon: unmatched LSP response, dropping")
		return
	}

	if req.PickerGen != "" {
		d.handlePickerSymbolResponse(req, msg)
		return
	}

	if req.ExternalReply != nil {
		d.handleExternalResponse(req, msg)
		return
	}

	if msg.Err != nil {
		d.reply(req.ClientID, derefInt64(req.VimRequestID), map[string]any{"error": msg.Err.Message})
		return
	}

	if req.Stage == "prepare" {
		d.handlePrepareCallHierarchyResponse(key, c, req, msg)
		return
	}

	result, err := dispatch.RouteResult(req.Method, msg.Result, req.SSHHost)
	if err != nil {
		d.log.WithError(err).WithField("method", req.Method).Warn("daemon: transform failed")
		d.reply(req.ClientID, derefInt64(req.VimRequestID), map[string]any{"error": err.Error()})
		return
	}
	d.reply(req.ClientID, derefInt64(req.VimRequestID), result)
}

// handleExternalResponse resolves an MCP tool-call request's outcome and
// delivers it across the hand-off channel, per spec.md §4.10/§5.
func (d *Daemon) handleExternalResponse(req wire.PendingLspRequest, msg lsprpc.Message) {
	if msg.Err != nil {
		req.ExternalReply <- wire.ExternalReply{Err: fmt.Errorf("lsp: %s", msg.Err.Message)}
		return
	}

	result, err := dispatch.RouteResult(req.Method, msg.Result, req.SSHHost)
	if err != nil {
		req.ExternalReply <- wire.ExternalReply{Err: err}
		return
	}
	req.ExternalReply <- wire.ExternalReply{Value: result}
}

// completeHandshake finishes the initialize/initialized flow, per spec.md
// §4.2: save capabilities, send `initialized`, clear the initializing
// gate, flush deferred requests.
func (d *Daemon) completeHandshake(key string, c *lsprpc.Client, msg lsprpc.Message) {
	if msg.Err != nil {
		d.log.WithField("lsp_key", key).WithField("error", msg.Err.Message).Warn("daemon: initialize request failed")
		d.registry.Remove(key)
		return
	}

	var result struct {
		Capabilities json.RawMessage `json:"capabilities"`
	}
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		d.log.WithError(err).WithField("lsp_key", key).Warn("daemon: malformed initialize result")
	}

	if err := c.CompleteHandshake(result.Capabilities); err != nil {
		d.log.WithError(err).WithField("lsp_key", key).Warn("daemon: failed to complete initialize handshake")
	}

	d.flushDeferredIfIdle()
}

// handlePrepareCallHierarchyResponse picks the first prepareCallHierarchy
// item and issues the incoming/outgoingCalls follow-up, per spec.md §4.4's
// two-step call-hierarchy flow.
func (d *Daemon) handlePrepareCallHierarchyResponse(key string, c *lsprpc.Client, req wire.PendingLspRequest, msg lsprpc.Message) {
	var items []lsptypes.CallHierarchyItem
	if err := json.Unmarshal(msg.Result, &items); err != nil || len(items) == 0 {
		d.reply(req.ClientID, derefInt64(req.VimRequestID), []dispatch.CallHierarchyEntry{})
		return
	}

	method := "callHierarchy/incomingCalls"
	if dispatch.CallHierarchyDirection(req.Direction) == dispatch.CallHierarchyOutgoing {
		method = "callHierarchy/outgoingCalls"
	}

	reqID, err := c.SendRequest(method, map[string]any{"item": items[0]})
	if err != nil {
		d.reply(req.ClientID, derefInt64(req.VimRequestID), map[string]any{"error": err.Error()})
		return
	}

	d.pending.PutLsp(wire.LspKey(key, reqID), wire.PendingLspRequest{
		VimRequestID: req.VimRequestID,
		Method:       method,
		ClientID:     req.ClientID,
		File:         req.File,
		SSHHost:      req.SSHHost,
	})
}

// handlePickerSymbolResponse routes a workspace/document-symbol response
// the picker issued on its own behalf, dropping it if a newer query has
// since superseded it (spec.md §4.5/§5).
func (d *Daemon) handlePickerSymbolResponse(req wire.PendingLspRequest, msg lsprpc.Message) {
	if !d.picker.IsCurrentSymbolRequest(req.PickerGen) {
		d.log.Debug("daemon: dropping superseded symbol response")
		return
	}
	d.picker.EndSymbolRequest()

	if msg.Err != nil {
		d.reply(req.ClientID, derefInt64(req.VimRequestID), map[string]any{"error": msg.Err.Message})
		return
	}

	var entries []dispatch.PickerSymbolEntry
	var err error
	mode := "document_symbol"
	if req.Method == "workspace/symbol" {
		mode = "workspace_symbol"
		entries, err = dispatch.TransformWorkspaceSymbols(msg.Result, req.SSHHost)
		if err == nil && len(entries) > picker.MaxResults {
			entries = entries[:picker.MaxResults]
		}
	} else {
		entries, err = dispatch.TransformDocumentSymbolsFlat(msg.Result, req.File, req.SSHHost)
		if err == nil {
			entries = filterSymbolEntries(req.PickerQuery, entries)
		}
	}
	if err != nil {
		d.reply(req.ClientID, derefInt64(req.VimRequestID), map[string]any{"error": err.Error()})
		return
	}

	d.reply(req.ClientID, derefInt64(req.VimRequestID), map[string]any{"mode": mode, "items": entries})
}

func filterSymbolEntries(query string, entries []dispatch.PickerSymbolEntry) []dispatch.PickerSymbolEntry {
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Name
	}
	scored := picker.Score(query, labels)
	out := make([]dispatch.PickerSymbolEntry, 0, len(scored))
	for _, r := range scored {
		out = append(out, entries[r.Index])
	}
	return out
}

func (d *Daemon) handleLSPNotification(key string, c *lsprpc.Client, msg lsprpc.Message) {
	switch msg.Method {
	case "textDocument/publishDiagnostics":
		var params lsptypes.PublishDiagnosticsParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			d.log.WithError(err).WithField("lsp_key", key).Warn("daemon: malformed publishDiagnostics notification")
			return
		}
		broadcast := dispatch.TransformDiagnostics(params, c.SSHHost)
		d.broadcastJSON("diagnostics", broadcast)

	case "$/progress":
		d.handleProgress(c, msg.Params)

	case "window/showMessage":
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(msg.Params, &p); err == nil && p.Message != "" {
			d.broadcastEx(fmt.Sprintf("echomsg %q", p.Message))
		}

	default:
		d.log.WithField("lsp_key", key).WithField("method", msg.Method).Debug("daemon: unhandled LSP notification")
	}
}

func (d *Daemon) handleProgress(c *lsprpc.Client, raw json.RawMessage) {
	var p struct {
		Token json.RawMessage `json:"token"`
		Value struct {
			Kind       string `json:"kind"`
			Title      string `json:"title"`
			Message    string `json:"message"`
			Percentage int    `json:"percentage"`
		} `json:"value"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	token := string(p.Token)

	switch p.Value.Kind {
	case "begin":
		d.progress.Begin(token, p.Value.Title)
		d.registry.BeginIndexing(c.Language)
		d.broadcastEx(dispatch.FormatProgress("begin", p.Value.Title, p.Value.Message, p.Value.Percentage))
	case "report":
		title, _ := d.progress.Title(token)
		d.broadcastEx(dispatch.FormatProgress("report", title, p.Value.Message, p.Value.Percentage))
	case "end":
		title, _ := d.progress.Title(token)
		d.progress.End(token)
		d.registry.EndIndexing(c.Language)
		d.broadcastEx(dispatch.FormatProgress("end", title, p.Value.Message, 0))
		d.flushDeferredIfIdle()
	}
}

// handleLSPServerRequest answers a server-originated request, per spec.md
// §4.4's workspace/applyEdit loopback and the ambient
// workspace/configuration / window/workDoneProgress/create handshakes most
// servers also issue.
func (d *Daemon) handleLSPServerRequest(key string, c *lsprpc.Client, msg lsprpc.Message) {
	c.TrackServerRequest(msg.ID)
	defer c.UntrackServerRequest(msg.ID)

	switch msg.Method {
	case "workspace/applyEdit":
		var params struct {
			Edit lsptypes.WorkspaceEdit `json:"edit"`
		}
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			d.log.WithError(err).WithField("lsp_key", key).Warn("daemon: malformed applyEdit params")
			if sendErr := c.SendResponse(msg.ID, map[string]any{"applied": false}); sendErr != nil {
				d.log.WithError(sendErr).WithField("lsp_key", key).Warn("daemon: failed to ack malformed applyEdit")
			}
			return
		}
		if err := c.SendResponse(msg.ID, map[string]any{"applied": true}); err != nil {
			d.log.WithError(err).WithField("lsp_key", key).Warn("daemon: failed to ack applyEdit")
		}
		edits := dispatch.TransformWorkspaceEdit(params.Edit, c.SSHHost)
		d.broadcastJSON("applyEdit", map[string]any{"action": "applyEdit", "edits": edits.Edits})

	case "workspace/configuration":
		var params struct {
			Items []json.RawMessage `json:"items"`
		}
		_ = json.Unmarshal(msg.Params, &params)
		if err := c.SendResponse(msg.ID, make([]any, len(params.Items))); err != nil {
			d.log.WithError(err).WithField("lsp_key", key).Warn("daemon: failed to ack workspace/configuration")
		}

	case "window/workDoneProgress/create":
		if err := c.SendResponse(msg.ID, nil); err != nil {
			d.log.WithError(err).WithField("lsp_key", key).Warn("daemon: failed to ack workDoneProgress/create")
		}

	default:
		d.log.WithField("lsp_key", key).WithField("method", msg.Method).Debug("daemon: unhandled LSP server request, acking nil")
		if err := c.SendResponse(msg.ID, nil); err != nil {
			d.log.WithError(err).WithField("lsp_key", key).Warn("daemon: failed to ack unhandled server request")
		}
	}
}
