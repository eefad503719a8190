package daemon

import (
	"encoding/json"
	"fmt"

	"rockerboo/yac-bridge/internal/dispatch"
	"rockerboo/yac-bridge/internal/wire"
)

const maxRecentFiles = 20

func (d *Daemon) rememberRecentFile(file string) {
	for i, f := range d.recentFiles {
		if f == file {
			d.recentFiles = append(d.recentFiles[:i], d.recentFiles[i+1:]...)
			break
		}
	}
	d.recentFiles = append([]string{file}, d.recentFiles...)
	if len(d.recentFiles) > maxRecentFiles {
		d.recentFiles = d.recentFiles[:maxRecentFiles]
	}
}

// reply sends a `[vim_request_id, result]` line to one client. A
// notification (vim_request_id == 0) expects no response.
func (d *Daemon) reply(clientID wire.ClientID, vimID int64, result any) {
	if vimID == 0 {
		return
	}
	conn, ok := d.clients[clientID]
	if !ok {
		return
	}
	body, err := wire.EncodeResponse(vimID, result)
	if err != nil {
		d.log.WithError(err).Warn("daemon: failed to encode response")
		return
	}
	if err := conn.Write(body); err != nil {
		d.removeClient(clientID)
	}
}

func (d *Daemon) replyError(clientID wire.ClientID, vimID int64, err error) {
	d.log.WithError(err).WithField("client", clientID).Warn("daemon: command failed")
	d.reply(clientID, vimID, map[string]any{"error": err.Error()})
}

func (d *Daemon) sendEx(clientID wire.ClientID, cmd string) {
	conn, ok := d.clients[clientID]
	if !ok {
		return
	}
	body, err := wire.EncodeEx(cmd)
	if err != nil {
		return
	}
	if err := conn.Write(body); err != nil {
		d.removeClient(clientID)
	}
}

// deferLine withholds raw, per spec.md §4.4's Initializing/Indexing states,
// and echoes a "queued" ex-command to the originating client.
func (d *Daemon) deferLine(clientID wire.ClientID, raw []byte, reason string) {
	d.deferred.Push(wire.DeferredRequest{ClientID: clientID, RawLine: raw})
	d.log.WithField("client", clientID).Debug(reason)
	d.sendEx(clientID, "echo 'LSP indexing, request queued'")
}

// flushDeferredIfIdle replays every deferred request, in FIFO order, once
// no language is indexing, per spec.md §4.6's indexing state transition.
func (d *Daemon) flushDeferredIfIdle() {
	if d.registry.IsAnyLanguageIndexing() {
		return
	}
	for _, req := range d.deferred.Drain() {
		if _, ok := d.clients[req.ClientID]; !ok {
			continue
		}
		d.handleLine(req.ClientID, req.RawLine)
	}
}

// prepareNotification resolves the LSP client for file and enforces the
// Initializing gate only — notifications are safe to forward while a
// server is indexing.
func (d *Daemon) prepareNotification(clientID wire.ClientID, in wire.Inbound, raw []byte, file string) (ensuredClient, bool) {
	ensured, err := d.ensureClient(file)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return ensuredClient{}, false
	}
	if !ensured.client.Initialized {
		d.deferLine(clientID, raw, "daemon: notification deferred, LSP initializing")
		return ensuredClient{}, false
	}
	return ensured, true
}

// prepareRequest additionally enforces the Indexing gate, per spec.md
// §4.6's "query-type requests get routed via the deferred queue" rule.
func (d *Daemon) prepareRequest(clientID wire.ClientID, in wire.Inbound, raw []byte, file string) (ensuredClient, bool) {
	ensured, ok := d.prepareNotification(clientID, in, raw, file)
	if !ok {
		return ensuredClient{}, false
	}
	if d.registry.IsAnyLanguageIndexing() {
		d.deferLine(clientID, raw, "daemon: request deferred, LSP indexing")
		return ensuredClient{}, false
	}
	return ensured, true
}

func (d *Daemon) registerPending(ensured ensuredClient, reqID uint64, method string, clientID wire.ClientID, in wire.Inbound, file string) {
	var vimID *int64
	if in.ID != 0 {
		v := in.ID
		vimID = &v
	}
	d.pending.PutLsp(wire.LspKey(ensured.key, reqID), wire.PendingLspRequest{
		VimRequestID: vimID,
		Method:       method,
		ClientID:     clientID,
		File:         file,
		SSHHost:      ensured.sshHost,
	})
}

// handleEditorCommand dispatches one decoded inbound request/notification
// per spec.md §4.4's handler table.
func (d *Daemon) handleEditorCommand(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	switch in.Method {
	case "picker_open":
		d.handlePickerOpen(clientID, in)
		return
	case "picker_query":
		d.handlePickerQuery(clientID, in)
		return
	case "picker_close":
		d.handlePickerClose(clientID, in)
		return
	}

	if _, ok := dispatch.Commands[in.Method]; !ok {
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: unknown command %q", in.Method))
		return
	}

	switch in.Method {
	case "file_open":
		d.handleFileOpen(clientID, in, raw)
	case "did_change":
		d.handleDidChange(clientID, in, raw)
	case "did_save":
		d.handleDidSave(clientID, in, raw)
	case "will_save":
		d.handleWillSave(clientID, in, raw)
	case "will_save_wait_until":
		d.handleWillSaveWaitUntil(clientID, in, raw)
	case "did_close":
		d.handleDidClose(clientID, in, raw)
	case "hover", "goto_definition", "goto_declaration", "goto_type_definition", "goto_implementation", "completion", "inlay_hints":
		d.handleSimplePositionCommand(clientID, in, raw)
	case "references":
		d.handleReferences(clientID, in, raw)
	case "rename":
		d.handleRename(clientID, in, raw)
	case "document_symbols", "folding_range":
		d.handleDocumentCommand(clientID, in, raw)
	case "code_action":
		d.handleCodeAction(clientID, in, raw)
	case "execute_command":
		d.handleExecuteCommand(clientID, in, raw)
	case "call_hierarchy_incoming":
		d.handleCallHierarchy(clientID, in, raw, dispatch.CallHierarchyIncoming)
	case "call_hierarchy_outgoing":
		d.handleCallHierarchy(clientID, in, raw, dispatch.CallHierarchyOutgoing)
	default:
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: command %q has no handler", in.Method))
	}
}

func (d *Daemon) handleFileOpen(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	var p dispatch.DidOpenParams
	if err := json.Unmarshal(in.Params, &p); err != nil || p.File == "" {
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: malformed file_open params"))
		return
	}

	ensured, ok := d.prepareNotification(clientID, in, raw, p.File)
	if !ok {
		return
	}

	d.rememberRecentFile(p.File)

	// spec.md §8: a repeat file_open for an already-open document is a
	// no-op from the editor's perspective — didOpen goes to the server
	// only the first time per LSP session.
	if !d.openDocs[p.File] {
		d.openDocs[p.File] = true
		d.docVersions[p.File] = 1

		uri := dispatch.FileToURI(p.File)
		if err := ensured.client.SendNotification("textDocument/didOpen", dispatch.BuildDidOpenParams(p, uri)); err != nil {
			d.log.WithError(err).Warn("daemon: failed to send didOpen")
		}
	}
	d.reply(clientID, in.ID, map[string]any{"ok": true})
}

func (d *Daemon) handleDidChange(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	var p dispatch.DidChangeParams
	if err := json.Unmarshal(in.Params, &p); err != nil || p.File == "" {
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: malformed did_change params"))
		return
	}

	ensured, ok := d.prepareNotification(clientID, in, raw, p.File)
	if !ok {
		return
	}

	d.docVersions[p.File]++
	uri := dispatch.FileToURI(p.File)
	params := dispatch.BuildDidChangeParams(uri, p.Text, d.docVersions[p.File])
	if err := ensured.client.SendNotification("textDocument/didChange", params); err != nil {
		d.log.WithError(err).Warn("daemon: failed to send didChange")
	}
	d.reply(clientID, in.ID, map[string]any{"ok": true})
}

func (d *Daemon) handleDidSave(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	var p dispatch.DidChangeParams
	if err := json.Unmarshal(in.Params, &p); err != nil || p.File == "" {
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: malformed did_save params"))
		return
	}

	ensured, ok := d.prepareNotification(clientID, in, raw, p.File)
	if !ok {
		return
	}

	uri := dispatch.FileToURI(p.File)
	if err := ensured.client.SendNotification("textDocument/didSave", dispatch.BuildDidSaveParams(uri, p.Text)); err != nil {
		d.log.WithError(err).Warn("daemon: failed to send didSave")
	}
	d.reply(clientID, in.ID, map[string]any{"ok": true})
}

func (d *Daemon) handleWillSave(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	p, err := dispatch.ParseFileParams(in.Params)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	ensured, ok := d.prepareNotification(clientID, in, raw, p.File)
	if !ok {
		return
	}

	uri := dispatch.FileToURI(p.File)
	if err := ensured.client.SendNotification("textDocument/willSave", dispatch.BuildWillSaveParams(uri)); err != nil {
		d.log.WithError(err).Warn("daemon: failed to send willSave")
	}
	d.reply(clientID, in.ID, map[string]any{"ok": true})
}

func (d *Daemon) handleWillSaveWaitUntil(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	p, err := dispatch.ParseFileParams(in.Params)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	ensured, ok := d.prepareRequest(clientID, in, raw, p.File)
	if !ok {
		return
	}

	uri := dispatch.FileToURI(p.File)
	reqID, err := ensured.client.SendRequest("textDocument/willSaveWaitUntil", dispatch.BuildWillSaveParams(uri))
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}
	d.registerPending(ensured, reqID, "textDocument/willSaveWaitUntil", clientID, in, p.File)
}

func (d *Daemon) handleDidClose(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	p, err := dispatch.ParseFileParams(in.Params)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	ensured, ok := d.prepareNotification(clientID, in, raw, p.File)
	if !ok {
		return
	}

	delete(d.docVersions, p.File)
	delete(d.openDocs, p.File)
	uri := dispatch.FileToURI(p.File)
	if err := ensured.client.SendNotification("textDocument/didClose", dispatch.BuildDidCloseParams(uri)); err != nil {
		d.log.WithError(err).Warn("daemon: failed to send didClose")
	}
	d.reply(clientID, in.ID, map[string]any{"ok": true})
}

// handleSimplePositionCommand covers hover, the goto family, completion and
// inlay_hints: every one issues a plain TextDocumentPositionParams request
// whose result is transformed purely by LSP method name.
func (d *Daemon) handleSimplePositionCommand(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	p, err := dispatch.ParsePositionParams(in.Params)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	ensured, ok := d.prepareRequest(clientID, in, raw, p.File)
	if !ok {
		return
	}

	method := dispatch.Commands[in.Method].Method
	uri := dispatch.FileToURI(p.File)
	reqID, err := ensured.client.SendRequest(method, dispatch.BuildTextDocumentPositionParams(p, uri))
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}
	d.registerPending(ensured, reqID, method, clientID, in, p.File)
}

func (d *Daemon) handleReferences(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	p, err := dispatch.ParsePositionParams(in.Params)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	ensured, ok := d.prepareRequest(clientID, in, raw, p.File)
	if !ok {
		return
	}

	uri := dispatch.FileToURI(p.File)
	reqID, err := ensured.client.SendRequest("textDocument/references", dispatch.BuildReferenceParams(p, uri))
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}
	d.registerPending(ensured, reqID, "textDocument/references", clientID, in, p.File)
}

func (d *Daemon) handleRename(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	var p dispatch.RenameParams
	if err := json.Unmarshal(in.Params, &p); err != nil || p.File == "" {
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: malformed rename params"))
		return
	}

	ensured, ok := d.prepareRequest(clientID, in, raw, p.File)
	if !ok {
		return
	}

	uri := dispatch.FileToURI(p.File)
	reqID, err := ensured.client.SendRequest("textDocument/rename", dispatch.BuildRenameParams(p, uri))
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}
	d.registerPending(ensured, reqID, "textDocument/rename", clientID, in, p.File)
}

func (d *Daemon) handleDocumentCommand(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	p, err := dispatch.ParseFileParams(in.Params)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	ensured, ok := d.prepareRequest(clientID, in, raw, p.File)
	if !ok {
		return
	}

	method := dispatch.Commands[in.Method].Method
	uri := dispatch.FileToURI(p.File)
	reqID, err := ensured.client.SendRequest(method, dispatch.BuildDocumentParams(uri))
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}
	d.registerPending(ensured, reqID, method, clientID, in, p.File)
}

func (d *Daemon) handleCodeAction(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	p, err := dispatch.ParsePositionParams(in.Params)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	ensured, ok := d.prepareRequest(clientID, in, raw, p.File)
	if !ok {
		return
	}

	uri := dispatch.FileToURI(p.File)
	reqID, err := ensured.client.SendRequest("textDocument/codeAction", dispatch.BuildCodeActionParams(p, uri))
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}
	d.registerPending(ensured, reqID, "textDocument/codeAction", clientID, in, p.File)
}

func (d *Daemon) handleExecuteCommand(clientID wire.ClientID, in wire.Inbound, raw []byte) {
	var p dispatch.ExecuteCommandParams
	if err := json.Unmarshal(in.Params, &p); err != nil || p.File == "" || p.CommandName == "" {
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: malformed execute_command params"))
		return
	}

	ensured, ok := d.prepareRequest(clientID, in, raw, p.File)
	if !ok {
		return
	}

	reqID, err := ensured.client.SendRequest("workspace/executeCommand", dispatch.BuildExecuteCommandParams(p))
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}
	d.registerPending(ensured, reqID, "workspace/executeCommand", clientID, in, p.File)
}

func (d *Daemon) handleCallHierarchy(clientID wire.ClientID, in wire.Inbound, raw []byte, direction dispatch.CallHierarchyDirection) {
	p, err := dispatch.ParsePositionParams(in.Params)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	ensured, ok := d.prepareRequest(clientID, in, raw, p.File)
	if !ok {
		return
	}

	uri := dispatch.FileToURI(p.File)
	reqID, err := ensured.client.SendRequest("textDocument/prepareCallHierarchy", dispatch.BuildTextDocumentPositionParams(p, uri))
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	var vimID *int64
	if in.ID != 0 {
		v := in.ID
		vimID = &v
	}
	d.pending.PutLsp(wire.LspKey(ensured.key, reqID), wire.PendingLspRequest{
		VimRequestID: vimID,
		Method:       "textDocument/prepareCallHierarchy",
		ClientID:     clientID,
		File:         p.File,
		SSHHost:      ensured.sshHost,
		Stage:        "prepare",
		Direction:    int(direction),
	})
}
