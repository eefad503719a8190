package daemon

import (
	"encoding/json"
	"fmt"
	"os"

	"rockerboo/yac-bridge/internal/dispatch"
	"rockerboo/yac-bridge/internal/picker"
	"rockerboo/yac-bridge/internal/wire"
)

// pickerOpenParams is the picker_open payload, per spec.md §4.5. Mode
// selects what picker_query searches; File is required for
// document_symbol mode.
type pickerOpenParams struct {
	Mode string `json:"mode"`
	Cwd  string `json:"cwd"`
	File string `json:"file"`
}

func (d *Daemon) handlePickerOpen(clientID wire.ClientID, in wire.Inbound) {
	var p pickerOpenParams
	if err := json.Unmarshal(in.Params, &p); err != nil {
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: malformed picker_open params: %w", err))
		return
	}

	mode, err := picker.ParseMode(p.Mode)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	switch mode {
	case picker.ModeFile:
		cwd := p.Cwd
		if cwd == "" {
			cwd, _ = os.Getwd()
		}
		if err := d.picker.Open(cwd, d.recentFiles); err != nil {
			d.replyError(clientID, in.ID, err)
			return
		}
		d.reply(clientID, in.ID, map[string]any{"ok": true})

	case picker.ModeWorkspaceSymbol:
		d.reply(clientID, in.ID, map[string]any{"ok": true})

	case picker.ModeDocumentSymbol:
		if p.File == "" {
			d.replyError(clientID, in.ID, fmt.Errorf("daemon: document_symbol picker requires 'file'"))
			return
		}
		d.reply(clientID, in.ID, map[string]any{"ok": true})
	}
}

// pickerQueryParams is the picker_query payload.
type pickerQueryParams struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
	File  string `json:"file"`
}

func (d *Daemon) handlePickerQuery(clientID wire.ClientID, in wire.Inbound) {
	var p pickerQueryParams
	if err := json.Unmarshal(in.Params, &p); err != nil {
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: malformed picker_query params: %w", err))
		return
	}

	mode, err := picker.ParseMode(p.Mode)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}

	switch mode {
	case picker.ModeFile:
		result := d.picker.QueryFiles(p.Query)
		d.reply(clientID, in.ID, result)

	case picker.ModeWorkspaceSymbol:
		d.querySymbols(clientID, in, p, "workspace/symbol", map[string]any{"query": p.Query})

	case picker.ModeDocumentSymbol:
		if p.File == "" {
			d.replyError(clientID, in.ID, fmt.Errorf("daemon: document_symbol query requires 'file'"))
			return
		}
		uri := dispatch.FileToURI(p.File)
		d.querySymbols(clientID, in, p, "textDocument/documentSymbol", dispatch.BuildDocumentParams(uri))
	}
}

// querySymbols issues a workspace/document-symbol request tagged with a
// fresh generation id, superseding any in-flight symbol query — the
// picker's cancel-by-generation model of spec.md §5.
func (d *Daemon) querySymbols(clientID wire.ClientID, in wire.Inbound, p pickerQueryParams, method string, params any) {
	file := p.File
	if file == "" {
		file = "."
	}
	ensured, err := d.ensureClient(file)
	if err != nil {
		d.replyError(clientID, in.ID, err)
		return
	}
	if !ensured.client.Initialized {
		d.replyError(clientID, in.ID, fmt.Errorf("daemon: LSP still initializing"))
		return
	}

	gen := d.picker.BeginSymbolRequest()

	reqID, err := ensured.client.SendRequest(method, params)
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
		Method:       method,
		ClientID:     clientID,
		File:         file,
		SSHHost:      ensured.sshHost,
		PickerGen:    gen,
		PickerQuery:  p.Query,
	})
}

func (d *Daemon) handlePickerClose(clientID wire.ClientID, in wire.Inbound) {
	d.picker.Close()
	d.reply(clientID, in.ID, map[string]any{"ok": true})
}
