// Package dispatch maps editor commands to LSP methods and transforms LSP
// results into the compact action objects editors render directly, per
// spec.md §4.4/§4.5/§6.1.
package dispatch

import (
	"encoding/json"
	"fmt"

	"rockerboo/yac-bridge/internal/lsptypes"
)

// Kind classifies how a command is handled, per spec.md §4.4.
type Kind int

const (
	// KindNotificationOnly commands are forwarded as an LSP notification
	// and acknowledged immediately; there is no LSP response to route
	// back.
	KindNotificationOnly Kind = iota
	// KindRequest commands issue one LSP request whose response is
	// transformed and routed back to the originating client.
	KindRequest
	// KindCallHierarchy commands require a prepareCallHierarchy request
	// first, then incoming/outgoingCalls against its result.
	KindCallHierarchy
)

// CommandSpec describes one editor-facing command.
type CommandSpec struct {
	Method string
	Kind   Kind
}

// CallHierarchyDirection selects incoming vs outgoing calls.
type CallHierarchyDirection int

const (
	CallHierarchyIncoming CallHierarchyDirection = iota
	CallHierarchyOutgoing
)

// Commands is the editor command -> LSP method table of spec.md §4.4.
var Commands = map[string]CommandSpec{
	"file_open":                     {Method: "textDocument/didOpen", Kind: KindNotificationOnly},
	"did_change":                    {Method: "textDocument/didChange", Kind: KindNotificationOnly},
	"did_save":                      {Method: "textDocument/didSave", Kind: KindNotificationOnly},
	"will_save":                     {Method: "textDocument/willSave", Kind: KindNotificationOnly},
	"will_save_wait_until":          {Method: "textDocument/willSaveWaitUntil", Kind: KindRequest},
	"did_close":                     {Method: "textDocument/didClose", Kind: KindNotificationOnly},
	"hover":                         {Method: "textDocument/hover", Kind: KindRequest},
	"goto_definition":               {Method: "textDocument/definition", Kind: KindRequest},
	"goto_declaration":              {Method: "textDocument/declaration", Kind: KindRequest},
	"goto_type_definition":          {Method: "textDocument/typeDefinition", Kind: KindRequest},
	"goto_implementation":           {Method: "textDocument/implementation", Kind: KindRequest},
	"references":                    {Method: "textDocument/references", Kind: KindRequest},
	"completion":                    {Method: "textDocument/completion", Kind: KindRequest},
	"inlay_hints":                   {Method: "textDocument/inlayHint", Kind: KindRequest},
	"rename":                        {Method: "textDocument/rename", Kind: KindRequest},
	"document_symbols":              {Method: "textDocument/documentSymbol", Kind: KindRequest},
	"folding_range":                 {Method: "textDocument/foldingRange", Kind: KindRequest},
	"code_action":                   {Method: "textDocument/codeAction", Kind: KindRequest},
	"execute_command":               {Method: "workspace/executeCommand", Kind: KindRequest},
	"call_hierarchy_incoming":       {Method: "callHierarchy/incomingCalls", Kind: KindCallHierarchy},
	"call_hierarchy_outgoing":       {Method: "callHierarchy/outgoingCalls", Kind: KindCallHierarchy},
}

// GoToFamily reports whether command is one of the four goto_* commands
// sharing the Location[] -> {file,line,column} transform.
func GoToFamily(command string) bool {
	switch command {
	case "goto_definition", "goto_declaration", "goto_type_definition", "goto_implementation":
		return true
	}
	return false
}

// FileParams is the minimal shape every file-scoped editor command
// carries.
type FileParams struct {
	File string `json:"file"`
}

// PositionParams is the shape every cursor-scoped editor command carries.
type PositionParams struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// ParseFileParams extracts {file} from raw editor params.
func ParseFileParams(raw json.RawMessage) (FileParams, error) {
	var p FileParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("dispatch: malformed file params: %w", err)
	}
	if p.File == "" {
		return p, fmt.Errorf("dispatch: missing required 'file' param")
	}
	return p, nil
}

// ParsePositionParams extracts {file,line,column} from raw editor params.
func ParsePositionParams(raw json.RawMessage) (PositionParams, error) {
	var p PositionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("dispatch: malformed position params: %w", err)
	}
	if p.File == "" {
		return p, fmt.Errorf("dispatch: missing required 'file' param")
	}
	return p, nil
}

// BuildTextDocumentPositionParams converts an editor PositionParams into
// the LSP params shape, passing the line/column through unchanged per
// spec.md §4.4's position-encoding note.
func BuildTextDocumentPositionParams(p PositionParams, uri string) lsptypes.TextDocumentPositionParams {
	return lsptypes.TextDocumentPositionParams{
		TextDocument: lsptypes.TextDocumentIdentifier{URI: uri},
		Position:     lsptypes.Position{Line: p.Line, Character: p.Column},
	}
}

// BuildReferenceParams adds includeDeclaration: true, per spec.md §4.4.
func BuildReferenceParams(p PositionParams, uri string) map[string]any {
	return map[string]any{
		"textDocument": lsptypes.TextDocumentIdentifier{URI: uri},
		"position":     lsptypes.Position{Line: p.Line, Character: p.Column},
		"context":      map[string]any{"includeDeclaration": true},
	}
}

// DidOpenParams is the editor's file_open payload.
type DidOpenParams struct {
	File     string `json:"file"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// DidChangeParams is the editor's did_change payload: full-sync, per
// spec.md §4.4.
type DidChangeParams struct {
	File string `json:"file"`
	Text string `json:"text"`
}

// BuildDidChangeParams builds a full-document-sync didChange notification.
func BuildDidChangeParams(uri, text string, version int) map[string]any {
	return map[string]any{
		"textDocument": lsptypes.VersionedTextDocumentIdentifier{URI: uri, Version: version},
		"contentChanges": []lsptypes.TextDocumentContentChangeEvent{
			{Text: text},
		},
	}
}

// RenameParams is the editor's rename payload.
type RenameParams struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	NewName string `json:"new_name"`
}

// BuildRenameParams builds a textDocument/rename request.
func BuildRenameParams(p RenameParams, uri string) map[string]any {
	return map[string]any{
		"textDocument": lsptypes.TextDocumentIdentifier{URI: uri},
		"position":     lsptypes.Position{Line: p.Line, Character: p.Column},
		"newName":      p.NewName,
	}
}

// ExecuteCommandParams is the editor's execute_command payload. File routes
// the command to the LSP client already serving that buffer, since
// workspace/executeCommand itself carries no buffer context.
type ExecuteCommandParams struct {
	File        string `json:"file"`
	CommandName string `json:"command_name"`
	Arguments   []any  `json:"arguments"`
}

// BuildExecuteCommandParams builds a workspace/executeCommand request.
func BuildExecuteCommandParams(p ExecuteCommandParams) map[string]any {
	return map[string]any{"command": p.CommandName, "arguments": p.Arguments}
}

// BuildDocumentParams builds the {textDocument} params shape shared by
// document_symbols and folding_range.
func BuildDocumentParams(uri string) map[string]any {
	return map[string]any{"textDocument": lsptypes.TextDocumentIdentifier{URI: uri}}
}

// BuildCodeActionParams builds a textDocument/codeAction request over a
// zero-width range at the cursor, with an empty diagnostics context — the
// core command set doesn't carry a selection range through the editor
// protocol, per spec.md §4.4's "not exhaustive but complete for the core".
func BuildCodeActionParams(p PositionParams, uri string) map[string]any {
	pos := lsptypes.Position{Line: p.Line, Character: p.Column}
	return map[string]any{
		"textDocument": lsptypes.TextDocumentIdentifier{URI: uri},
		"range":        lsptypes.Range{Start: pos, End: pos},
		"context":      map[string]any{"diagnostics": []any{}},
	}
}

// BuildDidOpenParams builds a textDocument/didOpen notification.
func BuildDidOpenParams(p DidOpenParams, uri string) map[string]any {
	return map[string]any{
		"textDocument": map[string]any{
			"uri":        uri,
			"languageId": p.Language,
			"version":    1,
			"text":       p.Text,
		},
	}
}

// BuildDidSaveParams builds a textDocument/didSave notification.
func BuildDidSaveParams(uri, text string) map[string]any {
	return map[string]any{
		"textDocument": lsptypes.TextDocumentIdentifier{URI: uri},
		"text":         text,
	}
}

// BuildWillSaveParams builds a textDocument/willSave(WaitUntil) request,
// reason 1 == Manual per the LSP spec.
func BuildWillSaveParams(uri string) map[string]any {
	return map[string]any{
		"textDocument": lsptypes.TextDocumentIdentifier{URI: uri},
		"reason":       1,
	}
}

// BuildDidCloseParams builds a textDocument/didClose notification.
func BuildDidCloseParams(uri string) map[string]any {
	return map[string]any{"textDocument": lsptypes.TextDocumentIdentifier{URI: uri}}
}
