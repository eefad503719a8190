package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"rockerboo/yac-bridge/internal/lsptypes"
)

// completionKindNames maps LSP CompletionItemKind codes to symbolic names,
// per spec.md §4.4.
var completionKindNames = map[int]string{
	1: "text", 2: "method", 3: "function", 4: "constructor", 5: "field",
	6: "variable", 7: "class", 8: "interface", 9: "module", 10: "property",
	11: "unit", 12: "value", 13: "enum", 14: "keyword", 15: "snippet",
	16: "color", 17: "file", 18: "reference", 19: "folder", 20: "enum_member",
	21: "constant", 22: "struct", 23: "event", 24: "operator", 25: "type_parameter",
}

// CompletionKindName returns the symbolic name for a completion kind code.
func CompletionKindName(kind int) string {
	if name, ok := completionKindNames[kind]; ok {
		return name
	}
	return "unknown"
}

// URIToFile converts a file:// URI to a plain filesystem path, optionally
// re-prefixing with scp://host for an SSH-backed workspace, per spec.md
// §4.4's goto-family transform.
func URIToFile(uri, sshHost string) string {
	path := strings.TrimPrefix(uri, "file://")
	if sshHost != "" {
		return "scp://" + sshHost + path
	}
	return path
}

// FileToURI converts a plain filesystem path (or scp://host/path) to a
// file:// URI to send toward the LSP server, per spec.md §9's SSH
// path-rewriting rule: rewriting only happens at the editor-facing
// boundary.
func FileToURI(file string) string {
	if strings.HasPrefix(file, "scp://") {
		rest := file[len("scp://"):]
		if idx := strings.Index(rest, "/"); idx != -1 {
			return "file://" + rest[idx:]
		}
		return "file:///"
	}
	if strings.HasPrefix(file, "file://") {
		return file
	}
	return "file://" + file
}

// GotoResult is the {file,line,column} shape of spec.md §4.4's goto-family
// transform, or nil for an empty LSP result.
type GotoResult struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// TransformLocations picks the first entry (if any) from a
// Location/Location[]/LocationLink[] result and converts it to a
// GotoResult. An empty array becomes nil, per spec.md §4.4. LocationLink is
// only sent by a server when the client advertised definition.linkSupport
// — BuildInitializeParams doesn't, but a server is free to ignore that and
// send one anyway, so it's decoded explicitly rather than left to silently
// unmarshal into a zero-valued Location.
func TransformLocations(result json.RawMessage, sshHost string) (*GotoResult, error) {
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	// Try a bare array first, one element at a time so a single-entry
	// array of either shape still resolves.
	var raw []json.RawMessage
	if err := json.Unmarshal(result, &raw); err == nil {
		if len(raw) == 0 {
			return nil, nil
		}
		return decodeLocationEntry(raw[0], sshHost)
	}

	return decodeLocationEntry(result, sshHost)
}

// decodeLocationEntry converts one Location or LocationLink object to a
// GotoResult, distinguishing the two shapes by which URI/range field set is
// present rather than by unmarshal success (both shapes have all-optional
// JSON tags against the other's struct, so a wrong guess unmarshals clean
// into zero values instead of erroring).
func decodeLocationEntry(entry json.RawMessage, sshHost string) (*GotoResult, error) {
	var probe struct {
		URI         string          `json:"uri"`
		Range       *lsptypes.Range `json:"range"`
		TargetURI   string          `json:"targetUri"`
		TargetRange *lsptypes.Range `json:"targetRange"`
	}
	if err := json.Unmarshal(entry, &probe); err != nil {
		return nil, fmt.Errorf("dispatch: unrecognized location result shape: %w", err)
	}

	switch {
	case probe.URI != "" && probe.Range != nil:
		return &GotoResult{
			File:   URIToFile(probe.URI, sshHost),
			Line:   probe.Range.Start.Line,
			Column: probe.Range.Start.Character,
		}, nil
	case probe.TargetURI != "" && probe.TargetRange != nil:
		return &GotoResult{
			File:   URIToFile(probe.TargetURI, sshHost),
			Line:   probe.TargetRange.Start.Line,
			Column: probe.TargetRange.Start.Character,
		}, nil
	default:
		return nil, fmt.Errorf("dispatch: unrecognized location result shape")
	}
}

// HoverResult is the {content} shape of spec.md §4.4's hover transform.
type HoverResult struct {
	Content string `json:"content"`
}

// TransformHover joins markdown/plaintext hover contents into one string.
func TransformHover(result json.RawMessage) (*HoverResult, error) {
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var hover lsptypes.Hover
	if err := json.Unmarshal(result, &hover); err != nil {
		return nil, fmt.Errorf("dispatch: malformed hover result: %w", err)
	}

	content, err := joinHoverContents(hover.Contents)
	if err != nil {
		return nil, err
	}

	return &HoverResult{Content: content}, nil
}

func joinHoverContents(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	// MarkupContent: {kind, value}
	var markup lsptypes.MarkupContent
	if err := json.Unmarshal(raw, &markup); err == nil && markup.Value != "" {
		return markup.Value, nil
	}

	// A bare string.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	// MarkedString[] (string or {language, value} entries).
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		parts := make([]string, 0, len(arr))
		for _, item := range arr {
			var itemStr string
			if err := json.Unmarshal(item, &itemStr); err == nil {
				parts = append(parts, itemStr)
				continue
			}
			var marked struct {
				Value string `json:"value"`
			}
			if err := json.Unmarshal(item, &marked); err == nil {
				parts = append(parts, marked.Value)
			}
		}
		return strings.Join(parts, "\n\n"), nil
	}

	return "", fmt.Errorf("dispatch: unrecognized hover contents shape")
}

// CompletionResultItem is one entry of the transformed completion list.
type CompletionResultItem struct {
	Label         string `json:"label"`
	Kind          string `json:"kind"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	InsertText    string `json:"insertText,omitempty"`
}

// CompletionResult is the {items} shape of spec.md §4.4's completion
// transform.
type CompletionResult struct {
	Items []CompletionResultItem `json:"items"`
}

// TransformCompletion handles both CompletionList and bare
// CompletionItem[] result shapes.
func TransformCompletion(result json.RawMessage) (*CompletionResult, error) {
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var items []lsptypes.CompletionItem

	var list lsptypes.CompletionList
	if err := json.Unmarshal(result, &list); err == nil && list.Items != nil {
		items = list.Items
	} else if err := json.Unmarshal(result, &items); err != nil {
		return nil, fmt.Errorf("dispatch: unrecognized completion result shape: %w", err)
	}

	out := make([]CompletionResultItem, 0, len(items))
	for _, item := range items {
		out = append(out, CompletionResultItem{
			Label:         item.Label,
			Kind:          CompletionKindName(item.Kind),
			Detail:        item.Detail,
			Documentation: stringifyDocumentation(item.Documentation),
			InsertText:    item.InsertText,
		})
	}

	return &CompletionResult{Items: out}, nil
}

func stringifyDocumentation(doc any) string {
	switch v := doc.(type) {
	case string:
		return v
	case map[string]any:
		if value, ok := v["value"].(string); ok {
			return value
		}
	}
	return ""
}

// DiagnosticEntry is one entry of the broadcast diagnostics payload.
type DiagnosticEntry struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"`
	Code     any    `json:"code,omitempty"`
}

// DiagnosticsBroadcast is the `{action:"diagnostics", ...}` payload of
// spec.md §4.4/§6.1.
type DiagnosticsBroadcast struct {
	Action      string            `json:"action"`
	Diagnostics []DiagnosticEntry `json:"diagnostics"`
}

// TransformDiagnostics converts a publishDiagnostics notification into the
// broadcast payload.
func TransformDiagnostics(params lsptypes.PublishDiagnosticsParams, sshHost string) DiagnosticsBroadcast {
	entries := make([]DiagnosticEntry, 0, len(params.Diagnostics))
	file := URIToFile(params.URI, sshHost)
	for _, d := range params.Diagnostics {
		entries = append(entries, DiagnosticEntry{
			File:     file,
			Line:     d.Range.Start.Line,
			Column:   d.Range.Start.Character,
			Severity: d.Severity,
			Message:  d.Message,
			Source:   d.Source,
			Code:     d.Code,
		})
	}
	return DiagnosticsBroadcast{Action: "diagnostics", Diagnostics: entries}
}

// EditEntry is one file's worth of edits in the transformed rename result.
type EditEntry struct {
	File  string     `json:"file"`
	Edits []TextEdit `json:"edits"`
}

// TextEdit is one textual edit within a file, 0-based per spec.md §6.1.
type TextEdit struct {
	StartLine   int    `json:"start_line"`
	StartColumn int    `json:"start_column"`
	EndLine     int    `json:"end_line"`
	EndColumn   int    `json:"end_column"`
	NewText     string `json:"new_text"`
}

// RenameResult is the {edits: [...]} shape of spec.md §4.4's
// WorkspaceEdit transform.
type RenameResult struct {
	Edits []EditEntry `json:"edits"`
}

// TransformWorkspaceEdit converts a WorkspaceEdit into the editor-facing
// shape, preferring `changes` (uri -> edits) and falling back to
// `documentChanges`.
func TransformWorkspaceEdit(edit lsptypes.WorkspaceEdit, sshHost string) RenameResult {
	var out []EditEntry

	for uri, edits := range edit.Changes {
		out = append(out, EditEntry{File: URIToFile(uri, sshHost), Edits: toTextEdits(edits)})
	}

	if len(edit.Changes) == 0 {
		for _, dc := range edit.DocumentChanges {
			out = append(out, EditEntry{
				File:  URIToFile(dc.TextDocument.URI, sshHost),
				Edits: toTextEdits(dc.Edits),
			})
		}
	}

	return RenameResult{Edits: out}
}

func toTextEdits(edits []lsptypes.TextEdit) []TextEdit {
	out := make([]TextEdit, 0, len(edits))
	for _, e := range edits {
		out = append(out, TextEdit{
			StartLine:   e.Range.Start.Line,
			StartColumn: e.Range.Start.Character,
			EndLine:     e.Range.End.Line,
			EndColumn:   e.Range.End.Character,
			NewText:     e.NewText,
		})
	}
	return out
}

// ReferencesResult is the {locations: [...]} shape of spec.md §6.1's
// references response.
type ReferencesResult struct {
	Locations []GotoResult `json:"locations"`
}

// TransformReferences converts a textDocument/references Location[] result
// into the full locations list (unlike the goto family, nothing is
// dropped).
func TransformReferences(result json.RawMessage, sshHost string) (ReferencesResult, error) {
	if len(result) == 0 || string(result) == "null" {
		return ReferencesResult{Locations: []GotoResult{}}, nil
	}

	var locs []lsptypes.Location
	if err := json.Unmarshal(result, &locs); err != nil {
		return ReferencesResult{}, fmt.Errorf("dispatch: malformed references result: %w", err)
	}

	out := make([]GotoResult, 0, len(locs))
	for _, loc := range locs {
		out = append(out, GotoResult{
			File:   URIToFile(loc.URI, sshHost),
			Line:   loc.Range.Start.Line,
			Column: loc.Range.Start.Character,
		})
	}
	return ReferencesResult{Locations: out}, nil
}

// InlayHintEntry is one entry of the transformed inlay-hints response.
type InlayHintEntry struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Label  string `json:"label"`
	Kind   int    `json:"kind,omitempty"`
}

// InlayHintsResult is the {hints: [...]} shape of spec.md §6.1.
type InlayHintsResult struct {
	Hints []InlayHintEntry `json:"hints"`
}

// TransformInlayHints converts textDocument/inlayHint's result.
func TransformInlayHints(result json.RawMessage) (InlayHintsResult, error) {
	if len(result) == 0 || string(result) == "null" {
		return InlayHintsResult{Hints: []InlayHintEntry{}}, nil
	}

	var raw []struct {
		Position Position `json:"position"`
		Label    any      `json:"label"`
		Kind     int      `json:"kind,omitempty"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return InlayHintsResult{}, fmt.Errorf("dispatch: malformed inlay hints result: %w", err)
	}

	out := make([]InlayHintEntry, 0, len(raw))
	for _, h := range raw {
		out = append(out, InlayHintEntry{
			Line:   h.Position.Line,
			Column: h.Position.Character,
			Label:  stringifyLabel(h.Label),
			Kind:   h.Kind,
		})
	}
	return InlayHintsResult{Hints: out}, nil
}

// Position mirrors lsptypes.Position, aliased here so inlay-hint parsing
// doesn't need the full TextDocumentPositionParams context.
type Position = lsptypes.Position

func stringifyLabel(label any) string {
	switch v := label.(type) {
	case string:
		return v
	case []any:
		var b strings.Builder
		for _, part := range v {
			if m, ok := part.(map[string]any); ok {
				if val, ok := m["value"].(string); ok {
					b.WriteString(val)
					continue
				}
			}
		}
		return b.String()
	}
	return ""
}

// FoldingRangeEntry is one entry of the transformed folding-range response.
type FoldingRangeEntry struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// FoldingRangesResult is the {ranges: [...]} shape of spec.md §6.1.
type FoldingRangesResult struct {
	Ranges []FoldingRangeEntry `json:"ranges"`
}

// TransformFoldingRanges converts textDocument/foldingRange's result.
func TransformFoldingRanges(result json.RawMessage) (FoldingRangesResult, error) {
	if len(result) == 0 || string(result) == "null" {
		return FoldingRangesResult{Ranges: []FoldingRangeEntry{}}, nil
	}

	var ranges []lsptypes.FoldingRange
	if err := json.Unmarshal(result, &ranges); err != nil {
		return FoldingRangesResult{}, fmt.Errorf("dispatch: malformed folding range result: %w", err)
	}

	out := make([]FoldingRangeEntry, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, FoldingRangeEntry{StartLine: r.StartLine, EndLine: r.EndLine})
	}
	return FoldingRangesResult{Ranges: out}, nil
}

// CodeActionEntry is one entry of the transformed code-action response.
type CodeActionEntry struct {
	Title   string         `json:"title"`
	Kind    string         `json:"kind,omitempty"`
	Command *lsptypes.Command `json:"command,omitempty"`
	Edit    *RenameResult  `json:"edit,omitempty"`
}

// CodeActionsResult is the {actions: [...]} shape of spec.md §6.1.
type CodeActionsResult struct {
	Actions []CodeActionEntry `json:"actions"`
}

// TransformCodeActions converts textDocument/codeAction's result.
func TransformCodeActions(result json.RawMessage, sshHost string) (CodeActionsResult, error) {
	if len(result) == 0 || string(result) == "null" {
		return CodeActionsResult{Actions: []CodeActionEntry{}}, nil
	}

	var actions []lsptypes.CodeAction
	if err := json.Unmarshal(result, &actions); err != nil {
		return CodeActionsResult{}, fmt.Errorf("dispatch: malformed code action result: %w", err)
	}

	out := make([]CodeActionEntry, 0, len(actions))
	for _, a := range actions {
		entry := CodeActionEntry{Title: a.Title, Kind: a.Kind, Command: a.Command}
		if a.Edit != nil {
			edit := TransformWorkspaceEdit(*a.Edit, sshHost)
			entry.Edit = &edit
		}
		out = append(out, entry)
	}
	return CodeActionsResult{Actions: out}, nil
}

// DocumentSymbolEntry is one entry of the transformed document-symbol tree.
type DocumentSymbolEntry struct {
	Name     string                 `json:"name"`
	Detail   string                 `json:"detail,omitempty"`
	Kind     string                 `json:"kind"`
	Line     int                    `json:"line"`
	Column   int                    `json:"column"`
	Children []DocumentSymbolEntry  `json:"children,omitempty"`
}

// TransformDocumentSymbols converts textDocument/documentSymbol's
// hierarchical-variant result into a nested tree; the flat
// SymbolInformation[] variant is flattened into the same shape with no
// children.
func TransformDocumentSymbols(result json.RawMessage) ([]DocumentSymbolEntry, error) {
	if len(result) == 0 || string(result) == "null" {
		return []DocumentSymbolEntry{}, nil
	}

	var nested []lsptypes.DocumentSymbol
	if err := json.Unmarshal(result, &nested); err == nil && len(nested) > 0 {
		return transformNestedSymbols(nested), nil
	}

	var flat []lsptypes.SymbolInformation
	if err := json.Unmarshal(result, &flat); err == nil {
		out := make([]DocumentSymbolEntry, 0, len(flat))
		for _, sym := range flat {
			out = append(out, DocumentSymbolEntry{
				Name:   sym.Name,
				Kind:   symbolKindName(sym.Kind),
				Line:   sym.Location.Range.Start.Line,
				Column: sym.Location.Range.Start.Character,
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("dispatch: unrecognized document symbol result shape")
}

func transformNestedSymbols(symbols []lsptypes.DocumentSymbol) []DocumentSymbolEntry {
	out := make([]DocumentSymbolEntry, 0, len(symbols))
	for _, sym := range symbols {
		entry := DocumentSymbolEntry{
			Name:   sym.Name,
			Detail: sym.Detail,
			Kind:   symbolKindName(sym.Kind),
			Line:   sym.SelectionRange.Start.Line,
			Column: sym.SelectionRange.Start.Character,
		}
		if len(sym.Children) > 0 {
			entry.Children = transformNestedSymbols(sym.Children)
		}
		out = append(out, entry)
	}
	return out
}

var symbolKindNames = map[int]string{
	1: "file", 2: "module", 3: "namespace", 4: "package", 5: "class",
	6: "method", 7: "property", 8: "field", 9: "constructor", 10: "enum",
	11: "interface", 12: "function", 13: "variable", 14: "constant",
	15: "string", 16: "number", 17: "boolean", 18: "array", 19: "object",
	20: "key", 21: "null", 22: "enum_member", 23: "struct", 24: "event",
	25: "operator", 26: "type_parameter",
}

func symbolKindName(kind int) string {
	if name, ok := symbolKindNames[kind]; ok {
		return name
	}
	return "unknown"
}

// CallHierarchyEntry is one entry of the transformed call-hierarchy
// response: a callable item's name, kind and start position.
type CallHierarchyEntry struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// TransformCallHierarchyItems converts a textDocument/prepareCallHierarchy
// result into the shape the picker/dispatch layer can pick a target item
// from.
func TransformCallHierarchyItems(result json.RawMessage, sshHost string) ([]CallHierarchyEntry, error) {
	if len(result) == 0 || string(result) == "null" {
		return []CallHierarchyEntry{}, nil
	}

	var items []lsptypes.CallHierarchyItem
	if err := json.Unmarshal(result, &items); err != nil {
		return nil, fmt.Errorf("dispatch: malformed call hierarchy item result: %w", err)
	}

	out := make([]CallHierarchyEntry, 0, len(items))
	for _, item := range items {
		out = append(out, CallHierarchyEntry{
			Name:   item.Name,
			Kind:   symbolKindName(item.Kind),
			File:   URIToFile(item.URI, sshHost),
			Line:   item.SelectionRange.Start.Line,
			Column: item.SelectionRange.Start.Character,
		})
	}
	return out, nil
}

// TransformIncomingCalls converts callHierarchy/incomingCalls' result.
func TransformIncomingCalls(result json.RawMessage, sshHost string) ([]CallHierarchyEntry, error) {
	if len(result) == 0 || string(result) == "null" {
		return []CallHierarchyEntry{}, nil
	}
	var calls []lsptypes.CallHierarchyIncomingCall
	if err := json.Unmarshal(result, &calls); err != nil {
		return nil, fmt.Errorf("dispatch: malformed incoming calls result: %w", err)
	}
	out := make([]CallHierarchyEntry, 0, len(calls))
	for _, c := range calls {
		out = append(out, CallHierarchyEntry{
			Name:   c.From.Name,
			Kind:   symbolKindName(c.From.Kind),
			File:   URIToFile(c.From.URI, sshHost),
			Line:   c.From.SelectionRange.Start.Line,
			Column: c.From.SelectionRange.Start.Character,
		})
	}
	return out, nil
}

// TransformOutgoingCalls converts callHierarchy/outgoingCalls' result.
func TransformOutgoingCalls(result json.RawMessage, sshHost string) ([]CallHierarchyEntry, error) {
	if len(result) == 0 || string(result) == "null" {
		return []CallHierarchyEntry{}, nil
	}
	var calls []lsptypes.CallHierarchyOutgoingCall
	if err := json.Unmarshal(result, &calls); err != nil {
		return nil, fmt.Errorf("dispatch: malformed outgoing calls result: %w", err)
	}
	out := make([]CallHierarchyEntry, 0, len(calls))
	for _, c := range calls {
		out = append(out, CallHierarchyEntry{
			Name:   c.To.Name,
			Kind:   symbolKindName(c.To.Kind),
			File:   URIToFile(c.To.URI, sshHost),
			Line:   c.To.SelectionRange.Start.Line,
			Column: c.To.SelectionRange.Start.Character,
		})
	}
	return out, nil
}

// PickerSymbolEntry is one flattened symbol candidate for the picker's
// workspace_symbol/document_symbol modes, per spec.md §4.5.
type PickerSymbolEntry struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// TransformWorkspaceSymbols converts workspace/symbol's SymbolInformation[]
// result into picker candidates.
func TransformWorkspaceSymbols(result json.RawMessage, sshHost string) ([]PickerSymbolEntry, error) {
	if len(result) == 0 || string(result) == "null" {
		return []PickerSymbolEntry{}, nil
	}
	var syms []lsptypes.SymbolInformation
	if err := json.Unmarshal(result, &syms); err != nil {
		return nil, fmt.Errorf("dispatch: malformed workspace symbol result: %w", err)
	}
	out := make([]PickerSymbolEntry, 0, len(syms))
	for _, s := range syms {
		out = append(out, PickerSymbolEntry{
			Name:   s.Name,
			Kind:   symbolKindName(s.Kind),
			File:   URIToFile(s.Location.URI, sshHost),
			Line:   s.Location.Range.Start.Line,
			Column: s.Location.Range.Start.Character,
		})
	}
	return out, nil
}

// TransformDocumentSymbolsFlat flattens textDocument/documentSymbol's
// result (hierarchical or flat) into a single-level picker candidate list,
// for document_symbol mode's local fuzzy filter over labels.
func TransformDocumentSymbolsFlat(result json.RawMessage, file, sshHost string) ([]PickerSymbolEntry, error) {
	if len(result) == 0 || string(result) == "null" {
		return []PickerSymbolEntry{}, nil
	}

	var nested []lsptypes.DocumentSymbol
	if err := json.Unmarshal(result, &nested); err == nil && len(nested) > 0 {
		var out []PickerSymbolEntry
		var walk func([]lsptypes.DocumentSymbol)
		walk = func(syms []lsptypes.DocumentSymbol) {
			for _, sym := range syms {
				out = append(out, PickerSymbolEntry{
					Name:   sym.Name,
					Kind:   symbolKindName(sym.Kind),
					File:   file,
					Line:   sym.SelectionRange.Start.Line,
					Column: sym.SelectionRange.Start.Character,
				})
				if len(sym.Children) > 0 {
					walk(sym.Children)
				}
			}
		}
		walk(nested)
		return out, nil
	}

	var flat []lsptypes.SymbolInformation
	if err := json.Unmarshal(result, &flat); err == nil {
		out := make([]PickerSymbolEntry, 0, len(flat))
		for _, sym := range flat {
			out = append(out, PickerSymbolEntry{
				Name:   sym.Name,
				Kind:   symbolKindName(sym.Kind),
				File:   URIToFile(sym.Location.URI, sshHost),
				Line:   sym.Location.Range.Start.Line,
				Column: sym.Location.Range.Start.Character,
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("dispatch: unrecognized document symbol result shape")
}

// FormatProgress renders a $/progress value as a human-readable ex-command
// string, per spec.md §4.4.
func FormatProgress(kind, title, message string, percentage int) string {
	switch kind {
	case "begin":
		if title == "" {
			return "LSP: indexing started"
		}
		return fmt.Sprintf("LSP: %s started", title)
	case "report":
		if percentage > 0 {
			return fmt.Sprintf("LSP: %s (%d%%)", message, percentage)
		}
		return fmt.Sprintf("LSP: %s", message)
	case "end":
		if title == "" {
			title = message
		}
		return fmt.Sprintf("LSP: %s complete", title)
	default:
		return fmt.Sprintf("LSP: %s", message)
	}
}
