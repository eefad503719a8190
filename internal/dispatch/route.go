package dispatch

import (
	"encoding/json"
	"fmt"

	"rockerboo/yac-bridge/internal/lsptypes"
)

// RouteResult transforms a raw LSP response for method into the compact
// editor-facing payload, dispatching by LSP method name so the daemon's
// event loop never needs its own method switch, per spec.md §4.4/§6.1.
func RouteResult(method string, result json.RawMessage, sshHost string) (any, error) {
	switch method {
	case "textDocument/definition", "textDocument/declaration",
		"textDocument/typeDefinition", "textDocument/implementation":
		return TransformLocations(result, sshHost)
	case "textDocument/hover":
		return TransformHover(result)
	case "textDocument/completion":
		return TransformCompletion(result)
	case "textDocument/references":
		return TransformReferences(result, sshHost)
	case "textDocument/rename":
		return routeWorkspaceEdit(result, sshHost)
	case "textDocument/inlayHint":
		return TransformInlayHints(result)
	case "textDocument/foldingRange":
		return TransformFoldingRanges(result)
	case "textDocument/codeAction":
		return TransformCodeActions(result, sshHost)
	case "textDocument/documentSymbol":
		return TransformDocumentSymbols(result)
	case "textDocument/willSaveWaitUntil":
		return routeTextEdits(result)
	case "textDocument/prepareCallHierarchy":
		return TransformCallHierarchyItems(result, sshHost)
	case "callHierarchy/incomingCalls":
		return TransformIncomingCalls(result, sshHost)
	case "callHierarchy/outgoingCalls":
		return TransformOutgoingCalls(result, sshHost)
	case "workspace/executeCommand":
		var passthrough any
		if len(result) > 0 && string(result) != "null" {
			if err := json.Unmarshal(result, &passthrough); err != nil {
				return nil, fmt.Errorf("dispatch: malformed executeCommand result: %w", err)
			}
		}
		return passthrough, nil
	default:
		return nil, fmt.Errorf("dispatch: no result transform registered for method %q", method)
	}
}

func routeWorkspaceEdit(result json.RawMessage, sshHost string) (RenameResult, error) {
	if len(result) == 0 || string(result) == "null" {
		return RenameResult{Edits: []EditEntry{}}, nil
	}
	var edit lsptypes.WorkspaceEdit
	if err := json.Unmarshal(result, &edit); err != nil {
		return RenameResult{}, fmt.Errorf("dispatch: malformed workspace edit result: %w", err)
	}
	return TransformWorkspaceEdit(edit, sshHost), nil
}

func routeTextEdits(result json.RawMessage) ([]TextEdit, error) {
	if len(result) == 0 || string(result) == "null" {
		return []TextEdit{}, nil
	}
	var edits []lsptypes.TextEdit
	if err := json.Unmarshal(result, &edits); err != nil {
		return nil, fmt.Errorf("dispatch: malformed text edit result: %w", err)
	}
	return toTextEdits(edits), nil
}
