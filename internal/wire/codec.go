// Package wire implements the editor-facing channel protocol (spec.md
// §4.1/§6.1): newline-delimited JSON arrays over a Unix socket, plus the
// pending-request and deferred-request bookkeeping that routes LSP
// responses back to the client that asked for them.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ClientID identifies a connected editor, assigned monotonically at accept
// time (spec.md §3).
type ClientID int64

// MessageKind classifies one decoded inbound array.
type MessageKind int

const (
	KindRequest MessageKind = iota
	KindNotification
	KindExprResponse
)

// Inbound is one decoded editor->daemon line.
type Inbound struct {
	Kind   MessageKind
	ID     int64 // positive request id, 0 for notification, negative for expr-response
	Method string
	Params json.RawMessage
	Result json.RawMessage // only set for KindExprResponse
}

// DecodeLine parses one newline-delimited JSON array per spec.md §6.1:
//
//	[<positive id>, {"method": "...", "params": {...}}]   -> request
//	[0, {"method": "...", "params": {...}}]                -> notification
//	[<negative id>, <result>]                              -> expr response
func DecodeLine(line []byte) (Inbound, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Inbound{}, fmt.Errorf("wire: malformed line: %w", err)
	}
	if len(raw) != 2 {
		return Inbound{}, fmt.Errorf("wire: expected a 2-element array, got %d elements", len(raw))
	}

	var id int64
	if err := json.Unmarshal(raw[0], &id); err != nil {
		return Inbound{}, fmt.Errorf("wire: non-integer id: %w", err)
	}

	if id < 0 {
		return Inbound{Kind: KindExprResponse, ID: id, Result: raw[1]}, nil
	}

	var call struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(raw[1], &call); err != nil {
		return Inbound{}, fmt.Errorf("wire: malformed call payload: %w", err)
	}

	kind := KindRequest
	if id == 0 {
		kind = KindNotification
	}

	return Inbound{Kind: kind, ID: id, Method: call.Method, Params: call.Params}, nil
}

// EncodeResponse builds a `[id, result]` line replying to an editor
// request.
func EncodeResponse(id int64, result any) ([]byte, error) {
	return encodeLine(id, result)
}

// EncodeEx builds an `["ex", "<vim ex command string>"]` line.
func EncodeEx(cmd string) ([]byte, error) {
	return encodeLine("ex", cmd)
}

// EncodeExpr builds an `["expr", "<expression>", <neg id>]` line, a
// daemon-initiated query to the editor (spec.md §6.1).
func EncodeExpr(expr string, id int64) ([]byte, error) {
	body, err := json.Marshal([]any{"expr", expr, id})
	if err != nil {
		return nil, fmt.Errorf("wire: failed to encode expr: %w", err)
	}
	return append(body, '\n'), nil
}

func encodeLine(first, second any) ([]byte, error) {
	body, err := json.Marshal([]any{first, second})
	if err != nil {
		return nil, fmt.Errorf("wire: failed to encode line: %w", err)
	}
	return append(body, '\n'), nil
}

// LineBuffer accumulates bytes read from a client socket and extracts
// complete newline-delimited lines, retaining any trailing partial line
// across reads (spec.md §3's ClientConnection "accumulating read buffer").
type LineBuffer struct {
	buf bytes.Buffer
}

// Feed appends newly read bytes.
func (l *LineBuffer) Feed(p []byte) { l.buf.Write(p) }

// Lines extracts every complete line currently buffered, in order.
func (l *LineBuffer) Lines() [][]byte {
	var lines [][]byte
	for {
		data := l.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		line := make([]byte, idx)
		copy(line, data[:idx])
		l.buf.Next(idx + 1)
		line = bytes.TrimRight(line, "\r")
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}
