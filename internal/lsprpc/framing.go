// Package lsprpc implements the Content-Length framed JSON-RPC 2.0
// transport between the daemon and one LSP server subprocess (spec.md
// §4.1/§4.2), plus the per-server client lifecycle (spawn, initialize
// handshake, steady state, crash handling).
//
// Framing is hand-rolled against an in-memory byte buffer rather than
// built on sourcegraph/jsonrpc2's ObjectCodec, because that codec's
// ReadObject blocks on its underlying reader until a full frame arrives —
// incompatible with spec.md §4.1/§4.6's requirement that a poll-driven
// read only ever consumes whatever bytes are currently available and
// retains a short read for the next wakeup. The JSON-RPC envelope
// classification (§4.1's request/notification/response polymorphism) does
// reuse sourcegraph/jsonrpc2's ID/Request/Response types instead of
// reinventing them.
package lsprpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sourcegraph/jsonrpc2"
)

// MaxContentLength caps a single frame's declared Content-Length, per
// spec.md §4.1: larger is treated as fatal for that LspClient.
const MaxContentLength = 64 * 1024 * 1024

// ErrOversizedFrame indicates a Content-Length header exceeding
// MaxContentLength.
var ErrOversizedFrame = errors.New("lsprpc: Content-Length exceeds maximum frame size")

// ErrIncomplete indicates the buffer does not yet hold a complete frame;
// callers should retain the buffer and retry after more bytes arrive.
var ErrIncomplete = errors.New("lsprpc: incomplete frame")

// FrameBuffer accumulates bytes read from an LSP server's stdout and
// extracts complete Content-Length framed JSON bodies, retaining any
// trailing partial frame across calls. This is the "partial-frame read
// buffer" of spec.md §3's LspClient data model.
type FrameBuffer struct {
	buf bytes.Buffer
}

// Feed appends newly read bytes to the buffer.
func (f *FrameBuffer) Feed(p []byte) {
	f.buf.Write(p)
}

// Next extracts one complete frame's JSON body from the buffer, if
// present. It returns ErrIncomplete when more bytes are needed, or
// ErrOversizedFrame/a header-parse error for malformed input — in which
// case the caller should discard buffered bytes up to the next
// recognizable header, per spec.md §4.1's failure policy.
func (f *FrameBuffer) Next() ([]byte, error) {
	data := f.buf.Bytes()

	headerEnd := bytes.Index(data, []byte("\r\n\r\n"))
	if headerEnd == -1 {
		return nil, ErrIncomplete
	}

	contentLength, err := parseContentLength(data[:headerEnd])
	if err != nil {
		// Drop the unparsable header block so we don't mis-assign bytes
		// across messages; resync on the next CRLFCRLF, if any.
		f.buf.Next(headerEnd + 4)
		return nil, fmt.Errorf("lsprpc: %w", err)
	}

	if contentLength > MaxContentLength {
		f.buf.Next(headerEnd + 4)
		return nil, ErrOversizedFrame
	}

	bodyStart := headerEnd + 4
	if len(data) < bodyStart+contentLength {
		return nil, ErrIncomplete
	}

	body := make([]byte, contentLength)
	copy(body, data[bodyStart:bodyStart+contentLength])
	f.buf.Next(bodyStart + contentLength)

	return body, nil
}

func parseContentLength(header []byte) (int, error) {
	for _, line := range strings.Split(string(header), "\r\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(line), "content-length:") {
			continue // unknown headers are tolerated, per spec.md §4.1
		}
		value := strings.TrimSpace(line[len("Content-Length:"):])
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid Content-Length %q: %w", value, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("missing Content-Length header")
}

// Encode frames a JSON-RPC message body for writing to an LSP server's
// stdin.
func Encode(body []byte) []byte {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	out = append(out, body...)
	return out
}

// MessageKind classifies a decoded frame per spec.md §4.1's tagged
// variant: request/notification/response.
type MessageKind int

const (
	KindResponse MessageKind = iota
	KindNotification
	KindServerRequest
)

// Message is one classified inbound frame.
type Message struct {
	Kind   MessageKind
	ID     jsonrpc2.ID
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Err    *jsonrpc2.Error
}

// Classify decodes a raw frame body and classifies it, reusing
// sourcegraph/jsonrpc2's ID/Error envelope types.
func Classify(body []byte) (Message, error) {
	var probe struct {
		ID     *jsonrpc2.ID     `json:"id"`
		Method string           `json:"method"`
		Result json.RawMessage  `json:"result"`
		Error  *jsonrpc2.Error  `json:"error"`
		Params json.RawMessage  `json:"params"`
	}

	if err := json.Unmarshal(body, &probe); err != nil {
		return Message{}, fmt.Errorf("lsprpc: malformed JSON-RPC body: %w", err)
	}

	switch {
	case probe.ID != nil && probe.Method == "":
		return Message{Kind: KindResponse, ID: *probe.ID, Result: probe.Result, Err: probe.Error}, nil
	case probe.ID != nil:
		return Message{Kind: KindServerRequest, ID: *probe.ID, Method: probe.Method, Params: probe.Params}, nil
	default:
		return Message{Kind: KindNotification, Method: probe.Method, Params: probe.Params}, nil
	}
}

// EncodeRequest builds a JSON-RPC request body for method/params with the
// given id.
func EncodeRequest(id uint64, method string, params any) ([]byte, error) {
	req := &jsonrpc2.Request{
		Method: method,
		ID:     jsonrpc2.ID{Num: id},
	}
	if err := req.SetParams(params); err != nil {
		return nil, fmt.Errorf("lsprpc: failed to set request params: %w", err)
	}
	return json.Marshal(req)
}

// EncodeNotification builds a JSON-RPC notification body for method/params.
func EncodeNotification(method string, params any) ([]byte, error) {
	req := &jsonrpc2.Request{Method: method, Notif: true}
	if err := req.SetParams(params); err != nil {
		return nil, fmt.Errorf("lsprpc: failed to set notification params: %w", err)
	}
	return json.Marshal(req)
}

// EncodeResponse builds a JSON-RPC response body replying to a
// server-originated request id.
func EncodeResponse(id jsonrpc2.ID, result any) ([]byte, error) {
	resp := &jsonrpc2.Response{ID: id}
	if err := resp.SetResult(result); err != nil {
		return nil, fmt.Errorf("lsprpc: failed to set response result: %w", err)
	}
	return json.Marshal(resp)
}
