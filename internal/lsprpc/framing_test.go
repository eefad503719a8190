package lsprpc

import (
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBufferExtractsOneCompleteFrame(t *testing.T) {
	var fb FrameBuffer
	fb.Feed(Encode([]byte(`{"jsonrpc":"2.0","id":1,"method":"foo"}`)))

	body, err := fb.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"foo"}`, string(body))

	_, err = fb.Next()
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestFrameBufferHandlesSplitReads(t *testing.T) {
	var fb FrameBuffer
	full := Encode([]byte(`{"jsonrpc":"2.0","id":1,"method":"foo"}`))

	fb.Feed(full[:10])
	_, err := fb.Next()
	assert.ErrorIs(t, err, ErrIncomplete)

	fb.Feed(full[10:])
	body, err := fb.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"foo"}`, string(body))
}

func TestFrameBufferHandlesBackToBackFrames(t *testing.T) {
	var fb FrameBuffer
	fb.Feed(Encode([]byte(`{"jsonrpc":"2.0","id":1,"method":"a"}`)))
	fb.Feed(Encode([]byte(`{"jsonrpc":"2.0","id":2,"method":"b"}`)))

	first, err := fb.Next()
	require.NoError(t, err)
	assert.Contains(t, string(first), `"method":"a"`)

	second, err := fb.Next()
	require.NoError(t, err)
	assert.Contains(t, string(second), `"method":"b"`)
}

func TestFrameBufferRejectsOversizedFrame(t *testing.T) {
	var fb FrameBuffer
	fb.Feed([]byte("Content-Length: 999999999999\r\n\r\n"))

	_, err := fb.Next()
	assert.ErrorIs(t, err, ErrOversizedFrame)
}

func TestFrameBufferToleratesUnknownHeaders(t *testing.T) {
	var fb FrameBuffer
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"foo"}`)
	fb.Feed([]byte("Content-Type: application/vscode-jsonrpc; charset=utf-8\r\n"))
	fb.Feed([]byte("Content-Length: "))
	fb.Feed([]byte(itoa(len(body))))
	fb.Feed([]byte("\r\n\r\n"))
	fb.Feed(body)

	got, err := fb.Next()
	require.NoError(t, err)
	assert.JSONEq(t, string(body), string(got))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestClassifyResponse(t *testing.T) {
	msg, err := Classify([]byte(`{"jsonrpc":"2.0","id":3,"result":{"ok":true}}`))
	require.NoError(t, err)
	assert.Equal(t, KindResponse, msg.Kind)
	assert.Equal(t, uint64(3), msg.ID.Num)
	assert.JSONEq(t, `{"ok":true}`, string(msg.Result))
}

func TestClassifyServerRequest(t *testing.T) {
	msg, err := Classify([]byte(`{"jsonrpc":"2.0","id":4,"method":"workspace/applyEdit","params":{}}`))
	require.NoError(t, err)
	assert.Equal(t, KindServerRequest, msg.Kind)
	assert.Equal(t, "workspace/applyEdit", msg.Method)
}

func TestClassifyNotification(t *testing.T) {
	msg, err := Classify([]byte(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{}}`))
	require.NoError(t, err)
	assert.Equal(t, KindNotification, msg.Kind)
}

func TestClassifyErrorResponse(t *testing.T) {
	msg, err := Classify([]byte(`{"jsonrpc":"2.0","id":5,"error":{"code":-32601,"message":"method not found"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindResponse, msg.Kind)
	require.NotNil(t, msg.Err)
	assert.Equal(t, "method not found", msg.Err.Message)
}

func TestEncodeRequestRoundTripsThroughClassify(t *testing.T) {
	body, err := EncodeRequest(7, "textDocument/hover", map[string]any{"foo": "bar"})
	require.NoError(t, err)

	msg, err := Classify(body)
	require.NoError(t, err)
	assert.Equal(t, KindServerRequest, msg.Kind)
	assert.Equal(t, "textDocument/hover", msg.Method)
	assert.Equal(t, uint64(7), msg.ID.Num)
}

func TestEncodeResponseRoundTripsThroughClassify(t *testing.T) {
	body, err := EncodeResponse(jsonrpc2.ID{Num: 9}, map[string]any{"answer": 42})
	require.NoError(t, err)

	msg, err := Classify(body)
	require.NoError(t, err)
	assert.Equal(t, KindResponse, msg.Kind)
	assert.JSONEq(t, `{"answer":42}`, string(msg.Result))
}
