package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLineRequest(t *testing.T) {
	in, err := DecodeLine([]byte(`[1,{"method":"hover","params":{"file":"/a.go"}}]`))
	require.NoError(t, err)
	assert.Equal(t, KindRequest, in.Kind)
	assert.Equal(t, int64(1), in.ID)
	assert.Equal(t, "hover", in.Method)
}

func TestDecodeLineNotification(t *testing.T) {
	in, err := DecodeLine([]byte(`[0,{"method":"did_change","params":{}}]`))
	require.NoError(t, err)
	assert.Equal(t, KindNotification, in.Kind)
}

func TestDecodeLineExprResponse(t *testing.T) {
	in, err := DecodeLine([]byte(`[-3,"some result"]`))
	require.NoError(t, err)
	assert.Equal(t, KindExprResponse, in.Kind)
	assert.Equal(t, int64(-3), in.ID)
	assert.JSONEq(t, `"some result"`, string(in.Result))
}

func TestDecodeLineRejectsNonArray(t *testing.T) {
	_, err := DecodeLine([]byte(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestDecodeLineRejectsWrongArity(t *testing.T) {
	_, err := DecodeLine([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestDecodeLineRejectsNonIntegerID(t *testing.T) {
	_, err := DecodeLine([]byte(`["nope",{}]`))
	assert.Error(t, err)
}

func TestEncodeResponseRoundTrips(t *testing.T) {
	line, err := EncodeResponse(5, map[string]any{"contents": "docs"})
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), line[len(line)-1])

	in, err := DecodeLine(line[:len(line)-1])
	require.NoError(t, err)
	assert.Equal(t, KindRequest, in.Kind, "a [id, result] line with a positive id parses as DecodeLine's request shape; the daemon only ever sends this to editor clients, never feeds it back through DecodeLine")
}

func TestEncodeExFormatsExLine(t *testing.T) {
	line, err := EncodeEx("echo 'hello'")
	require.NoError(t, err)
	assert.Contains(t, string(line), `"ex"`)
	assert.Contains(t, string(line), "hello")
}

func TestEncodeExprFormatsExprLine(t *testing.T) {
	line, err := EncodeExpr("expand('%')", -7)
	require.NoError(t, err)
	assert.Contains(t, string(line), `"expr"`)
	assert.Contains(t, string(line), "-7")
}

func TestLineBufferExtractsCompleteLines(t *testing.T) {
	var lb LineBuffer
	lb.Feed([]byte("[1,{}]\n[2,{}]\n[3,"))

	lines := lb.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "[1,{}]", string(lines[0]))
	assert.Equal(t, "[2,{}]", string(lines[1]))

	lb.Feed([]byte("{}]\n"))
	lines = lb.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "[3,{}]", string(lines[0]))
}

func TestLineBufferTrimsTrailingCR(t *testing.T) {
	var lb LineBuffer
	lb.Feed([]byte("[1,{}]\r\n"))

	lines := lb.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "[1,{}]", string(lines[0]))
}

func TestLineBufferSkipsBlankLines(t *testing.T) {
	var lb LineBuffer
	lb.Feed([]byte("\n[1,{}]\n\n"))

	lines := lb.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "[1,{}]", string(lines[0]))
}
