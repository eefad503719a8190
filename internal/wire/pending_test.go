package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLspKeyComposesServerAndID(t *testing.T) {
	assert.Equal(t, "go|/home/me#7", LspKey("go|/home/me", 7))
	assert.Equal(t, "go|/home/me#0", LspKey("go|/home/me", 0))
}

func TestPendingTablePutTake(t *testing.T) {
	tbl := NewPendingTable()
	key := LspKey("go|/home/me", 1)
	tbl.PutLsp(key, PendingLspRequest{Method: "textDocument/hover", ClientID: 1})

	req, ok := tbl.TakeLsp(key)
	require.True(t, ok)
	assert.Equal(t, "textDocument/hover", req.Method)

	_, ok = tbl.TakeLsp(key)
	assert.False(t, ok, "a taken entry must not be retakeable")
}

func TestRemoveClientLspLeavesNoOrphans(t *testing.T) {
	tbl := NewPendingTable()
	tbl.PutLsp(LspKey("go|/a", 1), PendingLspRequest{ClientID: 1})
	tbl.PutLsp(LspKey("go|/a", 2), PendingLspRequest{ClientID: 2})
	tbl.PutLsp(LspKey("go|/a", 3), PendingLspRequest{ClientID: 1})

	tbl.RemoveClientLsp(1)

	assert.Equal(t, 1, tbl.LspCount())
	_, ok := tbl.TakeLsp(LspKey("go|/a", 2))
	assert.True(t, ok)
}

func TestRemoveServerLspOnlyDeletesThatServersEntries(t *testing.T) {
	tbl := NewPendingTable()
	tbl.PutLsp(LspKey("go|/a", 1), PendingLspRequest{ClientID: 1})
	tbl.PutLsp(LspKey("go|/a", 2), PendingLspRequest{ClientID: 1})
	tbl.PutLsp(LspKey("rust|/b", 1), PendingLspRequest{ClientID: 1})

	tbl.RemoveServerLsp("go|/a")

	assert.Equal(t, 1, tbl.LspCount())
	_, ok := tbl.TakeLsp(LspKey("rust|/b", 1))
	assert.True(t, ok)
}

func TestExprIDsAreNegativeAndDisjointFromLsp(t *testing.T) {
	tbl := NewPendingTable()
	id1 := tbl.NextExprID()
	id2 := tbl.NextExprID()
	assert.Negative(t, id1)
	assert.Negative(t, id2)
	assert.NotEqual(t, id1, id2)
}

func TestDeferredQueueFIFOAndRemoveClient(t *testing.T) {
	q := &DeferredQueue{}
	q.Push(DeferredRequest{ClientID: 1, RawLine: []byte("a")})
	q.Push(DeferredRequest{ClientID: 2, RawLine: []byte("b")})
	q.Push(DeferredRequest{ClientID: 1, RawLine: []byte("c")})

	q.RemoveClient(1)
	assert.Equal(t, 1, q.Len())

	drained := q.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, []byte("b"), drained[0].RawLine)
	assert.Equal(t, 0, q.Len())
}

func TestProgressTrackerBeginTitleEnd(t *testing.T) {
	p := NewProgressTracker()
	p.Begin("tok-1", "Indexing")

	title, ok := p.Title("tok-1")
	require.True(t, ok)
	assert.Equal(t, "Indexing", title)

	p.End("tok-1")
	_, ok = p.Title("tok-1")
	assert.False(t, ok)
}
