package daemon

import (
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"rockerboo/yac-bridge/internal/config"
	"rockerboo/yac-bridge/internal/lspregistry"
	"rockerboo/yac-bridge/internal/wire"
)

func testDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := config.Default("/tmp/yac-bridge-test.log")
	log := logrus.NewEntry(logrus.New())
	registry := lspregistry.New(cfg, log)
	return New(cfg, log, registry)
}

func fakeClientConn(t *testing.T) *net.UnixConn {
	t.Helper()
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	require.NoError(t, err)

	f := os.NewFile(uintptr(fds[0]), "")
	conn, err := net.FileConn(f)
	require.NoError(t, err)
	f.Close()

	// the peer half would normally be an accepted editor socket; close it
	// immediately since these tests never write through it.
	peer := os.NewFile(uintptr(fds[1]), "")
	peer.Close()

	return conn.(*net.UnixConn)
}

func TestRemoveClientLeavesNoPendingOrphans(t *testing.T) {
	d := testDaemon(t)

	id := wire.ClientID(1)
	d.clients[id] = wire.NewClientConnection(id, fakeClientConn(t))

	d.pending.PutLsp(wire.LspKey("go|/a", 1), wire.PendingLspRequest{ClientID: id})
	d.pending.PutLsp(wire.LspKey("go|/a", 2), wire.PendingLspRequest{ClientID: 2})
	d.deferred.Push(wire.DeferredRequest{ClientID: id, RawLine: []byte(`["goto_definition",1,{}]`)})

	d.removeClient(id)

	require.Equal(t, 1, d.pending.LspCount())
	_, stillThere := d.clients[id]
	require.False(t, stillThere)
	require.Equal(t, 0, d.deferred.Len())
}

func TestRemoveClientRearmsIdleDeadlineWhenEmpty(t *testing.T) {
	d := testDaemon(t)
	d.clearIdleDeadline()

	id := wire.ClientID(1)
	d.clients[id] = wire.NewClientConnection(id, fakeClientConn(t))

	d.removeClient(id)

	require.NotNil(t, d.idleDeadline, "last client disconnecting should rearm the idle deadline")
}

func TestRemoveClientDoesNotRearmDeadlineDuringShutdown(t *testing.T) {
	d := testDaemon(t)
	d.clearIdleDeadline()
	d.shuttingDown = true

	id := wire.ClientID(1)
	d.clients[id] = wire.NewClientConnection(id, fakeClientConn(t))

	d.removeClient(id)

	require.Nil(t, d.idleDeadline)
}
