package wire

import (
	"fmt"
	"net"
)

// ClientConnection is one accepted editor connection: its socket, the
// line buffer accumulating partial reads, and its ClientID (spec.md §3).
type ClientConnection struct {
	ID   ClientID
	Conn *net.UnixConn
	Buf  LineBuffer
}

// NewClientConnection wraps an accepted socket.
func NewClientConnection(id ClientID, conn *net.UnixConn) *ClientConnection {
	return &ClientConnection{ID: id, Conn: conn}
}

// FD returns the raw file descriptor backing this connection, for
// registration in the daemon's poll set (spec.md §4.6). It does not
// duplicate the descriptor, so closing Conn still closes the same fd the
// poll set observed.
func (c *ClientConnection) FD() (uintptr, error) {
	raw, err := c.Conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("wire: failed to get raw conn: %w", err)
	}

	var fd uintptr
	ctrlErr := raw.Control(func(f uintptr) { fd = f })
	if ctrlErr != nil {
		return 0, fmt.Errorf("wire: failed to read fd: %w", ctrlErr)
	}
	return fd, nil
}

// Write is best-effort, per spec.md §4.7: it makes a single write and
// returns any error; the caller removes the connection on failure.
func (c *ClientConnection) Write(line []byte) error {
	_, err := c.Conn.Write(line)
	return err
}

// Read pulls whatever bytes are currently available into the line buffer.
// A single Read call after a poll-readable wakeup returns promptly with a
// short read rather than blocking for a full line, matching spec.md
// §4.1's framing contract.
func (c *ClientConnection) Read(scratch []byte) (n int, err error) {
	n, err = c.Conn.Read(scratch)
	if n > 0 {
		c.Buf.Feed(scratch[:n])
	}
	return n, err
}
