package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Listen binds the Unix domain socket at path, per spec.md §6.1: refuse to
// start if a previous daemon is already listening there, but remove a
// stale socket file left behind by an unclean exit.
func Listen(path string) (*net.UnixListener, error) {
	if err := probeStaleSocket(path); err != nil {
		return nil, err
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("daemon: failed to resolve socket address %s: %w", path, err)
	}

	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("daemon: failed to listen on %s: %w", path, err)
	}
	return l, nil
}

// probeStaleSocket dials the existing socket file (if any) to distinguish
// "another daemon is live" from "a stale socket file remains"; only the
// latter is removed.
func probeStaleSocket(path string) error {
	_, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil
		}
		return fmt.Errorf("daemon: failed to stat socket path %s: %w", path, statErr)
	}

	conn, dialErr := net.Dial("unix", path)
	if dialErr == nil {
		conn.Close()
		return fmt.Errorf("daemon: another instance is already listening on %s", path)
	}

	if errors.Is(dialErr, syscall.ECONNREFUSED) || errors.Is(dialErr, syscall.ENOENT) {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("daemon: failed to remove stale socket %s: %w", path, err)
		}
		return nil
	}

	// Any other dial failure (e.g. permission) is surfaced rather than
	// silently unlinking someone else's socket.
	return fmt.Errorf("daemon: socket path %s exists and could not be probed: %w", path, dialErr)
}
