// Package daemon implements the single-threaded, poll-driven event loop
// of spec.md §4.6: it owns the listener, every client connection, every
// LSP client's stdout, and the picker subprocess, and is the only
// goroutine that mutates the registry, pending table, and deferred queue.
package daemon

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"rockerboo/yac-bridge/internal/config"
	"rockerboo/yac-bridge/internal/lspregistry"
	"rockerboo/yac-bridge/internal/picker"
	"rockerboo/yac-bridge/internal/watch"
	"rockerboo/yac-bridge/internal/wire"
)

// idlePollTimeoutMs bounds how long one poll() call can block, so the
// event loop periodically wakes to check the idle deadline and drain
// watcher-goroutine handoff channels, per spec.md §4.6 step 2.
const idlePollTimeoutMs = 100

// Broadcaster mirrors daemon broadcasts to an optional secondary surface
// (spec.md §4.11's supplemented introspection feed). The zero value (nil)
// is a valid no-op.
type Broadcaster interface {
	Broadcast(action string, payload any)
}

// Daemon owns every piece of long-lived, event-loop-owned state described
// in spec.md §3.
type Daemon struct {
	cfg *config.Config
	log *logrus.Entry

	listener   *net.UnixListener
	listenerFD uintptr

	clients      map[wire.ClientID]*wire.ClientConnection
	nextClientID int64

	registry *lspregistry.Registry
	pending  *wire.PendingTable
	deferred *wire.DeferredQueue
	progress *wire.ProgressTracker

	picker *picker.State

	watchers    map[string]*watchHandle
	fileChanges chan watch.FileChange

	external chan wire.ExternalRequest

	docVersions map[string]int
	openDocs    map[string]bool
	recentFiles []string

	idleTimeout  time.Duration
	idleDeadline *time.Time

	introspect Broadcaster

	shuttingDown bool
	stopCh       chan struct{}
}

type watchHandle struct {
	stop func()
}

// New constructs a Daemon ready to Run once a listener is attached.
func New(cfg *config.Config, log *logrus.Entry, registry *lspregistry.Registry) *Daemon {
	idleSeconds := cfg.Global.IdleTimeoutSeconds
	if idleSeconds <= 0 {
		idleSeconds = 60
	}

	return &Daemon{
		cfg:         cfg,
		log:         log,
		clients:     make(map[wire.ClientID]*wire.ClientConnection),
		registry:    registry,
		pending:     wire.NewPendingTable(),
		deferred:    &wire.DeferredQueue{},
		progress:    wire.NewProgressTracker(),
		picker:      picker.New(log),
		watchers:    make(map[string]*watchHandle),
		fileChanges: make(chan watch.FileChange, 256),
		external:    make(chan wire.ExternalRequest, 32),
		docVersions: make(map[string]int),
		openDocs:    make(map[string]bool),
		idleTimeout: time.Duration(idleSeconds) * time.Second,
		stopCh:      make(chan struct{}),
	}
}

// SetIntrospect wires an optional introspection broadcaster.
func (d *Daemon) SetIntrospect(b Broadcaster) { d.introspect = b }

// Attach installs the listener the event loop will accept connections
// from, capturing its raw fd once (non-duplicating, via SyscallConn) for
// repeated use in the poll set.
func (d *Daemon) Attach(l *net.UnixListener) error {
	d.listener = l
	raw, err := l.SyscallConn()
	if err != nil {
		return fmt.Errorf("daemon: failed to get listener raw conn: %w", err)
	}
	return raw.Control(func(fd uintptr) { d.listenerFD = fd })
}

// Stop requests a graceful shutdown, for signal handlers (spec.md §5).
func (d *Daemon) Stop() {
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
}

// Run executes the event loop until idle-timeout with zero clients, or
// Stop is called. It returns when the daemon has finished shutting down
// every LSP server.
func (d *Daemon) Run() error {
	if d.listener == nil {
		return fmt.Errorf("daemon: Run called before Attach")
	}

	d.armIdleDeadline()

	for {
		select {
		case <-d.stopCh:
			d.log.Info("daemon: stop requested")
			d.shutdownAll()
			return nil
		default:
		}

		if d.idleDeadline != nil && len(d.clients) == 0 && time.Now().After(*d.idleDeadline) {
			d.log.Info("daemon: idle timeout reached with zero clients, exiting")
			d.shutdownAll()
			return nil
		}

		if err := d.iterate(); err != nil {
			return err
		}

		d.drainFileChanges()
		d.drainExternal()
	}
}

// iterate runs exactly one poll/dispatch cycle (spec.md §4.6's numbered
// steps).
func (d *Daemon) iterate() error {
	fds, sources := d.buildPollSet()

	n, err := unix.Poll(fds, d.pollTimeoutMs())
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("daemon: poll failed: %w", err)
	}
	if n == 0 {
		return nil
	}

	for i, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		src := sources[i]

		switch src.kind {
		case sourceListener:
			if pfd.Revents&unix.POLLIN != 0 {
				d.acceptOne()
			}
		case sourceClient:
			d.serviceClient(src.clientID, pfd.Revents)
		case sourceLSP:
			d.serviceLSP(src.lspKey, pfd.Revents)
		case sourcePicker:
			d.servicePicker(pfd.Revents)
		}
	}

	return nil
}

func (d *Daemon) pollTimeoutMs() int {
	if d.idleDeadline == nil {
		return idlePollTimeoutMs
	}
	remaining := time.Until(*d.idleDeadline).Milliseconds()
	if remaining <= 0 {
		return 0
	}
	if remaining > idlePollTimeoutMs {
		return idlePollTimeoutMs
	}
	return int(remaining)
}

// armIdleDeadline sets the idle deadline if there are currently no
// clients, per spec.md §3's lifecycle summary.
func (d *Daemon) armIdleDeadline() {
	if len(d.clients) == 0 {
		deadline := time.Now().Add(d.idleTimeout)
		d.idleDeadline = &deadline
	}
}

func (d *Daemon) clearIdleDeadline() { d.idleDeadline = nil }

// broadcastJSON marshals payload and writes it to every connected client
// in map order, continuing past any one client's write failure, per
// spec.md §4.4's ordering/tie-break rule. It also mirrors to the optional
// introspection broadcaster.
func (d *Daemon) broadcastJSON(action string, payload any) {
	body, err := wire.EncodeResponse(0, payload)
	if err != nil {
		d.log.WithError(err).WithField("action", action).Warn("daemon: failed to encode broadcast")
		return
	}

	var failed []wire.ClientID
	for id, conn := range d.clients {
		if err := conn.Write(body); err != nil {
			d.log.WithError(err).WithField("client", id).Debug("daemon: broadcast write failed, scheduling removal")
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		d.removeClient(id)
	}

	if d.introspect != nil {
		d.introspect.Broadcast(action, payload)
	}
}

// broadcastEx sends an ex-command string to every client (progress
// updates, crash toasts).
func (d *Daemon) broadcastEx(cmd string) {
	body, err := wire.EncodeEx(cmd)
	if err != nil {
		d.log.WithError(err).Warn("daemon: failed to encode ex broadcast")
		return
	}

	var failed []wire.ClientID
	for id, conn := range d.clients {
		if err := conn.Write(body); err != nil {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		d.removeClient(id)
	}
}

// drainFileChanges folds watcher-goroutine output into
// workspace/didChangeWatchedFiles notifications toward the relevant LSP
// clients, non-blockingly: this is the channel-handoff point spec.md §5
// describes for auxiliary goroutines, since raw OS channels aren't
// poll()-able alongside file descriptors.
func (d *Daemon) drainFileChanges() {
	for {
		select {
		case change := <-d.fileChanges:
			d.forwardFileChange(change)
		default:
			return
		}
	}
}

func (d *Daemon) forwardFileChange(change watch.FileChange) {
	for _, c := range d.registry.All() {
		if !c.Initialized {
			continue
		}
		params := map[string]any{
			"changes": []map[string]any{
				{"uri": change.URI, "type": int(change.Type)},
			},
		}
		if err := c.SendNotification("workspace/didChangeWatchedFiles", params); err != nil {
			d.log.WithError(err).WithField("lsp_key", c.Key).Warn("daemon: failed to forward file change")
		}
	}
}

// shutdownAll tears down every client and LSP server, closing the
// listener last, per spec.md §5's shutdown sequence.
func (d *Daemon) shutdownAll() {
	d.shuttingDown = true

	for _, h := range d.watchers {
		h.stop()
	}

	for id := range d.clients {
		d.removeClient(id)
	}

	const shutdownGrace = 2 * time.Second
	clients := d.registry.All()
	for _, c := range clients {
		if err := c.Shutdown(); err != nil {
			d.log.WithError(err).WithField("lsp_key", c.Key).Debug("daemon: graceful shutdown request failed")
		}
	}
	if len(clients) > 0 {
		time.Sleep(shutdownGrace)
	}
	for _, c := range clients {
		if err := c.Terminate(); err != nil {
			d.log.WithError(err).WithField("lsp_key", c.Key).Debug("daemon: SIGTERM failed")
		}
	}
	for _, c := range clients {
		c.Kill()
	}

	d.picker.Close()
	if d.listener != nil {
		d.listener.Close()
	}
}
