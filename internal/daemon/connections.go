package daemon

import (
	"fmt"

	"golang.org/x/sys/unix"

	"rockerboo/yac-bridge/internal/lspregistry"
	"rockerboo/yac-bridge/internal/lsprpc"
	"rockerboo/yac-bridge/internal/wire"
)

const readScratchSize = 64 * 1024

// acceptOne pulls one connection off the listener, per spec.md §4.7.
func (d *Daemon) acceptOne() {
	conn, err := d.listener.AcceptUnix()
	if err != nil {
		d.log.WithError(err).Warn("daemon: accept failed")
		return
	}

	d.nextClientID++
	id := wire.ClientID(d.nextClientID)
	d.clients[id] = wire.NewClientConnection(id, conn)
	d.clearIdleDeadline()

	d.log.WithField("client", id).Info("daemon: client connected")
}

// removeClient closes a client's socket and discards everything it owns,
// per spec.md §4.7: its pending LSP requests (future responses dropped as
// unmatched) and its deferred requests. If this empties the client map,
// the idle deadline is rearmed.
func (d *Daemon) removeClient(id wire.ClientID) {
	conn, ok := d.clients[id]
	if !ok {
		return
	}
	conn.Conn.Close()
	delete(d.clients, id)

	d.pending.RemoveClientLsp(id)
	d.pending.RemoveClientExpr(id)
	d.deferred.RemoveClient(id)

	d.log.WithField("client", id).Info("daemon: client disconnected")

	if len(d.clients) == 0 && !d.shuttingDown {
		d.armIdleDeadline()
	}
}

// serviceClient reads whatever is available on a client's socket and
// processes every complete line extracted, per spec.md §4.6 step 5.
func (d *Daemon) serviceClient(id wire.ClientID, revents int16) {
	conn, ok := d.clients[id]
	if !ok {
		return
	}

	if revents&(unix.POLLHUP|unix.POLLERR) != 0 && revents&unix.POLLIN == 0 {
		d.removeClient(id)
		return
	}

	scratch := make([]byte, readScratchSize)
	n, err := conn.Read(scratch)
	if n == 0 && err != nil {
		d.removeClient(id)
		return
	}

	for _, line := range conn.Buf.Lines() {
		d.handleLine(id, line)
	}
}

func (d *Daemon) handleLine(id wire.ClientID, line []byte) {
	in, err := wire.DecodeLine(line)
	if err != nil {
		d.log.WithError(err).WithField("client", id).Warn("daemon: malformed editor line, dropping")
		return
	}

	if in.Kind == wire.KindExprResponse {
		d.handleExprResponse(id, in)
		return
	}

	d.handleEditorCommand(id, in, line)
}

func (d *Daemon) handleExprResponse(id wire.ClientID, in wire.Inbound) {
	req, ok := d.pending.TakeExpr(in.ID)
	if !ok || req.ClientID != id {
		d.log.WithField("expr_id", in.ID).Debug("daemon: unmatched expr response, dropping")
		return
	}
	d.log.WithField("tag", req.Tag).Debug("daemon: expr response received")
}

// ensuredClient resolves (language, workspace_root, ssh_host) for filePath
// and returns its LSP client, spawning and kicking off initialize if
// needed, per spec.md §4.3's ensure_client.
type ensuredClient struct {
	client  *lsprpc.Client
	key     string
	lang    string
	sshHost string
	spawned bool
}

func (d *Daemon) ensureClient(filePath string) (ensuredClient, error) {
	lang, ok := d.registry.DetectLanguage(filePath)
	if !ok {
		return ensuredClient{}, fmt.Errorf("daemon: no language configured for %s", filePath)
	}

	sshHost, _ := lspregistry.DetectSSHHost(filePath)
	workspaceRoot := d.registry.DetectWorkspaceRoot(filePath)
	key := lspregistry.Key(string(lang), workspaceRoot, sshHost)

	if c, ok := d.registry.Lookup(key); ok {
		return ensuredClient{client: c, key: key, lang: string(lang), sshHost: sshHost}, nil
	}

	serverName, ok := d.registry.LanguageServerFor(lang)
	if !ok {
		return ensuredClient{}, fmt.Errorf("daemon: no LSP server mapped for language %s", lang)
	}
	serverCfg, ok := d.cfg.LanguageServers[serverName]
	if !ok {
		return ensuredClient{}, fmt.Errorf("daemon: no configuration for LSP server %s", serverName)
	}

	c, err := d.registry.Spawn(key, lsprpc.SpawnOptions{
		Key:           key,
		Language:      string(lang),
		WorkspaceRoot: workspaceRoot,
		SSHHost:       sshHost,
		Command:       serverCfg.Command,
		Args:          serverCfg.Args,
		Env:           serverCfg.Env,
	})
	if err != nil {
		return ensuredClient{}, fmt.Errorf("daemon: failed to spawn %s: %w", serverName, err)
	}

	params := lsprpc.BuildInitializeParams(workspaceRoot, serverCfg.InitializationOptions)
	if _, err := c.SendInitialize(params); err != nil {
		return ensuredClient{}, fmt.Errorf("daemon: failed to send initialize to %s: %w", serverName, err)
	}

	d.ensureWatcher(workspaceRoot, string(lang))

	return ensuredClient{client: c, key: key, lang: string(lang), sshHost: sshHost, spawned: true}, nil
}
