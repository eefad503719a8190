package lsprpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/jsonrpc2"
)

// stderrCap bounds how much of a crashed server's stderr we keep for the
// crash-toast excerpt (spec.md §4.2's "read the tail of stderr, capped").
const stderrCap = 4096

// Client is one spawned LSP server subprocess plus its framing state,
// matching spec.md §3's LspClient.
type Client struct {
	Key           string
	Language      string
	WorkspaceRoot string
	SSHHost       string

	cmd    *exec.Cmd
	stdin  *os.File
	Stdout *os.File // exported: the daemon registers this fd in its poll set

	stderr *stderrTail

	nextID          uint64
	initializeID    uint64
	hasInitializeID bool

	Capabilities json.RawMessage
	Initialized  bool

	pendingServerRequests map[string]jsonrpc2.ID

	frame FrameBuffer

	log *logrus.Entry
}

type stderrTail struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *stderrTail) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(p)
	if s.buf.Len() > stderrCap {
		trimmed := s.buf.Bytes()[s.buf.Len()-stderrCap:]
		s.buf.Reset()
		s.buf.Write(trimmed)
	}
	return len(p), nil
}

func (s *stderrTail) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// SpawnOptions configures how an LSP server subprocess is launched.
type SpawnOptions struct {
	Key           string
	Language      string
	WorkspaceRoot string
	SSHHost       string
	Command       string
	Args          []string
	Env           map[string]string
}

// Spawn launches an LSP server subprocess and wires up its stdio, without
// yet sending `initialize` — callers call SendInitialize next.
func Spawn(opts SpawnOptions, log *logrus.Entry) (*Client, error) {
	var cmd *exec.Cmd

	if opts.SSHHost != "" {
		// SSH remote transport (spec.md §9): launch the LSP server on the
		// remote host via ssh, framing and semantics unchanged end to end.
		args := append([]string{opts.SSHHost, opts.Command}, opts.Args...)
		cmd = exec.Command("ssh", args...)
	} else {
		cmd = exec.Command(opts.Command, opts.Args...)
	}

	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if len(cmd.Env) > 0 {
		cmd.Env = append(os.Environ(), cmd.Env...)
	}

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("lsprpc: failed to get stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("lsprpc: failed to get stdout pipe: %w", err)
	}

	stdin, ok := stdinPipe.(*os.File)
	if !ok {
		return nil, fmt.Errorf("lsprpc: stdin pipe is not an *os.File")
	}
	stdout, ok := stdoutPipe.(*os.File)
	if !ok {
		return nil, fmt.Errorf("lsprpc: stdout pipe is not an *os.File")
	}

	tail := &stderrTail{}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("lsprpc: failed to start %s: %w", opts.Command, err)
	}

	c := &Client{
		Key:                   opts.Key,
		Language:              opts.Language,
		WorkspaceRoot:         opts.WorkspaceRoot,
		SSHHost:               opts.SSHHost,
		cmd:                   cmd,
		stdin:                 stdin,
		Stdout:                stdout,
		stderr:                tail,
		pendingServerRequests: make(map[string]jsonrpc2.ID),
		log:                   log.WithField("lsp_key", opts.Key),
	}

	c.log.Info("spawned LSP server")
	return c, nil
}

// PID returns the child process id, or 0 if not running.
func (c *Client) PID() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// StderrTail returns the captured tail of the server's stderr, for crash
// toasts.
func (c *Client) StderrTail() string { return c.stderr.String() }

// BuildInitializeParams constructs the initialize request params per
// spec.md §4.2: processId, rootUri, client capabilities (completion
// snippet support, hover markdown, diagnostics publication,
// workspace/configuration, workDoneProgress), and passthrough
// initializationOptions.
func BuildInitializeParams(workspaceRoot string, initializationOptions json.RawMessage) map[string]any {
	params := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   "file://" + workspaceRoot,
		"workspaceFolders": []map[string]string{
			{"uri": "file://" + workspaceRoot, "name": workspaceRoot},
		},
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"completion": map[string]any{
					"completionItem": map[string]any{"snippetSupport": true},
				},
				"hover": map[string]any{
					"contentFormat": []string{"markdown", "plaintext"},
				},
				"publishDiagnostics": map[string]any{},
				"synchronization": map[string]any{
					"didSave": true,
				},
			},
			"workspace": map[string]any{
				"configuration":    true,
				"workspaceFolders": true,
			},
			"window": map[string]any{
				"workDoneProgress": true,
			},
		},
	}
	if len(initializationOptions) > 0 {
		params["initializationOptions"] = json.RawMessage(initializationOptions)
	}
	return params
}

// SendInitialize writes the initialize request and remembers its id so the
// matching response triggers the rest of the handshake.
func (c *Client) SendInitialize(params map[string]any) (id uint64, err error) {
	id = atomic.AddUint64(&c.nextID, 1)
	body, err := EncodeRequest(id, "initialize", params)
	if err != nil {
		return 0, err
	}
	if err := c.write(body); err != nil {
		return 0, err
	}
	c.initializeID = id
	c.hasInitializeID = true
	return id, nil
}

// IsInitializeResponse reports whether id is the outstanding initialize
// request id.
func (c *Client) IsInitializeResponse(id uint64) bool {
	return c.hasInitializeID && id == c.initializeID
}

// CompleteHandshake records server capabilities and clears the
// initializing gate, the way spec.md §4.2 describes: save capabilities,
// send `initialized`, clear the gate, (caller then flushes deferred
// requests).
func (c *Client) CompleteHandshake(capabilities json.RawMessage) error {
	c.Capabilities = capabilities
	c.Initialized = true
	c.hasInitializeID = false
	return c.SendNotification("initialized", map[string]any{})
}

// SendRequest allocates the next outbound id, writes a framed request, and
// returns the id without blocking for a response.
func (c *Client) SendRequest(method string, params any) (uint64, error) {
	id := atomic.AddUint64(&c.nextID, 1)
	body, err := EncodeRequest(id, method, params)
	if err != nil {
		return 0, err
	}
	return id, c.write(body)
}

// SendNotification writes a framed notification; there is no id and no
// response is tracked.
func (c *Client) SendNotification(method string, params any) error {
	body, err := EncodeNotification(method, params)
	if err != nil {
		return err
	}
	return c.write(body)
}

// SendResponse replies to a server-originated request.
func (c *Client) SendResponse(id jsonrpc2.ID, result any) error {
	body, err := EncodeResponse(id, result)
	if err != nil {
		return err
	}
	return c.write(body)
}

func (c *Client) write(body []byte) error {
	framed := Encode(body)
	_, err := c.stdin.Write(framed)
	if err != nil {
		return fmt.Errorf("lsprpc: write to %s failed: %w", c.Key, err)
	}
	return nil
}

// FeedBytes appends bytes read from Stdout to the client's frame buffer.
func (c *Client) FeedBytes(p []byte) { c.frame.Feed(p) }

// ReadMessages drains every complete frame currently buffered, classifying
// each as a response/notification/server-request, matching spec.md §4.2's
// readMessages(). It never blocks: ErrIncomplete simply ends the drain.
func (c *Client) ReadMessages() ([]Message, error) {
	var out []Message
	for {
		body, err := c.frame.Next()
		if err == ErrIncomplete {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		msg, err := Classify(body)
		if err != nil {
			c.log.WithError(err).Warn("dropping malformed LSP frame")
			continue
		}
		out = append(out, msg)
	}
}

// Kill terminates the subprocess and closes its pipes. Shutdown is the
// graceful path that sends `exit` first.
func (c *Client) Kill() {
	if c.cmd == nil || c.cmd.Process == nil {
		return
	}
	c.cmd.Process.Kill()
	c.stdin.Close()
	c.Stdout.Close()
}

// Shutdown attempts a graceful exit: it sends the `exit` notification and
// closes stdin. It does not signal the process; the caller runs the
// grace-period timer and then calls Terminate (SIGTERM), since this
// client has no goroutine of its own.
func (c *Client) Shutdown() error {
	if err := c.SendNotification("exit", nil); err != nil {
		c.log.WithError(err).Warn("failed to send exit notification")
	}
	return c.stdin.Close()
}

// Terminate sends SIGTERM to the child process, the step spec.md §5's
// shutdown sequence takes between closing stdin and a final SIGKILL.
func (c *Client) Terminate() error {
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Signal(syscall.SIGTERM)
}

func idKey(id jsonrpc2.ID) string {
	if id.IsString {
		return "s:" + id.Str
	}
	return fmt.Sprintf("n:%d", id.Num)
}

// TrackServerRequest remembers a server-originated request id awaiting a
// response, per spec.md §3's "set of pending server→client request ids".
func (c *Client) TrackServerRequest(id jsonrpc2.ID) {
	c.pendingServerRequests[idKey(id)] = id
}

// UntrackServerRequest forgets a server-originated request id once it has
// been answered.
func (c *Client) UntrackServerRequest(id jsonrpc2.ID) {
	delete(c.pendingServerRequests, idKey(id))
}
