package picker

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Mode selects what a picker query searches, per spec.md §3's PickerState.
type Mode int

const (
	ModeFile Mode = iota
	ModeWorkspaceSymbol
	ModeDocumentSymbol
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "file":
		return ModeFile, nil
	case "workspace_symbol":
		return ModeWorkspaceSymbol, nil
	case "document_symbol":
		return ModeDocumentSymbol, nil
	default:
		return 0, fmt.Errorf("picker: unknown mode %q", s)
	}
}

// fileEnumerators are tried in order, per spec.md §4.5: fd first, find as
// fallback, matching the common fd-or-find shell idiom for file discovery.
var fileEnumerators = [][]string{
	{"fd", "--type", "f", "--color", "never"},
	{"find", ".", "-type", "f", "-not", "-path", "*/.git/*"},
}

// State is the optional singleton picker session of spec.md §3: one
// subprocess enumerating files, its partial stdout, the accumulated file
// list, and the current query/mode. It is mutated only from the daemon's
// event-loop goroutine — no locking for the enumeration fields themselves.
type State struct {
	log *logrus.Entry

	cmd      *exec.Cmd
	stdout   *bufio.Reader
	rawOut   interface{ Fd() uintptr }
	partial  bytes.Buffer
	fileList []string
	scanning bool

	recentFiles []string
	cwd         string

	// symbolMu guards the in-flight symbol-request generation counter,
	// since a cancellation decision can race a late LSP response arriving
	// on the event-loop goroutine; everything else here is loop-owned.
	symbolMu      sync.Mutex
	symbolGen     string
	symbolPending bool
}

// New constructs an unopened picker state.
func New(log *logrus.Entry) *State {
	return &State{log: log}
}

// Open spawns the file enumerator in cwd and begins streaming its stdout,
// per spec.md §4.5's picker_open. recentFiles seeds the empty-query
// default ordering.
func (s *State) Open(cwd string, recentFiles []string) error {
	s.Close()

	s.cwd = cwd
	s.recentFiles = recentFiles
	s.fileList = nil

	var lastErr error
	for _, argv := range fileEnumerators {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Dir = cwd

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			lastErr = err
			continue
		}
		if err := cmd.Start(); err != nil {
			lastErr = err
			s.log.WithError(err).WithField("enumerator", argv[0]).Warn("picker: enumerator unavailable, trying fallback")
			continue
		}

		s.cmd = cmd
		s.stdout = bufio.NewReader(stdout)
		if f, ok := stdout.(interface{ Fd() uintptr }); ok {
			s.rawOut = f
		}
		s.scanning = true
		s.log.WithField("enumerator", argv[0]).Debug("picker: enumerator started")
		return nil
	}

	return fmt.Errorf("picker: no file enumerator available: %w", lastErr)
}

// FD exposes the enumerator's stdout pipe for poll-set registration,
// matching the session manager's own StdoutPipe-as-*os.File pattern.
func (s *State) FD() (uintptr, bool) {
	if s.rawOut == nil {
		return 0, false
	}
	return s.rawOut.Fd(), true
}

// Scanning reports whether the enumerator subprocess is still running.
func (s *State) Scanning() bool { return s.scanning }

// PumpLine reads whatever stdout is currently available (non-blocking
// contract: the caller only invokes this after poll reports readable) and
// appends any newly completed lines to the file list. It returns true once
// EOF is observed, at which point the caller should reap the subprocess.
func (s *State) PumpLine() (eof bool, err error) {
	if s.stdout == nil {
		return true, nil
	}

	chunk := make([]byte, 32*1024)
	n, rErr := s.stdout.Read(chunk)
	s.partial.Write(chunk[:n])
	for {
		line, lErr := s.partial.ReadString('\n')
		if lErr != nil {
			// Partial line with no trailing newline yet: kept for the next wakeup.
			s.partial.WriteString(line)
			break
		}
		s.fileList = append(s.fileList, strings.TrimRight(line, "\r\n"))
	}
	if errors.Is(rErr, io.EOF) {
		if s.partial.Len() > 0 {
			s.fileList = append(s.fileList, strings.TrimRight(s.partial.String(), "\r"))
			s.partial.Reset()
		}
		s.scanning = false
		return true, nil
	}
	return false, rErr
}

// QueryResult is the response shape of spec.md §4.5/§6.1's picker_query.
type QueryResult struct {
	Mode  string   `json:"mode"`
	Items []Result `json:"items"`
}

// QueryFiles scores the accumulated file list (or recent files, for an
// empty query) against query.
func (s *State) QueryFiles(query string) QueryResult {
	if query == "" && len(s.recentFiles) > 0 {
		n := len(s.recentFiles)
		if n > MaxResults {
			n = MaxResults
		}
		items := make([]Result, n)
		for i := 0; i < n; i++ {
			items[i] = Result{Text: s.recentFiles[i]}
		}
		return QueryResult{Mode: "file", Items: items}
	}
	return QueryResult{Mode: "file", Items: Score(query, s.fileList)}
}

// BeginSymbolRequest allocates a new generation id for a workspace/document
// symbol query, superseding any prior in-flight one. The returned id lets
// the daemon silently drop a late response whose generation no longer
// matches, per spec.md §5's cancellation-by-generation-counter approach
// (tolerating late responses rather than sending $/cancelRequest).
func (s *State) BeginSymbolRequest() string {
	s.symbolMu.Lock()
	defer s.symbolMu.Unlock()
	s.symbolGen = uuid.NewString()
	s.symbolPending = true
	return s.symbolGen
}

// IsCurrentSymbolRequest reports whether gen is still the latest
// outstanding symbol-request generation.
func (s *State) IsCurrentSymbolRequest(gen string) bool {
	s.symbolMu.Lock()
	defer s.symbolMu.Unlock()
	return s.symbolPending && s.symbolGen == gen
}

// EndSymbolRequest marks the current symbol-request generation as
// resolved (response received or superseded).
func (s *State) EndSymbolRequest() {
	s.symbolMu.Lock()
	defer s.symbolMu.Unlock()
	s.symbolPending = false
}

// Close reaps any running enumerator subprocess and releases buffers, per
// spec.md §4.5's picker_close.
func (s *State) Close() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	s.stdout = nil
	s.rawOut = nil
	s.partial.Reset()
	s.fileList = nil
	s.scanning = false
}
