// Package watch synthesizes workspace/didChangeWatchedFiles notifications
// for LSP servers that don't watch files themselves, per spec.md §4.9
// (supplemented feature, built as a polling scanner and an
// fsnotify-based watcher). A watcher runs in its own goroutine
// and hands detected changes to the event loop over a channel — the loop
// itself never touches the filesystem directly, matching spec.md §5's
// channel-handoff discipline for auxiliary goroutines.
package watch

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Mode selects which backend watches a workspace root.
type Mode string

const (
	ModeOff      Mode = "off"
	ModePolling  Mode = "polling"
	ModeFsnotify Mode = "fsnotify"
	ModeAuto     Mode = "auto"
)

// ChangeType mirrors LSP's FileChangeType (1=Created, 2=Changed, 3=Deleted).
type ChangeType int

const (
	Created ChangeType = 1
	Changed ChangeType = 2
	Deleted ChangeType = 3
)

// FileChange is one detected filesystem event, already expressed as a
// file:// URI for direct use in a didChangeWatchedFiles notification.
type FileChange struct {
	URI  string
	Type ChangeType
}

// ModeFromEnv reads FILE_WATCHER_MODE, defaulting to auto, per spec.md
// §4.9.
func ModeFromEnv(getenv func(string) string) Mode {
	switch strings.ToLower(getenv("FILE_WATCHER_MODE")) {
	case "off", "manual", "disabled":
		return ModeOff
	case "polling", "poll":
		return ModePolling
	case "fsnotify", "inotify", "native":
		return ModeFsnotify
	case "auto", "":
		return ModeAuto
	default:
		return ModeAuto
	}
}

// PollingInterval reads FILE_WATCHER_INTERVAL, defaulting to 30s.
func PollingInterval(getenv func(string) string) time.Duration {
	raw := getenv("FILE_WATCHER_INTERVAL")
	if raw == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// PollingWorkers reads FILE_WATCHER_WORKERS, defaulting to 8.
func PollingWorkers(getenv func(string) string) int {
	raw := getenv("FILE_WATCHER_WORKERS")
	if raw == "" {
		return 8
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 8
	}
	return n
}

// pathToURI normalizes a filesystem path into a file:// URI.
func pathToURI(path string) string {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}

// skipDir reports whether a directory name should never be descended into
// during a scan, per spec.md §4.9.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "target"
}

// ignoreStat is used to silently skip files that vanish between readdir
// and stat (a benign race during a scan, not a watcher error).
func ignoreStat(err error) bool {
	return err != nil && os.IsNotExist(err)
}
