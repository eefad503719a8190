package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// PollingWatcher scans a workspace root on a fixed interval and diffs
// modification times to synthesize FileChange events, for platforms where
// fsnotify isn't reliable (e.g. network filesystems, some container
// setups) — built around a scan/processDir worker pool.
type PollingWatcher struct {
	root       string
	extensions []string
	interval   time.Duration
	workers    int
	log        *logrus.Entry

	isIndexing func() bool
	changes    chan<- FileChange

	mu       sync.Mutex
	fileMap  map[string]int64
	running  bool
	stopChan chan struct{}
}

// NewPollingWatcher constructs a watcher that reports changes on the
// changes channel. isIndexing lets the watcher suppress notifications
// while an LSP server is mid-index, per spec.md §4.9.
func NewPollingWatcher(root string, extensions []string, interval time.Duration, workers int, isIndexing func() bool, changes chan<- FileChange, log *logrus.Entry) *PollingWatcher {
	return &PollingWatcher{
		root:       root,
		extensions: extensions,
		interval:   interval,
		workers:    workers,
		isIndexing: isIndexing,
		changes:    changes,
		fileMap:    make(map[string]int64),
		stopChan:   make(chan struct{}),
		log:        log,
	}
}

// Start performs an initial scan and begins the periodic polling loop.
func (pw *PollingWatcher) Start() {
	pw.mu.Lock()
	if pw.running {
		pw.mu.Unlock()
		return
	}
	pw.running = true
	pw.mu.Unlock()

	start := time.Now()
	initial := pw.scan()
	pw.mu.Lock()
	pw.fileMap = initial
	pw.mu.Unlock()
	pw.log.WithField("files", len(initial)).WithField("elapsed", time.Since(start)).Debug("watch: polling watcher initial scan complete")

	go pw.loop()
}

// Stop halts the polling loop.
func (pw *PollingWatcher) Stop() {
	pw.mu.Lock()
	if !pw.running {
		pw.mu.Unlock()
		return
	}
	pw.running = false
	pw.mu.Unlock()
	close(pw.stopChan)
}

func (pw *PollingWatcher) loop() {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.stopChan:
			return
		case <-ticker.C:
			pw.checkForChanges()
		}
	}
}

func (pw *PollingWatcher) checkForChanges() {
	newFiles := pw.scan()

	pw.mu.Lock()
	oldFiles := pw.fileMap
	pw.fileMap = newFiles
	pw.mu.Unlock()

	var detected []FileChange
	for path, mtime := range newFiles {
		if oldMtime, ok := oldFiles[path]; !ok {
			detected = append(detected, FileChange{URI: pathToURI(path), Type: Created})
		} else if mtime != oldMtime {
			detected = append(detected, FileChange{URI: pathToURI(path), Type: Changed})
		}
	}
	for path := range oldFiles {
		if _, ok := newFiles[path]; !ok {
			detected = append(detected, FileChange{URI: pathToURI(path), Type: Deleted})
		}
	}

	if len(detected) == 0 {
		return
	}

	if pw.isIndexing != nil && pw.isIndexing() {
		pw.log.WithField("count", len(detected)).Debug("watch: suppressing changes, indexing in progress")
		return
	}

	for _, c := range detected {
		pw.changes <- c
	}
}

// scan walks the workspace root with a worker pool, recording each
// matching file's mtime.
func (pw *PollingWatcher) scan() map[string]int64 {
	result := make(map[string]int64)
	var resultMu sync.Mutex

	dirs := make(chan string, 1000)
	var wg sync.WaitGroup
	var active int32

	for i := 0; i < pw.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dir := range dirs {
				atomic.AddInt32(&active, 1)
				pw.processDir(dir, result, &resultMu, dirs)
				atomic.AddInt32(&active, -1)
			}
		}()
	}

	dirs <- pw.root

	go func() {
		for {
			time.Sleep(50 * time.Millisecond)
			if len(dirs) == 0 && atomic.LoadInt32(&active) == 0 {
				close(dirs)
				return
			}
		}
	}()

	wg.Wait()
	return result
}

func (pw *PollingWatcher) processDir(dir string, result map[string]int64, resultMu *sync.Mutex, dirs chan string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if skipDir(name) {
				continue
			}
			select {
			case dirs <- path:
			default:
				pw.processDir(path, result, resultMu, dirs)
			}
			continue
		}

		if !pw.matchesExtension(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if !ignoreStat(err) {
				pw.log.WithError(err).WithField("path", path).Debug("watch: stat failed")
			}
			continue
		}
		resultMu.Lock()
		result[path] = info.ModTime().Unix()
		resultMu.Unlock()
	}
}

func (pw *PollingWatcher) matchesExtension(name string) bool {
	if len(pw.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range pw.extensions {
		if ext == want {
			return true
		}
	}
	return false
}
