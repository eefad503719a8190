package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const debounceWindow = 500 * time.Millisecond

// FsnotifyWatcher watches a workspace root natively via inotify/kqueue,
// debouncing bursts of events into one batch of FileChange values (one
// per file) —
// in the shape of a startFsnotifyWatcher/runFsnotifyWatcher pair.
type FsnotifyWatcher struct {
	root       string
	extensions []string
	watcher    *fsnotify.Watcher
	isIndexing func() bool
	changes    chan<- FileChange
	log        *logrus.Entry

	stop chan struct{}
}

// NewFsnotifyWatcher constructs and arms a recursive watch over root. The
// caller must call Start to begin processing events.
func NewFsnotifyWatcher(root string, extensions []string, isIndexing func() bool, changes chan<- FileChange, log *logrus.Entry) (*FsnotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FsnotifyWatcher{
		root:       root,
		extensions: extensions,
		watcher:    w,
		isIndexing: isIndexing,
		changes:    changes,
		log:        log,
		stop:       make(chan struct{}),
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if skipDir(info.Name()) {
				return filepath.SkipDir
			}
			if err := w.Add(path); err != nil {
				fw.log.WithError(err).WithField("dir", path).Warn("watch: failed to add directory")
			}
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	return fw, nil
}

// Start begins processing filesystem events in a background goroutine.
func (fw *FsnotifyWatcher) Start() {
	go fw.run()
}

// Stop tears down the underlying watcher.
func (fw *FsnotifyWatcher) Stop() {
	close(fw.stop)
	fw.watcher.Close()
}

func (fw *FsnotifyWatcher) run() {
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	pending := make(map[string]ChangeType)
	var pendingMu sync.Mutex

	for {
		select {
		case <-fw.stop:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if !fw.matchesExtension(event.Name) {
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDir(info.Name()) {
						if err := fw.watcher.Add(event.Name); err != nil {
							fw.log.WithError(err).WithField("dir", event.Name).Warn("watch: failed to add new directory")
						}
					}
				}
				continue
			}

			uri := pathToURI(event.Name)

			pendingMu.Lock()
			switch {
			case event.Has(fsnotify.Create):
				pending[uri] = Created
			case event.Has(fsnotify.Write):
				if _, exists := pending[uri]; !exists {
					pending[uri] = Changed
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				pending[uri] = Deleted
			}
			pendingMu.Unlock()

			debounce.Reset(debounceWindow)

		case <-debounce.C:
			pendingMu.Lock()
			if len(pending) == 0 {
				pendingMu.Unlock()
				continue
			}
			batch := pending
			pending = make(map[string]ChangeType)
			pendingMu.Unlock()

			if fw.isIndexing != nil && fw.isIndexing() {
				fw.log.WithField("count", len(batch)).Debug("watch: suppressing changes, indexing in progress")
				continue
			}

			for uri, changeType := range batch {
				fw.changes <- FileChange{URI: uri, Type: changeType}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.WithError(err).Warn("watch: fsnotify error")
		}
	}
}

func (fw *FsnotifyWatcher) matchesExtension(name string) bool {
	if len(fw.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range fw.extensions {
		if ext == want {
			return true
		}
	}
	return false
}
