package daemon

import (
	"os"

	"rockerboo/yac-bridge/internal/watch"
)

// watchedExtensions lists which file extensions the supplemented
// file-watcher feature tracks; sourced from the configured
// extension/language map so it stays in sync with what the registry
// actually routes to an LSP server.
func (d *Daemon) watchedExtensions() []string {
	exts := make([]string, 0, len(d.cfg.ExtensionLanguageMap))
	for ext := range d.cfg.ExtensionLanguageMap {
		exts = append(exts, ext)
	}
	return exts
}

// ensureWatcher starts a file watcher over workspaceRoot if one isn't
// already running, per spec.md §4.9. The watcher's changes are suppressed
// while language is indexing (Registry.IsLanguageIndexing).
func (d *Daemon) ensureWatcher(workspaceRoot, language string) {
	if _, exists := d.watchers[workspaceRoot]; exists {
		return
	}

	mode := watch.ModeFromEnv(os.Getenv)
	if mode == watch.ModeOff {
		return
	}

	isIndexing := func() bool { return d.registry.IsLanguageIndexing(language) }
	extensions := d.watchedExtensions()

	if mode == watch.ModeFsnotify || mode == watch.ModeAuto {
		fw, err := watch.NewFsnotifyWatcher(workspaceRoot, extensions, isIndexing, d.fileChanges, d.log)
		if err == nil {
			fw.Start()
			d.watchers[workspaceRoot] = &watchHandle{stop: fw.Stop}
			d.log.WithField("root", workspaceRoot).Debug("daemon: fsnotify watcher armed")
			return
		}
		if mode == watch.ModeFsnotify {
			d.log.WithError(err).WithField("root", workspaceRoot).Warn("daemon: fsnotify watcher failed, no watcher started")
			return
		}
		d.log.WithError(err).WithField("root", workspaceRoot).Warn("daemon: fsnotify unavailable, falling back to polling")
	}

	pw := watch.NewPollingWatcher(
		workspaceRoot,
		extensions,
		watch.PollingInterval(os.Getenv),
		watch.PollingWorkers(os.Getenv),
		isIndexing,
		d.fileChanges,
		d.log,
	)
	pw.Start()
	d.watchers[workspaceRoot] = &watchHandle{stop: pw.Stop}
	d.log.WithField("root", workspaceRoot).Debug("daemon: polling watcher armed")
}
