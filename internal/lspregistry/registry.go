// Package lspregistry maps (language, workspace_root[, ssh_host]) tuples to
// spawned LSP clients, per spec.md §3/§4.3: on-demand spawn, language
// detection from file extension, workspace-root detection from ancestor
// markers, SSH-remote detection, and per-language indexing counters.
package lspregistry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"rockerboo/yac-bridge/internal/config"
	"rockerboo/yac-bridge/internal/lsprpc"
)

// Registry owns every spawned LspClient. It is only ever touched from the
// daemon's single event-loop goroutine, per spec.md §5 — no locks guard
// the maps themselves; the one mutex here (indexing counters) exists
// because file-watcher goroutines read IsLanguageIndexing concurrently.
type Registry struct {
	cfg *config.Config
	log *logrus.Entry

	clients map[string]*lsprpc.Client

	indexingMu sync.RWMutex
	indexing   map[string]int // language -> depth of overlapping progress tokens
}

// New constructs an empty Registry.
func New(cfg *config.Config, log *logrus.Entry) *Registry {
	return &Registry{
		cfg:      cfg,
		log:      log,
		clients:  make(map[string]*lsprpc.Client),
		indexing: make(map[string]int),
	}
}

// Key composes the LspClientKey string for (language, workspaceRoot,
// sshHost), per spec.md §3.
func Key(language, workspaceRoot, sshHost string) string {
	if sshHost != "" {
		return fmt.Sprintf("%s|%s|%s", language, workspaceRoot, sshHost)
	}
	return fmt.Sprintf("%s|%s", language, workspaceRoot)
}

// DetectLanguage maps a file extension to a configured language, per
// spec.md §4.3.
func (r *Registry) DetectLanguage(filePath string) (config.Language, bool) {
	ext := strings.ToLower(filepath.Ext(stripSSHPrefix(filePath)))
	lang, ok := r.cfg.ExtensionLanguageMap[ext]
	return lang, ok
}

// DetectSSHHost recognizes scp://user@host/... paths, per spec.md §4.3 and
// §9.
func DetectSSHHost(filePath string) (host, remotePath string) {
	const prefix = "scp://"
	if !strings.HasPrefix(filePath, prefix) {
		return "", filePath
	}
	rest := filePath[len(prefix):]
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return rest, "/"
	}
	return rest[:slash], rest[slash:]
}

func stripSSHPrefix(filePath string) string {
	_, remote := DetectSSHHost(filePath)
	return remote
}

// DetectWorkspaceRoot walks up from the file's directory looking for one
// of cfg.WorkspaceRootMarkers, falling back to the file's own directory,
// per spec.md §4.3.
func (r *Registry) DetectWorkspaceRoot(filePath string) string {
	_, localPath := DetectSSHHost(filePath)
	dir := filepath.Dir(localPath)

	for {
		for _, marker := range r.cfg.WorkspaceRootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return filepath.Dir(localPath)
}

// Lookup returns the existing client for key, if any.
func (r *Registry) Lookup(key string) (*lsprpc.Client, bool) {
	c, ok := r.clients[key]
	return c, ok
}

// LanguageServerFor returns the configured language-server name serving
// language, if any is mapped.
func (r *Registry) LanguageServerFor(lang config.Language) (config.LanguageServer, bool) {
	for server, langs := range r.cfg.LanguageServerMap {
		for _, l := range langs {
			if l == lang {
				return server, true
			}
		}
	}
	return "", false
}

// Spawn launches a new client for key and registers it.
func (r *Registry) Spawn(key string, opts lsprpc.SpawnOptions) (*lsprpc.Client, error) {
	c, err := lsprpc.Spawn(opts, r.log)
	if err != nil {
		return nil, err
	}
	r.clients[key] = c
	return c, nil
}

// Remove destroys the client at key and forgets the mapping, per spec.md
// §4.3's removeClient.
func (r *Registry) Remove(key string) {
	if c, ok := r.clients[key]; ok {
		c.Kill()
		delete(r.clients, key)
	}
}

// All returns every registered client, for fd-collection (spec.md §4.3's
// "fd-collection helper") and broadcast fan-out.
func (r *Registry) All() []*lsprpc.Client {
	out := make([]*lsprpc.Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// KeyForClient returns the registry key a client is stored under, or ""
// if not found (used when a stdout fd signals HUP and the caller only has
// the *Client, not its key).
func (r *Registry) KeyForClient(c *lsprpc.Client) string {
	for k, v := range r.clients {
		if v == c {
			return k
		}
	}
	return ""
}

// BeginIndexing increments language's overlapping-progress-token depth,
// per spec.md §3's invariant that a per-language counter prevents
// overlapping $/progress tokens from mis-clearing the indexing flag.
func (r *Registry) BeginIndexing(language string) {
	r.indexingMu.Lock()
	defer r.indexingMu.Unlock()
	r.indexing[language]++
}

// EndIndexing decrements language's depth, floored at zero.
func (r *Registry) EndIndexing(language string) {
	r.indexingMu.Lock()
	defer r.indexingMu.Unlock()
	if r.indexing[language] > 0 {
		r.indexing[language]--
	}
}

// IsLanguageIndexing reports whether language has any outstanding
// progress token.
func (r *Registry) IsLanguageIndexing(language string) bool {
	r.indexingMu.RLock()
	defer r.indexingMu.RUnlock()
	return r.indexing[language] > 0
}

// IsAnyLanguageIndexing reports whether any language is indexing.
func (r *Registry) IsAnyLanguageIndexing() bool {
	r.indexingMu.RLock()
	defer r.indexingMu.RUnlock()
	for _, depth := range r.indexing {
		if depth > 0 {
			return true
		}
	}
	return false
}
