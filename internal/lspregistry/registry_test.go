package lspregistry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rockerboo/yac-bridge/internal/config"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return logrus.NewEntry(l)
}

func TestKeyWithAndWithoutSSHHost(t *testing.T) {
	assert.Equal(t, "go|/home/me", Key("go", "/home/me", ""))
	assert.Equal(t, "go|/home/me|build-host", Key("go", "/home/me", "build-host"))
}

func TestDetectSSHHost(t *testing.T) {
	host, remote := DetectSSHHost("scp://build-host/srv/app/main.go")
	assert.Equal(t, "build-host", host)
	assert.Equal(t, "/srv/app/main.go", remote)

	host, remote = DetectSSHHost("/srv/app/main.go")
	assert.Equal(t, "", host)
	assert.Equal(t, "/srv/app/main.go", remote)
}

func TestDetectLanguageFromExtension(t *testing.T) {
	cfg := config.Default("/tmp/log")
	cfg.ExtensionLanguageMap[".go"] = "go"
	r := New(cfg, testLog())

	lang, ok := r.DetectLanguage("/home/me/main.go")
	require.True(t, ok)
	assert.Equal(t, config.Language("go"), lang)

	_, ok = r.DetectLanguage("/home/me/main.rs")
	assert.False(t, ok)
}

func TestDetectWorkspaceRootWalksUpToMarker(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "pkg", "sub")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg := config.Default("/tmp/log")
	cfg.WorkspaceRootMarkers = []string{".git"}
	r := New(cfg, testLog())

	got := r.DetectWorkspaceRoot(filepath.Join(nested, "file.go"))
	assert.Equal(t, root, got)
}

func TestDetectWorkspaceRootFallsBackToFileDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default("/tmp/log")
	cfg.WorkspaceRootMarkers = []string{".this-marker-does-not-exist"}
	r := New(cfg, testLog())

	got := r.DetectWorkspaceRoot(filepath.Join(dir, "file.go"))
	assert.Equal(t, dir, got)
}

func TestIndexingDepthCounterFloorsAtZero(t *testing.T) {
	cfg := config.Default("/tmp/log")
	r := New(cfg, testLog())

	assert.False(t, r.IsLanguageIndexing("go"))
	r.BeginIndexing("go")
	r.BeginIndexing("go")
	assert.True(t, r.IsLanguageIndexing("go"))

	r.EndIndexing("go")
	assert.True(t, r.IsLanguageIndexing("go"), "one overlapping token should still count as indexing")

	r.EndIndexing("go")
	r.EndIndexing("go")
	assert.False(t, r.IsLanguageIndexing("go"))
}

func TestLanguageServerForLooksUpMap(t *testing.T) {
	cfg := config.Default("/tmp/log")
	cfg.LanguageServerMap["gopls"] = []config.Language{"go"}
	r := New(cfg, testLog())

	server, ok := r.LanguageServerFor("go")
	require.True(t, ok)
	assert.Equal(t, config.LanguageServer("gopls"), server)

	_, ok = r.LanguageServerFor("rust")
	assert.False(t, ok)
}
