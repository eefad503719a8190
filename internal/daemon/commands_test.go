package daemon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"rockerboo/yac-bridge/internal/config"
	"rockerboo/yac-bridge/internal/wire"
)

// testDaemonWithLanguage returns a Daemon configured to route .go files to
// a harmless /bin/cat "language server", and a file_open Inbound for path.
func testDaemonWithLanguage(t *testing.T, path string) (*Daemon, wire.Inbound, []byte) {
	t.Helper()
	d := testDaemon(t)
	d.cfg.ExtensionLanguageMap[".go"] = config.Language("go")
	d.cfg.LanguageServerMap[config.LanguageServer("gopls")] = []config.Language{"go"}
	d.cfg.LanguageServers[config.LanguageServer("gopls")] = config.LanguageServerConfig{
		Command: "cat",
	}

	ensured, err := d.ensureClient(path)
	require.NoError(t, err)
	require.NoError(t, ensured.client.CompleteHandshake(json.RawMessage(`{}`)))

	raw := []byte(`["file_open",0,{"file":"` + path + `","text":"package main"}]`)
	in := wire.Inbound{
		Kind:   wire.KindNotification,
		ID:     0,
		Method: "file_open",
		Params: json.RawMessage(`{"file":"` + path + `","text":"package main"}`),
	}
	return d, in, raw
}

func TestHandleFileOpenIsIdempotent(t *testing.T) {
	path := t.TempDir() + "/main.go"
	d, in, raw := testDaemonWithLanguage(t, path)

	d.handleFileOpen(1, in, raw)
	require.True(t, d.openDocs[path])
	require.Equal(t, 1, d.docVersions[path])

	// A second file_open for the same file must not resend didOpen or
	// reset the document version, per spec.md §8's idempotence law.
	d.docVersions[path] = 7
	d.handleFileOpen(1, in, raw)
	require.Equal(t, 7, d.docVersions[path], "repeat file_open must not reset the document version")
	require.True(t, d.openDocs[path])
}

func TestHandleFileOpenClearsOpenMarkerOnDidClose(t *testing.T) {
	path := t.TempDir() + "/main.go"
	d, in, raw := testDaemonWithLanguage(t, path)

	d.handleFileOpen(1, in, raw)
	require.True(t, d.openDocs[path])

	closeIn := wire.Inbound{Kind: wire.KindNotification, Method: "did_close", Params: json.RawMessage(`{"file":"` + path + `"}`)}
	d.handleDidClose(1, closeIn, nil)
	require.False(t, d.openDocs[path])

	d.handleFileOpen(1, in, raw)
	require.True(t, d.openDocs[path])
	require.Equal(t, 1, d.docVersions[path], "re-opening after did_close resends didOpen and resets the version")
}
