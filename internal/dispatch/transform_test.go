package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rockerboo/yac-bridge/internal/lsptypes"
)

func TestTransformLocationsEmptyArrayIsNil(t *testing.T) {
	loc, err := TransformLocations(json.RawMessage(`[]`), "")
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestTransformLocationsPicksFirstAndConvertsURI(t *testing.T) {
	raw := json.RawMessage(`[{"uri":"file:///home/me/main.go","range":{"start":{"line":3,"character":5},"end":{"line":3,"character":9}}}]`)
	loc, err := TransformLocations(raw, "")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "/home/me/main.go", loc.File)
	assert.Equal(t, 3, loc.Line)
	assert.Equal(t, 5, loc.Column)
}

func TestTransformLocationsAppliesSSHPrefix(t *testing.T) {
	raw := json.RawMessage(`[{"uri":"file:///srv/app/main.go","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}}}]`)
	loc, err := TransformLocations(raw, "build-host")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "scp://build-host/srv/app/main.go", loc.File)
}

func TestTransformLocationsDecodesLocationLink(t *testing.T) {
	raw := json.RawMessage(`[{"targetUri":"file:///home/me/def.go","targetRange":{"start":{"line":10,"character":2},"end":{"line":10,"character":6}},"targetSelectionRange":{"start":{"line":10,"character":2},"end":{"line":10,"character":6}}}]`)
	loc, err := TransformLocations(raw, "")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "/home/me/def.go", loc.File)
	assert.Equal(t, 10, loc.Line)
	assert.Equal(t, 2, loc.Column)
}

func TestTransformLocationsDecodesSingleLocationObject(t *testing.T) {
	raw := json.RawMessage(`{"uri":"file:///a.go","range":{"start":{"line":1,"character":1},"end":{"line":1,"character":1}}}`)
	loc, err := TransformLocations(raw, "")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "/a.go", loc.File)
}

func TestTransformLocationsRejectsUnrecognizedShape(t *testing.T) {
	_, err := TransformLocations(json.RawMessage(`{"foo":"bar"}`), "")
	assert.Error(t, err)
}

func TestTransformHoverJoinsMarkupContent(t *testing.T) {
	raw := json.RawMessage(`{"contents":{"kind":"markdown","value":"some **docs**"}}`)
	hover, err := TransformHover(raw)
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Equal(t, "some **docs**", hover.Content)
}

func TestTransformCompletionHandlesListAndBareArray(t *testing.T) {
	list := json.RawMessage(`{"isIncomplete":false,"items":[{"label":"foo","kind":3}]}`)
	res, err := TransformCompletion(list)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "function", res.Items[0].Kind)

	bare := json.RawMessage(`[{"label":"bar","kind":6}]`)
	res2, err := TransformCompletion(bare)
	require.NoError(t, err)
	require.Len(t, res2.Items, 1)
	assert.Equal(t, "variable", res2.Items[0].Kind)
}

func TestTransformDiagnosticsBuildsBroadcast(t *testing.T) {
	params := lsptypes.PublishDiagnosticsParams{
		URI: "file:///tmp/x.go",
		Diagnostics: []lsptypes.Diagnostic{
			{Range: lsptypes.Range{Start: lsptypes.Position{Line: 1, Character: 2}}, Severity: 1, Message: "boom"},
		},
	}
	broadcast := TransformDiagnostics(params, "")
	assert.Equal(t, "diagnostics", broadcast.Action)
	require.Len(t, broadcast.Diagnostics, 1)
	assert.Equal(t, "/tmp/x.go", broadcast.Diagnostics[0].File)
	assert.Equal(t, "boom", broadcast.Diagnostics[0].Message)
}

func TestFormatProgressTiers(t *testing.T) {
	assert.Contains(t, FormatProgress("begin", "Indexing", "", 0), "Indexing started")
	assert.Contains(t, FormatProgress("report", "", "50 files", 50), "50%")
	assert.Contains(t, FormatProgress("end", "Indexing", "", 0), "complete")
}

func TestURIToFileRoundTrip(t *testing.T) {
	assert.Equal(t, "/a/b.go", URIToFile("file:///a/b.go", ""))
	assert.Equal(t, "scp://host//a/b.go", URIToFile("file:///a/b.go", "host"))
	assert.Equal(t, "file:///a/b.go", FileToURI("/a/b.go"))
	assert.Equal(t, "file:///a/b.go", FileToURI("scp://host/a/b.go"))
}
