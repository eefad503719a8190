package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rockerboo/yac-bridge/internal/wire"
)

func TestHandleExternalRequestRejectsUnknownMethod(t *testing.T) {
	d := testDaemon(t)

	reply := make(chan wire.ExternalReply, 1)
	d.handleExternalRequest(wire.ExternalRequest{Method: "not_a_real_tool", File: "/tmp/x.go", Reply: reply})

	res := <-reply
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "unknown tool method")
}

func TestHandleExternalRequestRejectsUnconfiguredLanguage(t *testing.T) {
	d := testDaemon(t)

	reply := make(chan wire.ExternalReply, 1)
	d.handleExternalRequest(wire.ExternalRequest{Method: "hover", File: "/tmp/x.go", Reply: reply})

	res := <-reply
	require.Error(t, res.Err, "no language is configured for .go in a default config")
}
