package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fakeEnv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestModeFromEnv(t *testing.T) {
	assert.Equal(t, ModeAuto, ModeFromEnv(fakeEnv(nil)))
	assert.Equal(t, ModeOff, ModeFromEnv(fakeEnv(map[string]string{"FILE_WATCHER_MODE": "disabled"})))
	assert.Equal(t, ModePolling, ModeFromEnv(fakeEnv(map[string]string{"FILE_WATCHER_MODE": "poll"})))
	assert.Equal(t, ModeFsnotify, ModeFromEnv(fakeEnv(map[string]string{"FILE_WATCHER_MODE": "native"})))
	assert.Equal(t, ModeAuto, ModeFromEnv(fakeEnv(map[string]string{"FILE_WATCHER_MODE": "nonsense"})))
}

func TestPollingInterval(t *testing.T) {
	assert.Equal(t, 30*time.Second, PollingInterval(fakeEnv(nil)))
	assert.Equal(t, 10*time.Second, PollingInterval(fakeEnv(map[string]string{"FILE_WATCHER_INTERVAL": "10s"})))
	assert.Equal(t, 30*time.Second, PollingInterval(fakeEnv(map[string]string{"FILE_WATCHER_INTERVAL": "garbage"})))
}

func TestPollingWorkers(t *testing.T) {
	assert.Equal(t, 8, PollingWorkers(fakeEnv(nil)))
	assert.Equal(t, 4, PollingWorkers(fakeEnv(map[string]string{"FILE_WATCHER_WORKERS": "4"})))
	assert.Equal(t, 8, PollingWorkers(fakeEnv(map[string]string{"FILE_WATCHER_WORKERS": "-1"})))
}

func TestSkipDir(t *testing.T) {
	assert.True(t, skipDir(".git"))
	assert.True(t, skipDir("node_modules"))
	assert.False(t, skipDir("src"))
}
