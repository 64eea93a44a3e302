package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qaops/migratrack/internal/config"
)

const watcherConfigYAML = `version: "1.0"
projects:
  - PAY
sources:
  primary:
    base_url: https://legacy.example.com/api
  secondary:
    base_url: https://target.example.com/api
`

const watcherConfigUpdatedYAML = `version: "1.0"
projects:
  - PAY
  - CHECKOUT
sources:
  primary:
    base_url: https://legacy.example.com/api
  secondary:
    base_url: https://target.example.com/api
`

type fakeReloader struct {
	mu   sync.Mutex
	last *config.Config
	n    int
}

func (f *fakeReloader) ReloadConfig(_ context.Context, cfg *config.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	f.last = cfg
	return nil
}

func (f *fakeReloader) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func (f *fakeReloader) lastConfig() *config.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func startWatcher(t *testing.T, path string, target reloader) *ConfigWatcher {
	t.Helper()
	cw, err := NewConfigWatcher(path, target)
	require.NoError(t, err)
	cw.debounceTime = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, cw.Start(ctx))
	t.Cleanup(cw.Stop)
	return cw
}

func TestConfigWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watcherConfigYAML), 0o600))

	target := &fakeReloader{}
	startWatcher(t, path, target)

	// A save burst collapses into a single reload.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(watcherConfigUpdatedYAML), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return target.calls() == 1 }, 5*time.Second, 20*time.Millisecond)

	// No further reloads once the burst has settled.
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, 1, target.calls())

	cfg := target.lastConfig()
	require.NotNil(t, cfg)
	require.Equal(t, []string{"PAY", "CHECKOUT"}, cfg.Projects)
}

func TestConfigWatcherKeepsConfigOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watcherConfigYAML), 0o600))

	target := &fakeReloader{}
	startWatcher(t, path, target)

	// Broken YAML never reaches the daemon.
	require.NoError(t, os.WriteFile(path, []byte("version: [broken"), 0o600))
	time.Sleep(600 * time.Millisecond)
	require.Equal(t, 0, target.calls())

	// The next valid write recovers.
	require.NoError(t, os.WriteFile(path, []byte(watcherConfigUpdatedYAML), 0o600))
	require.Eventually(t, func() bool { return target.calls() == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watcherConfigYAML), 0o600))

	target := &fakeReloader{}
	startWatcher(t, path, target)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o600))
	time.Sleep(600 * time.Millisecond)
	require.Equal(t, 0, target.calls())
}

func TestConfigWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watcherConfigYAML), 0o600))

	cw, err := NewConfigWatcher(path, &fakeReloader{})
	require.NoError(t, err)
	require.NoError(t, cw.Start(context.Background()))

	cw.Stop()
	cw.Stop()
}
