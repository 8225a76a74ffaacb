package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("webhook_secret: one\n"), 0o644))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg }, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("webhook_secret: two\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "two", cfg.WebhookSecret)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcherKeepsLastGoodConfig(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("webhook_secret: one\n"), 0o644))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg }, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	// A file that fails validation must not reach the callback.
	require.NoError(t, os.WriteFile(path, []byte("agent_id: only\n"), 0o644))

	select {
	case cfg := <-reloaded:
		t.Fatalf("broken config was delivered: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("webhook_secret: one\n"), 0o644))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg }, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))

	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(300 * time.Millisecond):
	}
}
