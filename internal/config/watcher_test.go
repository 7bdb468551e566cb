package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	cfg := DefaultConfig()
	cfg.Service.ModelName = "mixtral-8x7b-32768"
	require.NoError(t, cfg.Save(path))

	select {
	case got := <-w.Updates():
		assert.Equal(t, "mixtral-8x7b-32768", got.Service.ModelName)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcher_TransformRunsBeforeValidate(t *testing.T) {
	defer goleak.VerifyNone(t)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	w, err := NewWatcher(path, WithTransform(func(c *Config) {
		c.Service.Endpoint = "http://override:9000/chat"
	}))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// The file's endpoint is invalid on its own; the transform repairs it.
	require.NoError(t, os.WriteFile(path, []byte("service:\n  endpoint: \"not a url\"\n  model_name: mixtral-8x7b-32768\n"), 0644))

	select {
	case got := <-w.Updates():
		assert.Equal(t, "http://override:9000/chat", got.Service.Endpoint)
		assert.Equal(t, "mixtral-8x7b-32768", got.Service.ModelName)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcher_RejectsInvalidConfig(t *testing.T) {
	defer goleak.VerifyNone(t)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("service:\n  endpoint: \"not a url\"\n"), 0644))

	select {
	case got := <-w.Updates():
		t.Fatalf("invalid config should not be published, got %+v", got.Service)
	case <-time.After(600 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t)
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))

	select {
	case <-w.Updates():
		t.Fatal("unrelated file should not trigger a reload")
	case <-time.After(600 * time.Millisecond):
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewWatcher(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	w.Stop()
}
