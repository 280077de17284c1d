package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorbox/mirrorbox/internal/mirror"
	"github.com/mirrorbox/mirrorbox/internal/workspace"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	return &Config{
		SourceDir:  filepath.Join(root, "source"),
		ReplicaDir: filepath.Join(root, "replica"),
		Interval:   time.Second,
		LogFile:    filepath.Join(root, "mirror.log"),
		Once:       true,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing source", mutate: func(c *Config) { c.SourceDir = "" }, wantErr: true},
		{name: "missing replica", mutate: func(c *Config) { c.ReplicaDir = "" }, wantErr: true},
		{name: "missing log file", mutate: func(c *Config) { c.LogFile = "" }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Interval = 0 }, wantErr: true},
		{name: "sub-second interval", mutate: func(c *Config) { c.Interval = 500 * time.Millisecond }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewRejectsOverlappingRoots(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReplicaDir = filepath.Join(cfg.SourceDir, "replica")

	_, err := New(cfg, discardLogger())
	assert.ErrorIs(t, err, workspace.ErrNestedTree)
}

func TestNewRejectsUnreadableExcludeFrom(t *testing.T) {
	cfg := testConfig(t)
	cfg.ExcludeFrom = filepath.Join(t.TempDir(), "absent.rules")

	_, err := New(cfg, discardLogger())
	assert.Error(t, err)
}

func TestDaemonOnceMirrors(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.SourceDir, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "a", "data.txt"), []byte("payload"), 0o644))

	d, err := New(cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	data, err := os.ReadFile(filepath.Join(cfg.ReplicaDir, "a", "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// the replica lock is released and cleaned up after the run
	_, statErr := os.Stat(cfg.ReplicaDir + ".lock")
	assert.True(t, os.IsNotExist(statErr))
}

func TestDaemonOnceMissingSource(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg, discardLogger())
	require.NoError(t, err)

	err = d.Start(context.Background())
	assert.ErrorIs(t, err, mirror.ErrSourceMissing)
}

func TestDaemonRefusesLockedReplica(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))

	holder, err := workspace.New(cfg.SourceDir, cfg.ReplicaDir)
	require.NoError(t, err)
	require.NoError(t, holder.Lock())
	t.Cleanup(func() { _ = holder.Unlock() })

	d, err := New(cfg, discardLogger())
	require.NoError(t, err)

	err = d.Start(context.Background())
	assert.ErrorIs(t, err, workspace.ErrLocked)
}

func TestDaemonAppliesExclusions(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "keep.txt"), []byte("k"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "skip.tmp"), []byte("s"), 0o644))

	rulesPath := filepath.Join(t.TempDir(), "rules")
	require.NoError(t, os.WriteFile(rulesPath, []byte("*.tmp\n"), 0o644))
	cfg.ExcludeFrom = rulesPath

	d, err := New(cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	assert.FileExists(t, filepath.Join(cfg.ReplicaDir, "keep.txt"))
	assert.NoFileExists(t, filepath.Join(cfg.ReplicaDir, "skip.tmp"))
}

func TestDaemonDryRunLeavesReplicaAlone(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = true
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "f.txt"), []byte("x"), 0o644))

	d, err := New(cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	assert.NoDirExists(t, cfg.ReplicaDir)
}

func TestDaemonScheduledRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Once = false
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "f.txt"), []byte("x"), 0o644))

	d, err := New(cfg, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// wait for the first pass to land in the replica
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.ReplicaDir, "f.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "interrupt is a clean shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop on cancel")
	}

	// lock released on the way out
	_, statErr := os.Stat(cfg.ReplicaDir + ".lock")
	assert.True(t, os.IsNotExist(statErr))
}
