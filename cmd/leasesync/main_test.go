package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    int
		wantOut string
	}{
		{name: "success", err: nil, want: 0},
		{name: "warnings", err: &exitError{code: 2}, want: 2},
		{name: "fatal run", err: &exitError{code: 1, err: errors.New("runner: master unreachable")}, want: 1, wantOut: "error: runner: master unreachable\n"},
		{name: "plain error", err: errors.New("bad flag"), want: 1, wantOut: "error: bad flag\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			assert.Equal(t, tt.want, exitCode(tt.err, &stderr))
			assert.Equal(t, tt.wantOut, stderr.String())
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leasesync: Build")
}

func TestSyncWithoutInventoryIsFatal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	_, err := execute(t, "sync", "--config-dir", dir, "--log-level", "disabled")

	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.code)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSyncInvalidInventoryIsFatal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	inventory := filepath.Join(dir, "routers.yaml")
	require.NoError(t, os.WriteFile(inventory, []byte("master: {host: r1, username: admin}\n"), 0o600))

	_, err := execute(t, "sync", "--config", inventory, "--log-level", "disabled")

	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.code)
}

func TestBadLogLevel(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())

	_, err := execute(t, "sync", "--log-level", "loud")
	require.Error(t, err)

	var ee *exitError
	assert.False(t, errors.As(err, &ee))
}

func TestSettingsFileFromConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leasesync.ini"), []byte("log_level = nonsense\n"), 0o600))

	_, err := execute(t, "sync", "--config-dir", dir)
	require.Error(t, err, "settings found through --config-dir are applied")
	assert.Contains(t, err.Error(), "nonsense")
}
