package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ldpcsim/internal/config"
)

func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	preset, configFile = "", ""
	cmd := &cobra.Command{Use: "test"}
	addCodeFlags(cmd)
	addRunFlags(cmd)
	addDeviceFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := resolveConfig(newTestCmd(t))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMessageBits, cfg.Code.MessageBits)
	assert.Equal(t, config.DefaultIterations, cfg.Run.BPIterations)
}

func TestResolveConfigPresetThenFlags(t *testing.T) {
	cmd := newTestCmd(t, "--errors", "3", "--decoder", "min-sum")
	preset = "scenario-b"
	defer func() { preset = "" }()

	cfg, err := resolveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Run.InjectedErrors)
	assert.Equal(t, "min-sum", cfg.Decoder)
	assert.Equal(t, uint64(2), cfg.Run.Seed, "unset flags keep the preset value")
	assert.Equal(t, 5, cfg.Run.BPIterations)
}

func TestResolveConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  bp_iterations: 7\n  injected_errors: 2\n"), 0644))

	cmd := newTestCmd(t, "--iterations", "9")
	configFile = path
	defer func() { configFile = "" }()

	cfg, err := resolveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Run.BPIterations)
	assert.Equal(t, 2, cfg.Run.InjectedErrors)
}

func TestResolveConfigRejects(t *testing.T) {
	_, err := resolveConfig(newTestCmd(t, "--errors", "1000"))
	assert.Error(t, err)

	cmd := newTestCmd(t)
	preset = "nope"
	defer func() { preset = "" }()
	_, err = resolveConfig(cmd)
	assert.Error(t, err)
}
