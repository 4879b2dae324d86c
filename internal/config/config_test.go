package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ccnx-go/ccnd/internal/config"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ccnd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesYamlOverDefaults(t *testing.T) {
	path := writeTempConfig(t, "core:\n  cs_capacity: 5000\nfaces:\n  mtu: 1500\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Core.ContentStoreSize)
	require.Equal(t, 1500, cfg.Faces.MTU)
	require.Equal(t, 4000, cfg.Core.InterestLifetimeMs) // untouched default
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEnvOverridesTakePrecedenceOverYaml(t *testing.T) {
	path := writeTempConfig(t, "core:\n  cs_capacity: 10\n")
	t.Setenv("CCND_CS_CAPACITY", "99")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 99, cfg.Core.ContentStoreSize)
}

func TestFloodOnNewFaceEnvSwitch(t *testing.T) {
	path := writeTempConfig(t, "")
	t.Setenv("CCND_FLOOD_ON_NEW_FACE", "true")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Faces.FloodOnNewFace)
}
