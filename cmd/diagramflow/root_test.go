package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/diagramflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "diagramflow version "+diagramflow.Version+"\n", out)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.mmd")
	bad := filepath.Join(dir, "bad.mmd")
	require.NoError(t, os.WriteFile(good, []byte("graph TD\nA-->B"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("hello"), 0644))

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid")

	out, err = execute(t, "validate", good, bad)
	assert.EqualError(t, err, "1 of 2 diagrams invalid")
	assert.Contains(t, out, "Missing graph declaration")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("custom.yaml", []byte("theme: dark\nstore:\n  driver: file\n"), 0644))

	require.NoError(t, rootCmd.PersistentFlags().Set("config", "custom.yaml"))
	require.NoError(t, rootCmd.PersistentFlags().Set("store", "memory"))
	t.Cleanup(func() {
		_ = rootCmd.PersistentFlags().Set("config", "")
		_ = rootCmd.PersistentFlags().Set("store", "")
	})

	cfg, err := loadConfig(historyCmd)
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.Theme)
	assert.Equal(t, "memory", cfg.Store.Driver)

	require.NoError(t, rootCmd.PersistentFlags().Set("store", "etcd"))
	_, err = loadConfig(rootCmd)
	assert.Error(t, err)
}
