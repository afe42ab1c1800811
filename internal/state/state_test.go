package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	rec := &Record{
		GroupName: "warpbuild-abc123",
		Machines:  []Machine{{ID: "b-1", Index: 0}, {ID: "b-2", Index: 1}},
		CertDir:   "/tmp/certs",
	}
	require.NoError(t, Save(path, rec))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
}

func TestLoadMissingFileMeansNothingToCleanUp(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, Save(path, &Record{GroupName: "g"}))

	// Corrupt it.
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, Save(path, &Record{GroupName: "g"}))

	assert.NoError(t, Remove(path))
	assert.NoError(t, Remove(path), "removing an absent state file is fine")
}

func TestDefaultPathPrefersRunnerTemp(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RUNNER_TEMP", dir)
	assert.Equal(t, filepath.Join(dir, "docker-configure", "state.json"), DefaultPath())
}
