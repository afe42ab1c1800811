package gha

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputSingleLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	t.Setenv("GITHUB_OUTPUT", path)

	require.NoError(t, SetOutput("endpoint", "tcp://10.0.0.1:9999"))
	require.NoError(t, SetOutput("platforms", "linux/amd64"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "endpoint=tcp://10.0.0.1:9999\nplatforms=linux/amd64\n", string(data))
}

func TestSetOutputMultiline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	t.Setenv("GITHUB_OUTPUT", path)

	cert := "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----"
	require.NoError(t, SetOutput("cacert", cert))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// name<<delim \n value \n delim
	pattern := regexp.MustCompile(`(?s)^cacert<<(ghadelim_\S+)\n(.*)\n(ghadelim_\S+)\n$`)
	m := pattern.FindStringSubmatch(string(data))
	require.NotNil(t, m, "unexpected format: %q", string(data))
	assert.Equal(t, cert, m[2])
	assert.Equal(t, m[1], m[3], "opening and closing delimiters must match")
	assert.False(t, strings.Contains(cert, m[1]), "delimiter must not collide with the value")
}

func TestSetOutputOutsideActions(t *testing.T) {
	t.Setenv("GITHUB_OUTPUT", "")
	os.Unsetenv("GITHUB_OUTPUT")

	assert.NoError(t, SetOutput("endpoint", "tcp://10.0.0.1:9999"), "no command file means a quiet no-op")
}

func TestSaveState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	t.Setenv("GITHUB_STATE", path)

	require.NoError(t, SaveState("state-path", "/tmp/state.json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "state-path=/tmp/state.json\n", string(data))
}
