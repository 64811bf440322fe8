package collect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMethodPresetParsesMethodList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: quiet\nmethods:\n  - Group\n  - Session\n"), 0o644))

	preset, err := LoadMethodPreset(path)
	require.NoError(t, err)
	require.Equal(t, "quiet", preset.Name)
	require.Equal(t, []string{"Group", "Session"}, preset.Methods)
}

func TestLoadMethodPresetRejectsEmptyMethodList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: empty\n"), 0o644))

	_, err := LoadMethodPreset(path)
	require.Error(t, err)
}

func TestLoadMethodPresetReturnsErrorWhenFileMissing(t *testing.T) {
	_, err := LoadMethodPreset(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
