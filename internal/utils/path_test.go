package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "empty path",
			input:     "",
			wantError: true,
		},
		{
			name:      "relative path",
			input:     "./test",
			wantError: false,
		},
		{
			name:      "absolute path",
			input:     "/tmp/test",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(result))
		})
	}
}

func TestEnsureDirAndParent(t *testing.T) {
	base := t.TempDir()

	dir := filepath.Join(base, "a", "b", "c")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, DirExists(dir))

	// idempotent on an existing directory
	require.NoError(t, EnsureDir(dir))

	file := filepath.Join(base, "x", "y", "state.json")
	require.NoError(t, EnsureParent(file))
	assert.True(t, DirExists(filepath.Dir(file)))
	assert.False(t, FileExists(file))
}

func TestFileAndDirExists(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, FileExists(file))
	assert.False(t, DirExists(file))
	assert.True(t, DirExists(base))
	assert.False(t, FileExists(base))
	assert.False(t, FileExists(filepath.Join(base, "nope")))
}
