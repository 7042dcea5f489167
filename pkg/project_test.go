package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()

	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		assert.NoError(t, os.Chdir(old))
	})
}

func TestGetProjectRoot(t *testing.T) {
	// Getwd reports the resolved path so symlinked temp dirs have to be
	// resolved as well before comparing
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0700))

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0700))
	chdir(t, nested)

	found, err := GetProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestGetProjectRootFallback(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	chdir(t, dir)

	found, err := GetProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, dir, found)
}
