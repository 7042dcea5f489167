package pkg

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolImports(t *testing.T) {
	toolsFile := filepath.Join(t.TempDir(), "tools.go")
	content := `// +build tools

package main

import (
	_ "github.com/cortesi/modd/cmd/modd"
	_ "example.org/other/tool"
)
`
	require.NoError(t, ioutil.WriteFile(toolsFile, []byte(content), 0600))

	deps, err := toolImports(toolsFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"github.com/cortesi/modd/cmd/modd", "example.org/other/tool"}, deps)
}

func TestToolImportsMissingFile(t *testing.T) {
	_, err := toolImports(filepath.Join(t.TempDir(), "tools.go"))
	require.Error(t, err)
}
