package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daedalus-build/daedalus/pkg/tasksys"
)

func TestBuildRegistryDefault(t *testing.T) {
	reg := buildRegistry()
	assert.Equal(t, "build", reg.Default())
}

// Every declared task has to resolve against the repository root, otherwise
// the graph references a prerequisite that is neither a task nor a file.
func TestBuildRegistryResolves(t *testing.T) {
	reg := buildRegistry()

	for _, task := range reg.All() {
		_, err := tasksys.Resolve(reg, "..", task.Name)
		require.NoErrorf(t, err, "resolve %s", task.Name)
	}
}

func TestBuildRegistryCatalog(t *testing.T) {
	catalog := tasksys.Catalog(buildRegistry())

	for _, name := range []string{"build", "clean", "deps", "dist", "test", "tools", "vet"} {
		assert.Contains(t, catalog, " * "+name+":")
	}

	// tasks without a doc string stay hidden
	assert.NotContains(t, catalog, " * bin/daedalus")
	assert.NotContains(t, catalog, " * DEPS.stamps")
	assert.NotContains(t, catalog, " * .tools")
}
