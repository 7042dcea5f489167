package pkg

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// toolImports returns the import paths listed in the build-tagged tools file.
func toolImports(toolsFile string) ([]string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, toolsFile, nil, parser.ImportsOnly)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse %s", toolsFile)
	}

	deps := make([]string, len(f.Imports))
	for idx, path := range f.Imports {
		deps[idx] = strings.Trim(path.Path.Value, `"`)
	}

	return deps, nil
}

// InstallTools go installs every import of <root>/tools.go into the tools
// directory by overriding GOBIN.
func InstallTools(projectRoot, toolsDir string) error {
	binPath := toolsDir
	if !filepath.IsAbs(binPath) {
		binPath = filepath.Join(projectRoot, toolsDir)
	}

	toolsFile := filepath.Join(projectRoot, "tools.go")
	deps, err := toolImports(toolsFile)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		PrintSubtask(dep)

		cmd := exec.Command("go", "install", dep)
		cmd.Dir = projectRoot
		cmd.Env = append(os.Environ(), fmt.Sprintf("GOBIN=%s", binPath))
		cmd.Stderr = os.Stderr
		cmd.Stdout = os.Stdout
		err := cmd.Run()
		if err != nil {
			return eris.Wrapf(err, "Failed to install %s", dep)
		}
	}

	return nil
}
