package cmd

import "github.com/daedalus-build/daedalus/pkg/tasksys"

// buildRegistry declares daedalus' own build graph. Non-phony task names
// double as the output path of the task, relative to the project root.
// Actions that call daedalus itself expect the binary on PATH, just like the
// mv/rm/mkdir reroute does.
func buildRegistry() *tasksys.Registry {
	reg := tasksys.NewRegistry()

	reg.Define(&tasksys.Task{
		Name:    "bin/daedalus",
		Prereqs: []string{"go.mod", "main.go"},
		Action:  []string{"go", "build", "-o", "bin/daedalus", "."},
	})
	reg.Define(&tasksys.Task{
		Name:    "build",
		Prereqs: []string{"bin/daedalus"},
		Doc:     "compile daedalus into bin/",
	})
	reg.Define(&tasksys.Task{
		Name:   "test",
		Phony:  true,
		Action: []string{"go", "test", "./..."},
		Doc:    "run the test suite",
	})
	reg.Define(&tasksys.Task{
		Name:   "vet",
		Phony:  true,
		Action: []string{"go", "vet", "./..."},
		Doc:    "run go vet on all packages",
	})
	reg.Define(&tasksys.Task{
		Name:    "DEPS.stamps",
		Prereqs: []string{"DEPS.yml"},
		Action:  []string{"daedalus", "fetch-deps"},
	})
	reg.Define(&tasksys.Task{
		Name:    "deps",
		Prereqs: []string{"DEPS.stamps"},
		Doc:     "download and unpack the managed dependencies",
	})
	reg.Define(&tasksys.Task{
		Name:    ".tools",
		Prereqs: []string{"tools.go"},
		Action:  []string{"daedalus", "install-tools"},
	})
	reg.Define(&tasksys.Task{
		Name:    "tools",
		Prereqs: []string{".tools"},
		Doc:     "install the Go helper tools into .tools/",
	})
	reg.Define(&tasksys.Task{
		Name:    "dist/daedalus.tar.xz",
		Prereqs: []string{"bin/daedalus"},
		Action:  []string{"daedalus", "pack", "dist/daedalus.tar.xz", "bin"},
	})
	reg.Define(&tasksys.Task{
		Name:    "dist",
		Prereqs: []string{"dist/daedalus.tar.xz"},
		Doc:     "pack the compiled binary into a release archive",
	})
	reg.Define(&tasksys.Task{
		Name:   "clean",
		Phony:  true,
		Action: []string{"rm", "-rf", "bin", "dist"},
		Doc:    "remove build and dist artifacts",
	})

	reg.SetDefault("build")

	return reg
}
