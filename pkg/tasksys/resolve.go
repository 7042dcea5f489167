package tasksys

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

const (
	visiting = 1
	visited  = 2
)

type resolver struct {
	reg   *Registry
	root  string
	state map[string]int
	stack []string
	plan  []*Task
}

// Resolve walks the prerequisite graph below target and returns the tasks in
// the order they have to run: prerequisites before dependents, siblings in
// declaration order, every task at most once. File prerequisites are only
// checked for existence here; their timestamps matter during staleness
// evaluation.
func Resolve(reg *Registry, root, target string) ([]*Task, error) {
	if _, ok := reg.Lookup(target); !ok {
		return nil, &UnknownPrerequisiteError{Ref: target}
	}

	r := &resolver{reg: reg, root: root, state: make(map[string]int)}
	if err := r.visit(target); err != nil {
		return nil, err
	}
	return r.plan, nil
}

func (r *resolver) visit(name string) error {
	switch r.state[name] {
	case visited:
		return nil
	case visiting:
		return r.cycle(name)
	}

	r.state[name] = visiting
	r.stack = append(r.stack, name)

	task, _ := r.reg.Lookup(name)
	for _, ref := range task.Prereqs {
		if _, ok := r.reg.Lookup(ref); ok {
			if err := r.visit(ref); err != nil {
				return err
			}
			continue
		}

		if _, err := os.Stat(resolvePath(r.root, ref)); err != nil {
			if eris.Is(err, os.ErrNotExist) {
				return &UnknownPrerequisiteError{Task: name, Ref: ref}
			}
			return eris.Wrapf(err, "failed to check prerequisite %s of task %s", ref, name)
		}
	}

	r.stack = r.stack[:len(r.stack)-1]
	r.state[name] = visited
	r.plan = append(r.plan, task)
	return nil
}

// cycle reconstructs the offending path from the visit stack.
func (r *resolver) cycle(name string) error {
	start := 0
	for idx, entry := range r.stack {
		if entry == name {
			start = idx
			break
		}
	}

	witness := make([]string, 0, len(r.stack)-start+1)
	witness = append(witness, r.stack[start:]...)
	witness = append(witness, name)
	return &CycleError{Stack: witness}
}

// resolvePath anchors relative references at the project root.
func resolvePath(root, ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(root, ref)
}
