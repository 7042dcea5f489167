package tasksys

import "fmt"

// Task describes a single unit of work. For non-phony tasks the name doubles
// as the path of the output artifact, relative to the project root.
type Task struct {
	// Name is the unique key under which the task is registered.
	Name string
	// Prereqs lists references to other tasks or to plain files, in the
	// order they should be satisfied. References are resolved when a build
	// is requested, not when the task is defined.
	Prereqs []string
	// Action is the command to run, as an argument list. The first element
	// is the program, the rest are passed through verbatim. An empty action
	// marks a pure grouping task.
	Action []string
	// Env holds additional environment variables for the action. They shadow
	// both the ambient environment and invocation overrides.
	Env map[string]string
	// Dir is the working directory for the action, relative to the project
	// root. Empty means the root itself.
	Dir string
	// Phony tasks never correspond to an output file and always run.
	Phony bool
	// Doc is a one-line description. Tasks without one are hidden from the
	// catalog listing.
	Doc string
}

func (t *Task) String() string {
	return fmt.Sprintf("<task %s>", t.Name)
}

// Registry holds the set of known tasks. Definition order is preserved since
// it determines both the fallback default target and prerequisite tie-breaks.
type Registry struct {
	tasks map[string]*Task
	order []string
	def   string
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Define registers the given task. Defining a name twice replaces the earlier
// task but keeps its position in the definition order.
func (r *Registry) Define(task *Task) {
	if _, ok := r.tasks[task.Name]; !ok {
		r.order = append(r.order, task.Name)
	}
	r.tasks[task.Name] = task
}

// Lookup returns the task registered under name, if any.
func (r *Registry) Lookup(name string) (*Task, bool) {
	task, ok := r.tasks[name]
	return task, ok
}

// All returns the registered tasks in definition order.
func (r *Registry) All() []*Task {
	result := make([]*Task, len(r.order))
	for idx, name := range r.order {
		result[idx] = r.tasks[name]
	}
	return result
}

// SetDefault marks the task that runs when no target is given. It may be
// called before the task itself is defined.
func (r *Registry) SetDefault(name string) {
	r.def = name
}

// Default returns the explicitly marked default target or, failing that, the
// first defined task. It returns an empty string for an empty registry.
func (r *Registry) Default() string {
	if r.def != "" {
		return r.def
	}
	if len(r.order) > 0 {
		return r.order[0]
	}
	return ""
}
