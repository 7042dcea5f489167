package tasksys

import (
	"fmt"
	"strings"
)

// CycleError is returned by Resolve when the prerequisite graph contains a
// cycle. Stack holds the offending path; the first and last element are the
// same task.
type CycleError struct {
	Stack []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Stack, " -> ")
}

// UnknownPrerequisiteError is returned by Resolve when a reference is neither
// a registered task nor an existing file. Task is empty if the unresolved
// reference was the requested target itself.
type UnknownPrerequisiteError struct {
	Task string
	Ref  string
}

func (e *UnknownPrerequisiteError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("task %s not found", e.Ref)
	}
	return fmt.Sprintf("task %s: prerequisite %s is neither a task nor an existing file", e.Task, e.Ref)
}

// ActionError describes a task action that ran and exited with a non-zero
// status. The process exit code of the calling binary should be ExitCode.
type ActionError struct {
	Task     string
	Command  string
	ExitCode int
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("task %s: command %s exited with status %d", e.Task, e.Command, e.ExitCode)
}
