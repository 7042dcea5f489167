package tasksys

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
)

// runState tracks which tasks already ran during the current invocation so
// that staleness can propagate to dependents.
type runState struct {
	reg *Registry
	ran map[string]bool
}

func newRunState(reg *Registry) *runState {
	return &runState{reg: reg, ran: make(map[string]bool)}
}

func (s *runState) markRan(task *Task) {
	s.ran[task.Name] = true
}

// rebuiltUpstream reports whether any non-phony task in the prerequisite
// closure of task ran during this invocation. Phony prerequisites run every
// time and don't count as a change by themselves but tasks behind them still
// do.
func (s *runState) rebuiltUpstream(task *Task) bool {
	seen := make(map[string]bool)

	var walk func(t *Task) bool
	walk = func(t *Task) bool {
		for _, ref := range t.Prereqs {
			pre, ok := s.reg.Lookup(ref)
			if !ok || seen[ref] {
				continue
			}
			seen[ref] = true

			if !pre.Phony && s.ran[pre.Name] {
				return true
			}
			if walk(pre) {
				return true
			}
		}
		return false
	}
	return walk(task)
}

// mustRun decides whether the task's action has to run. Grouping tasks have
// nothing to run, phony tasks always run and everything else is compared
// against the timestamp of the output file the task is named after.
func (s *runState) mustRun(ctx context.Context, root string, task *Task) (bool, error) {
	if len(task.Action) == 0 {
		return false, nil
	}
	if task.Phony {
		return true, nil
	}
	if s.rebuiltUpstream(task) {
		log(ctx).Debug().Msgf("A prerequisite of task %s was rebuilt", task.Name)
		return true, nil
	}

	outInfo, err := os.Stat(resolvePath(root, task.Name))
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			log(ctx).Debug().Msgf("Output %s is missing", task.Name)
			return true, nil
		}
		return false, eris.Wrapf(err, "failed to check output of task %s", task.Name)
	}

	for _, ref := range task.Prereqs {
		if _, ok := s.reg.Lookup(ref); ok {
			continue
		}

		info, err := os.Stat(resolvePath(root, ref))
		if err != nil {
			if eris.Is(err, os.ErrNotExist) {
				log(ctx).Debug().Msgf("Prerequisite %s of task %s disappeared", ref, task.Name)
				return true, nil
			}
			return false, eris.Wrapf(err, "failed to check prerequisite %s of task %s", ref, task.Name)
		}

		if info.ModTime().After(outInfo.ModTime()) {
			log(ctx).Debug().Msgf("Prerequisite %s is newer than %s", ref, task.Name)
			return true, nil
		}
	}

	return false, nil
}
