package tasksys

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Options control a single Run invocation.
type Options struct {
	// Root is the project root. Task names, file prerequisites and working
	// directories are resolved relative to it. Defaults to the current
	// directory.
	Root string
	// Env holds NAME=VALUE overrides for this invocation. They win over the
	// ambient environment but per-task Env entries keep precedence.
	Env map[string]string
	// DryRun prints the commands that would run without executing anything.
	DryRun bool
	// Force runs every planned action regardless of timestamps.
	Force bool
	// Stdout and Stderr receive action output and default to the process
	// streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Run resolves the given target and executes every stale task in prerequisite
// order. The first failing action aborts the run; the returned error carries
// the action's exit status as an *ActionError.
func Run(ctx context.Context, reg *Registry, target string, opts Options) error {
	if opts.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return eris.Wrap(err, "failed to determine working directory")
		}
		opts.Root = wd
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	plan, err := Resolve(reg, opts.Root, target)
	if err != nil {
		return err
	}

	state := newRunState(reg)
	for _, task := range plan {
		if err = ctx.Err(); err != nil {
			return err
		}

		need := opts.Force && len(task.Action) > 0
		if !opts.Force {
			need, err = state.mustRun(ctx, opts.Root, task)
			if err != nil {
				return err
			}
		}

		if !need {
			if len(task.Action) > 0 {
				log(ctx).Info().
					Str("task", task.Name).
					Msg("nothing to do")
			}
			continue
		}

		if err = runAction(ctx, task, opts); err != nil {
			return err
		}
		state.markRan(task)
	}

	return nil
}

func runAction(ctx context.Context, task *Task, opts Options) error {
	call := buildCall(task.Action)

	printer := syntax.NewPrinter(
		syntax.Minify(true),
	)
	rendered := strings.Builder{}
	printer.Print(&rendered, call)

	log(ctx).Info().
		Str("task", task.Name).
		Bool("command", true).
		Msg(rendered.String())

	if opts.DryRun {
		return nil
	}

	runner, err := interp.New(
		interp.Dir(taskDir(opts.Root, task)),
		interp.Env(expand.ListEnviron(taskEnviron(task, opts.Env)...)),
		interp.ExecHandler(execHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, opts.Stdout, opts.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to initialize runner")
	}

	err = runner.Run(ctx, call)
	if err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return &ActionError{
				Task:     task.Name,
				Command:  rendered.String(),
				ExitCode: int(status),
			}
		}
		return eris.Wrapf(err, "task %s failed", task.Name)
	}

	return nil
}

// buildCall turns an argument list into a shell call without going through a
// parser. Arguments containing characters the shell would interpret are
// wrapped in single quotes so they survive expansion verbatim.
func buildCall(argv []string) *syntax.CallExpr {
	call := new(syntax.CallExpr)
	call.Args = make([]*syntax.Word, len(argv))

	for idx, arg := range argv {
		var wordPart syntax.WordPart

		if arg == "" || strings.ContainsAny(arg, " \t$'\"*?") {
			node := new(syntax.SglQuoted)
			node.Left = syntax.Pos{}
			node.Right = syntax.Pos{}
			node.Value = arg

			wordPart = syntax.WordPart(node)
		} else {
			node := new(syntax.Lit)
			node.ValuePos = syntax.Pos{}
			node.ValueEnd = syntax.Pos{}
			node.Value = arg

			wordPart = syntax.WordPart(node)
		}

		call.Args[idx] = new(syntax.Word)
		call.Args[idx].Parts = []syntax.WordPart{wordPart}
	}

	return call
}

func taskDir(root string, task *Task) string {
	if task.Dir == "" {
		return root
	}
	return resolvePath(root, task.Dir)
}

// taskEnviron merges the environments: the task's own variables win over the
// invocation overrides which in turn shadow the ambient environment. Every
// name is emitted exactly once; ListEnviron resolves duplicates by sorting
// the raw entries, not by position, so layering has to happen here.
func taskEnviron(task *Task, overrides map[string]string) []string {
	merged := make(map[string]string)
	for _, entry := range os.Environ() {
		pos := strings.Index(entry, "=")
		if pos < 0 {
			continue
		}
		merged[entry[:pos]] = entry[pos+1:]
	}
	for name, value := range overrides {
		merged[name] = value
	}
	for name, value := range task.Env {
		merged[name] = value
	}

	envVars := make([]string, 0, len(merged))
	for name, value := range merged {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return envVars
}

var defaultExecHandler = interp.DefaultExecHandler(2)

func execHandler(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "mv":
			fallthrough
		case "rm":
			fallthrough
		case "mkdir":
			// always use our cross-platform implementation for these operations to make sure
			// they behave consistently
			args = append([]string{"daedalus"}, args...)
		}
	}

	return defaultExecHandler(ctx, args)
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}
