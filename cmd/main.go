// Package cmd implements the daedalus command line interface.
package cmd

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/daedalus-build/daedalus/pkg"
	"github.com/daedalus-build/daedalus/pkg/tasksys"
)

var rootCmd = &cobra.Command{
	Use:   "daedalus [target] [NAME=VALUE ...]",
	Short: "Minimal Make-style build front end",
	Long: `daedalus resolves the given target task, decides which actions are stale
based on file timestamps and runs the stale ones in prerequisite order.
Without a target the default target runs. NAME=VALUE arguments override
inherited environment variables for every executed action; variables a task
declares itself keep precedence.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		targets, overrides := splitArgs(args)
		if len(targets) > 1 {
			return eris.Errorf("expected at most one target but got %d", len(targets))
		}

		settings, err := pkg.LoadSettings()
		if err != nil {
			return err
		}

		logger := newLogger(settings)
		ctx := tasksys.WithLogger(context.Background(), &logger)

		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		reg := buildRegistry()
		target := reg.Default()
		if len(targets) == 1 {
			target = targets[0]
		}

		return tasksys.Run(ctx, reg, target, tasksys.Options{
			Root:   root,
			Env:    overrides,
			DryRun: dryRun,
			Force:  force,
		})
	},
}

// splitArgs separates target names from NAME=VALUE environment overrides.
func splitArgs(args []string) ([]string, map[string]string) {
	targets := make([]string, 0, 1)
	overrides := make(map[string]string)

	for _, part := range args {
		pos := strings.Index(part, "=")
		if pos > -1 {
			overrides[part[:pos]] = part[pos+1:]
		} else {
			targets = append(targets, part)
		}
	}

	return targets, overrides
}

func newLogger(settings *pkg.Settings) zerolog.Logger {
	var logger zerolog.Logger
	if settings.Log.JSON {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(NewConsoleWriter())
	}

	return logger.Level(settings.LogLevel()).With().Str("run", nanoid.New()).Logger()
}

func init() {
	rootCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.Flags().BoolP("force", "f", false, "force build; always execute the planned steps even if they don't have to run")
}

// Execute dispatches to the requested command. When a task action fails, the
// process exits with the action's exit status.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var actionErr *tasksys.ActionError
	if errors.As(err, &actionErr) && actionErr.ExitCode > 0 {
		os.Exit(actionErr.ExitCode)
	}

	os.Exit(1)
}
