// Package cmd implements the labglue CLI.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/labglue/labglue/pkg"
	"github.com/labglue/labglue/pkg/config"
	"github.com/labglue/labglue/pkg/tasksys"
)

// ScriptName is the task script labglue looks for.
const ScriptName = "tasks.star"

// cacheName stores the configure result, relative to the project root.
const cacheName = ".labglue.cache"

var rootCmd = &cobra.Command{
	Use:   "labglue [task ...] [option=value ...]",
	Short: "Task runner for lab-automation Python projects",
	Long: `labglue wraps the Python interpreter bundled with the Opentrons desktop app
and the Python code-quality tools behind named targets. It parses the first
tasks.star file it finds above the working directory and executes the given
tasks; without a task script the built-in targets are available.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		taskArgs := make([]string, 0)
		options := make(map[string]string)
		for _, part := range args {
			pos := strings.Index(part, "=")
			if pos > -1 {
				options[part[:pos]] = part[pos+1:]
			} else {
				taskArgs = append(taskArgs, part)
			}
		}

		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		ctx, root, cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		taskList, err := loadTaskList(ctx, root, cfg, options, true)
		if err != nil {
			return err
		}

		if len(taskArgs) == 0 {
			printTaskList(taskList)
			return nil
		}

		for _, name := range taskArgs {
			if _, ok := taskList[name]; !ok {
				return eris.Errorf("Task %s not found", name)
			}

			err = tasksys.RunTask(ctx, root, name, taskList, dryRun, force)
			if err != nil {
				return err
			}
		}

		return nil
	},
}

func init() {
	rootCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.Flags().BoolP("force", "f", false, "always execute the passed tasks even if they don't have to run")
	config.RegisterFlags(rootCmd.PersistentFlags())
}

// setup builds the logging context, locates the project root and loads the
// configuration. Commands that run outside a project fall back to the
// working directory.
func setup(cmd *cobra.Command) (context.Context, string, *config.Config, error) {
	logger := zerolog.New(NewConsoleWriter())
	ctx := tasksys.WithLogger(cmd.Context(), &logger)

	root, err := pkg.GetProjectRoot()
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			return nil, "", nil, eris.Wrap(err, "failed to retrieve the current working directory")
		}
	}

	cfg, err := config.Load(root, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, "", nil, err
	}

	return ctx, root, cfg, nil
}

func seedConfig(cfg *config.Config, root string) tasksys.SeedConfig {
	return tasksys.SeedConfig{
		WindowsPython: cfg.Python.Windows,
		MacPython:     cfg.Python.MacOS,
		LinuxPython:   cfg.Python.Linux,
		PythonArgs:    cfg.ArgList(),
		ProjectRoot:   root,
	}
}

// configOptions feeds the configured variables into the task script's
// well-known option() declarations. Command-line options win.
func configOptions(cfg *config.Config, overrides map[string]string) map[string]string {
	options := map[string]string{
		"mac_python":   cfg.Python.MacOS,
		"win_python":   cfg.Python.Windows,
		"linux_python": cfg.Python.Linux,
		"python_args":  cfg.Python.Args,
	}
	for name, value := range overrides {
		options[name] = value
	}
	return options
}

// loadTaskList returns the tasks for the project: the parsed task script if
// one exists (using the configure cache when it is fresh and no overrides
// were given), the built-in targets otherwise.
func loadTaskList(ctx context.Context, root string, cfg *config.Config, options map[string]string, useCache bool) (tasksys.TaskList, error) {
	scriptPath := filepath.Join(root, ScriptName)
	_, err := os.Stat(scriptPath)
	if err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(err, "failed to check %s", scriptPath)
		}

		return tasksys.BuiltinTasks(seedConfig(cfg, root)), nil
	}

	cachePath := filepath.Join(root, cacheName)
	if useCache && len(options) == 0 && tasksys.CacheIsFresh(cachePath, scriptPath) {
		_, taskList, err := tasksys.ReadCache(cachePath)
		if err == nil {
			return taskList, nil
		}

		// a broken cache is not fatal, fall through to a fresh parse
	}

	env := tasksys.ScriptEnv{
		ProjectRoot:  root,
		Options:      configOptions(cfg, options),
		Interpreters: seedConfig(cfg, root).Interpreters(),
	}
	taskList, _, err := tasksys.RunScript(ctx, scriptPath, env, true)
	if err != nil {
		return nil, err
	}

	return taskList, nil
}

func printTaskList(taskList tasksys.TaskList) {
	fmt.Println("Available tasks:")
	maxNameLen := 0
	sortedNames := make([]string, 0, len(taskList))
	for _, task := range taskList {
		if task.Hidden {
			continue
		}

		if len(task.Short) > maxNameLen {
			maxNameLen = len(task.Short)
		}

		sortedNames = append(sortedNames, task.Short)
	}

	sort.Strings(sortedNames)

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, name := range sortedNames {
		fmt.Printf(lineFmt, name+":", taskList[name].Desc)
	}
}

// Execute runs the CLI and exits with the propagated status of the last
// external command if a task failed that way.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var exitErr tasksys.ExitError
	if eris.As(err, &exitErr) {
		os.Exit(int(exitErr.Code))
	}

	os.Exit(1)
}
