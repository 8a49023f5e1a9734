package cmd

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/labglue/labglue/pkg"
	"github.com/labglue/labglue/pkg/tasksys"
)

var configureCmd = &cobra.Command{
	Use:   "configure [option=value ...]",
	Short: "Run the task script's configure step and cache the result",
	Long: `Evaluates tasks.star with the given option overrides and stores the
resulting task list so later runs can skip the script evaluation until the
script changes again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		options := make(map[string]string)
		for _, part := range args {
			pos := strings.Index(part, "=")
			if pos < 0 {
				return eris.Errorf("expected option=value but got %s", part)
			}
			options[part[:pos]] = part[pos+1:]
		}

		ctx, root, cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		scriptPath := filepath.Join(root, ScriptName)
		env := tasksys.ScriptEnv{
			ProjectRoot:  root,
			Options:      configOptions(cfg, options),
			Interpreters: seedConfig(cfg, root).Interpreters(),
		}

		taskList, declared, err := tasksys.RunScript(ctx, scriptPath, env, true)
		if err != nil {
			return err
		}

		cachePath := filepath.Join(root, cacheName)
		err = tasksys.WriteCache(cachePath, env.Options, taskList)
		if err != nil {
			return eris.Wrapf(err, "failed to write %s", cachePath)
		}

		pkg.PrintTask("Configured " + scriptPath)
		for name, opt := range declared {
			value, ok := env.Options[name]
			if !ok {
				value = opt.Default()
			}
			pkg.PrintSubtask(name + " = " + value)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configureCmd)
}
