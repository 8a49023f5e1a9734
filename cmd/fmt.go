package cmd

import (
	"github.com/spf13/cobra"

	"github.com/labglue/labglue/pkg/tasksys"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt",
	Short: "Run the formatter and the lint fixer over all Python files",
	Long: `Runs the "format" target: black followed by ruff check --fix over every
Python source file in the project tree. Equivalent to "labglue format" but
always executes, even when a task script overrides the freshness checks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		ctx, root, cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		taskList, err := loadTaskList(ctx, root, cfg, nil, true)
		if err != nil {
			return err
		}

		if _, ok := taskList["format"]; !ok {
			// the task script dropped the builtin, fall back to it
			taskList["format"] = tasksys.BuiltinTasks(seedConfig(cfg, root))["format"]
		}

		return tasksys.RunTask(ctx, root, "format", taskList, dryRun, true)
	},
}

func init() {
	fmtCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.AddCommand(fmtCmd)
}
