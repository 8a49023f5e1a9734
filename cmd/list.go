package cmd

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, root, cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		taskList, err := loadTaskList(ctx, root, cfg, nil, true)
		if err != nil {
			return err
		}

		printTaskList(taskList)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
