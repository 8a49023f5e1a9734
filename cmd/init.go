package cmd

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/labglue/labglue/pkg"
	"github.com/labglue/labglue/pkg/tasksys"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter tasks.star with the built-in targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		_, root, cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		scriptPath := filepath.Join(root, ScriptName)
		if _, err := os.Stat(scriptPath); err == nil && !overwrite {
			return eris.Errorf("%s already exists, pass --force to overwrite it", scriptPath)
		}

		script := tasksys.StarterScript(seedConfig(cfg, root))
		err = os.WriteFile(scriptPath, []byte(script), os.FileMode(0660))
		if err != nil {
			return eris.Wrapf(err, "failed to write %s", scriptPath)
		}

		pkg.PrintTask("Wrote " + scriptPath)
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing tasks.star")
	rootCmd.AddCommand(initCmd)
}
