package cmd

import (
	"github.com/spf13/cobra"

	"github.com/labglue/labglue/pkg"
	"github.com/labglue/labglue/pkg/fetch"
)

var fetchToolsCmd = &cobra.Command{
	Use:   "fetch-tools",
	Short: "Download and unpack the pinned code-quality toolchain",
	Long:  `Downloads and unpacks the tools listed in TOOLS.yml at the project root.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg.PrintTask("Loading config")
		_, root, _, err := setup(cmd)
		if err != nil {
			return err
		}

		cfg, stamps, err := fetch.LoadConfig(root)
		if err != nil {
			return err
		}

		pkg.PrintTask("Downloading tools")
		err = fetch.DownloadAndExtract(cfg, stamps, root)

		if sErr := fetch.SaveStamps(root, stamps); sErr != nil {
			pkg.PrintError(sErr.Error())
		}

		if err == nil {
			pkg.PrintTask("Done")
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(fetchToolsCmd)
}
