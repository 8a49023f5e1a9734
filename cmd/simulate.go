package cmd

import (
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/labglue/labglue/pkg"
	"github.com/labglue/labglue/pkg/pyenv"
	"github.com/labglue/labglue/pkg/tasksys"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <protocol.py>",
	Short: "Simulate a protocol with the app-bundled interpreter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		protocol := args[0]
		if _, err := os.Stat(protocol); err != nil {
			return eris.Wrapf(err, "protocol file %s is missing", protocol)
		}

		python, err := cfg.Paths().Locate()
		if err != nil {
			return err
		}

		labware, err := labwareArgs(cmd)
		if err != nil {
			return err
		}

		argv := []string{"-I", "-m", "opentrons.simulate", protocol}
		argv = append(argv, labware...)

		return runInterpreter(cmd, python, argv)
	},
}

func init() {
	simulateCmd.Flags().String("labware", "", "custom labware library directory (default: the app's labware folder)")
	rootCmd.AddCommand(simulateCmd)
}

// labwareArgs resolves the custom labware definitions that get appended to
// the interpreter invocation.
func labwareArgs(cmd *cobra.Command) ([]string, error) {
	dir, err := cmd.Flags().GetString("labware")
	if err != nil {
		return nil, err
	}

	if dir == "" {
		dir, err = pyenv.LabwareDir()
		if err != nil {
			return nil, err
		}
	}

	return pyenv.LabwareFiles(dir)
}

// runInterpreter executes the bundled Python with inherited stdio and
// propagates its exit status unchanged.
func runInterpreter(cmd *cobra.Command, python string, argv []string) error {
	pkg.PrintTask(python + " " + strings.Join(argv, " "))

	proc := exec.CommandContext(cmd.Context(), python, argv...)
	proc.Stdin = os.Stdin
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr

	err := proc.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if eris.As(err, &exitErr) {
		return tasksys.ExitError{Code: uint8(exitErr.ExitCode()), Task: cmd.Name()}
	}

	return eris.Wrapf(err, "failed to run %s", python)
}
