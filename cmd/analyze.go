package cmd

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <protocol.py>",
	Short: "Analyze a protocol with the app-bundled interpreter",
	Long: `Runs the app's protocol analysis and writes the result as JSON. Run-time
parameter overrides can be passed from a JSON file (--rtp) or as CSV
parameters (--rtp-csv name=path, repeatable).`,
	Args: cobra.ExactArgs(1),
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

		argv := []string{"-I", "-m", "opentrons.cli", "analyze"}

		rtpArg, err := rtpValuesArg(cmd)
		if err != nil {
			return err
		}
		if rtpArg != "" {
			argv = append(argv, rtpArg)
		}

		csvArg, err := rtpFilesArg(cmd)
		if err != nil {
			return err
		}
		if csvArg != "" {
			argv = append(argv, csvArg)
		}

		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		if output == "" {
			output = strings.TrimSuffix(protocol, ".py") + ".analysis.json"
		}

		argv = append(argv, "--json-output", output, protocol)

		labware, err := labwareArgs(cmd)
		if err != nil {
			return err
		}
		argv = append(argv, labware...)

		return runInterpreter(cmd, python, argv)
	},
}

func init() {
	analyzeCmd.Flags().String("output", "", "analysis output path (default: <protocol>.analysis.json)")
	analyzeCmd.Flags().String("rtp", "", "JSON file with run-time parameter overrides")
	analyzeCmd.Flags().StringArray("rtp-csv", nil, "CSV run-time parameter as name=path, may be repeated")
	analyzeCmd.Flags().String("labware", "", "custom labware library directory (default: the app's labware folder)")
	rootCmd.AddCommand(analyzeCmd)
}

// rtpValuesArg turns the --rtp file into a --rtp-values argument. The file
// content is validated and compacted before it's passed on.
func rtpValuesArg(cmd *cobra.Command) (string, error) {
	rtpFile, err := cmd.Flags().GetString("rtp")
	if err != nil || rtpFile == "" {
		return "", err
	}

	content, err := os.ReadFile(rtpFile)
	if err != nil {
		return "", eris.Wrapf(err, "failed to read %s", rtpFile)
	}

	var values map[string]any
	err = json.Unmarshal(content, &values)
	if err != nil {
		return "", eris.Wrapf(err, "%s does not contain a JSON object", rtpFile)
	}

	compact, err := json.Marshal(values)
	if err != nil {
		return "", eris.Wrap(err, "failed to serialize run-time parameters")
	}

	return "--rtp-values=" + string(compact), nil
}

// rtpFilesArg turns the --rtp-csv name=path pairs into a --rtp-files
// argument.
func rtpFilesArg(cmd *cobra.Command) (string, error) {
	pairs, err := cmd.Flags().GetStringArray("rtp-csv")
	if err != nil || len(pairs) == 0 {
		return "", err
	}

	files := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pos := strings.Index(pair, "=")
		if pos < 0 {
			return "", eris.Errorf("expected name=path but got %s", pair)
		}

		path := pair[pos+1:]
		if _, err := os.Stat(path); err != nil {
			return "", eris.Wrapf(err, "CSV parameter file %s is missing", path)
		}

		files[pair[:pos]] = path
	}

	encoded, err := json.Marshal(files)
	if err != nil {
		return "", eris.Wrap(err, "failed to serialize CSV parameters")
	}

	return "--rtp-files=" + string(encoded), nil
}
