package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRtpFlags() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("rtp", "", "")
	cmd.Flags().StringArray("rtp-csv", nil, "")
	return cmd
}

func TestRtpValuesArg(t *testing.T) {
	rtpFile := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(rtpFile, []byte(`{
		"volume": 42
	}`), 0600))

	cmd := newRtpFlags()
	require.NoError(t, cmd.Flags().Set("rtp", rtpFile))

	arg, err := rtpValuesArg(cmd)
	require.NoError(t, err)
	assert.Equal(t, `--rtp-values={"volume":42}`, arg, "the file content is compacted")
}

func TestRtpValuesArgUnset(t *testing.T) {
	arg, err := rtpValuesArg(newRtpFlags())
	require.NoError(t, err)
	assert.Empty(t, arg)
}

func TestRtpValuesArgInvalid(t *testing.T) {
	rtpFile := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(rtpFile, []byte(`[1, 2]`), 0600))

	cmd := newRtpFlags()
	require.NoError(t, cmd.Flags().Set("rtp", rtpFile))

	_, err := rtpValuesArg(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not contain a JSON object")
}

func TestRtpValuesArgMissingFile(t *testing.T) {
	cmd := newRtpFlags()
	require.NoError(t, cmd.Flags().Set("rtp", filepath.Join(t.TempDir(), "nope.json")))

	_, err := rtpValuesArg(cmd)
	require.Error(t, err)
}

func TestRtpFilesArg(t *testing.T) {
	csvFile := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(csvFile, []byte("a,b\n"), 0600))

	cmd := newRtpFlags()
	require.NoError(t, cmd.Flags().Set("rtp-csv", "samples="+csvFile))

	arg, err := rtpFilesArg(cmd)
	require.NoError(t, err)
	assert.Equal(t, `--rtp-files={"samples":"`+csvFile+`"}`, arg)
}

func TestRtpFilesArgUnset(t *testing.T) {
	arg, err := rtpFilesArg(newRtpFlags())
	require.NoError(t, err)
	assert.Empty(t, arg)
}

func TestRtpFilesArgMalformed(t *testing.T) {
	cmd := newRtpFlags()
	require.NoError(t, cmd.Flags().Set("rtp-csv", "no-equals-sign"))

	_, err := rtpFilesArg(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected name=path")
}

func TestRtpFilesArgMissingFile(t *testing.T) {
	cmd := newRtpFlags()
	require.NoError(t, cmd.Flags().Set("rtp-csv", "samples="+filepath.Join(t.TempDir(), "nope.csv")))

	_, err := rtpFilesArg(cmd)
	require.Error(t, err)
}
