package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labglue/labglue/pkg/config"
	"github.com/labglue/labglue/pkg/tasksys"
)

func testContext() context.Context {
	logger := zerolog.Nop()
	return tasksys.WithLogger(context.Background(), &logger)
}

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()

	cfg, err := config.Load(root, nil)
	require.NoError(t, err)
	return cfg
}

func TestSubcommandsRegistered(t *testing.T) {
	expected := []string{
		"list", "init", "configure", "fmt", "simulate", "analyze",
		"fetch-tools", "mv", "rm", "mkdir", "version",
	}

	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, names[name], "subcommand %s should be registered", name)
	}
}

func TestRootFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.Flags().Lookup("dry"))
	assert.NotNil(t, rootCmd.Flags().Lookup("force"))

	for _, name := range []string{"win-python", "mac-python", "linux-python", "python-args"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "persistent flag %s should exist", name)
	}
}

func TestLoadTaskListBuiltinFallback(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t, root)

	taskList, err := loadTaskList(testContext(), root, cfg, nil, true)
	require.NoError(t, err)

	for _, name := range []string{"python-mac", "python-win", "python-linux", "format"} {
		assert.Contains(t, taskList, name)
	}
}

func TestLoadTaskListScript(t *testing.T) {
	root := t.TempDir()
	script := `def configure():
    task("hello", desc="says hello", cmds=["echo hello"])
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ScriptName), []byte(script), 0600))

	cfg := testConfig(t, root)
	taskList, err := loadTaskList(testContext(), root, cfg, nil, true)
	require.NoError(t, err)

	require.Contains(t, taskList, "hello")
	assert.Equal(t, "says hello", taskList["hello"].Desc)
	assert.NotContains(t, taskList, "python-mac", "the script replaces the built-in targets")
}

func TestLoadTaskListScriptOptions(t *testing.T) {
	root := t.TempDir()
	script := `greeting = option("greeting", default="hi")


def configure():
    task("hello", cmds=["echo " + greeting])
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ScriptName), []byte(script), 0600))

	cfg := testConfig(t, root)
	taskList, err := loadTaskList(testContext(), root, cfg, map[string]string{"greeting": "hola"}, true)
	require.NoError(t, err)

	require.Contains(t, taskList, "hello")
	cmd := taskList["hello"].Cmds[0].(tasksys.ShellCmd)
	assert.Equal(t, "echo hola", cmd.Content)
}

func TestConfigOptions(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t, root)

	options := configOptions(cfg, map[string]string{"python_args": "--version", "extra": "1"})

	assert.Equal(t, cfg.Python.MacOS, options["mac_python"])
	assert.Equal(t, cfg.Python.Windows, options["win_python"])
	assert.Equal(t, cfg.Python.Linux, options["linux_python"])
	assert.Equal(t, "--version", options["python_args"], "overrides beat the configured value")
	assert.Equal(t, "1", options["extra"])
}

func TestSeedConfig(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t, root)

	seed := seedConfig(cfg, root)
	assert.Equal(t, cfg.Python.Windows, seed.WindowsPython)
	assert.Equal(t, cfg.Python.MacOS, seed.MacPython)
	assert.Equal(t, cfg.Python.Linux, seed.LinuxPython)
	assert.Equal(t, []string{"-m", "pip", "list"}, seed.PythonArgs)
	assert.Equal(t, root, seed.ProjectRoot)
}
