// Package config loads the tool settings: the per-OS bundled interpreter
// paths and the default interpreter arguments. Values are layered in
// ascending precedence: built-in defaults, labglue.yaml in the project root,
// LABGLUE_* environment variables, command-line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"

	"github.com/labglue/labglue/pkg/pyenv"
)

// FileName is the name of the per-project config file.
const FileName = "labglue.yaml"

// EnvPrefix is the prefix for environment overrides, e.g.
// LABGLUE_PYTHON_ARGS for python.args.
const EnvPrefix = "LABGLUE_"

// Python holds the interpreter settings.
type Python struct {
	Windows string `koanf:"windows"`
	MacOS   string `koanf:"macos"`
	Linux   string `koanf:"linux"`
	// Args is the argument string passed to the interpreter targets. The
	// default lists the interpreter's installed packages.
	Args string `koanf:"args"`
}

// Config is the complete tool configuration.
type Config struct {
	Python Python `koanf:"python"`
}

// DefaultArgs is the stock interpreter invocation: list installed packages.
const DefaultArgs = "-m pip list"

func defaults() map[string]any {
	paths := pyenv.DefaultPaths()
	return map[string]any{
		"python.windows": paths.Windows,
		"python.macos":   paths.MacOS,
		"python.linux":   paths.Linux,
		"python.args":    DefaultArgs,
	}
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"win-python":   "python.windows",
	"mac-python":   "python.macos",
	"linux-python": "python.linux",
	"python-args":  "python.args",
}

// RegisterFlags declares the override flags on the given flag set.
func RegisterFlags(flags *pflag.FlagSet) {
	paths := pyenv.DefaultPaths()
	flags.String("win-python", paths.Windows, "path to the app-bundled Python interpreter on Windows")
	flags.String("mac-python", paths.MacOS, "path to the app-bundled Python interpreter on macOS")
	flags.String("linux-python", paths.Linux, "path to the app-bundled Python interpreter on Linux")
	flags.String("python-args", DefaultArgs, "arguments passed to the interpreter targets")
}

// Load assembles the configuration for the given project root. flags may be
// nil when no CLI overrides apply.
func Load(projectRoot string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, eris.Wrap(err, "failed to load defaults")
	}

	cfgPath := filepath.Join(projectRoot, FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
			return nil, eris.Wrapf(err, "failed to parse %s", cfgPath)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to load environment overrides")
	}

	if flags != nil {
		err = k.Load(posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			mapped, ok := flagKeys[key]
			if !ok {
				return "", nil
			}
			return mapped, value
		}), nil)
		if err != nil {
			return nil, eris.Wrap(err, "failed to load flag overrides")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

// Paths returns the configured interpreter paths.
func (c *Config) Paths() pyenv.Paths {
	return pyenv.Paths{
		Windows: c.Python.Windows,
		MacOS:   c.Python.MacOS,
		Linux:   c.Python.Linux,
	}
}

// ArgList splits the configured argument string into argv form.
func (c *Config) ArgList() []string {
	return strings.Fields(c.Python.Args)
}
