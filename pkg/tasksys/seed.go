package tasksys

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SeedConfig carries the configured interpreter paths and tool names used to
// synthesize the built-in targets.
type SeedConfig struct {
	WindowsPython string
	MacPython     string
	LinuxPython   string
	PythonArgs    []string
	ProjectRoot   string
}

func interpreterCmd(path string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteShellWord(path))
	for _, arg := range args {
		parts = append(parts, quoteShellWord(arg))
	}
	return strings.Join(parts, " ")
}

// Interpreters returns the per-GOOS interpreter map fed to app_python().
func (c SeedConfig) Interpreters() map[string]string {
	return map[string]string{
		"windows": c.WindowsPython,
		"darwin":  c.MacPython,
		"linux":   c.LinuxPython,
	}
}

// toolDirs lists the directories fetch-tools unpacks into, relative to the
// project root.
func toolDirs(root string) []string {
	return []string{
		filepath.Join(root, ".tools", "ruff"),
		filepath.Join(root, ".tools", "uv"),
	}
}

// toolPath prepends the fetched tool directories so a prior fetch-tools run
// wins over whatever is on the ambient PATH.
func toolPath(root string) string {
	sep := string(os.PathListSeparator)
	return strings.Join(toolDirs(root), sep) + sep + os.Getenv("PATH")
}

// blackCmd launches black through the fetched uv when it is present, which
// makes fetch-tools enough to get a working format target without a separate
// pip install.
func blackCmd(root string) string {
	uv := filepath.Join(root, ".tools", "uv", "uv")
	if runtime.GOOS == "windows" {
		uv += ".exe"
	}

	if _, err := os.Stat(uv); err == nil {
		return "uv tool run black ."
	}
	return "black ."
}

// BuiltinTasks synthesizes the default targets so the tool works without a
// tasks.star file: one launcher per desktop OS plus the formatting pass.
func BuiltinTasks(cfg SeedConfig) TaskList {
	launcher := func(name, desc, python string) *Task {
		return &Task{
			Short: name,
			Desc:  desc,
			Base:  cfg.ProjectRoot,
			Env:   map[string]string{},
			Cmds: []Command{
				ShellCmd{TaskName: name, Content: interpreterCmd(python, cfg.PythonArgs)},
			},
		}
	}

	format := &Task{
		Short: "format",
		Desc:  "Format and lint-fix all Python files in the tree",
		Base:  cfg.ProjectRoot,
		Env:   map[string]string{"PATH": toolPath(cfg.ProjectRoot)},
		Cmds: []Command{
			ShellCmd{TaskName: "format", Content: blackCmd(cfg.ProjectRoot), Index: 0},
			ShellCmd{TaskName: "format", Content: "ruff check --fix .", Index: 1},
		},
	}

	return TaskList{
		"python-mac": launcher("python-mac",
			"Launch the app-bundled Python interpreter (macOS) with the configured arguments", cfg.MacPython),
		"python-win": launcher("python-win",
			"Launch the app-bundled Python interpreter (Windows) with the configured arguments", cfg.WindowsPython),
		"python-linux": launcher("python-linux",
			"Launch the app-bundled Python interpreter (Linux) with the configured arguments", cfg.LinuxPython),
		"format": format,
	}
}

// StarterScript renders the tasks.star file written by "labglue init". It
// declares the same targets as BuiltinTasks but as an editable script.
func StarterScript(cfg SeedConfig) string {
	return fmt.Sprintf(`mac_python = option("mac_python", default=%q,
    help="Path to the app-bundled Python interpreter on macOS")
win_python = option("win_python", default=%q,
    help="Path to the app-bundled Python interpreter on Windows")
python_args = option("python_args", default=%q,
    help="Arguments passed to the interpreter targets")


def configure():
    # prefer the toolchain unpacked by "labglue fetch-tools"
    if isdir("//.tools/ruff"):
        prepend_path("//.tools/ruff")
    if isdir("//.tools/uv"):
        prepend_path("//.tools/uv")

    black = "uv tool run black ." if isfile("//.tools/uv/uv") or isfile("//.tools/uv/uv.exe") else "black ."

    task(
        "python-mac",
        desc="Launch the app-bundled Python interpreter (macOS) with the configured arguments",
        cmds=["'%%s' %%s" %% (mac_python, python_args)],
    )

    task(
        "python-win",
        desc="Launch the app-bundled Python interpreter (Windows) with the configured arguments",
        cmds=["'%%s' %%s" %% (win_python, python_args)],
    )

    task(
        "format",
        desc="Format and lint-fix all Python files in the tree",
        cmds=[
            black,
            "ruff check --fix .",
        ],
    )
`, cfg.MacPython, cfg.WindowsPython, strings.Join(cfg.PythonArgs, " "))
}
