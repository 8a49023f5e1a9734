// Package pyenv locates the Python interpreter that ships inside the
// Opentrons desktop application as well as the user's custom labware library.
package pyenv

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
)

// Default interpreter locations inside the installed desktop app. The Linux
// path assumes an AppImage extracted to /opt/opentrons.
const (
	DefaultWindowsPath = `C:\Program Files\Opentrons\resources\python\python.exe`
	DefaultMacPath     = "/Applications/Opentrons.app/Contents/Resources/python/bin/python3"
	DefaultLinuxPath   = "/opt/opentrons/resources/python/bin/python3"
)

// Paths holds the configured interpreter location per desktop OS.
type Paths struct {
	Windows string
	MacOS   string
	Linux   string
}

// DefaultPaths returns the stock install locations.
func DefaultPaths() Paths {
	return Paths{
		Windows: DefaultWindowsPath,
		MacOS:   DefaultMacPath,
		Linux:   DefaultLinuxPath,
	}
}

// For returns the configured interpreter path for the given GOOS name.
func (p Paths) For(goos string) (string, error) {
	switch goos {
	case "windows":
		return p.Windows, nil
	case "darwin":
		return p.MacOS, nil
	case "linux":
		return p.Linux, nil
	default:
		return "", eris.Errorf("unsupported OS platform %s", goos)
	}
}

// Current returns the configured interpreter path for the running OS.
func (p Paths) Current() (string, error) {
	return p.For(runtime.GOOS)
}

// Locate resolves the interpreter for the running OS and verifies that it
// actually exists.
func (p Paths) Locate() (string, error) {
	path, err := p.Current()
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return "", eris.Errorf("bundled interpreter not found at %s; is the desktop app installed?", path)
		}
		return "", eris.Wrapf(err, "failed to check interpreter path %s", path)
	}

	if info.IsDir() {
		return "", eris.Errorf("interpreter path %s is a directory", path)
	}

	return path, nil
}

// LabwareDir returns the app's custom labware library directory for the
// running OS. The directory is not required to exist.
func LabwareDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to determine the user config directory")
	}

	return filepath.Join(cfgDir, "Opentrons", "labware"), nil
}

// LabwareFiles lists all labware definitions (*.json) in the given library
// directory, sorted by name. A missing directory yields an empty list.
func LabwareFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "failed to read labware library %s", dir)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(files)
	return files, nil
}
