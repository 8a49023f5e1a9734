package pkg

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// rootMarkers identify a project root, checked in order.
var rootMarkers = []string{"labglue.yaml", "tasks.star", ".git"}

// GetProjectRoot walks up from the working directory until it finds a
// directory containing a config file, a task script or a .git directory.
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", eris.Wrap(err, "failed to retrieve the current working directory")
	}

	for {
		for _, marker := range rootMarkers {
			_, err := os.Stat(filepath.Join(dir, marker))
			if err == nil {
				return dir, nil
			}

			if !eris.Is(err, os.ErrNotExist) {
				return "", eris.Wrap(err, "error occurred while searching for project root")
			}
		}

		nextDir := filepath.Dir(dir)
		if dir == nextDir {
			break
		}
		dir = nextDir
	}

	return "", eris.New("project root not found")
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
