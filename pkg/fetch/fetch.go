// Package fetch downloads and unpacks the pinned Python code-quality
// toolchain (standalone ruff build, uv to provision black) as declared in
// TOOLS.yml at the project root. The format target picks the unpacked tools
// up via its PATH.
package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"github.com/labglue/labglue/pkg"
)

// ConfigName is the tool manifest file, relative to the project root.
const ConfigName = "TOOLS.yml"

// stampName records which manifest entries have already been unpacked.
const stampName = ".tools.stamps"

// ToolSpec describes one downloadable tool archive.
type ToolSpec struct {
	// Condition lists variables that must be set for this entry to apply
	// (comma separated). Rejections lists variables that must NOT be set.
	Condition  string   `yaml:"if,omitempty"`
	Rejections string   `yaml:"ifNot,omitempty"`
	URL        string   `yaml:"url"`
	Dest       string   `yaml:"dest"`
	Sha256     string   `yaml:"sha256"`
	Strip      int      `yaml:"strip"`
	MarkExec   []string `yaml:"markExec,omitempty"`
}

// ToolConfig is the parsed TOOLS.yml.
type ToolConfig struct {
	Vars  map[string]string   `yaml:"vars"`
	Tools map[string]ToolSpec `yaml:"tools"`
}

// LoadConfig reads TOOLS.yml and the stamp file from the project root.
func LoadConfig(projectRoot string) (ToolConfig, map[string]string, error) {
	var cfg ToolConfig
	cfgPath := filepath.Join(projectRoot, ConfigName)
	cfgData, err := os.ReadFile(cfgPath)
	if err != nil {
		return cfg, nil, eris.Wrapf(err, "could not open file %s", cfgPath)
	}

	err = yaml.Unmarshal(cfgData, &cfg)
	if err != nil {
		return cfg, nil, eris.Wrapf(err, "failed to parse %s", cfgPath)
	}

	stamps := map[string]string{}
	stampPath := filepath.Join(projectRoot, stampName)
	stampData, err := os.ReadFile(stampPath)
	if err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return cfg, nil, eris.Wrapf(err, "failed to read stamps file %s", stampPath)
		}
	} else {
		err = json.Unmarshal(stampData, &stamps)
		if err != nil {
			return cfg, nil, eris.Wrapf(err, "failed to parse JSON file %s", stampPath)
		}
	}

	return cfg, stamps, nil
}

// SaveStamps persists the stamp map next to TOOLS.yml.
func SaveStamps(projectRoot string, stamps map[string]string) error {
	stampData, err := json.Marshal(stamps)
	if err != nil {
		return eris.Wrap(err, "failed to serialize stamps")
	}

	stampPath := filepath.Join(projectRoot, stampName)
	err = os.WriteFile(stampPath, stampData, os.FileMode(0660))
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", stampPath)
	}
	return nil
}

var varPattern = regexp.MustCompile(`\{([A-Z0-9_]+)\}`)

// EvalConditions interpolates {VAR} placeholders in the entry's URL and
// reports whether the entry applies under the given variables.
func EvalConditions(spec *ToolSpec, vars map[string]string) bool {
	spec.URL = varPattern.ReplaceAllStringFunc(spec.URL, func(varName string) string {
		return vars[varName[1:len(varName)-1]]
	})

	for _, condition := range strings.Split(spec.Condition, ",") {
		if condition == "" {
			continue
		}

		if vars[strings.TrimSpace(condition)] == "" {
			return false
		}
	}

	for _, condition := range strings.Split(spec.Rejections, ",") {
		if condition == "" {
			continue
		}

		if vars[strings.TrimSpace(condition)] != "" {
			return false
		}
	}
	return true
}

// PlatformVars returns the variable set the conditions are evaluated
// against: the manifest's own vars plus the current GOOS/GOARCH and CI.
func PlatformVars(cfg ToolConfig) map[string]string {
	vars := map[string]string{}
	for k, v := range cfg.Vars {
		vars[k] = v
	}
	vars[runtime.GOARCH] = "true"
	vars[runtime.GOOS] = "true"
	if os.Getenv("CI") == "true" {
		vars["ci"] = "true"
	}
	return vars
}

func getProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

// DownloadAndExtract processes every applicable manifest entry: download,
// checksum verification, unpacking and exec-bit fixing. Entries whose stamp
// token matches and whose destination exists are skipped. The stamp map is
// updated in place.
func DownloadAndExtract(cfg ToolConfig, stamps map[string]string, projectRoot string) error {
	client := &http.Client{
		Timeout: time.Minute * 30,
	}

	vars := PlatformVars(cfg)

	for name, spec := range cfg.Tools {
		if !EvalConditions(&spec, vars) {
			continue
		}

		destPath := filepath.Join(projectRoot, spec.Dest)
		destInfo, err := os.Stat(destPath)
		destExists := err == nil

		stampToken := spec.URL + "#" + spec.Sha256
		if stamp, ok := stamps[name]; ok && stampToken == stamp && destExists {
			continue
		}

		pkg.PrintSubtask(name + ":  " + spec.URL)
		if spec.Sha256 == "" {
			return eris.Errorf("tool %s has no pinned checksum; copy the digest from the release's .sha256 file into %s", name, ConfigName)
		}

		err = installTool(client, name, spec, destPath, destInfo)
		if err != nil {
			return err
		}

		stamps[name] = stampToken
	}

	return nil
}

// installTool downloads, verifies and unpacks one manifest entry. The temp
// archive is cleaned up before the function returns so a long manifest
// doesn't accumulate open files.
func installTool(client *http.Client, name string, spec ToolSpec, destPath string, destInfo os.FileInfo) error {
	archive, err := download(client, spec.URL)
	if err != nil {
		return err
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	digest, err := fileDigest(archive)
	if err != nil {
		return err
	}
	if digest != spec.Sha256 {
		return eris.Errorf("checksum mismatch for %s: got %s, want %s", name, digest, spec.Sha256)
	}

	if destInfo != nil {
		pkg.PrintSubtask("Remove " + destPath)
		if destInfo.IsDir() {
			err = os.RemoveAll(destPath)
		} else {
			err = os.Remove(destPath)
		}
		if err != nil {
			return err
		}
	}

	extractor, err := getExtractor(spec.URL)
	if err != nil {
		return err
	}

	if _, err = archive.Seek(0, io.SeekStart); err != nil {
		return eris.Wrap(err, "failed to rewind downloaded archive")
	}

	stat, err := archive.Stat()
	if err != nil {
		return eris.Wrap(err, "failed to check downloaded archive")
	}

	bar := getProgressBar(stat.Size(), "      extract")
	err = extractor(archive, bar, destPath, spec.Strip)
	if err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		// .zip files don't carry permissions so binaries have to be
		// marked executable manually
		for _, binPath := range spec.MarkExec {
			binPath = filepath.Join(destPath, binPath)
			fi, err := os.Stat(binPath)
			if err != nil {
				return eris.Wrapf(err, "failed to read permissions for %s", binPath)
			}

			err = os.Chmod(binPath, fi.Mode()|0700)
			if err != nil {
				return eris.Wrapf(err, "failed to mark %s as executable", binPath)
			}
		}
	}

	return nil
}

// download streams the URL into a temp file while showing a progress bar.
func download(client *http.Client, url string) (*os.File, error) {
	handle, err := os.CreateTemp("", "labglue-dl-*")
	if err != nil {
		return nil, eris.Wrap(err, "failed to create download temp file")
	}

	resp, err := client.Get(url)
	if err != nil {
		handle.Close()
		os.Remove(handle.Name())
		return nil, eris.Wrapf(err, "failed to start download for %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		handle.Close()
		os.Remove(handle.Name())
		return nil, eris.Errorf("download of %s failed with status %s", url, resp.Status)
	}

	bar := getProgressBar(resp.ContentLength, "     download")
	_, err = io.Copy(io.MultiWriter(handle, bar), resp.Body)
	bar.Finish()
	if err != nil {
		handle.Close()
		os.Remove(handle.Name())
		return nil, eris.Wrapf(err, "failed during download of %s", url)
	}

	return handle, nil
}

func fileDigest(f *os.File) (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", eris.Wrap(err, "failed to rewind downloaded archive")
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", eris.Wrap(err, "failed to calculate checksum")
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
