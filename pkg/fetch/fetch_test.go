package fetch

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalConditions(t *testing.T) {
	vars := map[string]string{
		"linux":        "true",
		"amd64":        "true",
		"RUFF_VERSION": "0.6.2",
	}

	t.Run("interpolation", func(t *testing.T) {
		spec := ToolSpec{
			Condition: "linux, amd64",
			URL:       "https://example.org/ruff-{RUFF_VERSION}.tar.gz",
		}

		assert.True(t, EvalConditions(&spec, vars))
		assert.Equal(t, "https://example.org/ruff-0.6.2.tar.gz", spec.URL)
	})

	t.Run("unmet condition", func(t *testing.T) {
		spec := ToolSpec{Condition: "windows", URL: "https://example.org/x.zip"}
		assert.False(t, EvalConditions(&spec, vars))
	})

	t.Run("rejection", func(t *testing.T) {
		spec := ToolSpec{Rejections: "linux", URL: "https://example.org/x.zip"}
		assert.False(t, EvalConditions(&spec, vars))
	})

	t.Run("unknown placeholder becomes empty", func(t *testing.T) {
		spec := ToolSpec{URL: "https://example.org/{NOPE}/x.zip"}
		assert.True(t, EvalConditions(&spec, vars))
		assert.Equal(t, "https://example.org//x.zip", spec.URL)
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	manifest := `vars:
  VERSION: "1.2.3"

tools:
  ruff:
    if: linux
    url: https://example.org/ruff-{VERSION}.tar.gz
    dest: .tools/ruff
    sha256: abc123
    strip: 1
    markExec:
      - ruff
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName), []byte(manifest), 0600))

	cfg, stamps, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Empty(t, stamps)
	assert.Equal(t, "1.2.3", cfg.Vars["VERSION"])

	ruff := cfg.Tools["ruff"]
	assert.Equal(t, "linux", ruff.Condition)
	assert.Equal(t, ".tools/ruff", ruff.Dest)
	assert.Equal(t, 1, ruff.Strip)
	assert.Equal(t, []string{"ruff"}, ruff.MarkExec)
}

func TestLoadConfigMissing(t *testing.T) {
	_, _, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestStampsRoundtrip(t *testing.T) {
	dir := t.TempDir()
	manifest := "vars: {}\ntools: {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName), []byte(manifest), 0600))

	stamps := map[string]string{"ruff": "https://example.org/x.tar.gz#abc"}
	require.NoError(t, SaveStamps(dir, stamps))

	_, got, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, stamps, got)
}

// buildTarGz packs a single file into an in-memory tar.gz archive.
func buildTarGz(t *testing.T, name string, content []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(content)),
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func leftoverDownloads(t *testing.T) []string {
	t.Helper()

	files, err := filepath.Glob(filepath.Join(os.TempDir(), "labglue-dl-*"))
	require.NoError(t, err)
	return files
}

func TestDownloadAndExtract(t *testing.T) {
	archive := buildTarGz(t, "ruff-x86_64/ruff", []byte("#!/bin/sh\necho ruff\n"))
	digest := sha256.Sum256(archive)

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	root := t.TempDir()
	cfg := ToolConfig{
		Tools: map[string]ToolSpec{
			"ruff": {
				URL:      server.URL + "/ruff.tar.gz",
				Dest:     ".tools/ruff",
				Sha256:   hex.EncodeToString(digest[:]),
				Strip:    1,
				MarkExec: []string{"ruff"},
			},
		},
	}

	stamps := map[string]string{}
	require.NoError(t, DownloadAndExtract(cfg, stamps, root))

	binPath := filepath.Join(root, ".tools", "ruff", "ruff")
	require.FileExists(t, binPath)

	info, err := os.Stat(binPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0100, "the unpacked binary is marked executable")

	assert.Equal(t, cfg.Tools["ruff"].URL+"#"+cfg.Tools["ruff"].Sha256, stamps["ruff"])
	assert.Empty(t, leftoverDownloads(t), "the temp archive is removed after the entry")

	// a second run with a matching stamp doesn't hit the server again
	require.NoError(t, DownloadAndExtract(cfg, stamps, root))
	assert.Equal(t, 1, requests)
}

func TestDownloadAndExtractChecksumMismatch(t *testing.T) {
	archive := buildTarGz(t, "ruff-x86_64/ruff", []byte("bin"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	cfg := ToolConfig{
		Tools: map[string]ToolSpec{
			"ruff": {
				URL:    server.URL + "/ruff.tar.gz",
				Dest:   ".tools/ruff",
				Sha256: "0000000000000000000000000000000000000000000000000000000000000000",
			},
		},
	}

	err := DownloadAndExtract(cfg, map[string]string{}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.Empty(t, leftoverDownloads(t), "the temp archive is removed on failure too")
}

func TestDownloadAndExtractUnpinned(t *testing.T) {
	cfg := ToolConfig{
		Tools: map[string]ToolSpec{
			// no request is made for an unpinned entry, the URL never resolves
			"ruff": {URL: "https://localhost.invalid/ruff.tar.gz", Dest: ".tools/ruff"},
		},
	}

	err := DownloadAndExtract(cfg, map[string]string{}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pinned checksum")
}

func TestOpenExtractDest(t *testing.T) {
	dir := t.TempDir()

	handle, dest, err := openExtractDest(dir, "ruff-x86_64/bin/ruff", 1)
	require.NoError(t, err)
	require.NotNil(t, handle)
	handle.Close()

	assert.Equal(t, filepath.Join(dir, "bin", "ruff"), dest)
	assert.FileExists(t, dest)
}

func TestOpenExtractDestOverStrip(t *testing.T) {
	dir := t.TempDir()

	handle, _, err := openExtractDest(dir, "toplevel", 1)
	require.NoError(t, err)
	assert.Nil(t, handle, "entries consumed entirely by strip are skipped")
}
