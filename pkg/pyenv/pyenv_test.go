package pyenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths(t *testing.T) {
	paths := DefaultPaths()

	assert.Equal(t, `C:\Program Files\Opentrons\resources\python\python.exe`, paths.Windows)
	assert.Equal(t, "/Applications/Opentrons.app/Contents/Resources/python/bin/python3", paths.MacOS)
	assert.Equal(t, "/opt/opentrons/resources/python/bin/python3", paths.Linux)
}

func TestPathsFor(t *testing.T) {
	paths := Paths{Windows: "win", MacOS: "mac", Linux: "linux"}

	tests := []struct {
		goos string
		want string
	}{
		{"windows", "win"},
		{"darwin", "mac"},
		{"linux", "linux"},
	}

	for _, tc := range tests {
		got, err := paths.For(tc.goos)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := paths.For("plan9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported OS platform")
}

func TestLocateMissingInterpreter(t *testing.T) {
	paths := Paths{
		Windows: filepath.Join(t.TempDir(), "missing.exe"),
		MacOS:   filepath.Join(t.TempDir(), "missing"),
		Linux:   filepath.Join(t.TempDir(), "missing"),
	}

	_, err := paths.Locate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	python := filepath.Join(dir, "python3")
	require.NoError(t, os.WriteFile(python, []byte("#!/bin/sh\n"), 0700))

	paths := Paths{Windows: python, MacOS: python, Linux: python}
	got, err := paths.Locate()
	require.NoError(t, err)
	assert.Equal(t, python, got)
}

func TestLabwareFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_plate.json"), []byte("{}"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_plate.json"), []byte("{}"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0700))

	files, err := LabwareFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a_plate.json"), files[0])
	assert.Equal(t, filepath.Join(dir, "b_plate.json"), files[1])
}

func TestLabwareFilesMissingDir(t *testing.T) {
	files, err := LabwareFiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
