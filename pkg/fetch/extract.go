package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"
)

type archiveExtractor func(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error

func getExtractor(url string) (archiveExtractor, error) {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return extractZip, nil
	case strings.HasSuffix(url, ".tar.gz"):
		return func(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
			reader, err := gzip.NewReader(f)
			if err != nil {
				return err
			}
			defer reader.Close()

			return extractTar(reader, f, bar, destPath, strip)
		}, nil
	case strings.HasSuffix(url, ".tar.bz2"):
		return func(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
			return extractTar(bzip2.NewReader(f), f, bar, destPath, strip)
		}, nil
	case strings.HasSuffix(url, ".tar.xz"):
		return func(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
			reader, err := xz.NewReader(f)
			if err != nil {
				return err
			}

			return extractTar(reader, f, bar, destPath, strip)
		}, nil
	}

	return nil, eris.Errorf("archive format of %s not supported", url)
}

// openExtractDest normalizes the archive entry path, strips the configured
// number of leading elements and opens the destination file.
func openExtractDest(destPath, item string, strip int) (*os.File, string, error) {
	pathParts := strings.Split(filepath.Clean(item), string(filepath.Separator))
	if strip >= len(pathParts) {
		return nil, "", nil
	}

	dest := filepath.Join(destPath, strings.Join(pathParts[strip:], string(filepath.Separator)))
	if dest == destPath {
		return nil, "", nil
	}

	destParent := filepath.Dir(dest)
	err := os.MkdirAll(destParent, os.FileMode(0770))
	if err != nil {
		return nil, "", eris.Wrapf(err, "failed to create directory %s", destParent)
	}

	destHandle, err := os.Create(dest)
	if err != nil {
		return nil, "", eris.Wrapf(err, "failed to create file %s", dest)
	}

	return destHandle, dest, nil
}

func extractZip(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
	stat, err := f.Stat()
	if err != nil {
		return err
	}

	archive, err := zip.NewReader(f, stat.Size())
	if err != nil {
		return err
	}

	for _, item := range archive.File {
		if strings.HasSuffix(item.Name, "/") {
			continue
		}

		destHandle, dest, err := openExtractDest(destPath, item.Name, strip)
		if err != nil {
			return err
		}
		if destHandle == nil {
			continue
		}

		itemHandle, err := item.Open()
		if err != nil {
			destHandle.Close()
			return eris.Wrap(err, "failed to open archive entry")
		}

		_, err = io.Copy(destHandle, itemHandle)
		itemHandle.Close()
		destHandle.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to write extracted file %s", dest)
		}

		if pos, err := f.Seek(0, io.SeekCurrent); err == nil {
			bar.Set64(pos)
		}
	}

	return nil
}

func extractTar(r io.Reader, f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
	archive := tar.NewReader(r)

	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return eris.Wrap(err, "failed to read archive entry")
		}

		fi := item.FileInfo()
		if fi.IsDir() {
			continue
		}

		destHandle, dest, err := openExtractDest(destPath, item.Name, strip)
		if err != nil {
			return err
		}
		if destHandle == nil {
			continue
		}

		if item.Typeflag == tar.TypeSymlink {
			destHandle.Close()
			err := os.Remove(dest)
			if err != nil {
				return eris.Wrapf(err, "failed to remove placeholder file %s", dest)
			}

			err = os.Symlink(item.Linkname, dest)
			if err != nil {
				return eris.Wrapf(err, "failed to create symlink %s pointing to %s", dest, item.Linkname)
			}
			continue
		}

		_, err = io.Copy(destHandle, archive)
		destHandle.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to write extracted file %s", dest)
		}

		os.Chmod(dest, fi.Mode())

		if pos, err := f.Seek(0, io.SeekCurrent); err == nil {
			bar.Set64(pos)
		}
	}

	return nil
}
