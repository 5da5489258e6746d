package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// CopyFile copies src to dst byte for byte. dst is written through a
// temporary file in the same directory and renamed into place, so a failed
// copy never leaves a partial dst behind.
func CopyFile(src, dst string) error {
	start := time.Now()
	err := copyFile(src, dst)
	record(dst, "copy", start, err)
	return err
}

func copyFile(src, dst string) error {
	in, err := OpenWithRetry(src, DefaultRetryConfig())
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	return writeVia(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// WriteAtomic writes data to path via a temporary file and rename.
func WriteAtomic(path string, data []byte) error {
	start := time.Now()
	err := writeVia(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	record(path, "write", start, err)
	return err
}

// WriteAtomicFunc is WriteAtomic for producers that stream their output.
func WriteAtomicFunc(path string, fill func(io.Writer) error) error {
	start := time.Now()
	err := writeVia(path, fill)
	record(path, "write", start, err)
	return err
}

func writeVia(path string, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Remove deletes path. A file that is already gone is not an error.
func Remove(path string) error {
	start := time.Now()
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		err = nil
	}
	record(path, "remove", start, err)
	return err
}

// Exists reports whether path exists. Errors other than not-exist count as
// existing so callers do not treat an unreadable file as missing.
func Exists(path string) bool {
	_, err := StatWithRetry(path, DefaultRetryConfig())
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

func record(path, op string, start time.Time, err error) {
	if obs := observe(); obs != nil {
		obs.ObserveOperation(defaultResolver.Resolve(path), op, time.Since(start).Seconds(), err)
	}
}
