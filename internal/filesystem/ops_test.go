package filesystem

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	data := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 1024)
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "nested", "dst.png")
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("copied bytes differ from source")
	}
}

func TestCopyFile_MissingSourceLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.png")

	err := CopyFile(filepath.Join(dir, "missing.png"), dst)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("CopyFile() error = %v, want not-exist", err)
	}
	if Exists(dst) {
		t.Error("destination should not exist after a failed copy")
	}
}

func TestCopyFile_RejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(dir, filepath.Join(dir, "out")); err == nil {
		t.Error("expected an error copying a directory")
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thumb.jpg")

	if err := WriteAtomic(path, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := WriteAtomic(path, []byte("second")); err != nil {
		t.Fatal(err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}
	assertNoTempFiles(t, dir)
}

func TestWriteAtomicFunc_FailureKeepsPreviousContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thumb.jpg")
	if err := WriteAtomic(path, []byte("good")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("encoder failed")
	err := WriteAtomicFunc(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WriteAtomicFunc() error = %v, want %v", err, boom)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "good" {
		t.Errorf("content = %q, want previous content", got)
	}
	assertNoTempFiles(t, dir)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if Exists(path) {
		t.Error("file still exists")
	}
	if err := Remove(path); err != nil {
		t.Errorf("second Remove() error = %v, want nil", err)
	}
}

func TestOperationsAreObserved(t *testing.T) {
	obs := withObserver(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a")

	_ = WriteAtomic(path, []byte("x"))
	_ = Remove(path)

	if len(obs.ops) != 2 {
		t.Fatalf("observed %v, want two operations", obs.ops)
	}
	if obs.ops[0] != VolumeUnknown+"/write/ok" || obs.ops[1] != VolumeUnknown+"/remove/ok" {
		t.Errorf("observed %v", obs.ops)
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}
}
