package fileutil

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAppendFileUsesSmallBuffer(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.vob", "abcdefghij")

	var out bytes.Buffer
	n, err := AppendFile(&out, src, make([]byte, 3))
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 || out.String() != "abcdefghij" {
		t.Fatalf("got %d bytes %q", n, out.String())
	}
}

func TestConcatFilesPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "VTS_01_1.VOB", "one-")
	b := writeFile(t, dir, "VTS_01_2.VOB", "two-")
	c := writeFile(t, dir, "VTS_01_3.VOB", "three")
	dst := filepath.Join(dir, "disc.vob")

	n, err := ConcatFiles(dst, []string{a, b, c}, 2)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "one-two-three" || n != int64(len(got)) {
		t.Fatalf("unexpected content %q (%d bytes)", got, n)
	}
}

func TestConcatFilesRemovesDestinationOnFailure(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", "data")
	missing := filepath.Join(dir, "missing")
	dst := filepath.Join(dir, "out")

	_, err := ConcatFiles(dst, []string{a, missing}, 0)
	var se *SourceError
	if !errors.As(err, &se) || se.Path != missing {
		t.Fatalf("expected source error for %s, got %v", missing, err)
	}
	if IsWriteError(err) {
		t.Fatalf("read failure reported as write error: %v", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Fatalf("expected destination removed, stat err=%v", statErr)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, syscall.ENOSPC
}

func TestAppendFileSeparatesWriteFailures(t *testing.T) {
	src := writeFile(t, t.TempDir(), "VTS_01_1.VOB", "payload")

	_, err := AppendFile(failingWriter{}, src, nil)
	if !IsWriteError(err) {
		t.Fatalf("expected write error, got %v", err)
	}
	if !errors.Is(err, syscall.ENOSPC) {
		t.Fatalf("expected ENOSPC to be preserved, got %v", err)
	}

	_, err = AppendFile(failingWriter{}, filepath.Join(t.TempDir(), "missing.VOB"), nil)
	if err == nil || IsWriteError(err) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestConcatFilesUnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", "data")
	dst := filepath.Join(dir, "no-such-dir", "out")

	_, err := ConcatFiles(dst, []string{a}, 0)
	if !IsWriteError(err) {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x", "1")
	if ok, err := Exists(path); err != nil || !ok {
		t.Fatalf("Exists(%s) = %v, %v", path, ok, err)
	}
	if ok, err := Exists(filepath.Join(dir, "nope")); err != nil || ok {
		t.Fatalf("expected missing file, got %v, %v", ok, err)
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := WriteFileAtomic(path, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("expected replaced content, got %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}
