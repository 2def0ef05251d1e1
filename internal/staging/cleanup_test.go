package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"discbatch/internal/logging"
)

func TestForNamesScratchPaths(t *testing.T) {
	p := For("/out", "/media/isos/Movie.iso")
	if p.WorkDir != "/out/Movie.iso.VOBS" {
		t.Fatalf("unexpected work dir %q", p.WorkDir)
	}
	if p.ListPath != "/out/Movie.iso.mylist.txt" {
		t.Fatalf("unexpected list path %q", p.ListPath)
	}
}

func TestPrepareAndRemove(t *testing.T) {
	out := t.TempDir()
	p := For(out, "/media/Disc.iso")
	if err := p.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p.WorkDir, "Disc.vob"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.ListPath, []byte("file 'a'\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if failures := p.Remove(); len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	for _, path := range []string{p.WorkDir, p.ListPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err=%v", path, err)
		}
	}
	if failures := p.Remove(); len(failures) != 0 {
		t.Fatalf("second remove should be a no-op, got %+v", failures)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOnlyOldScratch(t *testing.T) {
	out := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)

	oldWork := filepath.Join(out, "A.iso.VOBS")
	oldList := filepath.Join(out, "A.iso.mylist.txt")
	recentWork := filepath.Join(out, "B.iso.VOBS")
	unrelated := filepath.Join(out, "keep")

	for _, dir := range []string{oldWork, recentWork, unrelated} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(oldList, []byte("file 'x'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{oldWork, oldList, unrelated} {
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}

	result := CleanStale(context.Background(), out, time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed entries, got %v", result.Removed)
	}
	for _, path := range []string{recentWork, unrelated} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s should still exist: %v", path, err)
		}
	}
}

func TestListWorkDirs(t *testing.T) {
	out := t.TempDir()
	work := filepath.Join(out, "C.iso.VOBS")
	if err := os.Mkdir(work, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(work, "C.vob"), make([]byte, 128), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, "C.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dirs, err := ListWorkDirs(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 || dirs[0].Name != "C.iso.VOBS" || dirs[0].Size != 128 {
		t.Fatalf("unexpected listing: %+v", dirs)
	}
}
