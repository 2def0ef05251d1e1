package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"discbatch/internal/testsupport"
)

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "b.iso"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "A.ISO"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "notes.txt"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "nested", "c.iso"), 1)
	testsupport.WriteVideoTS(t, filepath.Join(root, "nested", "Extracted"), "VTS_01_1.VOB")

	flat, err := Enumerate([]string{root}, false, []string{"iso"})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	want := []DiscImage{
		{Path: filepath.Join(root, "A.ISO"), Kind: KindFile},
		{Path: filepath.Join(root, "b.iso"), Kind: KindFile},
	}
	if diff := cmp.Diff(want, flat); diff != "" {
		t.Fatalf("flat mismatch (-want +got):\n%s", diff)
	}

	deep, err := Enumerate([]string{root, filepath.Join(root, "b.iso")}, true, []string{".iso"})
	if err != nil {
		t.Fatalf("Enumerate recursive: %v", err)
	}
	want = []DiscImage{
		{Path: filepath.Join(root, "A.ISO"), Kind: KindFile},
		{Path: filepath.Join(root, "b.iso"), Kind: KindFile},
		{Path: filepath.Join(root, "nested", "Extracted"), Kind: KindDirectory},
		{Path: filepath.Join(root, "nested", "c.iso"), Kind: KindFile},
	}
	if diff := cmp.Diff(want, deep); diff != "" {
		t.Fatalf("recursive mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumerateReportsBadInputs(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "ok.iso")
	testsupport.WriteFile(t, good, 1)
	bad := filepath.Join(root, "movie.mkv")
	testsupport.WriteFile(t, bad, 1)

	images, err := Enumerate([]string{good, bad, filepath.Join(root, "missing.iso")}, false, []string{".iso"})
	if err == nil {
		t.Fatal("expected error for bad inputs")
	}
	if len(images) != 1 || images[0].Path != good {
		t.Fatalf("expected the good input to survive, got %+v", images)
	}
}

func TestDiscImageNames(t *testing.T) {
	tests := []struct {
		img      DiscImage
		name     string
		baseName string
		dir      string
	}{
		{DiscImage{Path: "/data/Movie.iso", Kind: KindFile}, "Movie.iso", "Movie", "/data"},
		{DiscImage{Path: "/data/Show/VIDEO_TS", Kind: KindDirectory}, "Show", "Show", "/data"},
		{DiscImage{Path: "/data/Show", Kind: KindDirectory}, "Show", "Show", "/data"},
		{DiscImage{Path: "/dev/sr0", Kind: KindDevice}, "sr0", "sr0", "/dev"},
	}
	for _, tc := range tests {
		if got := tc.img.Name(); got != tc.name {
			t.Errorf("%s Name() = %q, want %q", tc.img.Path, got, tc.name)
		}
		if got := tc.img.BaseName(); got != tc.baseName {
			t.Errorf("%s BaseName() = %q, want %q", tc.img.Path, got, tc.baseName)
		}
		if got := tc.img.Dir(); got != tc.dir {
			t.Errorf("%s Dir() = %q, want %q", tc.img.Path, got, tc.dir)
		}
	}
}

func TestEnumerateVideoTSInput(t *testing.T) {
	root := t.TempDir()
	dir := testsupport.WriteVideoTS(t, filepath.Join(root, "Disc"), "VTS_01_1.VOB")
	images, err := Enumerate([]string{dir}, false, nil)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(images) != 1 || images[0].Kind != KindDirectory || images[0].Name() != "Disc" {
		t.Fatalf("unexpected images %+v", images)
	}
	if _, err := os.Stat(images[0].Path); err != nil {
		t.Fatalf("stat image: %v", err)
	}
}
