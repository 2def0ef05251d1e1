package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"discbatch/internal/config"
	"discbatch/internal/deps"
	"discbatch/internal/profile"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("Output", dir, 1); !result.Passed {
		t.Fatalf("expected one byte to fit, got %s", result.Detail)
	}
	if result := CheckFreeSpace("Output", dir, 1<<62); result.Passed {
		t.Fatal("expected failure for an impossible requirement")
	}
	if result := CheckFreeSpace("Output", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestRunAllDedupesOutputDirs(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Mount.BaseDir = ""
	out := t.TempDir()

	results := RunAll(&cfg, out, out)
	if len(results) != 2 {
		t.Fatalf("expected state + one output check, got %+v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestCheckSystemDepsAddsAV1FFmpeg(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.FFmpeg = "clearly-not-present-ffmpeg"
	cfg.Tools.FFprobe = ""

	h264, _ := profile.Lookup("h264")
	statuses := CheckSystemDeps(&cfg, h264, "")
	for _, s := range statuses {
		if s.Name == "FFmpeg (AV1)" {
			t.Fatal("AV1 check must only run for the av1 profile")
		}
	}
	missing := MissingRequired(statuses)
	if len(missing) == 0 || missing[0].Name != "FFmpeg" {
		t.Fatalf("expected ffmpeg reported missing, got %+v", missing)
	}
	if missing[0].ConfigKey != "tools.ffmpeg" {
		t.Fatalf("expected tools.ffmpeg config key, got %q", missing[0].ConfigKey)
	}

	av1, _ := profile.Lookup("av1")
	statuses = CheckSystemDeps(&cfg, av1, "")
	if statuses[len(statuses)-1].Name != "FFmpeg (AV1)" {
		t.Fatalf("expected AV1 ffmpeg check, got %+v", statuses)
	}
}

func TestMissingRequiredIgnoresOptional(t *testing.T) {
	statuses := []deps.Status{
		{Requirement: deps.Requirement{Name: "FFprobe", Optional: true}},
		{Requirement: deps.Requirement{Name: "FFmpeg"}, Available: true},
	}
	if missing := MissingRequired(statuses); len(missing) != 0 {
		t.Fatalf("unexpected missing %+v", missing)
	}
}

func TestParseProbe(t *testing.T) {
	p := parseProbe("/dev/sr0", "MY MOVIE udf\n")
	if !p.Detected || p.Label != "MY MOVIE" || p.FSType != "udf" {
		t.Fatalf("unexpected probe %+v", p)
	}
	if p := parseProbe("/dev/sr0", ""); p.Detected {
		t.Fatal("expected no disc for empty output")
	}
	if got := (DiscProbe{Device: "/dev/sr0"}).DiscDetail(); got != "No disc detected" {
		t.Fatalf("unexpected detail %q", got)
	}
}
