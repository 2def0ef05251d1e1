package mount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"discbatch/internal/config"
	"discbatch/internal/logging"
)

type call struct {
	name string
	args []string
}

func stubCommands(t *testing.T, mode string) *[]call {
	t.Helper()
	var calls []call
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, call{name: name, args: args})
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "MOUNT_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &calls
}

func testConfig(base string) config.Mount {
	return config.Mount{
		BaseDir:        base,
		Command:        "mount",
		Args:           []string{"-o", "loop,ro", "{image}", "{mountpoint}"},
		DeviceArgs:     []string{"-o", "ro", "{image}", "{mountpoint}"},
		UnmountCommand: "umount",
		UnmountArgs:    []string{"{mountpoint}"},
	}
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Movie.iso")
	if err := os.WriteFile(path, []byte("iso"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMountClaimsFirstFreeMountPoint(t *testing.T) {
	calls := stubCommands(t, "success")
	base := t.TempDir()
	if err := os.Mkdir(filepath.Join(base, "iso_volume_0"), 0o755); err != nil {
		t.Fatal(err)
	}
	image := writeImage(t)
	m := NewCommandMounter(testConfig(base), logging.NewNop())

	h, err := m.Mount(context.Background(), image)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	wantPoint := filepath.Join(base, "iso_volume_1")
	want := Handle{ImagePath: image, Root: wantPoint, MountPoint: wantPoint, Owned: true}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Fatalf("handle mismatch (-want +got):\n%s", diff)
	}
	wantCall := call{name: "mount", args: []string{"-o", "loop,ro", image, wantPoint}}
	if diff := cmp.Diff([]call{wantCall}, *calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Fatalf("command mismatch (-want +got):\n%s", diff)
	}

	if err := m.Unmount(context.Background(), h); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if _, err := os.Stat(wantPoint); !os.IsNotExist(err) {
		t.Fatalf("expected mount point removed, stat err=%v", err)
	}
	if (*calls)[1].name != "umount" {
		t.Fatalf("expected umount call, got %+v", (*calls)[1])
	}
}

func TestMountFailureReleasesMountPoint(t *testing.T) {
	stubCommands(t, "fail")
	base := t.TempDir()
	m := NewCommandMounter(testConfig(base), logging.NewNop())

	_, err := m.Mount(context.Background(), writeImage(t))
	if !errors.Is(err, ErrMountFailed) {
		t.Fatalf("expected ErrMountFailed, got %v", err)
	}
	entries, _ := os.ReadDir(base)
	if len(entries) != 0 {
		t.Fatalf("expected mount point cleaned up, found %d entries", len(entries))
	}
}

func TestMountMissingImage(t *testing.T) {
	calls := stubCommands(t, "success")
	m := NewCommandMounter(testConfig(t.TempDir()), logging.NewNop())
	if _, err := m.Mount(context.Background(), "/nonexistent/disc.iso"); !errors.Is(err, ErrMountFailed) {
		t.Fatalf("expected ErrMountFailed, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatal("no command should run for a missing image")
	}
}

func TestMountWithoutBaseDir(t *testing.T) {
	stubCommands(t, "success")
	cfg := testConfig("")
	m := NewCommandMounter(cfg, logging.NewNop())
	if _, err := m.Mount(context.Background(), writeImage(t)); !errors.Is(err, ErrMountFailed) {
		t.Fatalf("expected ErrMountFailed, got %v", err)
	}
}

func TestDirectoryIsUsedInPlace(t *testing.T) {
	calls := stubCommands(t, "success")
	dir := t.TempDir()
	m := NewCommandMounter(testConfig(t.TempDir()), logging.NewNop())

	h, err := m.Mount(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if h.Owned || h.Root != dir {
		t.Fatalf("unexpected handle %+v", h)
	}
	if err := m.Unmount(context.Background(), h); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 0 {
		t.Fatalf("directories must not run commands, got %+v", *calls)
	}
}

func TestUnmountFailure(t *testing.T) {
	stubCommands(t, "fail")
	point := filepath.Join(t.TempDir(), "iso_volume_0")
	if err := os.Mkdir(point, 0o755); err != nil {
		t.Fatal(err)
	}
	m := NewCommandMounter(testConfig(filepath.Dir(point)), logging.NewNop())
	err := m.Unmount(context.Background(), Handle{ImagePath: "x.iso", Root: point, MountPoint: point, Owned: true})
	if !errors.Is(err, ErrUnmountFailed) {
		t.Fatalf("expected ErrUnmountFailed, got %v", err)
	}
	if _, statErr := os.Stat(point); statErr != nil {
		t.Fatal("mount point must stay while still mounted")
	}
}

func TestParseLSBLK(t *testing.T) {
	label, fstype := ParseLSBLK("\nLABEL=\"MY MOVIE\" FSTYPE=\"udf\"\n")
	if label != "MY MOVIE" || fstype != "udf" {
		t.Fatalf("got %q %q", label, fstype)
	}
	if label, fstype := ParseLSBLK(""); label != "" || fstype != "" {
		t.Fatalf("expected empty result, got %q %q", label, fstype)
	}
}

func TestReadLabel(t *testing.T) {
	stubCommands(t, "lsblk")
	label, err := ReadLabel(context.Background(), "/dev/sr0", 0)
	if err != nil || label != "SAMPLE_DISC" {
		t.Fatalf("ReadLabel = %q, %v", label, err)
	}
	if _, err := ReadLabel(context.Background(), " ", 0); err == nil {
		t.Fatal("expected error for empty device")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("MOUNT_HELPER_MODE") {
	case "success":
		os.Exit(0)
	case "lsblk":
		fmt.Println(`LABEL="SAMPLE_DISC" FSTYPE="udf"`)
		os.Exit(0)
	default:
		fmt.Fprintln(os.Stderr, "mount: permission denied")
		os.Exit(32)
	}
}
