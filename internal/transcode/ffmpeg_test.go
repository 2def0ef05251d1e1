package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func stubFFmpeg(t *testing.T, mode string) *[]string {
	t.Helper()
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func TestBuildArgs(t *testing.T) {
	got := BuildArgs(Request{
		InputArgs: []string{"-f", "concat", "-safe", "0"},
		Input:     "/out/disc.iso.mylist.txt",
		Args:      []string{"-c", "copy"},
		Output:    "/out/disc_1.mp4",
	})
	want := []string{"-hide_banner", "-nostdin", "-n", "-f", "concat", "-safe", "0", "-i", "/out/disc.iso.mylist.txt", "-c", "copy", "/out/disc_1.mp4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}

	overwrite := BuildArgs(Request{Input: "in.vob", Output: "out.mp4", Overwrite: true})
	if overwrite[2] != "-y" {
		t.Fatalf("expected -y when overwriting, got %v", overwrite)
	}
}

func TestFFmpegTranscodeSuccess(t *testing.T) {
	captured := stubFFmpeg(t, "success")
	engine := NewFFmpeg("/opt/bin/ffmpeg")

	result, err := engine.Transcode(context.Background(), Request{Input: "in.vob", Args: []string{"-c:v", "libx264"}, Output: "out.mp4"})
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", result.ExitCode)
	}
	if (*captured)[0] != "/opt/bin/ffmpeg" {
		t.Fatalf("expected configured binary, got %q", (*captured)[0])
	}
	if len(result.Diagnostics) != 2 || !strings.Contains(result.Diagnostics[1], "muxing overhead") {
		t.Fatalf("unexpected diagnostics %v", result.Diagnostics)
	}
}

func TestFFmpegTranscodeFailureKeepsTail(t *testing.T) {
	stubFFmpeg(t, "failure")
	engine := NewFFmpeg("ffmpeg", WithDiagnosticLines(3))

	result, err := engine.Transcode(context.Background(), Request{Input: "in.vob", Output: "out.mp4"})
	if !errors.Is(err, ErrEngineFailed) {
		t.Fatalf("expected ErrEngineFailed, got %v", err)
	}
	if result.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", result.ExitCode)
	}
	if len(result.Diagnostics) != 3 {
		t.Fatalf("expected 3 diagnostic lines, got %v", result.Diagnostics)
	}
	if !strings.Contains(err.Error(), "Conversion failed!") {
		t.Fatalf("expected last line in error, got %v", err)
	}
}

func TestFFmpegTranscodeRequiresPaths(t *testing.T) {
	engine := NewFFmpeg("")
	if engine.Binary() != "ffmpeg" {
		t.Fatalf("expected default binary, got %q", engine.Binary())
	}
	if _, err := engine.Transcode(context.Background(), Request{Output: "out.mp4"}); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := engine.Transcode(context.Background(), Request{Input: "in.vob"}); err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestFFmpegTranscodeCancelled(t *testing.T) {
	stubFFmpeg(t, "hang")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFFmpeg("ffmpeg").Transcode(ctx, Request{Input: "in.vob", Output: "out.mp4"})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestFFmpegTranscodeLongProgressOutput(t *testing.T) {
	for _, mode := range []string{"progress", "unbroken"} {
		stubFFmpeg(t, mode)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		result, err := NewFFmpeg("ffmpeg").Transcode(ctx, Request{Input: "in.vob", Output: "out.mp4"})
		cancel()
		if err != nil {
			t.Fatalf("mode %s: Transcode: %v", mode, err)
		}
		if result.ExitCode != 0 {
			t.Fatalf("mode %s: exit code %d", mode, result.ExitCode)
		}
		if mode == "progress" && lastLine(result.Diagnostics) != "video:900kB audio:100kB muxing overhead: 1.0%" {
			t.Fatalf("unexpected diagnostics tail %q", lastLine(result.Diagnostics))
		}
	}
}

func TestScanOutputLines(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("frame=1\rframe=2\rdone\nlast"))
	scanner.Split(scanOutputLines)
	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	if diff := cmp.Diff([]string{"frame=1", "frame=2", "done", "last"}, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		fmt.Fprintln(os.Stderr, "frame= 100 fps=50 q=28.0 size=1024kB time=00:00:04.00")
		fmt.Fprintln(os.Stderr, "video:900kB audio:100kB muxing overhead: 1.0%")
		os.Exit(0)
	case "failure":
		for i := 0; i < 5; i++ {
			fmt.Fprintf(os.Stderr, "line %d\n", i)
		}
		fmt.Fprintln(os.Stderr, "Conversion failed!")
		os.Exit(1)
	case "progress":
		w := bufio.NewWriter(os.Stderr)
		for written := 0; written < 2<<20; {
			n, _ := fmt.Fprintf(w, "frame=%6d fps=50 q=28.0 size=1024kB time=00:00:04.00 speed=2x\r", written)
			written += n
		}
		fmt.Fprintln(w, "video:900kB audio:100kB muxing overhead: 1.0%")
		_ = w.Flush()
		os.Exit(0)
	case "unbroken":
		w := bufio.NewWriter(os.Stderr)
		_, _ = w.WriteString(strings.Repeat("x", 2<<20))
		_ = w.Flush()
		os.Exit(0)
	case "hang":
		select {}
	default:
		os.Exit(0)
	}
}
