package merge

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"discbatch/internal/catalog"
	"discbatch/internal/fileutil"
	"discbatch/internal/media/ffprobe"
	"discbatch/internal/profile"
	"discbatch/internal/transcode"
)

type fakeEngine struct {
	mu       sync.Mutex
	requests []transcode.Request
	inputs   map[string][]byte
	fail     func(req transcode.Request) bool
}

func (f *fakeEngine) Transcode(_ context.Context, req transcode.Request) (transcode.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.inputs == nil {
		f.inputs = make(map[string][]byte)
	}
	data, _ := os.ReadFile(req.Input)
	f.inputs[req.Output] = data
	if f.fail != nil && f.fail(req) {
		return transcode.Result{ExitCode: 1, Diagnostics: []string{"Invalid data found when processing input"}},
			transcode.ErrEngineFailed
	}
	if err := os.WriteFile(req.Output, append([]byte("encoded:"), data...), 0o644); err != nil {
		return transcode.Result{ExitCode: 1}, err
	}
	return transcode.Result{}, nil
}

type fakeProber struct {
	dims  ffprobe.Dimensions
	err   error
	calls int
}

func (p *fakeProber) Resolution(context.Context, string) (ffprobe.Dimensions, error) {
	p.calls++
	return p.dims, p.err
}

type validatorFunc func(ctx context.Context, path string) error

func (f validatorFunc) Validate(ctx context.Context, path string) error { return f(ctx, path) }

func buildCatalog(t *testing.T, files map[string]string) catalog.Catalog {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, "VIDEO_TS", name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cat, err := catalog.Build(context.Background(), root)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

func mustProfile(t *testing.T, name string) profile.Profile {
	t.Helper()
	p, err := profile.Resolve(name, 20)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newRequest(t *testing.T, cat catalog.Catalog, strategy Strategy, prof profile.Profile) Request {
	t.Helper()
	out := t.TempDir()
	return Request{
		Catalog:   cat,
		Strategy:  strategy,
		Profile:   prof,
		OutputDir: out,
		WorkDir:   filepath.Join(out, "Movie.iso.VOBS"),
		BaseName:  "Movie",
		ListPath:  filepath.Join(out, "Movie.iso.mylist.txt"),
		Overwrite: true,
	}
}

var twoGroups = map[string]string{
	"VTS_01_0.VOB": "menu",
	"VTS_01_1.VOB": "a1-",
	"VTS_01_2.VOB": "a2-",
	"VTS_02_1.VOB": "b1",
}

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"":            ByteCopyThenTranscode,
		"bytecopy":    ByteCopyThenTranscode,
		"3":           ByteCopyThenTranscode,
		"RAW":         RawConcatenate,
		"1":           RawConcatenate,
		"per-segment": PerSegmentTranscodeThenConcat,
		"2":           PerSegmentTranscodeThenConcat,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("4"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestRawAndByteCopyProduceIdenticalBytes(t *testing.T) {
	cat := buildCatalog(t, twoGroups)
	prof := mustProfile(t, "h264")

	rawEngine := &fakeEngine{}
	rawReq := newRequest(t, cat, RawConcatenate, prof)
	rawReport, err := NewExecutor(WithEngine(profile.EngineFFmpeg, rawEngine)).Execute(context.Background(), rawReq)
	if err != nil {
		t.Fatal(err)
	}

	copyEngine := &fakeEngine{}
	copyReq := newRequest(t, cat, ByteCopyThenTranscode, prof)
	copyReport, err := NewExecutor(WithEngine(profile.EngineFFmpeg, copyEngine), WithChunkSize(2)).Execute(context.Background(), copyReq)
	if err != nil {
		t.Fatal(err)
	}
	if rawReport.HasErrors() || copyReport.HasErrors() {
		t.Fatalf("unexpected errors: raw=%v copy=%v", rawReport.Err(), copyReport.Err())
	}

	var rawBytes []byte
	for _, path := range rawReport.Intermediates {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		rawBytes = append(rawBytes, data...)
	}
	if len(copyReport.Intermediates) != 1 {
		t.Fatalf("expected one bytecopy intermediate, got %v", copyReport.Intermediates)
	}
	copyBytes, err := os.ReadFile(copyReport.Intermediates[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rawBytes, copyBytes) {
		t.Fatalf("raw %q != bytecopy %q", rawBytes, copyBytes)
	}
	if string(copyBytes) != "a1-a2-b1" {
		t.Fatalf("unexpected intermediate content %q", copyBytes)
	}
	if int64(len(copyBytes)) != cat.TotalBytes() {
		t.Fatalf("intermediate size %d, catalog total %d", len(copyBytes), cat.TotalBytes())
	}
}

func TestRawNumbersMultiGroupOutputs(t *testing.T) {
	cat := buildCatalog(t, twoGroups)
	req := newRequest(t, cat, RawConcatenate, mustProfile(t, "h264"))
	engine := &fakeEngine{}

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(req.OutputDir, "Movie_1.mp4"),
		filepath.Join(req.OutputDir, "Movie_2.mp4"),
	}
	if diff := cmp.Diff(want, report.Produced()); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
	wantInter := []string{
		filepath.Join(req.WorkDir, "Movie_1.vob"),
		filepath.Join(req.WorkDir, "Movie_2.vob"),
	}
	if diff := cmp.Diff(wantInter, report.Intermediates); diff != "" {
		t.Fatalf("intermediates mismatch (-want +got):\n%s", diff)
	}
}

func TestByteCopySkipsUnreadableSegment(t *testing.T) {
	cat := buildCatalog(t, twoGroups)
	broken := cat.Groups[0].Segments[1].Path
	if err := os.Remove(broken); err != nil {
		t.Fatal(err)
	}
	req := newRequest(t, cat, ByteCopyThenTranscode, mustProfile(t, "h264"))
	engine := &fakeEngine{}

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !report.HasErrors() {
		t.Fatal("expected partial-failure flag")
	}
	var serr *SegmentReadError
	if !errors.As(report.Err(), &serr) || serr.Path != broken {
		t.Fatalf("expected SegmentReadError for %s, got %v", broken, report.Err())
	}
	if got := report.Count(StatusEncoded); got != 1 {
		t.Fatalf("expected the remaining segments to be encoded, got %+v", report.Outputs)
	}
	data := engine.inputs[filepath.Join(req.OutputDir, "Movie.mp4")]
	if string(data) != "a1-b1" {
		t.Fatalf("unexpected intermediate content %q", data)
	}
}

func TestByteCopyAllSegmentsUnreadable(t *testing.T) {
	cat := buildCatalog(t, map[string]string{"VTS_01_1.VOB": "x"})
	if err := os.Remove(cat.Groups[0].Segments[0].Path); err != nil {
		t.Fatal(err)
	}
	req := newRequest(t, cat, ByteCopyThenTranscode, mustProfile(t, "h264"))
	engine := &fakeEngine{}

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(engine.requests) != 0 {
		t.Fatalf("engine should not run without input, got %d calls", len(engine.requests))
	}
	if len(report.Produced()) != 0 || report.Count(StatusFailed) != 1 {
		t.Fatalf("unexpected outputs %+v", report.Outputs)
	}
}

func TestByteCopyStopsOnIntermediateWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	cat := buildCatalog(t, twoGroups)
	req := newRequest(t, cat, ByteCopyThenTranscode, mustProfile(t, "h264"))
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/dev/full", filepath.Join(req.WorkDir, "Movie.vob")); err != nil {
		t.Skipf("symlink: %v", err)
	}
	engine := &fakeEngine{}

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine), WithChunkSize(2)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(engine.requests) != 0 {
		t.Fatalf("engine should not run after a failed write, got %d calls", len(engine.requests))
	}
	var serr *SegmentReadError
	if errors.As(report.Err(), &serr) {
		t.Fatalf("write failure reported as segment read error: %v", report.Err())
	}
	if !fileutil.IsWriteError(report.Err()) {
		t.Fatalf("expected write error, got %v", report.Err())
	}
	if len(report.Errors) != 1 || report.Count(StatusFailed) != 1 {
		t.Fatalf("expected one failed target, got %+v / %v", report.Outputs, report.Errors)
	}
}

func TestRawDropsGroupWithUnreadableSegment(t *testing.T) {
	cat := buildCatalog(t, twoGroups)
	if err := os.Remove(cat.Groups[0].Segments[0].Path); err != nil {
		t.Fatal(err)
	}
	req := newRequest(t, cat, RawConcatenate, mustProfile(t, "h264"))
	engine := &fakeEngine{}

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(engine.requests) != 1 {
		t.Fatalf("expected only the readable group to be encoded, got %d calls", len(engine.requests))
	}
	if diff := cmp.Diff([]string{filepath.Join(req.OutputDir, "Movie_2.mp4")}, report.Produced()); diff != "" {
		t.Fatalf("produced mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(req.WorkDir, "Movie_1.vob")); !os.IsNotExist(err) {
		t.Fatalf("expected failed intermediate removed, stat err=%v", err)
	}
}

func TestOverwriteDisabledSkipsEngine(t *testing.T) {
	cat := buildCatalog(t, map[string]string{"VTS_01_1.VOB": "x"})
	for _, strategy := range []Strategy{RawConcatenate, PerSegmentTranscodeThenConcat, ByteCopyThenTranscode} {
		t.Run(strategy.String(), func(t *testing.T) {
			req := newRequest(t, cat, strategy, mustProfile(t, "h264"))
			req.Overwrite = false
			dest := filepath.Join(req.OutputDir, "Movie.mp4")
			if err := os.WriteFile(dest, []byte("existing"), 0o644); err != nil {
				t.Fatal(err)
			}
			engine := transcode.EngineFunc(func(context.Context, transcode.Request) (transcode.Result, error) {
				t.Fatal("engine must not run when the destination is kept")
				return transcode.Result{}, nil
			})
			prober := &fakeProber{dims: ffprobe.Dimensions{Width: 720, Height: 480}}

			report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine), WithProber(prober)).Execute(context.Background(), req)
			if err != nil {
				t.Fatal(err)
			}
			if report.HasErrors() {
				t.Fatalf("not overwritten must not be an error: %v", report.Err())
			}
			want := []Output{{Index: 1, Path: dest, Status: StatusNotOverwritten}}
			if diff := cmp.Diff(want, report.Outputs); diff != "" {
				t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
			}
			if prober.calls != 0 {
				t.Fatalf("probe ran %d times for a skipped destination", prober.calls)
			}
			data, _ := os.ReadFile(dest)
			if string(data) != "existing" {
				t.Fatalf("destination modified: %q", data)
			}
		})
	}
}

func TestEncodeFailureContinuesWithRemainingIntermediates(t *testing.T) {
	cat := buildCatalog(t, twoGroups)
	req := newRequest(t, cat, RawConcatenate, mustProfile(t, "h264"))
	engine := &fakeEngine{fail: func(r transcode.Request) bool {
		return strings.HasSuffix(r.Output, "Movie_1.mp4")
	}}

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(engine.requests) != 2 {
		t.Fatalf("expected both intermediates attempted, got %d", len(engine.requests))
	}
	var terr *TranscodeError
	if !errors.As(report.Err(), &terr) || terr.ExitCode != 1 {
		t.Fatalf("expected TranscodeError with exit code, got %v", report.Err())
	}
	if report.Count(StatusFailed) != 1 || report.Count(StatusEncoded) != 1 {
		t.Fatalf("unexpected outputs %+v", report.Outputs)
	}
}

func TestFinalEncodeArguments(t *testing.T) {
	cat := buildCatalog(t, map[string]string{"VTS_01_1.VOB": "x"})

	t.Run("probed size replaces fixed size", func(t *testing.T) {
		engine := &fakeEngine{}
		prober := &fakeProber{dims: ffprobe.Dimensions{Width: 720, Height: 576}}
		req := newRequest(t, cat, ByteCopyThenTranscode, mustProfile(t, "h264"))
		if _, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine), WithProber(prober)).Execute(context.Background(), req); err != nil {
			t.Fatal(err)
		}
		args := engine.requests[0].Args
		if !slices.Equal(args[:5], []string{"-dn", "-map", "0:v:0", "-map", "0:a:0"}) {
			t.Fatalf("missing default stream maps: %v", args)
		}
		if i := slices.Index(args, "-s"); i < 0 || args[i+1] != "720x576" {
			t.Fatalf("expected probed size, got %v", args)
		}
		if prober.calls != 1 {
			t.Fatalf("expected one probe, got %d", prober.calls)
		}
	})

	t.Run("probe failure keeps fixed size", func(t *testing.T) {
		engine := &fakeEngine{}
		prober := &fakeProber{err: ffprobe.ErrProbeUnavailable}
		req := newRequest(t, cat, ByteCopyThenTranscode, mustProfile(t, "h264"))
		report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine), WithProber(prober)).Execute(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if report.HasErrors() {
			t.Fatalf("probe failure must not be an error: %v", report.Err())
		}
		args := engine.requests[0].Args
		if i := slices.Index(args, "-s"); i < 0 || args[i+1] != "640x480" {
			t.Fatalf("expected fixed size, got %v", args)
		}
	})

	t.Run("own mapping profile", func(t *testing.T) {
		engine := &fakeEngine{}
		prober := &fakeProber{}
		req := newRequest(t, cat, ByteCopyThenTranscode, mustProfile(t, "lossless-archival"))
		if _, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine), WithProber(prober)).Execute(context.Background(), req); err != nil {
			t.Fatal(err)
		}
		args := engine.requests[0].Args
		if slices.Contains(args, "0:v:0") {
			t.Fatalf("default maps added to own-mapping profile: %v", args)
		}
		if prober.calls != 0 {
			t.Fatal("non-overridable profile must not be probed")
		}
		if got := engine.requests[0].Output; got != filepath.Join(req.OutputDir, "Movie.mkv") {
			t.Fatalf("unexpected output %s", got)
		}
	})
}

func TestPerSegmentEncodesThenConcatenates(t *testing.T) {
	cat := buildCatalog(t, map[string]string{
		"VTS_01_1.VOB": "a",
		"VTS_01_2.VOB": "b",
	})
	req := newRequest(t, cat, PerSegmentTranscodeThenConcat, mustProfile(t, "h264"))

	var list []byte
	engine := &fakeEngine{}
	wrapped := transcode.EngineFunc(func(ctx context.Context, r transcode.Request) (transcode.Result, error) {
		if slices.Contains(r.InputArgs, "concat") {
			list, _ = os.ReadFile(r.Input)
		}
		return engine.Transcode(ctx, r)
	})

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, wrapped)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if report.HasErrors() {
		t.Fatal(report.Err())
	}
	if len(engine.requests) != 3 {
		t.Fatalf("expected two segment encodes and one concat, got %d", len(engine.requests))
	}
	for _, r := range engine.requests[:2] {
		if !slices.Contains(r.Args, "apad") || !slices.Contains(r.Args, "90000") {
			t.Fatalf("segment encode missing alignment args: %v", r.Args)
		}
	}
	want := "file '" + filepath.Join(req.WorkDir, "VTS_01_1.mp4") + "'\n" +
		"file '" + filepath.Join(req.WorkDir, "VTS_01_2.mp4") + "'\n"
	if string(list) != want {
		t.Fatalf("concat list mismatch:\n%s", list)
	}
	concat := engine.requests[2]
	if concat.Output != filepath.Join(req.OutputDir, "Movie.mp4") || !slices.Equal(concat.Args, []string{"-c", "copy"}) {
		t.Fatalf("unexpected concat request %+v", concat)
	}
	if _, err := os.Stat(req.ListPath); !os.IsNotExist(err) {
		t.Fatalf("expected concat list removed, stat err=%v", err)
	}
	if diff := cmp.Diff([]string{concat.Output}, report.Produced()); diff != "" {
		t.Fatalf("produced mismatch (-want +got):\n%s", diff)
	}
}

func TestPerSegmentLeavesFailedSegmentOut(t *testing.T) {
	cat := buildCatalog(t, map[string]string{
		"VTS_01_1.VOB": "a",
		"VTS_01_2.VOB": "b",
	})
	req := newRequest(t, cat, PerSegmentTranscodeThenConcat, mustProfile(t, "h264"))
	engine := &fakeEngine{fail: func(r transcode.Request) bool {
		return strings.HasSuffix(r.Input, "VTS_01_1.VOB")
	}}

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !report.HasErrors() || report.Count(StatusEncoded) != 1 {
		t.Fatalf("expected partial output with errors, got %+v", report)
	}
	concat := engine.requests[len(engine.requests)-1]
	if strings.Contains(string(engine.inputs[concat.Output]), "VTS_01_1") {
		t.Fatal("failed segment must not be listed")
	}
}

func TestValidatorRejectsOutput(t *testing.T) {
	cat := buildCatalog(t, map[string]string{"VTS_01_1.VOB": "x"})
	req := newRequest(t, cat, ByteCopyThenTranscode, mustProfile(t, "h264"))
	validator := validatorFunc(func(context.Context, string) error {
		return errors.New("output has no video stream")
	})

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, &fakeEngine{}), WithValidator(validator)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(StatusFailed) != 1 || !strings.Contains(report.Err().Error(), "no video stream") {
		t.Fatalf("expected validation failure, got %+v", report)
	}
}

func TestValidatorUnavailableIsIgnored(t *testing.T) {
	cat := buildCatalog(t, map[string]string{"VTS_01_1.VOB": "x"})
	req := newRequest(t, cat, ByteCopyThenTranscode, mustProfile(t, "h264"))
	validator := validatorFunc(func(context.Context, string) error {
		return ffprobe.ErrProbeUnavailable
	})

	report, err := NewExecutor(WithEngine(profile.EngineFFmpeg, &fakeEngine{}), WithValidator(validator)).Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if report.HasErrors() || report.Count(StatusEncoded) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestMissingEngineIsConfigurationError(t *testing.T) {
	cat := buildCatalog(t, map[string]string{"VTS_01_1.VOB": "x"})
	req := newRequest(t, cat, ByteCopyThenTranscode, mustProfile(t, "av1"))
	if _, err := NewExecutor(WithEngine(profile.EngineFFmpeg, &fakeEngine{})).Execute(context.Background(), req); err == nil {
		t.Fatal("expected error when the drapto engine is not registered")
	}
}

func TestCancelledContextStops(t *testing.T) {
	cat := buildCatalog(t, twoGroups)
	req := newRequest(t, cat, RawConcatenate, mustProfile(t, "h264"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &fakeEngine{}
	if _, err := NewExecutor(WithEngine(profile.EngineFFmpeg, engine)).Execute(ctx, req); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(engine.requests) != 0 {
		t.Fatal("engine ran after cancellation")
	}
}

func TestEmptyCatalogIsNoop(t *testing.T) {
	report, err := NewExecutor().Execute(context.Background(), Request{})
	if err != nil || len(report.Outputs) != 0 {
		t.Fatalf("expected empty report, got %+v, %v", report, err)
	}
}

func TestConcatListEscapesQuotes(t *testing.T) {
	got := string(ConcatList([]string{"/tmp/it's.mp4", "/tmp/b.mp4"}))
	want := "file '/tmp/it'\\''s.mp4'\nfile '/tmp/b.mp4'\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
