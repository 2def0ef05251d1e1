package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"discbatch/internal/config"
)

func skipWithoutMountDefaults(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("no built-in mount command on this platform")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	skipWithoutMountDefaults(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_STATE_HOME", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "state", "discbatch")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.OutputDir != "" {
		t.Fatalf("expected output dir to default to the input location, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Merge.Strategy != "bytecopy" {
		t.Fatalf("expected bytecopy default strategy, got %q", cfg.Merge.Strategy)
	}
	if cfg.Merge.Grouping != "sorted" {
		t.Fatalf("expected sorted grouping, got %q", cfg.Merge.Grouping)
	}
	if cfg.Output.CRF != 20 {
		t.Fatalf("expected crf 20, got %d", cfg.Output.CRF)
	}
	if cfg.ChunkSize() != 1<<20 {
		t.Fatalf("expected 1 MiB chunk, got %d", cfg.ChunkSize())
	}
	if cfg.LockPath() != filepath.Join(wantState, "discbatch.lock") {
		t.Fatalf("unexpected lock path %q", cfg.LockPath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	skipWithoutMountDefaults(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "discbatch.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Merge struct {
			Strategy string `toml:"strategy"`
			Grouping string `toml:"grouping"`
		} `toml:"merge"`
		Output struct {
			Profile string `toml:"profile"`
			CRF     int    `toml:"crf"`
		} `toml:"output"`
		Batch struct {
			Extensions []string `toml:"extensions"`
		} `toml:"batch"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Merge.Strategy = " RAW "
	custom.Merge.Grouping = "walk"
	custom.Output.Profile = "prores"
	custom.Output.CRF = 18
	custom.Batch.Extensions = []string{"ISO", ".img", ".iso"}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.OutputDir != custom.Paths.OutputDir {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if cfg.Merge.Strategy != "raw" {
		t.Fatalf("expected normalized strategy raw, got %q", cfg.Merge.Strategy)
	}
	if cfg.Merge.Grouping != "walk" {
		t.Fatalf("expected walk grouping, got %q", cfg.Merge.Grouping)
	}
	if cfg.Output.Profile != "prores" || cfg.Output.CRF != 18 {
		t.Fatalf("unexpected output section %+v", cfg.Output)
	}
	want := []string{".iso", ".img"}
	if strings.Join(cfg.Batch.Extensions, ",") != strings.Join(want, ",") {
		t.Fatalf("extensions = %v, want %v", cfg.Batch.Extensions, want)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "discbatch.toml")
	if err := os.WriteFile(configPath, []byte("[merge]\nstratgy = \"raw\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestEnvVarOverridesToolPaths(t *testing.T) {
	skipWithoutMountDefaults(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DISCBATCH_FFMPEG", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("DISCBATCH_FFPROBE", "")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("expected ffmpeg from env, got %q", cfg.FFmpegBinary())
	}
	if cfg.FFprobeBinary() != "" {
		t.Fatalf("expected probing disabled by empty env, got %q", cfg.FFprobeBinary())
	}
}

func TestApplyOverrides(t *testing.T) {
	skipWithoutMountDefaults(t)
	t.Setenv("HOME", t.TempDir())
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	strategy := "2"
	overwrite := true
	crf := 23
	probe := "/usr/local/bin/ffprobe"
	if err := cfg.ApplyOverrides(config.Overrides{
		Strategy:  &strategy,
		Overwrite: &overwrite,
		CRF:       &crf,
		FFprobe:   &probe,
	}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if cfg.Merge.Strategy != "2" || !cfg.Merge.Overwrite || cfg.Output.CRF != 23 {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Merge, cfg.Output)
	}
	if cfg.FFprobeBinary() != probe {
		t.Fatalf("expected probe override, got %q", cfg.FFprobeBinary())
	}

	bad := 99
	if err := cfg.ApplyOverrides(config.Overrides{CRF: &bad}); err == nil {
		t.Fatal("expected validation error for crf 99")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Merge.Strategy != "bytecopy" {
		t.Fatalf("expected sample strategy bytecopy, got %q", cfg.Merge.Strategy)
	}
	if !strings.Contains(cfg.Paths.StateDir, "discbatch") {
		t.Fatalf("expected state dir to contain discbatch, got %q", cfg.Paths.StateDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	skipWithoutMountDefaults(t)
	cases := map[string]func(*config.Config){
		"strategy":    func(c *config.Config) { c.Merge.Strategy = "zip" },
		"grouping":    func(c *config.Config) { c.Merge.Grouping = "random" },
		"crf":         func(c *config.Config) { c.Output.CRF = -1 },
		"chunk":       func(c *config.Config) { c.Merge.ChunkSizeMiB = 1024 },
		"log format":  func(c *config.Config) { c.Logging.Format = "xml" },
		"mount":       func(c *config.Config) { c.Mount.Command = "" },
		"mount args":  func(c *config.Config) { c.Mount.Args = []string{"-o", "loop"} },
		"unmount arg": func(c *config.Config) { c.Mount.UnmountArgs = nil },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
