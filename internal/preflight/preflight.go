package preflight

import (
	"discbatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks the directories discbatch writes to. outputDirs are the
// resolved destinations for the current batch; an empty list checks the
// configured output directory when one is set.
func RunAll(cfg *config.Config, outputDirs ...string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if cfg.Logging.ToFile {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if len(outputDirs) == 0 && cfg.Paths.OutputDir != "" {
		outputDirs = []string{cfg.Paths.OutputDir}
	}
	seen := make(map[string]struct{}, len(outputDirs))
	for _, dir := range outputDirs {
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		results = append(results, CheckDirectoryAccess("Output directory", dir))
	}
	if cfg.Mount.BaseDir != "" {
		results = append(results, CheckDirectoryAccess("Mount base", cfg.Mount.BaseDir))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
