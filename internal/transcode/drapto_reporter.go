package transcode

import (
	"fmt"
	"log/slog"
	"sync"

	draptolib "github.com/five82/drapto"

	"discbatch/internal/logging"
)

// progressReporter adapts Drapto's Reporter callbacks to structured logs and
// collects warnings and errors as diagnostics.
type progressReporter struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	mu    sync.Mutex
	notes *lineTail
}

func newProgressReporter(logger *slog.Logger) *progressReporter {
	return &progressReporter{
		logger:  logger,
		sampler: logging.NewProgressSampler(10),
		notes:   newLineTail(defaultDiagnosticLines),
	}
}

func (r *progressReporter) note(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes.add(line)
}

func (r *progressReporter) diagnostics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notes.lines()
}

func (r *progressReporter) Hardware(s draptolib.HardwareSummary) {
	r.logger.Debug("drapto hardware", logging.Any("hostname", s.Hostname))
}

func (r *progressReporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Info("drapto initialised",
		logging.Any("input", s.InputFile),
		logging.Any("resolution", s.Resolution),
		logging.Any("dynamic_range", s.DynamicRange),
	)
}

func (r *progressReporter) StageProgress(s draptolib.StageProgress) {
	if !r.sampler.ShouldLog(float64(s.Percent), fmt.Sprint(s.Stage)) {
		return
	}
	r.logger.Info("drapto progress",
		logging.Any("drapto_stage", s.Stage),
		logging.Float64(logging.FieldProgressPercent, float64(s.Percent)),
		logging.Any("message", s.Message),
	)
}

func (r *progressReporter) CropResult(s draptolib.CropSummary) {
	r.logger.Info("drapto crop detection", logging.Any("crop", s.Crop), logging.Any("required", s.Required))
}

func (r *progressReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Debug("drapto encoding config",
		logging.Any("encoder", s.Encoder),
		logging.Any("preset", s.Preset),
		logging.Any("quality", s.Quality),
	)
}

func (r *progressReporter) EncodingStarted(totalFrames uint64) {
	r.sampler.Reset()
	r.logger.Info("drapto encoding started", logging.Int64("total_frames", int64(totalFrames)))
}

func (r *progressReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	if !r.sampler.ShouldLog(float64(s.Percent), "encoding") {
		return
	}
	r.logger.Info("drapto progress",
		logging.String("drapto_stage", "encoding"),
		logging.Float64(logging.FieldProgressPercent, float64(s.Percent)),
		logging.Float64("speed", float64(s.Speed)),
		logging.Any("eta", s.ETA),
	)
}

func (r *progressReporter) ValidationComplete(s draptolib.ValidationSummary) {
	for _, step := range s.Steps {
		if !step.Passed {
			r.note(fmt.Sprintf("validation %v: %v", step.Name, step.Details))
		}
	}
	r.logger.Info("drapto validation", logging.Any("passed", s.Passed))
}

func (r *progressReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.logger.Info("drapto encoding complete",
		logging.Any("output", s.OutputPath),
		logging.Int64("original_bytes", int64(s.OriginalSize)),
		logging.Int64("encoded_bytes", int64(s.EncodedSize)),
		logging.Any("elapsed", s.TotalTime),
	)
}

func (r *progressReporter) Warning(message string) {
	r.note("warning: " + message)
	logging.WarnWithContext(r.logger, "drapto warning", "drapto_warning",
		logging.String("message", message),
		logging.String(logging.FieldImpact, "encode continues"),
	)
}

func (r *progressReporter) Error(e draptolib.ReporterError) {
	r.note(fmt.Sprintf("%v: %v", e.Title, e.Message))
	logging.ErrorWithContext(r.logger, "drapto error", "drapto_error",
		logging.Any("title", e.Title),
		logging.Any("message", e.Message),
		logging.Any(logging.FieldErrorHint, e.Suggestion),
	)
}

func (r *progressReporter) OperationComplete(message string) {
	r.logger.Debug("drapto operation complete", logging.String("message", message))
}

func (r *progressReporter) BatchStarted(s draptolib.BatchStartInfo) {
	r.logger.Debug("drapto batch started", logging.Any("files", s.TotalFiles))
}

func (r *progressReporter) FileProgress(s draptolib.FileProgressContext) {
	r.logger.Debug("drapto file progress", logging.Any("current", s.CurrentFile), logging.Any("total", s.TotalFiles))
}

func (r *progressReporter) BatchComplete(s draptolib.BatchSummary) {
	r.logger.Debug("drapto batch complete", logging.Any("succeeded", s.SuccessfulCount), logging.Any("total", s.TotalFiles))
}

var _ draptolib.Reporter = (*progressReporter)(nil)
