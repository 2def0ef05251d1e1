package config

// Overrides carries command-line values layered on top of the loaded file.
// Nil fields leave the configured value untouched.
type Overrides struct {
	OutputDir     *string
	FFmpeg        *string
	FFprobe       *string
	Strategy      *string
	Grouping      *string
	Overwrite     *bool
	Profile       *string
	CRF           *int
	Recursive     *bool
	SkipSucceeded *bool
	LogLevel      *string
	LogToFile     *bool
	WatchDrive    *string
}

// ApplyOverrides merges o into c, then re-normalizes and re-validates so flag
// values obey the same rules as file values.
func (c *Config) ApplyOverrides(o Overrides) error {
	setString(&c.Paths.OutputDir, o.OutputDir)
	setString(&c.Tools.FFmpeg, o.FFmpeg)
	setString(&c.Tools.FFprobe, o.FFprobe)
	setString(&c.Merge.Strategy, o.Strategy)
	setString(&c.Merge.Grouping, o.Grouping)
	setString(&c.Output.Profile, o.Profile)
	setString(&c.Logging.Level, o.LogLevel)
	setString(&c.Watch.Drive, o.WatchDrive)
	if o.Overwrite != nil {
		c.Merge.Overwrite = *o.Overwrite
	}
	if o.CRF != nil {
		c.Output.CRF = *o.CRF
	}
	if o.Recursive != nil {
		c.Batch.Recursive = *o.Recursive
	}
	if o.SkipSucceeded != nil {
		c.Batch.SkipSucceeded = *o.SkipSucceeded
	}
	if o.LogToFile != nil {
		c.Logging.ToFile = *o.LogToFile
	}
	if err := c.normalize(); err != nil {
		return err
	}
	// Flags are applied after the environment fallbacks in normalize.
	setString(&c.Tools.FFmpeg, o.FFmpeg)
	setString(&c.Tools.FFprobe, o.FFprobe)
	return c.Validate()
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}
