package transcode

import (
	"context"
	"errors"
)

// ErrEngineFailed marks an encoder run that started but did not succeed.
var ErrEngineFailed = errors.New("transcode engine failed")

// Request describes one encoder invocation.
type Request struct {
	// InputArgs precede the -i flag (for example "-f concat -safe 0").
	InputArgs []string
	Input     string
	// Args follow the input and precede the output path.
	Args      []string
	Output    string
	Overwrite bool
}

// Result reports how the encoder exited.
type Result struct {
	ExitCode    int
	Diagnostics []string
}

// Engine runs a transcode. A non-nil error wraps ErrEngineFailed when the
// encoder ran and failed; Result then carries its exit code and the tail of
// its diagnostic output.
type Engine interface {
	Transcode(ctx context.Context, req Request) (Result, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req Request) (Result, error)

// Transcode calls f.
func (f EngineFunc) Transcode(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
