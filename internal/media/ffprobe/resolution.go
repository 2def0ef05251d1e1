package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrProbeUnavailable means the probe tool is not configured or not installed.
	ErrProbeUnavailable = errors.New("probe unavailable")
	// ErrProbeFailed means the probe ran but produced no usable answer.
	ErrProbeFailed = errors.New("probe failed")
)

// Dimensions is a frame size in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// String renders the encoder size argument, e.g. "720x576".
func (d Dimensions) String() string {
	return strconv.Itoa(d.Width) + "x" + strconv.Itoa(d.Height)
}

// Resolution reports the frame size of the first video stream of path.
func Resolution(ctx context.Context, binary, path string) (Dimensions, error) {
	resolved, err := resolveBinary(binary)
	if err != nil {
		return Dimensions{}, err
	}
	cmd := commandContext(ctx, resolved, "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height", "-of", "csv=p=0", path)
	output, err := cmd.Output()
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %s: %w", ErrProbeFailed, path, err)
	}
	dims, err := ParseDimensions(string(output))
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %s: %w", ErrProbeFailed, path, err)
	}
	return dims, nil
}

// ParseDimensions parses ffprobe csv output of the form "W,H".
func ParseDimensions(output string) (Dimensions, error) {
	line := strings.TrimSpace(output)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	widthPart, heightPart, ok := strings.Cut(line, ",")
	if !ok {
		return Dimensions{}, fmt.Errorf("unexpected probe output %q", output)
	}
	// Some builds append a trailing separator.
	heightPart = strings.TrimSuffix(strings.TrimSpace(heightPart), ",")
	width, err := strconv.Atoi(strings.TrimSpace(widthPart))
	if err != nil {
		return Dimensions{}, fmt.Errorf("parse width %q: %w", widthPart, err)
	}
	height, err := strconv.Atoi(heightPart)
	if err != nil {
		return Dimensions{}, fmt.Errorf("parse height %q: %w", heightPart, err)
	}
	if width <= 0 || height <= 0 {
		return Dimensions{}, fmt.Errorf("non-positive dimensions %dx%d", width, height)
	}
	return Dimensions{Width: width, Height: height}, nil
}

// Prober resolves frame sizes with a fixed ffprobe binary.
type Prober struct {
	Binary string
}

// Resolution implements the merge executor's probe contract.
func (p Prober) Resolution(ctx context.Context, path string) (Dimensions, error) {
	return Resolution(ctx, p.Binary, path)
}

// Validate checks that an encoded file carries at least one video stream.
func (p Prober) Validate(ctx context.Context, path string) error {
	result, err := Inspect(ctx, p.Binary, path)
	if err != nil {
		return err
	}
	if result.VideoStreamCount() == 0 {
		return errors.New("output has no video stream")
	}
	return nil
}
