package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultBufferSize is the copy buffer used when none is supplied.
const DefaultBufferSize = 1 << 20

// AppendFile streams src onto w through buf and returns the number of bytes
// written. A nil or empty buf uses DefaultBufferSize.
func AppendFile(w io.Writer, src string, buf []byte) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}
	written, err := io.CopyBuffer(onlyWriter{w}, in, buf)
	if errors.Is(err, io.ErrShortWrite) {
		err = &WriteError{Err: err}
	}
	if err != nil {
		return written, fmt.Errorf("copy %s: %w", src, err)
	}
	return written, nil
}

// ConcatFiles writes srcs to dst in order, replacing dst. On any failure dst
// is removed and the failing source is reported.
func ConcatFiles(dst string, srcs []string, bufSize int) (int64, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, &WriteError{Err: err}
	}
	buf := make([]byte, bufferSize(bufSize))
	var total int64
	for _, src := range srcs {
		n, err := AppendFile(out, src, buf)
		total += n
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
			if IsWriteError(err) {
				return total, err
			}
			return total, &SourceError{Path: src, Err: err}
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return total, &WriteError{Err: err}
	}
	return total, nil
}

// SourceError identifies the input file that failed during a multi-file copy.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// WriteError marks a failure writing the destination rather than reading
// the source, for example a full disk.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return "write destination: " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsWriteError reports whether err came from the destination side of a copy.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// Exists reports whether path exists. Stat failures other than not-exist are
// returned so callers do not overwrite something they could not inspect.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func bufferSize(n int) int {
	if n <= 0 {
		return DefaultBufferSize
	}
	return n
}

// onlyWriter hides ReadFrom on *os.File so io.CopyBuffer honours buf, and
// tags write failures with WriteError.
type onlyWriter struct {
	w io.Writer
}

func (o onlyWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	if err != nil {
		err = &WriteError{Err: err}
	}
	return n, err
}
