package loggers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedSuffix marks trace paths that are written zstd-compressed.
const CompressedSuffix = ".zst"

// TraceFile is a trace destination on disk. Close flushes and releases it.
type TraceFile struct {
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// OpenTrace creates path (and its directory) for a [YAMLLogger] to write to, truncating
// an existing file. Paths ending in ".zst" are compressed with zstd; long sessions produce
// traces that are mostly repeated keys.
func OpenTrace(path string) (*TraceFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("loggers: trace directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("loggers: create trace: %w", err)
	}

	t := &TraceFile{f: f}
	var dst io.Writer = f
	if strings.HasSuffix(path, CompressedSuffix) {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("loggers: trace encoder: %w", err)
		}
		t.enc = enc
		dst = enc
	}
	t.w = bufio.NewWriterSize(dst, 64*1024)
	return t, nil
}

func (t *TraceFile) Write(p []byte) (int, error) {
	return t.w.Write(p)
}

// Close flushes buffered output, ends the zstd frame if any and closes the file.
func (t *TraceFile) Close() error {
	err := t.w.Flush()
	if t.enc != nil {
		if cerr := t.enc.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	return err
}
