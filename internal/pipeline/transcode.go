package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Transcoder normalizes uploaded audio to MP3, the format whisper-cli
// consumes here. Sources already in MP3 are copied as-is.
type Transcoder struct {
	ffmpeg string
	runner Runner
}

// NewTranscoder creates a transcoder that invokes ffmpeg through runner.
func NewTranscoder(ffmpegPath string, runner Runner) *Transcoder {
	return &Transcoder{ffmpeg: ffmpegPath, runner: runner}
}

// Transcode writes an MP3 rendition of src to dst. The source file is
// never modified. Engine failure surfaces as a transcode_failed Failure.
func (t *Transcoder) Transcode(ctx context.Context, src, dst string) error {
	if strings.EqualFold(filepath.Ext(src), ".mp3") {
		// Fast path: already MP3, plain copy instead of a re-encode.
		if err := copyFile(src, dst); err != nil {
			return failf(KindTranscodeFailed, err, "copy %s", filepath.Base(src))
		}
		return nil
	}

	out, err := t.runner.Run(ctx, "", t.ffmpeg,
		"-y",
		"-i", src,
		"-codec:a", "libmp3lame",
		dst,
	)
	if err != nil {
		return failf(KindTranscodeFailed, err, "ffmpeg: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}
