package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestTranscode_MP3FastPathCopies(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.mp3")
	dst := filepath.Join(dir, "out.mp3")
	if err := os.WriteFile(src, []byte("mp3-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	tc := NewTranscoder("ffmpeg", runner)

	if err := tc.Transcode(context.Background(), src, dst); err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	if len(runner.calls) != 0 {
		t.Errorf("ffmpeg invoked %d times for an mp3 source, want 0", len(runner.calls))
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "mp3-bytes" {
		t.Errorf("dst content = %q, want source copy", got)
	}
	// Source untouched
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source missing after copy: %v", err)
	}
}

func TestTranscode_ExtensionCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.MP3")
	dst := filepath.Join(dir, "out.mp3")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	tc := NewTranscoder("ffmpeg", runner)
	if err := tc.Transcode(context.Background(), src, dst); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Error("ffmpeg invoked for .MP3 source")
	}
}

func TestTranscode_ReencodesOtherFormats(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.wav")
	dst := filepath.Join(dir, "out.mp3")
	if err := os.WriteFile(src, []byte("wav"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	tc := NewTranscoder("ffmpeg", runner)
	if err := tc.Transcode(context.Background(), src, dst); err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("ffmpeg invocations = %d, want 1", len(runner.calls))
	}
	args := runner.calls[0][1:]
	if args[0] != "-y" {
		t.Errorf("first arg = %q, want -y overwrite flag", args[0])
	}
	if got := argAfter(args, "-i"); got != src {
		t.Errorf("-i = %q, want %q", got, src)
	}
	if got := argAfter(args, "-codec:a"); got != "libmp3lame" {
		t.Errorf("-codec:a = %q, want libmp3lame", got)
	}
	if args[len(args)-1] != dst {
		t.Errorf("last arg = %q, want destination %q", args[len(args)-1], dst)
	}
}

func TestTranscode_EngineFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.ogg")
	if err := os.WriteFile(src, []byte("ogg"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{ffmpegErr: fmt.Errorf("unsupported codec")}
	tc := NewTranscoder("ffmpeg", runner)

	err := tc.Transcode(context.Background(), src, filepath.Join(dir, "out.mp3"))
	if KindOf(err) != KindTranscodeFailed {
		t.Errorf("KindOf = %s, want %s", KindOf(err), KindTranscodeFailed)
	}
}

func TestTranscode_MissingSource(t *testing.T) {
	dir := t.TempDir()
	tc := NewTranscoder("ffmpeg", &fakeRunner{})

	err := tc.Transcode(context.Background(), filepath.Join(dir, "absent.mp3"), filepath.Join(dir, "out.mp3"))
	if KindOf(err) != KindTranscodeFailed {
		t.Errorf("KindOf = %s, want %s", KindOf(err), KindTranscodeFailed)
	}
}
