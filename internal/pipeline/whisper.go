package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Invoker runs whisper-cli against normalized audio and reads back the
// transcript text file it emits.
type Invoker struct {
	bin        string
	modelEN    string
	modelMulti string
	workDir    string
	runner     Runner
}

// NewInvoker creates a transcriber invoker. modelEN is the English-only
// acoustic model; modelMulti serves every other supported language.
func NewInvoker(bin, modelEN, modelMulti, workDir string, runner Runner) *Invoker {
	return &Invoker{
		bin:        bin,
		modelEN:    modelEN,
		modelMulti: modelMulti,
		workDir:    workDir,
		runner:     runner,
	}
}

// ModelFor returns the acoustic model path for a language code.
// English gets the smaller English-only model; everything else shares the
// multilingual one.
func (iv *Invoker) ModelFor(lang string) string {
	if lang == "en" {
		return iv.modelEN
	}
	return iv.modelMulti
}

// outputBase returns the whisper -of argument for a job; whisper appends
// ".txt" itself.
func (iv *Invoker) outputBase(jobID string) string {
	return filepath.Join(iv.workDir, "result-"+jobID)
}

// OutputPath returns the transcript file whisper-cli produces for a job.
func (iv *Invoker) OutputPath(jobID string) string {
	return iv.outputBase(jobID) + ".txt"
}

// Transcribe runs whisper-cli on audioPath and returns the transcript text
// with surrounding whitespace preserved; the caller owns the
// empty-transcript policy. A subprocess failure surfaces as
// transcription_failed; a clean exit without the expected output file
// surfaces as transcript_missing.
func (iv *Invoker) Transcribe(ctx context.Context, audioPath, lang, jobID string) (string, error) {
	out, err := iv.runner.Run(ctx, iv.workDir, iv.bin,
		"-m", iv.ModelFor(lang),
		"-f", audioPath,
		"-otxt",
		"-of", iv.outputBase(jobID),
		"--language", lang,
	)
	if err != nil {
		return "", failf(KindTranscriptionFailed, err, "whisper: %s", strings.TrimSpace(string(out)))
	}

	// Whisper can exit 0 without writing the transcript (bad model, full
	// disk). Treat that as its own failure rather than an empty transcript.
	text, err := os.ReadFile(iv.OutputPath(jobID))
	if err != nil {
		return "", failf(KindTranscriptMissing, err, "transcript not found after clean exit")
	}
	return string(text), nil
}
