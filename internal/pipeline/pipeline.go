package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snapnotes/notes-engine/internal/llm"
	"github.com/snapnotes/notes-engine/internal/metrics"
)

// PlaceholderNotes is returned when the inference backend answers 2xx but
// produces no usable content. The run still counts as a success: the
// transcript is intact and the caller can simply resubmit.
const PlaceholderNotes = "⚠️ Empty AI response."

// NotesGenerator turns a prompt into generated text. Implemented by
// llm.Client; tests substitute stubs.
type NotesGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request describes one pipeline invocation. OriginalPath is the stored
// upload; it is owned by this run and deleted at run end.
type Request struct {
	OriginalPath string
	SourceFile   string // caller-facing reference, e.g. /uploads/<name>
	Language     string
}

// Result is the success outcome of a run.
type Result struct {
	JobID      string
	Transcript string
	Notes      string
	SourceFile string
}

// Pipeline sequences transcode → transcribe → validate → prompt → infer
// for one request and guarantees artifact cleanup on every exit.
type Pipeline struct {
	transcoder *Transcoder
	invoker    *Invoker
	generator  NotesGenerator
	workDir    string
	sem        chan struct{} // nil = no admission control
	log        zerolog.Logger
}

// Options configures a Pipeline.
type Options struct {
	Transcoder    *Transcoder
	Invoker       *Invoker
	Generator     NotesGenerator
	WorkDir       string
	MaxConcurrent int // 0 disables admission control
	Log           zerolog.Logger
}

// New creates a pipeline orchestrator.
func New(opts Options) *Pipeline {
	var sem chan struct{}
	if opts.MaxConcurrent > 0 {
		sem = make(chan struct{}, opts.MaxConcurrent)
	}
	return &Pipeline{
		transcoder: opts.Transcoder,
		invoker:    opts.Invoker,
		generator:  opts.Generator,
		workDir:    opts.WorkDir,
		sem:        sem,
		log:        opts.Log,
	}
}

// Run executes the full pipeline for one request. Each run is a single
// attempt end-to-end; no stage is retried. Every terminal outcome, success
// or failure, deletes the run's artifact set before returning.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		default:
			// A rejected run still owns its stored upload; the no-artifacts
			// invariant covers this exit too.
			p.cleanup(p.log, req.OriginalPath)
			metrics.PipelineRunsTotal.WithLabelValues(KindBusy.String()).Inc()
			return nil, failf(KindBusy, nil, "pipeline at capacity")
		}
	}

	start := time.Now()
	jobID := uuid.NewString()

	lang := req.Language
	if lang == "" {
		lang = "en"
	}

	mp3Path := filepath.Join(p.workDir, "transcript-ready-"+jobID+".mp3")
	txtPath := p.invoker.OutputPath(jobID)

	log := p.log.With().Str("job_id", jobID).Str("language", lang).Logger()

	metrics.PipelineActiveRuns.Inc()
	defer metrics.PipelineActiveRuns.Dec()

	// Artifact cleanup runs on every exit path. Deletions are independent
	// and best-effort: a missing file never blocks the others, and cleanup
	// errors never mask the run's own outcome.
	defer p.cleanup(log, req.OriginalPath, mp3Path, txtPath)

	result, err := p.run(ctx, log, jobID, lang, req, mp3Path)

	outcome := "succeeded"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.PipelineRunsTotal.WithLabelValues(outcome).Inc()
	log.Info().
		Str("outcome", outcome).
		Dur("duration_ms", time.Since(start)).
		Msg("pipeline run finished")

	return result, err
}

func (p *Pipeline) run(ctx context.Context, log zerolog.Logger, jobID, lang string, req Request, mp3Path string) (*Result, error) {
	// Transcoding
	stageStart := time.Now()
	if err := p.transcoder.Transcode(ctx, req.OriginalPath, mp3Path); err != nil {
		log.Warn().Err(err).Msg("transcode failed")
		return nil, err
	}
	metrics.PipelineStageDuration.WithLabelValues("transcode").Observe(time.Since(stageStart).Seconds())

	// Transcribing
	stageStart = time.Now()
	transcript, err := p.invoker.Transcribe(ctx, mp3Path, lang, jobID)
	if err != nil {
		log.Warn().Err(err).Msg("transcription failed")
		return nil, err
	}
	metrics.PipelineStageDuration.WithLabelValues("transcribe").Observe(time.Since(stageStart).Seconds())

	// Validating: blank audio is a user-correctable outcome, not a crash,
	// and must never reach the inference backend.
	if strings.TrimSpace(transcript) == "" {
		log.Info().Msg("transcript empty after trim")
		return nil, failf(KindEmptyTranscript, nil, "transcript is empty or unreadable")
	}

	// Prompting + Inferring
	prompt := BuildPrompt(transcript)

	stageStart = time.Now()
	notes, err := p.generator.Generate(ctx, prompt)
	metrics.PipelineStageDuration.WithLabelValues("infer").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			// Degrade rather than fail: the transcript survived, only the
			// generated notes are missing.
			log.Warn().Msg("inference returned no content, using placeholder")
			notes = PlaceholderNotes
		} else {
			mapped := mapInferenceError(err)
			log.Warn().Err(err).Msg("inference failed")
			return nil, mapped
		}
	}

	return &Result{
		JobID:      jobID,
		Transcript: transcript,
		Notes:      notes,
		SourceFile: req.SourceFile,
	}, nil
}

// mapInferenceError translates llm client errors into pipeline failures.
func mapInferenceError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return failf(KindInferenceTimeout, err, "inference backend did not answer in time")
	}
	// Caller went away mid-inference: not a backend fault, and no response
	// is deliverable anyway.
	if errors.Is(err, context.Canceled) {
		return failf(KindCanceled, err, "run canceled during inference")
	}
	var be *llm.BackendError
	if errors.As(err, &be) {
		return failf(KindInferenceBackendError, err, "inference backend returned %d", be.Status)
	}
	return failf(KindInferenceBackendError, err, "inference request failed")
}

// cleanup deletes the run's artifact set. Log-only on error; a cleanup
// failure is never surfaced to the caller.
func (p *Pipeline) cleanup(log zerolog.Logger, paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("artifact cleanup failed")
		}
	}
}
