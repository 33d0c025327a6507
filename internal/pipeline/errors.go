package pipeline

import (
	"errors"
	"fmt"
)

// FailureKind categorizes terminal pipeline outcomes for the caller.
// Raw engine diagnostics stay in logs; callers only see the kind plus a
// short detail string.
type FailureKind int

const (
	KindUnknown FailureKind = iota
	KindTranscodeFailed
	KindTranscriptionFailed
	KindTranscriptMissing
	KindEmptyTranscript
	KindInferenceTimeout
	KindInferenceBackendError
	KindBusy
	KindCanceled
)

func (k FailureKind) String() string {
	switch k {
	case KindTranscodeFailed:
		return "transcode_failed"
	case KindTranscriptionFailed:
		return "transcription_failed"
	case KindTranscriptMissing:
		return "transcript_missing"
	case KindEmptyTranscript:
		return "empty_transcript"
	case KindInferenceTimeout:
		return "inference_timeout"
	case KindInferenceBackendError:
		return "inference_backend_error"
	case KindBusy:
		return "busy"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Failure is a stage error translated at the pipeline boundary.
type Failure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error { return f.Err }

func failf(kind FailureKind, err error, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the failure kind from a pipeline error.
// Returns KindUnknown for errors that did not originate from a stage.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}
