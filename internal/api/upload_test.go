package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snapnotes/notes-engine/internal/pipeline"
	"github.com/snapnotes/notes-engine/internal/storage"
)

type stubRunner struct {
	result *pipeline.Result
	err    error
	called bool
	got    pipeline.Request
}

func (s *stubRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.called = true
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		res := *s.result
		res.SourceFile = req.SourceFile
		return &res, nil
	}
	return &pipeline.Result{SourceFile: req.SourceFile}, nil
}

func newNotesRequest(t *testing.T, filename, language string, audio []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if filename != "" {
		part, err := w.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(audio)
	}
	if language != "" {
		w.WriteField("language", language)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newTestHandler(t *testing.T, runner NotesRunner) *NotesHandler {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewNotesHandler(runner, store, 10<<20, "phi", zerolog.Nop())
}

func TestNotes_Success(t *testing.T) {
	stub := &stubRunner{result: &pipeline.Result{
		JobID:      "job-1",
		Transcript: "Photosynthesis converts light into energy.",
		Notes:      "- Plants use light...",
	}}
	h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newNotesRequest(t, "lecture.wav", "en", []byte("audio")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp NotesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ModelUsed != "phi" {
		t.Errorf("model_used = %q", resp.ModelUsed)
	}
	if resp.Transcript != "Photosynthesis converts light into energy." {
		t.Errorf("transcript = %q", resp.Transcript)
	}
	if resp.Notes != "- Plants use light..." {
		t.Errorf("notes = %q", resp.Notes)
	}
	if !strings.HasPrefix(resp.FilePath, "/uploads/") || !strings.HasSuffix(resp.FilePath, "-lecture.wav") {
		t.Errorf("file_path = %q", resp.FilePath)
	}

	// The upload was persisted before the pipeline ran
	if !stub.called {
		t.Fatal("pipeline was not invoked")
	}
	if _, err := os.Stat(stub.got.OriginalPath); err != nil {
		t.Errorf("stored original missing: %v", err)
	}
	if stub.got.Language != "en" {
		t.Errorf("language = %q", stub.got.Language)
	}
}

func TestNotes_MissingFile(t *testing.T) {
	stub := &stubRunner{}
	h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newNotesRequest(t, "", "en", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if stub.called {
		t.Error("pipeline invoked without an upload")
	}
}

func TestNotes_LanguageDefaultsToEnglish(t *testing.T) {
	stub := &stubRunner{}
	h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newNotesRequest(t, "a.mp3", "", []byte("x")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if stub.got.Language != "en" {
		t.Errorf("language = %q, want en", stub.got.Language)
	}
}

func TestNotes_UnsupportedLanguage(t *testing.T) {
	stub := &stubRunner{}
	h := newTestHandler(t, stub)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newNotesRequest(t, "a.mp3", "xx", []byte("x")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if stub.called {
		t.Error("pipeline invoked for unsupported language")
	}
}

func TestNotes_FailureMapping(t *testing.T) {
	cases := []struct {
		name       string
		kind       pipeline.FailureKind
		wantStatus int
		wantError  string
	}{
		{"empty_transcript", pipeline.KindEmptyTranscript, http.StatusBadRequest, "Transcript is empty or unreadable."},
		{"inference_timeout", pipeline.KindInferenceTimeout, http.StatusBadGateway, "AI processing failed. The model backend might be slow or unresponsive."},
		{"inference_backend_error", pipeline.KindInferenceBackendError, http.StatusBadGateway, "AI processing failed. The model backend might be slow or unresponsive."},
		{"busy", pipeline.KindBusy, http.StatusServiceUnavailable, "Server is busy, try again shortly."},
		{"canceled", pipeline.KindCanceled, 499, "Request canceled."},
		{"transcode_failed", pipeline.KindTranscodeFailed, http.StatusInternalServerError, "Error processing audio."},
		{"transcription_failed", pipeline.KindTranscriptionFailed, http.StatusInternalServerError, "Error processing audio."},
		{"transcript_missing", pipeline.KindTranscriptMissing, http.StatusInternalServerError, "Error processing audio."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubRunner{err: &pipeline.Failure{Kind: tc.kind, Detail: "stage diagnostic"}}
			h := newTestHandler(t, stub)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, newNotesRequest(t, "a.mp3", "en", []byte("x")))

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error != tc.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tc.wantError)
			}
		})
	}
}

func TestNotes_UploadTooLarge(t *testing.T) {
	stub := &stubRunner{}
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h := NewNotesHandler(stub, store, 64, "phi", zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newNotesRequest(t, "big.mp3", "en", bytes.Repeat([]byte("a"), 4096)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if stub.called {
		t.Error("pipeline invoked for oversized upload")
	}
}

func TestNotes_MalformedMultipart(t *testing.T) {
	stub := &stubRunner{}
	h := newTestHandler(t, stub)

	// Well under the size limit, but not valid multipart for the declared
	// boundary: must be a client error, not 413.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=deadbeef")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if stub.called {
		t.Error("pipeline invoked for malformed multipart")
	}
}
