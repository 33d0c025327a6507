package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/snapnotes/notes-engine/internal/config"
	"github.com/snapnotes/notes-engine/internal/pipeline"
	"github.com/snapnotes/notes-engine/internal/storage"
)

// NotesRunner executes the audio-to-notes pipeline for one request.
type NotesRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// NotesHandler accepts audio uploads and returns generated study notes.
type NotesHandler struct {
	pipe     NotesRunner
	store    *storage.LocalStore
	maxBytes int64
	model    string
	log      zerolog.Logger
}

// NewNotesHandler creates the upload-and-process handler.
func NewNotesHandler(pipe NotesRunner, store *storage.LocalStore, maxBytes int64, model string, log zerolog.Logger) *NotesHandler {
	return &NotesHandler{
		pipe:     pipe,
		store:    store,
		maxBytes: maxBytes,
		model:    model,
		log:      log.With().Str("handler", "notes").Logger(),
	}
}

// NotesResponse is the success body for POST /api/v1/notes.
type NotesResponse struct {
	ModelUsed  string `json:"model_used"`
	Transcript string `json:"transcript"`
	Notes      string `json:"notes"`
	FilePath   string `json:"file_path"`
}

// ServeHTTP handles POST /api/v1/notes: multipart form with an "audio"
// file field and an optional "language" field.
func (h *NotesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "No file uploaded.")
		return
	}
	defer file.Close()

	lang := r.FormValue("language")
	if lang == "" {
		lang = "en"
	}
	if !config.SupportedLanguages[lang] {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("unsupported language %q", lang))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	// Store the original under a timestamped name so two uploads of the
	// same file never collide.
	key := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(header.Filename))
	if err := h.store.Save(key, data); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("upload save failed")
		WriteError(w, http.StatusInternalServerError, "Error processing audio.")
		return
	}

	result, err := h.pipe.Run(r.Context(), pipeline.Request{
		OriginalPath: h.store.Path(key),
		SourceFile:   "/uploads/" + key,
		Language:     lang,
	})
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, NotesResponse{
		ModelUsed:  h.model,
		Transcript: result.Transcript,
		Notes:      result.Notes,
		FilePath:   result.SourceFile,
	})
}

// writeFailure maps pipeline failure kinds onto caller-facing responses.
// Engine diagnostics go to logs, not to the end user; only the inference
// backend detail is surfaced since the operator runs that service too.
func (h *NotesHandler) writeFailure(w http.ResponseWriter, err error) {
	switch pipeline.KindOf(err) {
	case pipeline.KindEmptyTranscript:
		WriteError(w, http.StatusBadRequest, "Transcript is empty or unreadable.")
	case pipeline.KindInferenceTimeout, pipeline.KindInferenceBackendError:
		WriteErrorDetail(w, http.StatusBadGateway,
			"AI processing failed. The model backend might be slow or unresponsive.", err.Error())
	case pipeline.KindBusy:
		WriteError(w, http.StatusServiceUnavailable, "Server is busy, try again shortly.")
	case pipeline.KindCanceled:
		// Client closed the request; 499 per the nginx convention.
		WriteError(w, 499, "Request canceled.")
	default:
		h.log.Error().Err(err).Msg("pipeline run failed")
		WriteError(w, http.StatusInternalServerError, "Error processing audio.")
	}
}
