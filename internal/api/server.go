package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snapnotes/notes-engine/internal/config"
	"github.com/snapnotes/notes-engine/internal/metrics"
	"github.com/snapnotes/notes-engine/internal/storage"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, pipe NotesRunner, store *storage.LocalStore, llm Pinger, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("notes-engine is running."))
	})

	health := NewHealthHandler(cfg, llm, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)

	notes := NewNotesHandler(pipe, store, cfg.MaxUploadBytes, cfg.LLMModel, log)
	r.Post("/api/v1/notes", notes.ServeHTTP)

	// Uploaded originals stay servable until their run's cleanup removes them.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(store.Dir()))))

	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
