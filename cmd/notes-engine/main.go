package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snapnotes/notes-engine/internal/api"
	"github.com/snapnotes/notes-engine/internal/config"
	"github.com/snapnotes/notes-engine/internal/llm"
	"github.com/snapnotes/notes-engine/internal/pipeline"
	"github.com/snapnotes/notes-engine/internal/storage"
)

var version = "dev"

func main() {
	startTime := time.Now()

	// Flags
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	flag.StringVar(&overrides.UploadDir, "upload-dir", "", "upload directory")
	flag.StringVar(&overrides.WhisperPath, "whisper-path", "", "whisper-cli binary path")
	flag.StringVar(&overrides.LLMURL, "llm-url", "", "inference backend base URL")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("notes-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Artifact directories
	store, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create upload dir")
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create work dir")
	}

	// Inference client + boot readiness probe. A slow backend only delays
	// notes generation, so an exhausted probe is a warning, not a fatal.
	llmClient := llm.New(cfg.LLMURL, cfg.LLMModel, cfg.LLMTemperature, cfg.LLMTimeout)
	go func() {
		if err := llmClient.WaitReady(ctx, 30*time.Second); err != nil {
			log.Warn().Err(err).Str("url", cfg.LLMURL).Msg("inference backend not reachable at boot")
		} else {
			log.Info().Str("url", cfg.LLMURL).Str("model", cfg.LLMModel).Msg("inference backend ready")
		}
	}()

	// Pipeline
	runner := pipeline.ExecRunner{}
	pipe := pipeline.New(pipeline.Options{
		Transcoder:    pipeline.NewTranscoder(cfg.FFmpegPath, runner),
		Invoker:       pipeline.NewInvoker(cfg.WhisperPath, cfg.WhisperModelEN, cfg.WhisperModelMulti, cfg.WorkDir, runner),
		Generator:     llmClient,
		WorkDir:       cfg.WorkDir,
		MaxConcurrent: cfg.MaxConcurrent,
		Log:           log.With().Str("component", "pipeline").Logger(),
	})

	// Orphan sweeper
	sweeper := storage.NewSweeper([]string{cfg.UploadDir, cfg.WorkDir}, cfg.SweepRetention, log)
	sweeper.Start()
	defer sweeper.Stop()

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, pipe, store, llmClient, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("notes-engine stopped")
}
