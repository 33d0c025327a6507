package api

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/snapnotes/notes-engine/internal/config"
)

// Pinger checks inference backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	cfg       *config.Config
	llm       Pinger
	version   string
	startTime time.Time
}

func NewHealthHandler(cfg *config.Config, llm Pinger, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		cfg:       cfg,
		llm:       llm,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Engine binaries: without them no pipeline run can succeed.
	for name, bin := range map[string]string{
		"ffmpeg":  h.cfg.FFmpegPath,
		"whisper": h.cfg.WhisperPath,
	} {
		if binaryResolvable(bin) {
			checks[name] = "ok"
		} else {
			checks[name] = "not_found"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	// Artifact directories
	for name, dir := range map[string]string{
		"upload_dir": h.cfg.UploadDir,
		"work_dir":   h.cfg.WorkDir,
	} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			checks[name] = "ok"
		} else {
			checks[name] = "missing"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	// Inference backend: a down backend degrades the service (uploads will
	// fail at the last stage) but transcription is still diagnosable.
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.llm.Ping(ctx); err != nil {
		checks["inference"] = "unreachable"
		if status == "healthy" {
			status = "degraded"
		}
	} else {
		checks["inference"] = "ok"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}

// binaryResolvable reports whether an engine binary can be found, either
// as an explicit path or via PATH lookup.
func binaryResolvable(bin string) bool {
	if strings.ContainsRune(bin, os.PathSeparator) {
		_, err := os.Stat(bin)
		return err == nil
	}
	_, err := exec.LookPath(bin)
	return err == nil
}
