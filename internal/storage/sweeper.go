package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snapnotes/notes-engine/internal/metrics"
)

// Sweeper removes job artifacts left behind by runs that never reached
// their own cleanup (crash, kill -9 mid-pipeline). Normal runs delete
// their artifacts themselves; the sweeper only catches orphans older than
// the retention window.
type Sweeper struct {
	dirs      []string
	retention time.Duration
	interval  time.Duration
	log       zerolog.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewSweeper creates a sweeper over the given artifact directories.
// retention == 0 disables sweeping entirely.
func NewSweeper(dirs []string, retention time.Duration, log zerolog.Logger) *Sweeper {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{
		dirs:      dirs,
		retention: retention,
		interval:  interval,
		log:       log.With().Str("component", "sweeper").Logger(),
		stop:      make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	if s.retention == 0 {
		return
	}
	go s.loop()
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Sweeper) loop() {
	// Run once on startup to clear any backlog from downtime
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	cutoff := time.Now().Add(-s.retention)
	var removed int

	for _, dir := range s.dirs {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.ModTime().After(cutoff) {
				return nil
			}
			if err := os.Remove(path); err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("orphan removal failed")
				return nil
			}
			removed++
			metrics.ArtifactsSweptTotal.Inc()
			return nil
		})
	}

	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("swept orphaned artifacts")
	}
}
