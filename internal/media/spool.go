// Package media manages the on-disk spool for inbound voice attachments.
// Every request gets its own file; a cron sweep reclaims anything a crash
// left behind.
package media

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Spool hands out unique paths for downloaded audio and removes them.
type Spool struct {
	dir       string
	retention time.Duration
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewSpool creates the spool directory when absent.
func NewSpool(log *slog.Logger, dir string, retention time.Duration) (*Spool, error) {
	if log == nil {
		log = slog.Default()
	}
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Spool{
		dir:       dir,
		retention: retention,
		logger:    log.With(slog.String("service", "media")),
	}, nil
}

// Allocate returns a fresh path for one request's audio. Paths are unique
// so concurrent voice messages never collide.
func (s *Spool) Allocate(ext string) string {
	if ext == "" {
		ext = ".ogg"
	}
	return filepath.Join(s.dir, uuid.NewString()+ext)
}

// Remove deletes a spooled file. Best effort: a failed unlink is logged,
// the sweeper picks the file up later.
func (s *Spool) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove spool file failed",
			slog.String("path", path), slog.Any("error", err))
	}
}

// StartSweeper schedules a periodic sweep of files older than the
// retention window. Call StopSweeper on shutdown.
func (s *Spool) StartSweeper() error {
	c := cron.New()
	if _, err := c.AddFunc("@every 10m", s.sweep); err != nil {
		return fmt.Errorf("schedule spool sweep: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// StopSweeper stops the sweep schedule and waits for a running sweep.
func (s *Spool) StopSweeper() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Spool) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("read spool dir failed", slog.Any("error", err))
		return
	}
	cutoff := time.Now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("swept orphaned spool files", slog.Int("removed", removed))
	}
}
