// Package scheduler runs background jobs for the glycemia API. The knowledge
// base is never reloaded at runtime; instead the guideline file is
// periodically compared with the checksum of the table loaded at startup and
// any drift is logged, exported as a metric and surfaced in /health.
package scheduler

import (
	"fmt"
	"time"

	"github.com/giygas/glycemia-api/interfaces"
	"github.com/giygas/glycemia-api/knowledgebase"
	"github.com/giygas/glycemia-api/logging"
	"github.com/giygas/glycemia-api/metrics"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler runs the guideline drift check using dependency injection
type Scheduler struct {
	store     interfaces.KnowledgeStore
	interval  time.Duration
	scheduler *gocron.Scheduler
	checksum  func(path string) (string, error)
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(store interfaces.KnowledgeStore, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:     store,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.Local),
		checksum:  knowledgebase.FileChecksum,
	}
}

// Start checks the guideline file once and schedules the periodic check.
// Nothing is scheduled for the built-in table.
func (s *Scheduler) Start() error {
	if !s.store.IsLoaded() {
		return fmt.Errorf("knowledge base not published")
	}

	if s.store.Source() == "" {
		logging.Info("Using built-in knowledge base, guideline drift check disabled")
		return nil
	}

	s.checkDrift()

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.checkDrift)
	if err != nil {
		logging.Error("Failed to schedule guideline drift check", "error", err)
		return fmt.Errorf("failed to schedule drift check: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Guideline drift check scheduled", "interval", s.interval.String(), "path", s.store.Source())

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkDrift compares the file on disk with the published checksum
func (s *Scheduler) checkDrift() {
	path := s.store.Source()
	status := interfaces.DriftStatus{CheckedAt: time.Now()}
	previous := s.store.Drift()

	sum, err := s.checksum(path)
	if err != nil {
		status.Err = err.Error()
		logging.Warn("Guideline file could not be read for drift check", "path", path, "error", err)
	} else {
		status.DiskChecksum = sum
		status.Drifted = sum != s.store.Checksum()
	}

	s.store.RecordDrift(status)
	metrics.SetDrift(status.Drifted)

	switch {
	case status.Drifted && !previous.Drifted:
		logging.Warn("Guideline file changed on disk; restart to apply it",
			"path", path,
			"loaded_checksum", s.store.Checksum(),
			"disk_checksum", status.DiskChecksum,
			"version", s.store.KnowledgeBase().Version,
		)
	case !status.Drifted && previous.Drifted && status.Err == "":
		logging.Info("Guideline file matches the loaded table again", "path", path)
	}
}
