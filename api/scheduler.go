/*
scheduler.go - Periodic autosave

PURPOSE:
  Saves the warehouse to its associated snapshot on a fixed interval, so
  a crash loses at most one interval of work.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick calls Manager.Save, which is a no-op when nothing changed
  - Skips silently while no snapshot is associated
  - Stop performs one final save before returning

USAGE:
  scheduler := NewAutosaveScheduler(manager, log)
  scheduler.CheckInterval = cfg.AutosaveInterval
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Save endpoint (manual save)
  - manager/manager.go: Dirty flag and association
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp/warehouse-engine/manager"
	"github.com/warp/warehouse-engine/pkg/logger"
)

// AutosaveScheduler periodically persists unsaved changes.
type AutosaveScheduler struct {
	Manager       *manager.Manager
	CheckInterval time.Duration
	Enabled       bool

	log    *logger.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAutosaveScheduler creates a new scheduler.
func NewAutosaveScheduler(m *manager.Manager, log *logger.Logger) *AutosaveScheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &AutosaveScheduler{
		Manager:       m,
		CheckInterval: time.Minute,
		Enabled:       true,
		log:           log.WithComponent("autosave"),
	}
}

// Start begins the scheduler.
func (s *AutosaveScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.log.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	s.log.Infow("started", "interval", s.CheckInterval)
}

// Stop stops the scheduler and saves one last time.
func (s *AutosaveScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil

	s.RunNow()
	s.log.Info("stopped")
}

func (s *AutosaveScheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stop:
			return
		}
	}
}

// RunNow saves immediately if there is something to save. It reports
// whether a snapshot was written.
func (s *AutosaveScheduler) RunNow() bool {
	ctx := logger.WithLogger(context.Background(), s.log)

	saved, err := s.Manager.Save(ctx)
	switch {
	case errors.Is(err, manager.ErrMissingFileAssociation):
		return false
	case err != nil:
		s.log.Errorw("autosave failed", "error", err)
		return false
	}
	return saved
}
