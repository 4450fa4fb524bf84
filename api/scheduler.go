/*
scheduler.go - Automated sync and document refresh

PURPOSE:
  Periodically pulls new transactions from the feed and regenerates the
  current month's document so its version tracks reality without manual
  clicks. Regeneration only runs when the sync actually saved rows; the
  version counter should move because the data moved, not because a
  timer fired.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick: sync the trailing window, regenerate on new data
  - Sync failures are logged and retried next tick (degraded feed must
    not kill the process)

USAGE:
  scheduler := NewScheduler(handler, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - feed/sync.go: The sync it drives
  - document/service.go: The regeneration it drives
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumo/taxdesk/ledger"
)

// Scheduler drives periodic sync and current-month regeneration.
type Scheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler with the default hourly interval.
func NewScheduler(h *Handler, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Handler:       h,
		CheckInterval: time.Hour,
		Enabled:       true,
		log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the background loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info().Msg("scheduler disabled")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.log.Info().Dur("interval", s.CheckInterval).Msg("scheduler started")
}

// Stop halts the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.log.Info().Msg("scheduler stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.tick()

	for {
		select {
		case <-s.ticker.C:
			s.tick()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	res, err := s.Handler.Syncer.Sync(ctx, now.AddDate(0, 0, -syncWindowDays), now)
	if err != nil {
		s.log.Warn().Err(err).Msg("scheduled sync failed, will retry next tick")
		return
	}
	if res.Saved == 0 {
		return
	}

	m := ledger.MonthOf(now)
	doc, err := s.Handler.Documents.Generate(ctx, m)
	if err != nil {
		s.log.Warn().Err(err).Str("month", m.String()).Msg("scheduled regeneration failed")
		return
	}
	s.log.Info().Str("document", doc.ID).Int("version", doc.Version).
		Int("new_transactions", res.Saved).Msg("document refreshed")
}
