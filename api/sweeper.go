/*
sweeper.go - Periodic lifecycle sweep host

PURPOSE:
  Runs the block lifecycle sweep on a fixed interval (default 6 hours) and
  once immediately at startup. The sweep itself is an explicit entry point
  (blocks.Lifecycle.Sweep) so tests and the admin endpoint can drive it
  directly; this type only owns the ticker.

DESIGN:
  - Background goroutine with configurable interval
  - Runs are serialized: a tick that fires mid-run waits its turn
  - Stop() blocks until the goroutine exits

USAGE:
  runner := NewSweepRunner(lifecycle, log)
  runner.Start()
  // ... later
  runner.Stop()

SEE ALSO:
  - blocks/lifecycle.go: the sweep logic
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/rotation-engine/blocks"
)

// SweepRunner hosts the periodic block lifecycle sweep.
type SweepRunner struct {
	Lifecycle *blocks.Lifecycle
	Interval  time.Duration
	Enabled   bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
	runMu  sync.Mutex
}

// NewSweepRunner creates a runner with the default 6-hour interval.
func NewSweepRunner(lifecycle *blocks.Lifecycle, log zerolog.Logger) *SweepRunner {
	return &SweepRunner{
		Lifecycle: lifecycle,
		Interval:  6 * time.Hour,
		Enabled:   true,
		log:       log.With().Str("component", "sweeper").Logger(),
		stop:      make(chan bool),
	}
}

// Start begins the runner.
func (sr *SweepRunner) Start() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if !sr.Enabled {
		sr.log.Info().Msg("sweeper disabled, not starting")
		return
	}

	sr.ticker = time.NewTicker(sr.Interval)
	sr.wg.Add(1)

	go sr.run()

	sr.log.Info().Dur("interval", sr.Interval).Msg("sweeper started")
}

// Stop stops the runner and waits for the goroutine to exit.
func (sr *SweepRunner) Stop() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.ticker != nil {
		sr.ticker.Stop()
		close(sr.stop)
		sr.wg.Wait()
		sr.log.Info().Msg("sweeper stopped")
	}
}

func (sr *SweepRunner) run() {
	defer sr.wg.Done()

	// Run immediately on start
	sr.sweep()

	for {
		select {
		case <-sr.ticker.C:
			sr.sweep()
		case <-sr.stop:
			return
		}
	}
}

func (sr *SweepRunner) sweep() {
	sr.runMu.Lock()
	defer sr.runMu.Unlock()

	stats, err := sr.Lifecycle.Sweep(context.Background())
	if err != nil {
		sr.log.Error().Err(err).Msg("sweep failed")
		return
	}
	if stats.BlocksCompleted > 0 || stats.Cascaded > 0 || stats.NoResponses > 0 {
		sr.log.Info().
			Int("completed", stats.BlocksCompleted).
			Int("cascaded", stats.Cascaded).
			Int("no_responses", stats.NoResponses).
			Msg("sweep made changes")
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (sr *SweepRunner) RunNow() {
	sr.sweep()
}
