/*
scheduler.go - Periodic ledger resync

PURPOSE:
  Consumed hours are stored on each task as a convenience copy of the
  ledger. Work entries written by other processes (or edited directly in
  the database) make that copy stale. The scheduler replays every project
  on an interval and rewrites the stored totals.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on start
  - A failing project is logged and does not stop the others

CONFIGURATION:
  - Interval: How often to resync (config: resync.interval, default 15m)
  - Enabled:  Whether the scheduler starts at all (config: resync.enabled)

USAGE:
  s := NewResyncScheduler(svc, interval, log)
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - accounting/service.go: RecomputeAll
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/billing-engine/accounting"
)

// ResyncScheduler periodically recomputes consumed hours for every project.
type ResyncScheduler struct {
	Service  *accounting.Service
	Interval time.Duration
	Enabled  bool

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// runMu guards lastRun and nextRun; mu is held across Stop's wait.
	runMu   sync.Mutex
	lastRun time.Time
	nextRun time.Time
}

// NewResyncScheduler creates an enabled scheduler. A non-positive interval
// means 15 minutes.
func NewResyncScheduler(svc *accounting.Service, interval time.Duration, log *zap.Logger) *ResyncScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ResyncScheduler{
		Service:  svc,
		Interval: interval,
		Enabled:  true,
		log:      log,
	}
}

// Start begins the scheduler.
func (rs *ResyncScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.log.Info("resync scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker.C, rs.stop)

	rs.log.Info("resync scheduler started", zap.Duration("interval", rs.Interval))
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (rs *ResyncScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil

		rs.runMu.Lock()
		rs.nextRun = time.Time{}
		rs.runMu.Unlock()
		rs.log.Info("resync scheduler stopped")
	}
}

func (rs *ResyncScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer rs.wg.Done()

	rs.resync()

	for {
		select {
		case <-tick:
			rs.resync()
		case <-stop:
			return
		}
	}
}

func (rs *ResyncScheduler) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), rs.Interval)
	defer cancel()

	start := time.Now()
	n, err := rs.Service.RecomputeAll(ctx)
	if err != nil {
		rs.log.Error("resync failed", zap.Int("tasks", n), zap.Error(err))
	} else {
		rs.log.Debug("resync completed", zap.Int("tasks", n), zap.Duration("took", time.Since(start)))
	}

	rs.runMu.Lock()
	rs.lastRun = start
	rs.nextRun = start.Add(rs.Interval)
	rs.runMu.Unlock()
}

// RunNow triggers an immediate resync and returns the number of tasks rewritten.
func (rs *ResyncScheduler) RunNow(ctx context.Context) (int, error) {
	return rs.Service.RecomputeAll(ctx)
}

// LastRun is when the background loop last started a resync.
func (rs *ResyncScheduler) LastRun() time.Time {
	rs.runMu.Lock()
	defer rs.runMu.Unlock()
	return rs.lastRun
}

// NextRunTime is LastRun plus Interval, or the zero time when the scheduler
// is not running.
func (rs *ResyncScheduler) NextRunTime() time.Time {
	rs.runMu.Lock()
	defer rs.runMu.Unlock()
	return rs.nextRun
}
