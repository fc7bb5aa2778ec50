/*
scheduler.go - Automated auto-close and end-of-day sweep

PURPOSE:
  Periodically closes forgotten check-outs and reports absences and
  unregistered exits without waiting for an administrator to call the
  admin endpoints.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick covers yesterday and today: overnight shifts that started
    yesterday close this morning, day shifts close this evening
  - Auto-close runs before the sweep so that a synthetic check-out is
    reported as UNREGISTERED_EXIT in the same tick
  - Both batches skip work already done (closed days, reported anomalies),
    so ticks are safe to repeat

CONFIGURATION:
  - Interval: How often to run (default: 5 minutes)
  - Enabled:  Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAttendanceScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Sweep and AutoClose endpoints (manual runs)
  - attendance/sweep.go, attendance/autoclose.go: Batch operations
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
)

// Batcher is the slice of the engine the scheduler drives.
type Batcher interface {
	AutoCloseAll(ctx context.Context, day time.Time) (attendance.BatchSummary, error)
	Sweep(ctx context.Context, day time.Time) (attendance.BatchSummary, error)
	Location() *time.Location
}

// TickResult aggregates one run over yesterday and today.
type TickResult struct {
	Closed   int
	Reported int
	Failed   int
}

// AttendanceScheduler runs auto-close and the sweep on a ticker.
type AttendanceScheduler struct {
	Engine   Batcher
	Logger   *zap.Logger
	Interval time.Duration
	Enabled  bool

	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAttendanceScheduler creates a new scheduler.
func NewAttendanceScheduler(engine Batcher, logger *zap.Logger) *AttendanceScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceScheduler{
		Engine:   engine,
		Logger:   logger.Named("scheduler"),
		Interval: 5 * time.Minute,
		Enabled:  true,
		now:      time.Now,
	}
}

// Start begins the scheduler.
func (s *AttendanceScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.Logger.Info("started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for a running tick to finish.
func (s *AttendanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("stopped")
	}
}

func (s *AttendanceScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.RunNow(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunNow runs one tick synchronously (for testing/admin).
func (s *AttendanceScheduler) RunNow(ctx context.Context) TickResult {
	today := schedule.DateOf(s.now(), s.Engine.Location())
	days := []time.Time{today.AddDate(0, 0, -1), today}

	var result TickResult
	for _, day := range days {
		closed, err := s.Engine.AutoCloseAll(ctx, day)
		if err != nil {
			s.Logger.Error("auto-close failed", zap.String("date", schedule.FormatDate(day)), zap.Error(err))
			continue
		}
		result.Closed += len(closed.Closed)
		result.Failed += closed.Failed
	}
	for _, day := range days {
		swept, err := s.Engine.Sweep(ctx, day)
		if err != nil {
			s.Logger.Error("sweep failed", zap.String("date", schedule.FormatDate(day)), zap.Error(err))
			continue
		}
		result.Reported += len(swept.Reported)
		result.Failed += swept.Failed
	}

	if result.Closed > 0 || result.Reported > 0 || result.Failed > 0 {
		s.Logger.Info("tick completed",
			zap.Int("closed", result.Closed),
			zap.Int("reported", result.Reported),
			zap.Int("failed", result.Failed),
		)
	}
	return result
}

// NextRunTime returns when the next scheduled run will occur.
func (s *AttendanceScheduler) NextRunTime() time.Time {
	return s.now().Add(s.Interval)
}
