package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/josangl08/Ballers-V3-sub002/internal/calsync"
)

// ErrSyncUnavailable means the server booted without calendar
// credentials; session CRUD still works but nothing can sync.
var ErrSyncUnavailable = errors.New("calendar sync is not configured")

// syncRunner is the engine surface the scheduler drives.
type syncRunner interface {
	Run(ctx context.Context) (*calsync.Report, error)
}

// AutoSyncStats is the mutable state behind GET /sync/status.
type AutoSyncStats struct {
	Running        bool            `json:"running"`
	Interval       string          `json:"interval"`
	TotalRuns      int             `json:"total_runs"`
	SuccessfulRuns int             `json:"successful_runs"`
	FailedRuns     int             `json:"failed_runs"`
	LastRunAt      *time.Time      `json:"last_run_at,omitempty"`
	LastDuration   string          `json:"last_duration,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	LastReport     *calsync.Report `json:"last_report,omitempty"`
}

// AutoSyncService runs the engine on an interval and on demand. All entry
// points funnel through the shared locker, so a manual run and the timer
// can never overlap.
type AutoSyncService struct {
	engine   syncRunner
	locker   calsync.Locker
	interval time.Duration
	logger   *log.Logger

	// OnStart and OnComplete, when set, observe each run as it begins
	// and finishes (hub broadcast, metrics). Called outside the stats
	// lock.
	OnStart    func(trigger string)
	OnComplete func(trigger string, report *calsync.Report, err error)

	mu      sync.Mutex
	stats   AutoSyncStats
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	debounceMu sync.Mutex
	debounce   *time.Timer
}

func NewAutoSyncService(
	engine syncRunner,
	locker calsync.Locker,
	interval time.Duration,
	logger *log.Logger,
) *AutoSyncService {
	if locker == nil {
		locker = &calsync.LocalLocker{}
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AutoSyncService{
		engine:   engine,
		locker:   locker,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the periodic loop. Starting twice is a no-op.
func (s *AutoSyncService) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.engine == nil {
		return false
	}
	s.running = true
	s.stats.Running = true
	s.stats.Interval = s.interval.String()
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stopCh)
	s.logger.Printf("auto-sync started, interval %s", s.interval)
	return true
}

// Stop halts the loop and waits for an in-flight run to finish.
func (s *AutoSyncService) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	s.stats.Running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Printf("auto-sync stopped")
	return true
}

func (s *AutoSyncService) loop(stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.runOnce(context.Background(), "auto")
		}
	}
}

// ForceSync runs one full cycle now, regardless of the timer.
func (s *AutoSyncService) ForceSync(ctx context.Context) (*calsync.Report, error) {
	return s.runOnce(ctx, "manual")
}

// TriggerSoon schedules a near-term run. Calendar webhooks arrive in
// bursts; the short debounce collapses them into one run.
func (s *AutoSyncService) TriggerSoon(trigger string) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(2*time.Second, func() {
		s.runOnce(context.Background(), trigger)
	})
}

func (s *AutoSyncService) runOnce(ctx context.Context, trigger string) (*calsync.Report, error) {
	if s.engine == nil {
		return nil, ErrSyncUnavailable
	}

	release, err := s.locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, calsync.ErrSyncBusy) {
			s.logger.Printf("%s sync skipped: already running", trigger)
		}
		return nil, err
	}
	defer release()

	if s.OnStart != nil {
		s.OnStart(trigger)
	}

	report, runErr := s.engine.Run(ctx)
	now := time.Now()

	s.mu.Lock()
	s.stats.TotalRuns++
	s.stats.LastRunAt = &now
	if report != nil {
		s.stats.LastDuration = report.Duration.Round(time.Millisecond).String()
		s.stats.LastReport = report
	}
	if runErr != nil {
		s.stats.FailedRuns++
		s.stats.LastError = runErr.Error()
	} else {
		s.stats.SuccessfulRuns++
		s.stats.LastError = ""
	}
	s.mu.Unlock()

	if runErr != nil {
		s.logger.Printf("%s sync failed: %v", trigger, runErr)
	}
	if s.OnComplete != nil {
		s.OnComplete(trigger, report, runErr)
	}
	return report, runErr
}

// Status returns a snapshot of the scheduler state.
func (s *AutoSyncService) Status() AutoSyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
