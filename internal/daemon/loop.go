// Package daemon implements the enforcement loop and the background service
// that hosts it.
package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/zenmode/internal/domain"
	"github.com/eliteGoblin/zenmode/internal/state"
)

// DefaultPollInterval is the pause between loop iterations, after an idle
// check and after an active scan alike.
const DefaultPollInterval = 5 * time.Second

// LoopConfig holds enforcement loop configuration.
type LoopConfig struct {
	PollInterval time.Duration // Pause between iterations (default 5s)
}

// DefaultLoopConfig returns default loop configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		PollInterval: DefaultPollInterval,
	}
}

// LoopStats counts what the loop has done so far.
type LoopStats struct {
	Iterations int64
	Scans      int64
	Killed     int64
	LastScanAt time.Time
}

// Loop polls the shared schedule and, while it is active, scans the process
// table and kills blocked processes.
//
// A Loop runs at most once: Start moves it from stopped to running, Stop moves
// it back to stopped for good. Create a new Loop to run again.
type Loop struct {
	config   LoopConfig
	shared   *state.Shared
	enforcer domain.Enforcer
	clock    domain.Clock
	logger   *zap.Logger
	onScan   func(domain.ScanResult)

	lifecycle sync.Mutex
	started   bool
	finish    atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}

	statsMu sync.Mutex
	stats   LoopStats
}

// NewLoop creates a stopped enforcement loop reading from shared.
func NewLoop(
	config LoopConfig,
	shared *state.Shared,
	enforcer domain.Enforcer,
	clock domain.Clock,
	logger *zap.Logger,
) *Loop {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Loop{
		config:   config,
		shared:   shared,
		enforcer: enforcer,
		clock:    clock,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetScanHook registers fn to receive every completed scan result.
// It is called from the loop goroutine after the shared lock is released.
// Must be called before Start.
func (l *Loop) SetScanHook(fn func(domain.ScanResult)) {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	l.onScan = fn
}

// Start launches the polling goroutine. Canceling ctx also ends the loop.
func (l *Loop) Start(ctx context.Context) error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if l.finish.Load() {
		return domain.ErrLoopFinished
	}
	if l.started {
		return domain.ErrLoopAlreadyStarted
	}
	l.started = true

	go l.run(ctx)
	return nil
}

// Stop asks the loop to finish and waits until the goroutine has exited.
// An iteration already in progress is allowed to complete; the pause after it
// is cut short. Stop is idempotent.
func (l *Loop) Stop() {
	l.lifecycle.Lock()
	started := l.started
	l.finish.Store(true)
	l.stopOnce.Do(func() { close(l.stopCh) })
	l.lifecycle.Unlock()

	if started {
		<-l.done
	}
}

// Running reports whether the polling goroutine is alive.
func (l *Loop) Running() bool {
	l.lifecycle.Lock()
	started := l.started
	l.lifecycle.Unlock()

	if !started {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// Done is closed once the polling goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() LoopStats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	l.logger.Info("enforcement loop started",
		zap.Duration("poll_interval", l.config.PollInterval))

	wasActive := false
	for !l.finish.Load() && ctx.Err() == nil {
		wasActive = l.iterate(ctx, wasActive)

		select {
		case <-l.stopCh:
		case <-ctx.Done():
		case <-l.clock.After(l.config.PollInterval):
		}
	}

	l.logger.Info("enforcement loop stopped")
}

// iterate performs one idle check or one active scan and reports whether the
// schedule was active.
func (l *Loop) iterate(ctx context.Context, wasActive bool) bool {
	var (
		active bool
		result *domain.ScanResult
		now    time.Time
	)

	l.shared.WithSnapshot(func(snap state.Snapshot) {
		now = l.clock.Now()
		active = snap.Schedule.IsActive(now)
		if !active {
			return
		}

		r, err := l.enforcer.Scan(ctx, snap.Blocklist)
		if err != nil {
			l.logger.Error("scan failed", zap.Error(err))
			return
		}
		result = r
	})

	if active != wasActive {
		if active {
			l.logger.Info("schedule active, blocking enabled", zap.Time("at", now))
		} else {
			l.logger.Info("schedule inactive, idling", zap.Time("at", now))
		}
	}

	l.statsMu.Lock()
	l.stats.Iterations++
	if result != nil {
		l.stats.Scans++
		l.stats.Killed += int64(len(result.KilledPIDs))
		l.stats.LastScanAt = result.ExecutedAt
	}
	l.statsMu.Unlock()

	if result != nil {
		if len(result.KilledPIDs) > 0 {
			l.logger.Info("scan completed",
				zap.Int("examined", result.Examined),
				zap.Int("processes_killed", len(result.KilledPIDs)),
				zap.Int64("duration_ms", result.DurationMs))
		}
		if l.onScan != nil {
			l.onScan(*result)
		}
	}

	return active
}
