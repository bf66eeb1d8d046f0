// Package control drives zen mode from the foreground: it owns the shared
// schedule and blocklist and starts or stops enforcement loops on demand.
package control

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/zenmode/internal/daemon"
	"github.com/eliteGoblin/zenmode/internal/domain"
	"github.com/eliteGoblin/zenmode/internal/state"
)

// LoopFactory builds a fresh enforcement loop reading from shared.
type LoopFactory func(shared *state.Shared) *daemon.Loop

// Controller toggles enforcement on and off. Each Start builds a new Loop;
// Stop joins the current one and drops it.
type Controller struct {
	shared  *state.Shared
	newLoop LoopFactory
	clock   domain.Clock
	logger  *zap.Logger

	mu   sync.Mutex
	loop *daemon.Loop
}

// NewController creates a stopped controller around shared.
func NewController(shared *state.Shared, newLoop LoopFactory, clock domain.Clock, logger *zap.Logger) *Controller {
	return &Controller{
		shared:  shared,
		newLoop: newLoop,
		clock:   clock,
		logger:  logger,
	}
}

// Start launches a new enforcement loop. It fails with
// domain.ErrLoopAlreadyStarted if one is already running.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx)
}

// Stop ends the current loop and waits for it. No-op when stopped.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Toggle starts the loop if stopped, stops it otherwise, and reports whether
// it is running afterwards.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loop != nil && c.loop.Running() {
		c.stopLocked()
		return false, nil
	}
	if err := c.startLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Controller) startLocked(ctx context.Context) error {
	if c.loop != nil {
		if c.loop.Running() {
			return domain.ErrLoopAlreadyStarted
		}
		// Exited on its own (context canceled); reap it.
		c.loop.Stop()
		c.loop = nil
	}

	loop := c.newLoop(c.shared)
	if err := loop.Start(ctx); err != nil {
		return err
	}
	c.loop = loop
	c.logger.Info("zen mode activated")
	return nil
}

func (c *Controller) stopLocked() {
	if c.loop == nil {
		return
	}
	c.loop.Stop()
	c.loop = nil
	c.logger.Info("zen mode deactivated")
}

// Running reports whether an enforcement loop is alive.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop != nil && c.loop.Running()
}

// Stats returns the current loop's counters, or zero values when stopped.
func (c *Controller) Stats() daemon.LoopStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loop == nil {
		return daemon.LoopStats{}
	}
	return c.loop.Stats()
}

// AddApplication adds id to the blocklist. A running loop sees it on its next
// iteration.
func (c *Controller) AddApplication(id string) error {
	if err := c.shared.AddToBlocklist(id); err != nil {
		return err
	}
	c.logger.Info("application blocked", zap.String("id", id))
	return nil
}

// SetSchedule replaces the schedule.
func (c *Controller) SetSchedule(schedule domain.Schedule) {
	c.shared.ReplaceSchedule(schedule)
	c.logger.Info("schedule updated", zap.String("schedule", schedule.String()))
}

// Reload applies a reloaded config file: the schedule is replaced and the
// blocklist grows by the file's identifiers. Applications added during the
// session stay blocked.
func (c *Controller) Reload(schedule domain.Schedule, blocklist domain.Blocklist) {
	c.shared.Merge(schedule, blocklist)
	c.logger.Info("configuration reloaded",
		zap.String("schedule", schedule.String()),
		zap.Strings("blocklist", c.Blocklist().Items()))
}

// Blocklist returns the current blocklist.
func (c *Controller) Blocklist() domain.Blocklist {
	return c.shared.Snapshot().Blocklist
}

// Schedule returns the current schedule.
func (c *Controller) Schedule() domain.Schedule {
	return c.shared.Snapshot().Schedule
}

// InWindow reports whether the schedule is active right now.
func (c *Controller) InWindow() bool {
	return c.Schedule().IsActive(c.clock.Now())
}
