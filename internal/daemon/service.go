package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/zenmode/internal/domain"
	"github.com/eliteGoblin/zenmode/internal/state"
)

// ServiceConfig holds background service configuration.
type ServiceConfig struct {
	HeartbeatInterval time.Duration // How often to update heartbeat
}

// DefaultServiceConfig returns default service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		HeartbeatInterval: 30 * time.Second,
	}
}

// Update is a new schedule and blocklist, typically from a config file reload.
type Update struct {
	Schedule  domain.Schedule
	Blocklist domain.Blocklist
}

// Service is the background enforcer. It hosts one Loop, keeps the registry
// entry fresh so the CLI can report status, and applies updates as they arrive.
type Service struct {
	config   ServiceConfig
	loop     *Loop
	shared   *state.Shared
	registry domain.DaemonRegistry
	updates  <-chan Update
	daemon   domain.Daemon
	logger   *zap.Logger
}

// NewService creates a background service around loop. updates may be nil.
func NewService(
	config ServiceConfig,
	loop *Loop,
	shared *state.Shared,
	registry domain.DaemonRegistry,
	updates <-chan Update,
	daemon domain.Daemon,
	logger *zap.Logger,
) *Service {
	return &Service{
		config:   config,
		loop:     loop,
		shared:   shared,
		registry: registry,
		updates:  updates,
		daemon:   daemon,
		logger:   logger,
	}
}

// Run registers the daemon, starts the loop and blocks until ctx is canceled.
// On return the loop has fully stopped and the registry entry is cleared.
func (s *Service) Run(ctx context.Context) error {
	if err := s.registry.Register(s.daemon); err != nil {
		s.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := s.registry.Clear(); err != nil {
			s.logger.Warn("failed to clear registry", zap.Error(err))
		}
	}()

	s.loop.SetScanHook(func(r domain.ScanResult) {
		if err := s.registry.RecordScan(r); err != nil {
			s.logger.Warn("failed to record scan", zap.Error(err))
		}
	})

	if err := s.loop.Start(ctx); err != nil {
		return err
	}
	defer s.loop.Stop()

	snap := s.shared.Snapshot()
	s.logger.Info("enforcer daemon started",
		zap.Int("pid", s.daemon.PID),
		zap.String("schedule", snap.Schedule.String()),
		zap.Strings("blocklist", snap.Blocklist.Items()))

	heartbeatTicker := time.NewTicker(s.config.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	updates := s.updates
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("enforcer daemon stopping")
			return ctx.Err()

		case <-s.loop.Done():
			if err := ctx.Err(); err != nil {
				s.logger.Info("enforcer daemon stopping")
				return err
			}
			s.logger.Warn("enforcement loop exited unexpectedly")
			return nil

		case <-heartbeatTicker.C:
			if err := s.registry.UpdateHeartbeat(); err != nil {
				s.logger.Warn("failed to update heartbeat", zap.Error(err))
			}

		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			s.apply(u)
		}
	}
}

// apply swaps in a new schedule and blocklist together. It waits for any
// active scan to finish first.
func (s *Service) apply(u Update) {
	s.shared.Replace(u.Schedule, u.Blocklist)
	s.logger.Info("configuration reloaded",
		zap.String("schedule", u.Schedule.String()),
		zap.Strings("blocklist", u.Blocklist.Items()))
}
