// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/eliteGoblin/zenmode/internal/domain"
)

// EnforcerImpl implements domain.Enforcer.
type EnforcerImpl struct {
	processManager domain.ProcessManager
	clock          domain.Clock
	logger         *zap.Logger
}

// NewEnforcer creates a new process enforcer.
func NewEnforcer(pm domain.ProcessManager, clock domain.Clock, logger *zap.Logger) domain.Enforcer {
	return &EnforcerImpl{
		processManager: pm,
		clock:          clock,
		logger:         logger,
	}
}

// Scan walks the whole process table once and kills every process whose
// argument vector contains a blocked identifier as a token.
// Per-process failures are recorded and logged; only a failure to list the
// process table is returned.
func (e *EnforcerImpl) Scan(ctx context.Context, blocklist domain.Blocklist) (*domain.ScanResult, error) {
	start := e.clock.Now()

	result := &domain.ScanResult{
		KilledPIDs: make([]int, 0),
		Errors:     make([]error, 0),
		ExecutedAt: start,
	}

	pids, err := e.processManager.ListPIDs(ctx)
	if err != nil {
		return nil, err
	}

	self := e.processManager.GetCurrentPID()

	for _, pid := range pids {
		if ctx.Err() != nil {
			break
		}

		info, err := e.processManager.Inspect(ctx, pid)
		if err != nil {
			if errors.Is(err, domain.ErrProcessGone) {
				result.Vanished++
				continue
			}
			e.logger.Debug("cannot read process metadata",
				zap.Int("pid", pid),
				zap.Error(err))
			result.Unreadable++
			continue
		}
		result.Examined++

		e.logger.Debug("checking process",
			zap.Int("pid", pid),
			zap.String("name", info.Name),
			zap.Strings("cmdline", info.Cmdline))

		id, matched := blocklist.MatchArgs(info.Cmdline)
		if !matched {
			continue
		}
		if pid == self {
			e.logger.Warn("blocked identifier matches this process, not killing self",
				zap.Int("pid", pid),
				zap.String("identifier", id))
			continue
		}

		if err := e.processManager.Kill(ctx, pid); err != nil {
			if errors.Is(err, domain.ErrProcessGone) {
				result.Vanished++
				continue
			}
			e.logger.Warn("failed to kill process",
				zap.Int("pid", pid),
				zap.String("name", info.Name),
				zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}

		e.logger.Info("killed blocked process",
			zap.Int("pid", pid),
			zap.String("name", info.Name),
			zap.String("identifier", id))
		result.KilledPIDs = append(result.KilledPIDs, pid)
	}

	result.DurationMs = e.clock.Now().Sub(start).Milliseconds()
	if result.DurationMs < 0 {
		result.DurationMs = 0
	}

	return result, nil
}

// Ensure EnforcerImpl implements domain.Enforcer.
var _ domain.Enforcer = (*EnforcerImpl)(nil)
