// Package state holds the schedule and blocklist shared between the
// enforcement loop and whoever edits them in the foreground.
package state

import (
	"strings"
	"sync"

	"github.com/eliteGoblin/zenmode/internal/domain"
)

// Snapshot is one consistent view of the shared pair.
type Snapshot struct {
	Schedule  domain.Schedule
	Blocklist domain.Blocklist
}

// Shared guards the (schedule, blocklist) pair with a single mutex.
// Both values are immutable, so a Snapshot stays valid after the lock is released.
type Shared struct {
	mu        sync.Mutex
	schedule  domain.Schedule
	blocklist domain.Blocklist
}

// New creates a container owning schedule and blocklist.
func New(schedule domain.Schedule, blocklist domain.Blocklist) *Shared {
	return &Shared{
		schedule:  schedule,
		blocklist: blocklist,
	}
}

// Snapshot returns the current pair.
func (s *Shared) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Schedule: s.schedule, Blocklist: s.blocklist}
}

// WithSnapshot runs fn while holding the lock. Mutations issued while fn runs
// block until it returns, so fn observes exactly one version of the pair.
func (s *Shared) WithSnapshot(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(Snapshot{Schedule: s.schedule, Blocklist: s.blocklist})
}

// ReplaceSchedule swaps the schedule.
func (s *Shared) ReplaceSchedule(schedule domain.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = schedule
}

// ReplaceBlocklist swaps the blocklist.
func (s *Shared) ReplaceBlocklist(blocklist domain.Blocklist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocklist = blocklist
}

// Replace swaps both values in one step.
func (s *Shared) Replace(schedule domain.Schedule, blocklist domain.Blocklist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = schedule
	s.blocklist = blocklist
}

// Merge swaps the schedule and adds the identifiers of blocklist to the
// current set. Nothing already blocked is removed.
func (s *Shared) Merge(schedule domain.Schedule, blocklist domain.Blocklist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = schedule
	s.blocklist = s.blocklist.Union(blocklist)
}

// AddToBlocklist adds one identifier.
func (s *Shared) AddToBlocklist(id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrEmptyIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocklist = s.blocklist.With(id)
	return nil
}
