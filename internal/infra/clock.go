package infra

import (
	"time"

	"github.com/eliteGoblin/zenmode/internal/domain"
)

// RealClock implements domain.Clock using the real system time.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// After waits for d on a real timer.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

var _ domain.Clock = RealClock{}
