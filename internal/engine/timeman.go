package engine

import (
	"time"
)

// TimeManager owns the deadline for a single BestMove call and the
// cooperative-cancellation flag the search polls periodically. It is
// rebuilt fresh for every BestMove call; nothing about it carries state
// across calls.
type TimeManager struct {
	startTime time.Time
	deadline  time.Time
	timeout   bool
}

// NewTimeManager starts a time manager with the given time budget.
func NewTimeManager(budget time.Duration) *TimeManager {
	now := time.Now()
	return &TimeManager{
		startTime: now,
		deadline:  now.Add(budget),
	}
}

// Elapsed returns the time elapsed since the search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// check reports whether the deadline has passed, latching timeout sticky
// for the remainder of this call once it trips.
func (tm *TimeManager) check() bool {
	if tm.timeout {
		return true
	}
	if time.Now().After(tm.deadline) {
		tm.timeout = true
	}
	return tm.timeout
}

// ShouldStop is the negamax core's periodic poll point: true once the
// deadline has elapsed. Sticky for the lifetime of this TimeManager.
func (tm *TimeManager) ShouldStop() bool {
	return tm.check()
}

// TimedOut reports whether the deadline tripped at any point during this
// BestMove call, without re-checking the clock.
func (tm *TimeManager) TimedOut() bool {
	return tm.timeout
}
