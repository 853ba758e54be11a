package inventory

import "time"

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock supplies the current time. Expiry evaluation and lifecycle sweeps
// always go through a Clock so their behavior is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Tests advance it explicitly.
type FixedClock struct {
	Current time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{Current: t} }

func (c *FixedClock) Now() time.Time { return c.Current }

// Advance moves the fixed clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }

// DateOnly truncates t to midnight UTC. Opening-stock entries are keyed by
// day, not instant.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
