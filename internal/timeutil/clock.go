// Package timeutil provides the clocks the tracker tools run on.
//
// The tracker itself runs on sensor timestamps; a clock is only consulted
// to stamp automatic acquisitions and to pace the simulator.
package timeutil

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to a Clock, for example the simulated time of
// a scenario.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// MockClock is a manually controlled clock for tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t, backwards if need be.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SweepTicks returns a channel that ticks once per antenna period of real
// time, and a stop function. A zero or negative period returns a nil
// channel, which never blocks a select with a default and never fires.
func SweepTicks(period time.Duration) (<-chan time.Time, func()) {
	if period <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(period)
	return t.C, t.Stop
}

// UnixNanos converts a sensor timestamp to a UTC time. Zero means unset.
func UnixNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
