package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	assert.False(t, c.Now().Before(before))
}

func TestClockFunc(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var c Clock = ClockFunc(func() time.Time { return at })
	assert.Equal(t, at, c.Now())
}

func TestMockClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(2500 * time.Millisecond)
	assert.Equal(t, start.Add(2500*time.Millisecond), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSweepTicks(t *testing.T) {
	c, stop := SweepTicks(time.Millisecond)
	defer stop()
	select {
	case <-c:
	case <-time.After(time.Second):
		t.Fatal("sweep ticker did not fire")
	}

	c, stop = SweepTicks(0)
	stop()
	assert.Nil(t, c)
}

func TestUnixNanos(t *testing.T) {
	assert.True(t, UnixNanos(0).IsZero())
	got := UnixNanos(1700000000_000000000)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, int64(1700000000), got.Unix())
}
