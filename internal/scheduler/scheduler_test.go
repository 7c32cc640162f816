package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"15m", 15 * time.Minute, true},
		{"1h", time.Hour, true},
		{"4H", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{" 30m ", 30 * time.Minute, true},
		{"", 0, false},
		{"m", 0, false},
		{"0h", 0, false},
		{"-1h", 0, false},
		{"1x", 0, false},
		{"1.5h", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseIntervalDuration(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNextTimesDailyWithOffset(t *testing.T) {
	s := &AlignedScheduler{Interval: 24 * time.Hour, Offset: 30 * time.Minute}
	now := time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC)

	boundary, wakeAt, wait := s.nextTimes(now)

	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), boundary)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC), wakeAt)
	assert.Equal(t, wakeAt.Sub(now), wait)
}

func TestNextTimesHourly(t *testing.T) {
	s := &AlignedScheduler{Interval: time.Hour}
	now := time.Date(2026, 3, 10, 14, 59, 59, 0, time.UTC)

	boundary, wakeAt, wait := s.nextTimes(now)

	assert.Equal(t, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), boundary)
	assert.Equal(t, boundary, wakeAt)
	assert.Equal(t, time.Second, wait)
}

func TestStartRunImmediatelyThenStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewAlignedScheduler(ctx, time.Hour, 0)
	s.RunImmediately = true

	ran := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		s.Start(func() {
			select {
			case ran <- struct{}{}:
			default:
			}
			cancel()
		})
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate run never fired")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not exit after cancel")
	}
}

func TestStartRejectsInvalidSetup(t *testing.T) {
	done := make(chan struct{})
	go func() {
		(&AlignedScheduler{Interval: 0}).Start(func() { t.Error("task ran with zero interval") })
		(&AlignedScheduler{Interval: time.Hour}).Start(nil)
		var nilSched *AlignedScheduler
		nilSched.Start(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("invalid schedulers should return immediately")
	}
}
