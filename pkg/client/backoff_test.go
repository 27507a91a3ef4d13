package client

import (
	"testing"
	"time"
)

func TestBackoffGrowsToCap(t *testing.T) {
	b := &ExponentialBackoff{Base: 50 * time.Millisecond, Max: 400 * time.Millisecond, Factor: 2}

	want := []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond, // capped
	}
	for attempt, expect := range want {
		if got := b.Next(attempt); got != expect {
			t.Errorf("Next(%d) = %v, want %v", attempt, got, expect)
		}
	}

	if got := b.Next(-3); got != 50*time.Millisecond {
		t.Errorf("Next(-3) = %v, want base delay", got)
	}
}

func TestBackoffJitterStaysInBand(t *testing.T) {
	b := &ExponentialBackoff{Base: 200 * time.Millisecond, Max: time.Second, Factor: 2, Jitter: 0.25}

	lo, hi := 150*time.Millisecond, 250*time.Millisecond
	for i := 0; i < 200; i++ {
		if got := b.Next(0); got < lo || got > hi {
			t.Fatalf("Next(0) = %v, want within [%v, %v]", got, lo, hi)
		}
	}
}
