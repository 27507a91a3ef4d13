package client

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy yields the wait before retry number attempt (0-based).
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// ExponentialBackoff grows the delay geometrically from Base toward Max.
// Jitter widens each delay to a uniform pick from [d*(1-Jitter), d*(1+Jitter)]
// so simultaneous retriers spread out instead of reconverging.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff covers a daemon restart: four retries span roughly 1.5s
// before the 5s cap takes over.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: 0.2,
	}
}

// Next returns the delay for attempt. Negative attempts count as the first.
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.Base) * math.Pow(b.Factor, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d *= 1 + b.Jitter*(2*rand.Float64()-1)
	}
	if d <= 0 {
		return 0
	}
	return time.Duration(d)
}
