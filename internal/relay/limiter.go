package relay

import (
	"golang.org/x/time/rate"
)

// LimitConfig bounds how many frames one subscriber may publish. A zero RPS
// disables limiting.
type LimitConfig struct {
	RPS   float64
	Burst int
}

// Enabled reports whether limiting is on.
func (c LimitConfig) Enabled() bool { return c.RPS > 0 }

// newLimiter returns nil when limiting is disabled.
func (c LimitConfig) newLimiter() *rate.Limiter {
	if !c.Enabled() {
		return nil
	}
	burst := c.Burst
	if burst <= 0 {
		burst = max(1, int(c.RPS))
	}
	return rate.NewLimiter(rate.Limit(c.RPS), burst)
}
