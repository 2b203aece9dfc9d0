package fetch

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minAdaptiveRate is the floor, in requests per second, for adaptive slowdowns.
	minAdaptiveRate = 1.0

	// maxAdaptiveRate caps adaptive recovery unless the configured rate is higher.
	maxAdaptiveRate = 100.0

	// emaAlpha weights a new RTT observation against the running average.
	emaAlpha = 0.2

	// recoveryFactor raises the rate by 10% for every fast response.
	recoveryFactor = 1.1

	// backoffFactor bounds a single slowdown to half the current rate.
	backoffFactor = 0.5
)

// Throttle limits outbound request rate. With a target RTT it adapts the rate
// to the server: an RTT average above target slows down, fast responses speed
// back up. All methods are safe for concurrent use.
type Throttle struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	adaptive    bool
	targetRTT   time.Duration
	emaRTT      time.Duration
	currentRate float64
	ceiling     float64
}

// NewThrottle creates a throttle allowing rps requests per second.
// A non-positive rps disables throttling. A positive targetRTT enables
// adaptive adjustment.
func NewThrottle(rps int, targetRTT time.Duration) *Throttle {
	if rps <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 0)}
	}

	initial := float64(rps)
	return &Throttle{
		limiter:     rate.NewLimiter(rate.Limit(initial), rps),
		adaptive:    targetRTT > 0,
		targetRTT:   targetRTT,
		emaRTT:      targetRTT,
		currentRate: initial,
		ceiling:     math.Max(initial, maxAdaptiveRate),
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// ObserveRTT feeds a completed request's round-trip time into the adaptive
// rate and reports whether the rate changed. It is a no-op for fixed or
// unlimited throttles.
func (t *Throttle) ObserveRTT(rtt time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.adaptive {
		return false
	}

	t.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(t.emaRTT))

	var next float64
	ratio := float64(t.targetRTT) / float64(t.emaRTT)
	if ratio < 1 {
		next = math.Max(t.currentRate*ratio, t.currentRate*backoffFactor)
	} else {
		next = t.currentRate * recoveryFactor
	}
	next = math.Min(math.Max(next, minAdaptiveRate), t.ceiling)

	if math.Abs(next-t.currentRate) > 0.1 {
		t.currentRate = next
		t.limiter.SetLimit(rate.Limit(next))
		t.limiter.SetBurst(int(math.Ceil(next)))
		return true
	}
	return false
}

// CurrentRate returns the current limit in requests per second, or +Inf when
// throttling is disabled.
func (t *Throttle) CurrentRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentRate == 0 {
		return math.Inf(1)
	}
	return t.currentRate
}
