// Package backoff holds the waiting strategies shared by the transports:
// a jittered exponential Backoff for retry loops and an Idler for the
// spin-then-sleep waits of lock-free pollers.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Backoff implements exponential backoff with jitter. A multiplier of 1
// yields a fixed delay.
type Backoff struct {
	max        time.Duration
	current    time.Duration
	multiplier float64
	jitter     float64
}

// New creates a doubling backoff with ±20% jitter.
func New(initial, max time.Duration) *Backoff {
	return &Backoff{
		max:        max,
		current:    initial,
		multiplier: 2,
		jitter:     0.2,
	}
}

// Fixed creates a backoff that always waits d, without jitter.
func Fixed(d time.Duration) *Backoff {
	return &Backoff{max: d, current: d, multiplier: 1}
}

// Next returns the delay to wait now and advances the backoff.
func (b *Backoff) Next() time.Duration {
	d := b.current
	if b.jitter > 0 {
		d = time.Duration(float64(d) + float64(d)*b.jitter*(rand.Float64()*2-1))
	}

	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next
	return d
}

// Sleep waits for the next delay or until ctx is done.
func (b *Backoff) Sleep(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Current returns the current backoff duration, without jitter.
func (b *Backoff) Current() time.Duration {
	return b.current
}
