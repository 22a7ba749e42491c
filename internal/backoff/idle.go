package backoff

import (
	"runtime"
	"time"
)

// Default idle tuning.
const (
	DefaultSpins    = 64
	DefaultYields   = 64
	DefaultMinSleep = time.Microsecond
	DefaultMaxSleep = time.Millisecond
)

// Idler paces a polling loop: it busy-spins first, then yields the processor,
// then sleeps with a doubling delay capped at maxSleep. Reset after progress.
// An Idler is owned by one goroutine.
type Idler struct {
	spins    int
	yields   int
	minSleep time.Duration
	maxSleep time.Duration

	count int
	sleep time.Duration
}

// NewIdler returns an idler with the default tuning.
func NewIdler() *Idler {
	return NewIdlerWith(DefaultSpins, DefaultYields, DefaultMinSleep, DefaultMaxSleep)
}

// NewIdlerWith returns an idler with explicit tuning.
func NewIdlerWith(spins, yields int, minSleep, maxSleep time.Duration) *Idler {
	if minSleep <= 0 {
		minSleep = DefaultMinSleep
	}
	if maxSleep < minSleep {
		maxSleep = minSleep
	}
	return &Idler{spins: spins, yields: yields, minSleep: minSleep, maxSleep: maxSleep, sleep: minSleep}
}

// Idle performs one wait step.
func (i *Idler) Idle() {
	switch {
	case i.count < i.spins:
		i.count++
	case i.count < i.spins+i.yields:
		i.count++
		runtime.Gosched()
	default:
		time.Sleep(i.sleep)
		i.sleep *= 2
		if i.sleep > i.maxSleep {
			i.sleep = i.maxSleep
		}
	}
}

// Reset returns the idler to its spinning phase.
func (i *Idler) Reset() {
	i.count = 0
	i.sleep = i.minSleep
}
