package backoff

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_Doubles(t *testing.T) {
	b := New(10*time.Millisecond, 50*time.Millisecond)

	want := []time.Duration{10, 20, 40, 50, 50}
	for i, w := range want {
		cur := b.Current()
		if cur != w*time.Millisecond {
			t.Fatalf("step %d: current = %v, want %v", i, cur, w*time.Millisecond)
		}
		d := b.Next()
		lo := time.Duration(float64(cur) * 0.79)
		hi := time.Duration(float64(cur) * 1.21)
		if d < lo || d > hi {
			t.Errorf("step %d: delay %v outside jitter band [%v, %v]", i, d, lo, hi)
		}
	}
}

func TestBackoff_Fixed(t *testing.T) {
	b := Fixed(time.Second)
	for i := 0; i < 5; i++ {
		if d := b.Next(); d != time.Second {
			t.Fatalf("attempt %d: delay = %v, want 1s", i, d)
		}
	}
}

func TestBackoff_SleepHonorsContext(t *testing.T) {
	b := Fixed(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := b.Sleep(ctx); err != context.Canceled {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep() ignored cancelled context")
	}
}

func TestIdler_Phases(t *testing.T) {
	i := NewIdlerWith(2, 2, time.Microsecond, 4*time.Microsecond)

	for n := 0; n < 4; n++ {
		i.Idle()
	}
	if i.sleep != time.Microsecond {
		t.Fatalf("slept during spin/yield phase: sleep = %v", i.sleep)
	}

	i.Idle()
	i.Idle()
	i.Idle()
	if i.sleep != 4*time.Microsecond {
		t.Errorf("sleep = %v, want capped at 4µs", i.sleep)
	}

	i.Reset()
	if i.count != 0 || i.sleep != time.Microsecond {
		t.Errorf("Reset left count=%d sleep=%v", i.count, i.sleep)
	}
}
