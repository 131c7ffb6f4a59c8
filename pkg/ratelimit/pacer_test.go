package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewPacer(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
		want  time.Duration
	}{
		{name: "positive delay", delay: 250 * time.Millisecond, want: 250 * time.Millisecond},
		{name: "zero delay", delay: 0, want: 0},
		{name: "negative delay clamps to zero", delay: -time.Second, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPacer(tt.delay)
			if p.Delay() != tt.want {
				t.Errorf("Delay() = %v, want %v", p.Delay(), tt.want)
			}
		})
	}
}

func TestPacer_Sleep(t *testing.T) {
	p := NewPacer(30 * time.Millisecond)

	start := time.Now()
	if err := p.Sleep(context.Background()); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Sleep() returned after %v, want >= 30ms", elapsed)
	}
}

func TestPacer_SleepAppliesFullDelayEveryTime(t *testing.T) {
	p := NewPacer(20 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Sleep(context.Background()); err != nil {
			t.Fatalf("Sleep() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("3 sleeps took %v, want >= 60ms", elapsed)
	}
}

func TestPacer_ZeroDelay(t *testing.T) {
	p := NewPacer(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Sleep(context.Background()); err != nil {
			t.Fatalf("Sleep() error = %v", err)
		}
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("zero-delay pacer took %v", elapsed)
	}
}

func TestPacer_SleepCancelled(t *testing.T) {
	p := NewPacer(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Sleep(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep() did not return promptly after cancel: %v", elapsed)
	}
}

func TestPacer_WaitFirstCallImmediate(t *testing.T) {
	p := NewPacer(time.Minute)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait() took %v, want immediate", elapsed)
	}
}

func TestPacer_WaitSpacesConcurrentCallers(t *testing.T) {
	const (
		callers = 4
		delay   = 20 * time.Millisecond
	)
	p := NewPacer(delay)

	var (
		mu     sync.Mutex
		starts []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Wait(context.Background()); err != nil {
				t.Errorf("Wait() error = %v", err)
				return
			}
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	first, last := starts[0], starts[0]
	for _, s := range starts {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	// 4 slots need at least 3 intervals between first and last start
	if spread := last.Sub(first); spread < 3*delay-5*time.Millisecond {
		t.Errorf("start spread = %v, want >= %v", spread, 3*delay)
	}
}

func TestPacer_WaitCancelled(t *testing.T) {
	p := NewPacer(time.Minute)
	_ = p.Wait(context.Background()) // consume the free slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}
