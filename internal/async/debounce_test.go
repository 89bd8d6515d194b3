package async

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_SingleTrailingInvocation(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly one trailing call, got %d", got)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	d.Stop()

	time.Sleep(40 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("stopped debouncer still fired %d times", got)
	}
}

func TestDebouncer_RetriggerAfterFire(t *testing.T) {
	d := NewDebouncer(5 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	time.Sleep(30 * time.Millisecond)
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(30 * time.Millisecond)

	if got := calls.Load(); got != 2 {
		t.Errorf("expected two separated calls, got %d", got)
	}
}

func TestGate_SingleFlight(t *testing.T) {
	var g Gate

	if !g.TryAcquire() {
		t.Fatal("fresh gate should acquire")
	}
	if g.TryAcquire() {
		t.Fatal("held gate should refuse a second acquire")
	}
	g.Release()
	if !g.TryAcquire() {
		t.Fatal("released gate should acquire again")
	}
}
