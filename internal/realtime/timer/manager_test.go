package timer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func counter(n *atomic.Int32) Callback {
	return func(ctx context.Context) error {
		n.Add(1)
		return nil
	}
}

func TestManager_FiresExactlyOnce(t *testing.T) {
	m := NewManager()
	var fired atomic.Int32

	m.StartTimer("idle:a", 20*time.Millisecond, counter(&fired))
	if !m.Active("idle:a") {
		t.Error("expected timer to be active after start")
	}

	time.Sleep(100 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("expected 1 expiry, got %d", got)
	}
	if m.Active("idle:a") {
		t.Error("expected timer to be removed after firing")
	}
}

func TestManager_StopPreventsFire(t *testing.T) {
	m := NewManager()
	var fired atomic.Int32

	m.StartTimer("idle:a", 30*time.Millisecond, counter(&fired))
	m.StopTimer("idle:a")

	time.Sleep(80 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Errorf("expected no expiry after stop, got %d", got)
	}
}

func TestManager_StopMissingKeyIsNoop(t *testing.T) {
	m := NewManager()
	m.StopTimer("never-started")
	if m.Len() != 0 {
		t.Errorf("expected empty registry, got %d", m.Len())
	}
}

func TestManager_RestartReplaces(t *testing.T) {
	m := NewManager()
	var first, second atomic.Int32

	m.StartTimer("idle:a", 40*time.Millisecond, counter(&first))
	time.Sleep(10 * time.Millisecond)
	m.StartTimer("idle:a", 40*time.Millisecond, counter(&second))

	time.Sleep(120 * time.Millisecond)

	if got := first.Load(); got != 0 {
		t.Errorf("replaced timer fired %d times", got)
	}
	if got := second.Load(); got != 1 {
		t.Errorf("expected replacement to fire once, got %d", got)
	}
}

func TestManager_KeysAreIsolated(t *testing.T) {
	m := NewManager()
	var a, b atomic.Int32

	m.StartTimer("idle:a", 20*time.Millisecond, counter(&a))
	m.StartTimer("idle:b", 20*time.Millisecond, counter(&b))
	m.StopTimer("idle:a")

	time.Sleep(80 * time.Millisecond)

	if a.Load() != 0 {
		t.Error("stopped timer a fired")
	}
	if b.Load() != 1 {
		t.Errorf("expected timer b to fire once, got %d", b.Load())
	}
}

func TestManager_CallbackErrorAndPanicAreContained(t *testing.T) {
	m := NewManager()
	done := make(chan struct{}, 2)

	m.StartTimer("err", 5*time.Millisecond, func(ctx context.Context) error {
		done <- struct{}{}
		return errors.New("send failed")
	})
	m.StartTimer("panic", 5*time.Millisecond, func(ctx context.Context) error {
		done <- struct{}{}
		panic("boom")
	})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("callbacks did not run")
		}
	}
}

func TestManager_StopAll(t *testing.T) {
	m := NewManager()
	var fired atomic.Int32

	m.StartTimer("a", 20*time.Millisecond, counter(&fired))
	m.StartTimer("b", 20*time.Millisecond, counter(&fired))
	m.StopAll()

	time.Sleep(60 * time.Millisecond)

	if fired.Load() != 0 {
		t.Errorf("expected no expiries after StopAll, got %d", fired.Load())
	}
	if m.Len() != 0 {
		t.Errorf("expected empty registry, got %d", m.Len())
	}
}
