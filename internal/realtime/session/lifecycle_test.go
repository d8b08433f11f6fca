package session

import (
	"errors"
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle()

	if lc.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", lc.State())
	}
	if !lc.IsLive() {
		t.Error("expected IsLive to be true")
	}
}

func TestLifecycle_GracefulPath(t *testing.T) {
	lc := NewLifecycle()

	if err := lc.StartReading(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lc.StartReading(); !errors.Is(err, ErrNotIdle) {
		t.Errorf("expected ErrNotIdle on second start, got %v", err)
	}
	if !lc.Close() {
		t.Error("expected Close to succeed while reading")
	}
	if lc.State() != StateClosing {
		t.Errorf("expected StateClosing, got %v", lc.State())
	}
	if lc.Abort() {
		t.Error("Abort should not override a graceful close")
	}
	if err := lc.BeginCleanup(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lc.Terminate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StateTerminated {
		t.Errorf("expected StateTerminated, got %v", lc.State())
	}
}

func TestLifecycle_AbortBeforeReading(t *testing.T) {
	lc := NewLifecycle()

	if !lc.Abort() {
		t.Error("expected Abort to succeed from idle")
	}
	if lc.IsLive() {
		t.Error("aborted session should not be live")
	}
	if err := lc.StartReading(); !errors.Is(err, ErrNotIdle) {
		t.Errorf("expected ErrNotIdle, got %v", err)
	}
}

func TestLifecycle_CleanupOnlyOnce(t *testing.T) {
	lc := NewLifecycle()
	_ = lc.StartReading()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lc.BeginCleanup() == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one cleanup winner, got %d", wins)
	}
}

func TestLifecycle_TerminateRequiresCleanup(t *testing.T) {
	lc := NewLifecycle()
	if err := lc.Terminate(); !errors.Is(err, ErrCleanupNotActive) {
		t.Errorf("expected ErrCleanupNotActive, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateReading, "READING"},
		{StateClosing, "CLOSING"},
		{StateAborted, "ABORTED"},
		{StateCleanup, "CLEANUP"},
		{StateTerminated, "TERMINATED"},
		{State(42), "UNKNOWN(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
