package session

import (
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle state of a session.
type State int

const (
	// StateIdle - Session created, provider not yet streaming.
	StateIdle State = iota
	// StateReading - Client read loop is running.
	StateReading
	// StateClosing - Client sent a close frame.
	StateClosing
	// StateAborted - Read loop ended without a close handshake.
	StateAborted
	// StateCleanup - Teardown sequence is running.
	StateCleanup
	// StateTerminated - Every resource has been released.
	StateTerminated
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateReading:
		return "READING"
	case StateClosing:
		return "CLOSING"
	case StateAborted:
		return "ABORTED"
	case StateCleanup:
		return "CLEANUP"
	case StateTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid lifecycle transitions.
var (
	ErrNotIdle          = errors.New("session is not idle")
	ErrCleanupStarted   = errors.New("session cleanup already started")
	ErrCleanupNotActive = errors.New("session cleanup is not running")
)

// Lifecycle enforces the session state machine. Thread-safe.
//
// State transitions:
//
//	IDLE → READING → CLOSING ─┐
//	  │        │              ├→ CLEANUP → TERMINATED
//	  └────────┴──→ ABORTED ──┘
//
// Rules:
//   - StartReading is only valid from IDLE.
//   - Close and Abort only move a live session (IDLE or READING).
//   - BeginCleanup succeeds once; later calls return ErrCleanupStarted.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// StartReading transitions IDLE → READING.
func (l *Lifecycle) StartReading() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return ErrNotIdle
	}
	l.state = StateReading
	return nil
}

// Close records a graceful client close. Returns false if the session was
// no longer live.
func (l *Lifecycle) Close() bool {
	return l.end(StateClosing)
}

// Abort records an abnormal end. Returns false if the session was no longer
// live.
func (l *Lifecycle) Abort() bool {
	return l.end(StateAborted)
}

func (l *Lifecycle) end(to State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle && l.state != StateReading {
		return false
	}
	l.state = to
	return true
}

// BeginCleanup transitions to CLEANUP. A live session is treated as aborted.
func (l *Lifecycle) BeginCleanup() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateCleanup, StateTerminated:
		return ErrCleanupStarted
	default:
		l.state = StateCleanup
		return nil
	}
}

// Terminate transitions CLEANUP → TERMINATED.
func (l *Lifecycle) Terminate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateCleanup {
		return ErrCleanupNotActive
	}
	l.state = StateTerminated
	return nil
}

// IsLive reports whether the session is still streaming.
func (l *Lifecycle) IsLive() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateIdle || l.state == StateReading
}
