// Package timer provides a registry of named, restartable countdown timers.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Callback runs when a timer expires. The context is cancelled if the timer
// is stopped or replaced while the callback is still running.
type Callback func(ctx context.Context) error

type entry struct {
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
}

// Manager holds timers keyed by name. Keys are expected to be scoped per
// session (for example "idle:<streamId>") so sessions never share a timer.
//
// Each StartTimer arms exactly one expiry. Re-arming a key before it fires
// is equivalent to StopTimer followed by StartTimer.
type Manager struct {
	mu      sync.Mutex
	timers  map[string]*entry
	nextGen uint64
}

// NewManager creates an empty timer registry.
func NewManager() *Manager {
	return &Manager{timers: make(map[string]*entry)}
}

// StartTimer arms a timer under key, replacing any existing one.
func (m *Manager) StartTimer(key string, timeout time.Duration, fn Callback) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if old, ok := m.timers[key]; ok {
		old.timer.Stop()
		old.cancel()
	}
	m.nextGen++
	e := &entry{gen: m.nextGen, cancel: cancel}
	m.timers[key] = e
	e.timer = time.AfterFunc(timeout, func() { m.fire(ctx, key, e.gen, fn) })
	m.mu.Unlock()

	log.Debug().Str("key", key).Dur("timeout", timeout).Msg("Timer armed")
}

// StopTimer cancels the timer under key. No-op if absent.
func (m *Manager) StopTimer(key string) {
	m.mu.Lock()
	e, ok := m.timers[key]
	if ok {
		delete(m.timers, key)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	e.timer.Stop()
	e.cancel()
	log.Debug().Str("key", key).Msg("Timer stopped")
}

// Active reports whether a timer under key is armed and has not fired.
func (m *Manager) Active(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[key]
	return ok
}

// Len returns the number of armed timers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// StopAll cancels every armed timer. Used on process shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	timers := m.timers
	m.timers = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range timers {
		e.timer.Stop()
		e.cancel()
	}
}

func (m *Manager) fire(ctx context.Context, key string, gen uint64, fn Callback) {
	m.mu.Lock()
	e, ok := m.timers[key]
	if !ok || e.gen != gen {
		// Stopped or replaced after AfterFunc had already started this goroutine.
		m.mu.Unlock()
		return
	}
	delete(m.timers, key)
	m.mu.Unlock()

	defer e.cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("key", key).Interface("panic", r).Msg("Timer callback panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Timer callback failed")
	}
}
