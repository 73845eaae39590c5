package combat

import (
	"sync"
	"time"
)

// TurnTimer fires a callback after a configurable duration unless stopped.
// It ends a player's turn when they take too long. It is safe for concurrent use.
type TurnTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewTurnTimer creates and starts a timer that calls onFire after duration.
// onFire is called in a separate goroutine.
//
// Precondition: duration > 0; onFire must not be nil.
// Postcondition: Returns a running TurnTimer; onFire will be called unless Stop is called first.
func NewTurnTimer(duration time.Duration, onFire func()) *TurnTimer {
	tt := &TurnTimer{}
	tt.timer = time.AfterFunc(duration, tt.guard(onFire))
	return tt
}

// guard wraps onFire so a stop that races with expiry suppresses it.
func (tt *TurnTimer) guard(onFire func()) func() {
	return func() {
		tt.mu.Lock()
		stopped := tt.stopped
		tt.mu.Unlock()
		if !stopped {
			onFire()
		}
	}
}

// Reset cancels the current timer and starts a new one with the provided duration and callback.
//
// Precondition: duration > 0; onFire must not be nil.
// Postcondition: onFire will be called after duration from now unless Stop is called first.
func (tt *TurnTimer) Reset(duration time.Duration, onFire func()) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.stopped = false
	tt.timer.Stop()
	tt.timer = time.AfterFunc(duration, tt.guard(onFire))
}

// Stop prevents the callback from firing. Safe to call multiple times.
//
// Postcondition: onFire will not be called after Stop returns, unless it had already started.
func (tt *TurnTimer) Stop() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.stopped = true
	tt.timer.Stop()
}
