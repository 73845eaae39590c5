package combat_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cory-johannsen/tactics/internal/game/combat"
)

func TestTurnTimer_Fires(t *testing.T) {
	var called atomic.Int32
	combat.NewTurnTimer(20*time.Millisecond, func() {
		called.Add(1)
	})
	time.Sleep(80 * time.Millisecond)
	if called.Load() != 1 {
		t.Fatalf("expected callback called once, got %d", called.Load())
	}
}

func TestTurnTimer_Stop_PreventsCallback(t *testing.T) {
	var called atomic.Int32
	tt := combat.NewTurnTimer(50*time.Millisecond, func() {
		called.Add(1)
	})
	tt.Stop()
	time.Sleep(80 * time.Millisecond)
	if called.Load() != 0 {
		t.Fatalf("expected callback not called, got %d", called.Load())
	}
}

func TestTurnTimer_Reset_ReplacesCallback(t *testing.T) {
	var first, second atomic.Int32
	tt := combat.NewTurnTimer(30*time.Millisecond, func() {
		first.Add(1)
	})
	tt.Reset(60*time.Millisecond, func() {
		second.Add(1)
	})
	time.Sleep(150 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatalf("expected replaced callback not called, got %d", first.Load())
	}
	if second.Load() != 1 {
		t.Fatalf("expected new callback called once, got %d", second.Load())
	}
}

func TestTurnTimer_StopIdempotent(t *testing.T) {
	tt := combat.NewTurnTimer(50*time.Millisecond, func() {})
	// Multiple Stop() calls must not panic
	tt.Stop()
	tt.Stop()
	tt.Stop()
}
