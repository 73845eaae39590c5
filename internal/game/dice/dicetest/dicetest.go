// Package dicetest provides deterministic dice sources for tests.
package dicetest

import "sync"

// Fixed always rolls face on every die, clamped to the die size.
type Fixed int

// Intn returns face-1 clamped to [0, n).
func (f Fixed) Intn(n int) int {
	v := int(f) - 1
	if v >= n {
		return n - 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// Faces replays a scripted list of die faces in order. Once exhausted it keeps
// returning the last face. Faces larger than the die are clamped.
type Faces struct {
	mu    sync.Mutex
	faces []int
	next  int
}

// NewFaces returns a source rolling the given faces in order.
//
// Precondition: len(faces) > 0.
func NewFaces(faces ...int) *Faces {
	if len(faces) == 0 {
		panic("dicetest.NewFaces: precondition violated: no faces")
	}
	return &Faces{faces: faces}
}

// Intn returns the next scripted face minus one.
func (f *Faces) Intn(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.next
	if i >= len(f.faces) {
		i = len(f.faces) - 1
	} else {
		f.next++
	}
	return Fixed(f.faces[i]).Intn(n)
}

// Used returns how many scripted faces have been consumed.
func (f *Faces) Used() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}
