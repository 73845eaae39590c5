package scenario

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cory-johannsen/tactics/internal/game/combat"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// Transcript is an EventSink that writes the narration of each batch as
// plain text, one line per Log event.
type Transcript struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTranscript returns a Transcript writing to w.
func NewTranscript(w io.Writer) *Transcript { return &Transcript{w: w} }

// Append writes rec's Log events.
func (t *Transcript) Append(_ context.Context, rec combat.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ev := range rec.Events {
		l, ok := ev.(sim.Log)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(t.w, "[round %d] %s\n", rec.Round, l.Message); err != nil {
			return fmt.Errorf("scenario.Transcript: %w", err)
		}
	}
	return nil
}
