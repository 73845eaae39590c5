package command

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// DefaultMaxEvents bounds one Process call so a command that keeps emitting
// events cannot loop forever.
const DefaultMaxEvents = 1024

// ErrCascadeLimit is reported when Process stops early at the event limit.
var ErrCascadeLimit = errors.New("command.Process: event cascade limit reached")

// Outcome is the accumulated result of one Process call.
type Outcome struct {
	FinalState sim.State
	// Events is the audit trail: every event processed, in processing order.
	Events   []sim.Event
	Effects  []Effect
	Errors   []error
	Prompts  []Prompt
	Deferred []Deferred
}

// ProcessorConfig tunes a Processor.
type ProcessorConfig struct {
	// MaxEvents caps the events one Process call will handle. Zero means DefaultMaxEvents.
	MaxEvents int
	// OnApplied, when set, observes every executed command's result.
	OnApplied func(e sim.Event, r Result)
}

// Processor applies events to a state one at a time in strict FIFO order.
// It holds no state between calls.
type Processor struct {
	ctx    *Context
	static sim.StaticData
	cfg    ProcessorConfig
}

// NewProcessor creates a Processor.
//
// Precondition: ctx must be non-nil.
func NewProcessor(ctx *Context, static sim.StaticData, cfg ProcessorConfig) *Processor {
	if ctx == nil {
		panic("command.NewProcessor: precondition violated: ctx must be non-nil")
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	return &Processor{ctx: ctx, static: static, cfg: cfg}
}

// Process pops events until the queue is empty. Events emitted by a command
// are appended to the end of the queue. A rejected command leaves the state
// unchanged, adds its error to the outcome and a Log explaining the failure
// to the trail. Process never panics on a command failure.
//
// Postcondition: Outcome.Events contains every input and emitted event in
// processing order.
func (p *Processor) Process(events []sim.Event, initial sim.State) Outcome {
	out := Outcome{FinalState: initial}
	queue := append([]sim.Event(nil), events...)
	handled := 0
	for len(queue) > 0 {
		if handled >= p.cfg.MaxEvents {
			out.Errors = append(out.Errors, fmt.Errorf("%w: %d events, %d still queued", ErrCascadeLimit, handled, len(queue)))
			p.ctx.Logger.Error("event cascade limit reached",
				zap.Int("handled", handled),
				zap.Int("queued", len(queue)),
			)
			break
		}
		e := queue[0]
		queue = queue[1:]
		handled++
		out.Events = append(out.Events, e)

		for _, cmd := range CommandsFor(e, out.FinalState, p.static) {
			r := p.apply(cmd, out.FinalState)
			if p.cfg.OnApplied != nil {
				p.cfg.OnApplied(e, r)
			}
			out.Errors = append(out.Errors, r.Errors...)
			if !r.Success {
				for _, err := range r.Errors {
					queue = append(queue, sim.Log{SourceID: e.Source(), Message: err.Error()})
				}
				continue
			}
			out.FinalState = r.State
			queue = append(queue, r.Events...)
			out.Effects = append(out.Effects, r.Effects...)
			out.Prompts = append(out.Prompts, r.Prompts...)
			for _, d := range r.Deferred {
				p.ctx.Logger.Info("deferred player vitals change",
					zap.String("token", d.TokenID),
					zap.String("combatant", d.CombatantID),
					zap.String("source", d.SourceID),
					zap.Int("damage", d.Damage),
					zap.Int("healing", d.Healing),
				)
			}
			out.Deferred = append(out.Deferred, r.Deferred...)
		}
	}
	return out
}

// apply executes cmd, downgrading a panic to a rejected result.
func (p *Processor) apply(cmd Command, s sim.State) (r Result) {
	defer func() {
		if rec := recover(); rec != nil {
			e := cmd.Event()
			p.ctx.Logger.Error("command panicked",
				zap.String("kind", string(e.Kind())),
				zap.String("source", e.Source()),
				zap.Any("panic", rec),
			)
			r = rejected(s, e, Invalid("internal error: %v", rec))
		}
	}()
	return cmd.Execute(s, p.ctx)
}
