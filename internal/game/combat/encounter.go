package combat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ai"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/spatial"
	"github.com/cory-johannsen/tactics/internal/game/tactics"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

// DefaultMaxRounds ends a stalemate.
const DefaultMaxRounds = 100

var (
	// ErrNotAccepting is returned when the encounter is not waiting for the caller.
	ErrNotAccepting = errors.New("encounter is not accepting actions")
	// ErrNotYourTurn is returned when someone other than the current actor submits.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrNoPrompt is returned for an answer to a prompt that is not pending.
	ErrNoPrompt = errors.New("no such prompt")
)

// Record is one processed batch, as handed to the EventSink.
type Record struct {
	EncounterID string
	Seq         int
	Round       int
	ActorID     string
	Events      []sim.Event
	At          time.Time
}

// EventSink receives every processed batch in order.
type EventSink interface {
	Append(ctx context.Context, rec Record) error
}

// Tee fans each record out to every sink in order, joining their errors.
func Tee(sinks ...EventSink) EventSink { return tee(sinks) }

type tee []EventSink

func (t tee) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range t {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PlayerVitals owns player hit points. The encounter forwards deferred
// damage and healing to it.
type PlayerVitals interface {
	// Apply applies d and reports whether the player is now down.
	Apply(ctx context.Context, d command.Deferred) (down bool, err error)
}

// Config wires an Encounter.
type Config struct {
	// ID of "" generates a UUID.
	ID         string
	Static     sim.StaticData
	Profiles   sim.Profiles
	Roller     *dice.Roller
	Conditions *condition.Registry
	Assessor   *threat.Assessor
	Dispatcher *ai.Dispatcher
	// Sink and Vitals are optional.
	Sink   EventSink
	Vitals PlayerVitals
	// TurnTimeout of zero lets players take as long as they like.
	TurnTimeout time.Duration
	MaxRounds   int
	MaxEvents   int
	CellSize    int
	Logger      *zap.Logger
	Now         func() time.Time
}

// Ticket tags an outstanding generative decision. A result whose ticket no
// longer matches the encounter's pending ticket is discarded.
type Ticket struct {
	ID          uuid.UUID
	EncounterID string
	Generation  uint64
	Round       int
	ActorID     string
}

// Snapshot is a read-only view for presentation.
type Snapshot struct {
	ID      string
	Phase   Phase
	Round   int
	Order   []string
	Current string
	State   sim.State
	Last    command.Outcome
	Prompts []command.Prompt
	Winner  string
	Reason  string
}

// Encounter runs one combat. All state is guarded by a single mutex; the only
// goroutine it starts is the generative AI call, whose result re-enters
// through deliver.
type Encounter struct {
	mu      sync.Mutex
	id      string
	cfg     Config
	logger  *zap.Logger
	machine *Machine
	proc    *command.Processor

	state   sim.State
	index   *spatial.Index
	order   []Initiative
	turn    int
	round   int
	prompts []command.Prompt
	last    command.Outcome
	seq     int

	// generation advances on every turn start and on end; tickets carry it.
	generation uint64
	pending    *Ticket
	cancelAI   context.CancelFunc
	timer      *TurnTimer

	ctx       context.Context
	stopWatch func() bool
	winner    string
	reason    string
	done      chan struct{}
	// changed is closed and replaced whenever the phase or prompts change.
	changed chan struct{}
	wg        sync.WaitGroup
}

// NewEncounter builds an Encounter in Idle.
//
// Precondition: cfg.Roller and cfg.Dispatcher must not be nil.
func NewEncounter(cfg Config) *Encounter {
	if cfg.Roller == nil || cfg.Dispatcher == nil {
		panic("combat.NewEncounter: Roller and Dispatcher must not be nil")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = tactics.DefaultCellSize
	}
	if cfg.Conditions == nil {
		cfg.Conditions = condition.Builtins()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger.With(zap.String("encounter", cfg.ID))
	cctx := command.NewContext(cfg.Roller, cfg.Profiles, cfg.Conditions, logger)
	if cfg.Assessor != nil {
		cctx.Assessor = cfg.Assessor
	}
	e := &Encounter{
		id:      cfg.ID,
		cfg:     cfg,
		logger:  logger,
		machine: NewMachine(cfg.Now),
		ctx:     context.Background(),
		done:    make(chan struct{}),
		changed: make(chan struct{}),
	}
	e.proc = command.NewProcessor(cctx, cfg.Static, command.ProcessorConfig{MaxEvents: cfg.MaxEvents, OnApplied: e.onApplied})
	return e
}

// ID returns the encounter's identifier.
func (e *Encounter) ID() string { return e.id }

// Done is closed when combat ends.
func (e *Encounter) Done() <-chan struct{} { return e.done }

// Changed returns a channel that is closed at the next phase transition or
// new prompt. Take it before reading a Snapshot so no change is missed.
func (e *Encounter) Changed() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changed
}

// Wait blocks until no AI call is outstanding.
func (e *Encounter) Wait() { e.wg.Wait() }

// Start loads initial, rolls initiative and runs turns until one needs a
// player or an outstanding AI decision. Cancelling ctx ends the encounter.
//
// Precondition: the encounter is Idle.
// Postcondition: on error the encounter has ended.
func (e *Encounter) Start(ctx context.Context, initial sim.State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.machine.To(EncounterLoading, "start"); err != nil {
		return fmt.Errorf("combat.Encounter.Start: %w", err)
	}
	if err := e.load(initial); err != nil {
		e.finish("load failed", "")
		return fmt.Errorf("combat.Encounter.Start: %w", err)
	}
	e.ctx = ctx
	e.stopWatch = context.AfterFunc(ctx, func() { e.End("cancelled") })

	e.to(InitiativeRolling, "")
	var entries []Initiative
	for _, t := range e.state.Tokens {
		if t.Kind == battlefield.KindObject || !e.state.Alive(t.ID) {
			continue
		}
		prof, _ := e.cfg.Profiles.Of(e.state, t.ID)
		entries = append(entries, Initiative{TokenID: t.ID, DexMod: prof.DexMod})
	}
	e.order = RollInitiative(e.cfg.Roller, entries)
	for i, in := range e.order {
		e.logger.Info("initiative", zap.Int("slot", i), zap.String("token", in.TokenID), zap.Int("roll", in.Roll), zap.Int("total", in.Total))
	}

	e.to(RoundStart, "")
	e.round = 1
	if e.victory() {
		return nil
	}
	e.to(TurnStart, e.current())
	e.run()
	return nil
}

// load checks that every combatant resolves to statistics and indexes it.
func (e *Encounter) load(s sim.State) error {
	if s.Map == nil {
		return errors.New("state has no map")
	}
	s, err := s.SortTokens()
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range s.Tokens {
		if t.Kind == battlefield.KindObject {
			continue
		}
		if _, ok := e.cfg.Profiles.Of(s, t.ID); !ok {
			errs = append(errs, fmt.Errorf("token %q has no statistics", t.ID))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	e.state = s
	e.index = tactics.IndexOf(s, e.cfg.CellSize)
	return nil
}

// Submit processes events declared by the current player. The turn stays
// open until EndTurn or the turn timer.
//
// Postcondition: returns ErrNotAccepting or ErrNotYourTurn without touching state.
func (e *Encounter) Submit(actorID string, events []sim.Event) (command.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.machine.Phase() != AwaitingPlayerAction {
		return command.Outcome{}, fmt.Errorf("combat.Encounter.Submit: %w (phase %s)", ErrNotAccepting, e.machine.Phase())
	}
	if actorID != e.current() {
		return command.Outcome{}, fmt.Errorf("combat.Encounter.Submit: %w: %q", ErrNotYourTurn, actorID)
	}
	for _, ev := range events {
		if ev.Source() != actorID {
			return command.Outcome{}, fmt.Errorf("combat.Encounter.Submit: %w: %s event from %q", ErrNotYourTurn, ev.Kind(), ev.Source())
		}
	}
	e.to(ProcessingPlayerAction, actorID)
	out := e.process(actorID, events)
	if e.victory() {
		return out, nil
	}
	e.to(AwaitingPlayerAction, actorID)
	e.armTimer()
	return out, nil
}

// EndTurn closes the current player's turn and runs on to the next one that
// needs input.
func (e *Encounter) EndTurn(actorID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.machine.Phase() != AwaitingPlayerAction {
		return fmt.Errorf("combat.Encounter.EndTurn: %w (phase %s)", ErrNotAccepting, e.machine.Phase())
	}
	if actorID != e.current() {
		return fmt.Errorf("combat.Encounter.EndTurn: %w: %q", ErrNotYourTurn, actorID)
	}
	e.stopTimer()
	e.closeTurn(actorID, "ended by player")
	e.advance()
	e.run()
	return nil
}

// AnswerPrompt resolves a pending saving throw with the player's total.
func (e *Encounter) AnswerPrompt(ans sim.ResolveSave) (command.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.machine.Phase(); p.Terminal() || p < RoundStart {
		return command.Outcome{}, fmt.Errorf("combat.Encounter.AnswerPrompt: %w (phase %s)", ErrNotAccepting, e.machine.Phase())
	}
	i := slices.IndexFunc(e.prompts, func(p command.Prompt) bool {
		return p.TargetID == ans.SourceID && p.CasterID == ans.CasterID && p.AbilityID == ans.AbilityID
	})
	if i < 0 {
		return command.Outcome{}, fmt.Errorf("combat.Encounter.AnswerPrompt: %w for %q", ErrNoPrompt, ans.SourceID)
	}
	e.prompts = slices.Delete(e.prompts, i, i+1)
	out := e.process(ans.SourceID, []sim.Event{ans})
	e.victory()
	return out, nil
}

// End terminates combat from any phase. An outstanding AI call is cancelled
// and its result will be discarded.
func (e *Encounter) End(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.machine.Phase().Terminal() {
		return
	}
	e.finish(reason, "")
}

// Snapshot returns a read-only view of the encounter.
func (e *Encounter) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	order := make([]string, 0, len(e.order))
	for _, in := range e.order {
		order = append(order, in.TokenID)
	}
	return Snapshot{
		ID:      e.id,
		Phase:   e.machine.Phase(),
		Round:   e.round,
		Order:   order,
		Current: e.current(),
		State:   e.state,
		Last:    e.last,
		Prompts: slices.Clone(e.prompts),
		Winner:  e.winner,
		Reason:  e.reason,
	}
}

// Transitions returns the phase log.
func (e *Encounter) Transitions() []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Log()
}

// Pending returns the outstanding AI ticket, if any.
func (e *Encounter) Pending() (Ticket, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return Ticket{}, false
	}
	return *e.pending, true
}

// The methods below require e.mu.

func (e *Encounter) to(p Phase, reason string) {
	if err := e.machine.To(p, reason); err != nil {
		panic(err)
	}
	e.notify()
}

func (e *Encounter) notify() {
	close(e.changed)
	e.changed = make(chan struct{})
}

func (e *Encounter) current() string {
	if e.turn < 0 || e.turn >= len(e.order) {
		return ""
	}
	return e.order[e.turn].TokenID
}

// run starts turns until one waits for input or combat ends.
func (e *Encounter) run() {
	for e.machine.Phase() == TurnStart {
		if e.beginTurn() {
			return
		}
		e.advance()
	}
}

// advance moves from TurnEnd to the next TurnStart, crossing into a new
// round when the order wraps. It ends combat on victory or the round limit.
func (e *Encounter) advance() {
	if e.victory() {
		return
	}
	e.turn++
	if e.turn >= len(e.order) {
		e.to(RoundStart, "")
		e.round++
		e.turn = 0
		if e.round > e.cfg.MaxRounds {
			e.finish("round limit reached", "")
			return
		}
	}
	e.to(TurnStart, e.current())
}

// beginTurn opens the current actor's turn. It returns true when the turn is
// waiting for a player or a generative decision.
func (e *Encounter) beginTurn() bool {
	e.generation++
	actor := e.current()
	if !e.state.Alive(actor) {
		e.to(TurnEnd, "skipped")
		return false
	}
	e.process(actor, []sim.Event{sim.StartTurn{SourceID: actor, Round: e.round}})
	tok, _ := e.state.Token(actor)
	if tok.IsPlayer() {
		e.to(AwaitingPlayerAction, actor)
		e.armTimer()
		return true
	}

	e.to(AiProcessing, actor)
	req := ai.Request{State: e.state, ActorID: actor, Round: e.round, Index: e.index}
	d := e.cfg.Dispatcher
	partial, ok := d.Local(e.ctx, req)
	if ok {
		e.act(actor, partial)
		e.closeTurn(actor, "local decision")
		return false
	}
	if !d.HasFallback() {
		e.act(actor, d.NoAction(req).WithSquadMark(partial).Intent)
		e.closeTurn(actor, "no decision")
		return false
	}

	t := Ticket{ID: uuid.New(), EncounterID: e.id, Generation: e.generation, Round: e.round, ActorID: actor}
	ctx, cancel := context.WithCancel(e.ctx)
	e.pending, e.cancelAI = &t, cancel
	req.Index = nil
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(t, d.Fallback(ctx, req).WithSquadMark(partial))
	}()
	return true
}

// deliver applies a generative decision if its ticket is still current.
func (e *Encounter) deliver(t Ticket, out ai.Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || *e.pending != t || e.machine.Phase() != AiProcessing {
		e.logger.Info("discarding stale ai decision",
			zap.String("ticket", t.ID.String()),
			zap.String("actor", t.ActorID),
			zap.Int("round", t.Round),
			zap.Uint64("generation", t.Generation))
		return
	}
	e.cancelAI()
	e.pending, e.cancelAI = nil, nil
	e.act(t.ActorID, out.Intent)
	e.closeTurn(t.ActorID, string(out.Source)+" decision")
	e.advance()
	e.run()
}

// act turns an intent into events and processes them.
func (e *Encounter) act(actor string, in tactics.Intent) {
	prof, _ := e.cfg.Profiles.Of(e.state, actor)
	events, err := in.Events(actor, prof)
	if err != nil {
		e.logger.Warn("intent partly unusable", zap.String("actor", actor), zap.Error(err))
	}
	if len(events) > 0 {
		e.process(actor, events)
	}
}

func (e *Encounter) closeTurn(actor, reason string) {
	if e.state.Alive(actor) {
		e.process(actor, []sim.Event{sim.EndTurn{SourceID: actor}})
	}
	e.to(TurnEnd, reason)
}

// process runs events through the pipeline, forwards player vitals, removes
// downed players and records the batch.
func (e *Encounter) process(actor string, events []sim.Event) command.Outcome {
	out := e.proc.Process(events, e.state)
	for _, err := range out.Errors {
		e.logger.Debug("command rejected", zap.String("actor", actor), zap.Error(err))
	}
	e.state = out.FinalState
	if removals := e.forward(out.Deferred); len(removals) > 0 {
		more := e.proc.Process(removals, e.state)
		e.state = more.FinalState
		out = merge(out, more)
	}
	if len(out.Prompts) > 0 {
		e.prompts = append(e.prompts, out.Prompts...)
		e.notify()
	}
	e.last = out
	e.seq++
	if e.cfg.Sink != nil {
		rec := Record{EncounterID: e.id, Seq: e.seq, Round: e.round, ActorID: actor, Events: out.Events, At: e.cfg.Now()}
		if err := e.cfg.Sink.Append(e.ctx, rec); err != nil {
			e.logger.Error("event sink append failed", zap.Int("seq", e.seq), zap.Error(err))
		}
	}
	return out
}

// forward hands deferred hit point changes to PlayerVitals and returns
// removal events for players it reports down.
func (e *Encounter) forward(deferred []command.Deferred) []sim.Event {
	if e.cfg.Vitals == nil {
		return nil
	}
	var removals []sim.Event
	for _, d := range deferred {
		down, err := e.cfg.Vitals.Apply(e.ctx, d)
		if err != nil {
			e.logger.Error("player vitals update failed", zap.String("combatant", d.CombatantID), zap.Error(err))
			continue
		}
		if down {
			removals = append(removals, sim.RemoveCombatant{SourceID: d.SourceID, TargetID: d.TokenID, Reason: "defeated"})
		}
	}
	return removals
}

func merge(a, b command.Outcome) command.Outcome {
	a.FinalState = b.FinalState
	a.Events = append(a.Events, b.Events...)
	a.Effects = append(a.Effects, b.Effects...)
	a.Errors = append(a.Errors, b.Errors...)
	a.Prompts = append(a.Prompts, b.Prompts...)
	a.Deferred = append(a.Deferred, b.Deferred...)
	return a
}

// onApplied keeps the spatial index in step with each applied command.
func (e *Encounter) onApplied(ev sim.Event, r command.Result) {
	if !r.Success || e.index == nil {
		return
	}
	if rc, ok := ev.(sim.RemoveCombatant); ok {
		e.index.Remove(rc.TargetID)
	}
	for _, t := range r.State.Tokens {
		if t.Kind == battlefield.KindObject {
			continue
		}
		alive, indexed := r.State.Alive(t.ID), e.index.Contains(t.ID)
		switch {
		case !alive && indexed:
			e.index.Remove(t.ID)
		case alive && !indexed:
			e.index.Add(t.ID, t.Position)
		case alive:
			if p, _ := e.index.PositionOf(t.ID); p != t.Position {
				e.index.Update(t.ID, t.Position)
			}
		}
	}
}

// victory ends combat when at most one team is standing.
func (e *Encounter) victory() bool {
	teams := e.state.Teams()
	if len(teams) > 1 {
		return false
	}
	winner := ""
	if len(teams) == 1 {
		winner = teams[0]
	}
	e.finish("victory", winner)
	return true
}

func (e *Encounter) armTimer() {
	if e.cfg.TurnTimeout <= 0 {
		return
	}
	gen := e.generation
	fire := func() { e.timeout(gen) }
	if e.timer == nil {
		e.timer = NewTurnTimer(e.cfg.TurnTimeout, fire)
		return
	}
	e.timer.Reset(e.cfg.TurnTimeout, fire)
}

func (e *Encounter) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
	}
}

// timeout ends an idle player turn unless the turn has moved on.
func (e *Encounter) timeout(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen || e.machine.Phase() != AwaitingPlayerAction {
		return
	}
	actor := e.current()
	e.logger.Info("turn timed out", zap.String("actor", actor), zap.Int("round", e.round))
	e.closeTurn(actor, "timed out")
	e.advance()
	e.run()
}

// finish moves to CombatEnded and clears turn bookkeeping.
func (e *Encounter) finish(reason, winner string) {
	e.stopTimer()
	if e.cancelAI != nil {
		e.cancelAI()
	}
	e.pending, e.cancelAI = nil, nil
	e.generation++
	e.order, e.turn, e.prompts = nil, 0, nil
	e.reason, e.winner = reason, winner
	e.to(CombatEnded, reason)
	if e.stopWatch != nil {
		e.stopWatch()
	}
	close(e.done)
	e.logger.Info("combat ended", zap.String("reason", reason), zap.String("winner", winner), zap.Int("round", e.round))
}
