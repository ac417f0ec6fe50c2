package ai

import (
	"time"

	"go.uber.org/zap"

	"github.com/wyrmgate/server/internal/rng"
)

// Config carries engine-wide detection and pacing defaults. Definitions may
// override the detection values per AI.
type Config struct {
	Tick          time.Duration
	AudioRadius   int
	VisualRadius  int
	VisualConeDeg float64
	IdleWaitMinMS int
	IdleWaitMaxMS int
}

// noopWaitTicks is how long a faulted instance sits before the scheduler
// looks at it again.
const noopWaitTicks = 25

// Engine advances every attached instance one small slice per tick. No
// worker per actor: a wait is a scheduled resumption, not a blocked
// goroutine. All access happens on the game loop goroutine.
type Engine struct {
	log     *zap.Logger
	rng     *rng.RNG
	surface Surface
	invoker Invoker
	cfg     Config

	instances map[int32]*Instance
	order     []int32 // attach order; iteration is deterministic
}

func NewEngine(surface Surface, invoker Invoker, r *rng.RNG, cfg Config, log *zap.Logger) *Engine {
	if cfg.VisualConeDeg <= 0 {
		cfg.VisualConeDeg = 360
	}
	if cfg.IdleWaitMinMS <= 0 {
		cfg.IdleWaitMinMS = 2000
	}
	if cfg.IdleWaitMaxMS <= 0 {
		cfg.IdleWaitMaxMS = 6000
	}
	if cfg.IdleWaitMaxMS < cfg.IdleWaitMinMS {
		cfg.IdleWaitMaxMS = cfg.IdleWaitMinMS
	}
	return &Engine{
		log:       log,
		rng:       r,
		surface:   surface,
		invoker:   invoker,
		cfg:       cfg,
		instances: make(map[int32]*Instance),
	}
}

// SetInvoker installs the handler invoker. The registry is built after the
// engine (it attaches through it), so the invoker arrives in a second step.
func (e *Engine) SetInvoker(inv Invoker) {
	e.invoker = inv
}

// Attach binds a new instance of def to the actor, starting in idle.
// A previous instance for the same actor is detached first.
func (e *Engine) Attach(actorID int32, def *Definition) *Instance {
	if _, ok := e.instances[actorID]; ok {
		e.Detach(actorID)
	}
	in := newInstance(actorID, def)
	e.instances[actorID] = in
	e.order = append(e.order, actorID)
	return in
}

// Detach destroys the actor's instance, cancelling any suspended sequence
// and releasing skill-in-progress state.
func (e *Engine) Detach(actorID int32) {
	in, ok := e.instances[actorID]
	if !ok {
		return
	}
	if in.casting {
		e.surface.CancelSkill(actorID)
		in.casting = false
	}
	in.dropPlan()
	in.events = nil
	delete(e.instances, actorID)
}

// DetachAll removes every instance. Called by reload before the registry
// tears down the definitions these instances reference.
func (e *Engine) DetachAll() {
	for id := range e.instances {
		e.Detach(id)
	}
	e.order = e.order[:0]
}

// Count returns the number of attached instances.
func (e *Engine) Count() int {
	return len(e.instances)
}

// Instance returns the live instance for an actor, or nil.
func (e *Engine) Instance(actorID int32) *Instance {
	return e.instances[actorID]
}

// Deliver queues an event for the actor's instance. A hit also feeds the
// hate list and wakes an idle instance into aggro. Unknown actors are
// ignored (the actor may have been removed this tick).
func (e *Engine) Deliver(actorID int32, ev Event) {
	in, ok := e.instances[actorID]
	if !ok {
		return
	}
	if ev.Kind == EventHit && ev.Source != 0 {
		amount := ev.Amount
		if amount < 1 {
			amount = 1
		}
		in.hate.Add(ev.Source, amount)
		if in.State == StateIdle {
			e.transition(in, StateAggro)
		}
	}
	in.queueEvent(ev)
}

// Transition moves the actor's instance to a new state. The world layer
// drives data-driven transitions through this entry point (e.g. hostile
// sighted: idle -> aggro).
func (e *Engine) Transition(actorID int32, state string) {
	in, ok := e.instances[actorID]
	if !ok {
		return
	}
	e.transition(in, state)
}

func (e *Engine) transition(in *Instance, state string) {
	if in.State == state {
		return
	}
	if in.casting {
		e.surface.CancelSkill(in.ActorID)
		in.casting = false
	}
	in.State = state
	in.dropPlan()
}

// Advance runs one scheduling slice for every instance, in attach order.
func (e *Engine) Advance() {
	// Compact the order list of detached/removed ids first.
	live := e.order[:0]
	for _, id := range e.order {
		if _, ok := e.instances[id]; ok {
			live = append(live, id)
		}
	}
	e.order = live

	for _, id := range e.order {
		in, ok := e.instances[id]
		if !ok {
			continue // detached earlier this same tick
		}
		if e.surface.Dead(id) {
			continue
		}
		e.advanceInstance(in)
	}
}

func (e *Engine) advanceInstance(in *Instance) {
	if in.current != nil && in.current.done() {
		in.current = nil
	}

	// Event preemption: allowed at any suspension point of a state plan,
	// never in the middle of another event handler.
	if (in.current == nil || !in.current.isEvent) && len(in.events) > 0 {
		e.startEventPlan(in)
	}

	if in.casting {
		in.castTicks--
		if in.castTicks > 0 {
			return
		}
		in.casting = false
		e.surface.FinishSkill(in.ActorID, in.Target(), in.castSkill)
	}

	if in.waitTicks > 0 {
		in.waitTicks--
		if in.waitTicks > 0 {
			return
		}
	}

	if in.current != nil && in.current.done() {
		in.current = nil
	}

	if in.current == nil {
		if in.State == StateIdle && in.hate.Empty() {
			e.scanForHostiles(in)
		}
		if in.State == StateAggro {
			e.validateTarget(in)
		}
		if !e.buildStatePlan(in) {
			return
		}
	}

	e.runSteps(in)
}

// startEventPlan pops queued events until one has a handler for the current
// state, then preempts the running plan with the handler's steps. Events
// without a handler are consumed silently.
func (e *Engine) startEventPlan(in *Instance) {
	for {
		ev, ok := in.nextEvent()
		if !ok {
			return
		}
		fn := in.Def.EventHandler(in.State, ev.Kind)
		if fn == nil {
			continue
		}
		if in.casting {
			e.surface.CancelSkill(in.ActorID)
			in.casting = false
		}
		in.dropPlan()

		steps, err := e.invoker.Invoke(fn, e.handlerCtx(in, ev))
		if err != nil {
			e.log.Warn("ai event handler failed",
				zap.String("ai", in.Def.Name),
				zap.String("state", in.State),
				zap.String("event", string(ev.Kind)),
				zap.Error(err))
			continue
		}
		in.current = &plan{steps: steps, isEvent: true}
		return
	}
}

// buildStatePlan enters the current state handler from the top. Returns
// false when the instance is degraded to no-op for this slice.
func (e *Engine) buildStatePlan(in *Instance) bool {
	fn := in.Def.StateHandler(in.State)
	if fn == nil {
		if !in.faulted[in.State] {
			in.faulted[in.State] = true
			e.log.Warn("ai state has no handler",
				zap.String("ai", in.Def.Name), zap.String("state", in.State))
		}
		in.waitTicks = noopWaitTicks
		return false
	}
	steps, err := e.invoker.Invoke(fn, e.handlerCtx(in, Event{}))
	if err != nil {
		if !in.faulted[in.State] {
			in.faulted[in.State] = true
			e.log.Warn("ai state handler failed",
				zap.String("ai", in.Def.Name), zap.String("state", in.State), zap.Error(err))
		}
		in.waitTicks = noopWaitTicks
		return false
	}
	in.faulted[in.State] = false
	if len(steps) == 0 && in.State == StateIdle {
		// An idle handler that plans nothing is paced like one that
		// asked to wait; re-entering it every slice would hammer the VM.
		in.waitTicks = e.rng.WaitTicks(e.cfg.IdleWaitMinMS, e.cfg.IdleWaitMaxMS, e.cfg.Tick)
		return false
	}
	in.current = &plan{steps: steps}
	return true
}

func (e *Engine) handlerCtx(in *Instance, ev Event) HandlerContext {
	target := in.Target()
	dist := -1
	power := 0
	if target != 0 {
		dist = e.surface.Distance(in.ActorID, target)
		power = e.surface.PowerRating(in.ActorID, target)
	}
	return HandlerContext{
		ActorID:     in.ActorID,
		State:       in.State,
		Event:       ev.Kind,
		EventSrc:    ev.Source,
		TargetID:    target,
		TargetDist:  dist,
		TargetPower: power,
		Counters:    in.Counters,
	}
}

// runSteps executes the current plan until it suspends or runs out. The
// cursor is advanced past a suspending step before returning, so resumption
// continues from the exact point.
func (e *Engine) runSteps(in *Instance) {
	for {
		st := in.current.current()
		if st == nil {
			// Plan exhausted; the next cycle starts on the next slice.
			return
		}
		switch st.Kind {
		case StepSay:
			e.surface.Say(in.ActorID, st.Text)
			in.current.cursor++

		case StepCounter:
			in.Counters[st.Counter] += st.Delta
			in.current.cursor++

		case StepWait:
			in.waitTicks = e.rng.WaitTicks(st.Min, st.Max, e.cfg.Tick)
			in.current.cursor++
			return

		case StepSkill:
			ticks, err := e.surface.BeginSkill(in.ActorID, in.Target(), st.SkillID)
			if err != nil {
				e.log.Warn("ai skill rejected",
					zap.String("ai", in.Def.Name),
					zap.Int("skill", st.SkillID), zap.Error(err))
				in.current.cursor++
				continue
			}
			in.current.cursor++
			if ticks <= 0 {
				e.surface.FinishSkill(in.ActorID, in.Target(), st.SkillID)
				continue
			}
			in.casting = true
			in.castTicks = ticks
			in.castSkill = st.SkillID
			return

		case StepAttack:
			target := in.Target()
			if target == 0 || e.surface.Dead(target) {
				in.hate.Remove(target)
				in.current.cursor++
				continue
			}
			if e.surface.Attack(in.ActorID, target, st.Min, st.Max) {
				in.current.cursor++
				continue
			}
			return

		case StepFollow:
			target := in.Target()
			if target == 0 || e.surface.Dead(target) {
				in.hate.Remove(target)
				in.current.cursor++
				continue
			}
			if e.surface.Follow(in.ActorID, target, st.Min, st.Max) {
				in.current.cursor++
				continue
			}
			return

		case StepCancel:
			if in.casting {
				e.surface.CancelSkill(in.ActorID)
				in.casting = false
			}
			in.current.cursor++

		case StepWander:
			if e.surface.Wander(in.ActorID) {
				in.current.cursor++
				continue
			}
			return

		case StepLoseTarget:
			in.hate.Clear()
			in.current.cursor++

		case StepState:
			e.transition(in, st.Text)
			return

		default:
			in.current.cursor++
		}
	}
}

// scanForHostiles looks for a qualifying actor around an idle instance and,
// on detection, seeds hate and wakes it into aggro. Detection combines an
// omnidirectional audio radius with a visual radius gated by the forward
// cone; at 360 degrees the cone check is skipped.
func (e *Engine) scanForHostiles(in *Instance) {
	if len(in.Def.Hates) == 0 {
		return
	}
	audio := in.Def.AudioRadius
	if audio <= 0 {
		audio = e.cfg.AudioRadius
	}
	visual := in.Def.VisualRadius
	if visual <= 0 {
		visual = e.cfg.VisualRadius
	}
	cone := in.Def.VisualConeDeg
	if cone <= 0 {
		cone = e.cfg.VisualConeDeg
	}
	outer := audio
	if visual > outer {
		outer = visual
	}

	var best int32
	bestDist := -1
	for _, id := range e.surface.Candidates(in.ActorID, in.Def.Hates, outer) {
		if e.surface.Dead(id) {
			continue
		}
		dist := e.surface.Distance(in.ActorID, id)
		if dist < 0 {
			continue
		}
		heard := dist <= audio
		seen := dist <= visual && (cone >= 360 || e.surface.InCone(in.ActorID, id, cone))
		if !heard && !seen {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best = id
			bestDist = dist
		}
	}
	if best == 0 {
		return
	}
	in.hate.Add(best, 0)
	e.transition(in, StateAggro)
}

// validateTarget prunes dead or vanished targets from an aggro instance and
// falls back to idle when nothing hostile remains.
func (e *Engine) validateTarget(in *Instance) {
	for {
		target := in.hate.Top()
		if target == 0 {
			e.transition(in, StateIdle)
			return
		}
		if e.surface.Dead(target) || e.surface.Distance(in.ActorID, target) < 0 {
			in.hate.Remove(target)
			continue
		}
		return
	}
}
