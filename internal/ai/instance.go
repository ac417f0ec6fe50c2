package ai

// Instance is one actor's live execution of a Definition. Exactly one
// goroutine (the game loop) ever advances it; events queue until the
// scheduler reaches the instance.
type Instance struct {
	ActorID int32
	Def     *Definition

	// State is the current state-machine state (StateIdle, StateAggro, ...).
	State string

	// Counters are instance-local tallies readable and writable by handlers.
	Counters map[string]int

	hate HateList

	current   *plan
	waitTicks int
	castTicks int
	castSkill int
	casting   bool

	events []Event

	// faulted marks a state whose handler is missing or errored; the
	// instance idles in place instead of retrying every tick.
	faulted map[string]bool
}

func newInstance(actorID int32, def *Definition) *Instance {
	return &Instance{
		ActorID:  actorID,
		Def:      def,
		State:    StateIdle,
		Counters: make(map[string]int),
		faulted:  make(map[string]bool),
	}
}

// Target returns the instance's current preferred target, 0 when none.
func (in *Instance) Target() int32 {
	return in.hate.Top()
}

// Hate exposes the hate list for the world layer (e.g. drop aggro on zone
// change).
func (in *Instance) Hate() *HateList {
	return &in.hate
}

// suspended reports whether the instance is blocked on a wait or a cast.
func (in *Instance) suspended() bool {
	return in.waitTicks > 0 || in.casting
}

// dropPlan abandons the current plan and any suspension it held. A
// preempted state handler restarts from the top on the next cycle.
func (in *Instance) dropPlan() {
	in.current = nil
	in.waitTicks = 0
}

// queueEvent appends to the pending event queue, preserving delivery order.
func (in *Instance) queueEvent(ev Event) {
	in.events = append(in.events, ev)
}

// nextEvent pops the oldest pending event.
func (in *Instance) nextEvent() (Event, bool) {
	if len(in.events) == 0 {
		return Event{}, false
	}
	ev := in.events[0]
	in.events = in.events[1:]
	return ev, true
}
