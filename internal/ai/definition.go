// Package ai runs scripted actor behavior: each spawned actor with an AI
// designation gets an Instance bound to a shared, read-only Definition, and
// the game loop advances all instances in small time slices. Decision logic
// lives in Lua handlers; this package owns suspension, event ordering, and
// hate/target state. Single-goroutine access only (game loop).
package ai

import lua "github.com/yuin/gopher-lua"

// State names every definition is expected to provide. Definitions may add
// more; transitions between them come from the world layer or from steps.
const (
	StateIdle  = "idle"
	StateAggro = "aggro"
)

// Definition is the shared, immutable handler set for one AI name. Published
// by the script registry; replaced wholesale on reload, never mutated.
type Definition struct {
	Name  string
	Hates []string // actor-class patterns this AI considers hostile

	// States maps a state name to its handler. A handler builds the step
	// plan for one cycle of that state.
	States map[string]*lua.LFunction

	// Events maps state name -> event kind -> handler. An event handler's
	// plan preempts the current state plan.
	Events map[string]map[EventKind]*lua.LFunction

	// Detection overrides; zero means use the engine defaults.
	AudioRadius   int
	VisualRadius  int
	VisualConeDeg float64
}

// StateHandler returns the handler for a state, or nil.
func (d *Definition) StateHandler(state string) *lua.LFunction {
	if d == nil {
		return nil
	}
	return d.States[state]
}

// EventHandler returns the handler for (state, kind), or nil.
func (d *Definition) EventHandler(state string, kind EventKind) *lua.LFunction {
	if d == nil {
		return nil
	}
	byKind := d.Events[state]
	if byKind == nil {
		return nil
	}
	return byKind[kind]
}

// EventKind identifies a combat/world event delivered to an instance.
type EventKind string

const (
	EventHit        EventKind = "hit"
	EventKnockDown  EventKind = "knock_down"
	EventDefenseHit EventKind = "defense_hit"
)

// Event is one queued occurrence for an instance. Events for the same
// instance are processed in delivery order, each handler running to
// completion before the next begins.
type Event struct {
	Kind   EventKind
	Source int32 // acting object ID, 0 if none
	Amount int   // damage or similar, event dependent
}
