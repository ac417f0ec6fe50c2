package world

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wyrmgate/server/internal/ai"
	"github.com/wyrmgate/server/internal/rng"
	"github.com/wyrmgate/server/internal/scripting"
)

// EventSink receives combat events for an actor, normally the engine's
// Deliver. Set once at wiring time.
type EventSink func(actorID int32, ev ai.Event)

// RemoveHook runs whenever an actor leaves the world, normally the engine's
// Detach, so no instance outlives its actor.
type RemoveHook func(actorID int32)

// HookRunner fires a script hook chain for an actor, normally the
// registry's RunActorHooks.
type HookRunner func(owner, point string, actorID int32)

// DeathSink receives the spawn definition id of a spawned actor that just
// died, so a replacement can be scheduled after its respawn delay.
type DeathSink func(spawnDefID int)

// State is the in-memory world: every live actor plus the wiring back into
// the behavior runtime.
type State struct {
	log   *zap.Logger
	rng   *rng.RNG
	leash int

	actors map[int32]*Actor
	order  []int32

	eventSink  EventSink
	removeHook RemoveHook
	hookRunner HookRunner
	deathSink  DeathSink
}

func NewState(r *rng.RNG, leash int, log *zap.Logger) *State {
	if leash <= 0 {
		leash = 12
	}
	return &State{
		log:    log,
		rng:    r,
		leash:  leash,
		actors: make(map[int32]*Actor),
	}
}

// SetEventSink wires combat event delivery into the AI engine.
func (s *State) SetEventSink(sink EventSink) { s.eventSink = sink }

// SetRemoveHook wires actor removal into AI instance teardown.
func (s *State) SetRemoveHook(hook RemoveHook) { s.removeHook = hook }

// SetHookRunner wires script hook invocation (on_death and friends).
func (s *State) SetHookRunner(run HookRunner) { s.hookRunner = run }

// SetDeathSink wires spawned-actor deaths into respawn scheduling.
func (s *State) SetDeathSink(sink DeathSink) { s.deathSink = sink }

// Add inserts an already-built actor (players, test fixtures).
func (s *State) Add(a *Actor) {
	if a.ID == 0 {
		a.ID = NextActorID()
	}
	if _, exists := s.actors[a.ID]; !exists {
		s.order = append(s.order, a.ID)
	}
	s.actors[a.ID] = a
}

// Get returns an actor by id, or nil.
func (s *State) Get(id int32) *Actor {
	return s.actors[id]
}

// Remove deletes an actor and tears down its AI instance.
func (s *State) Remove(id int32) {
	if _, ok := s.actors[id]; !ok {
		return
	}
	if s.removeHook != nil {
		s.removeHook(id)
	}
	delete(s.actors, id)
}

// Count returns the number of live actors.
func (s *State) Count() int {
	return len(s.actors)
}

// Actors returns live actors in insertion order.
func (s *State) Actors() []*Actor {
	out := make([]*Actor, 0, len(s.actors))
	live := s.order[:0]
	for _, id := range s.order {
		if a, ok := s.actors[id]; ok {
			live = append(live, id)
			out = append(out, a)
		}
	}
	s.order = live
	return out
}

// Place creates one scripted actor for the registry. Implements
// scripting.WorldPort. Out-of-bounds placement is the fatal failure case:
// the registry stops the batch but keeps prior placements.
func (s *State) Place(p scripting.SpawnPlacement) (int32, error) {
	if p.X < 0 || p.Y < 0 {
		return 0, fmt.Errorf("placement out of bounds: (%d,%d) map %d", p.X, p.Y, p.MapID)
	}
	a := &Actor{
		ID:         NextActorID(),
		Name:       p.Name,
		Class:      p.Class,
		MapID:      p.MapID,
		X:          p.X,
		Y:          p.Y,
		Level:      1,
		HP:         100,
		MaxHP:      100,
		AIName:     p.AI,
		Scripted:   true,
		SpawnDefID: p.SpawnDefID,
		SpawnX:     p.X,
		SpawnY:     p.Y,
	}
	if a.Class == "" {
		a.Class = ClassMonster
	}
	s.Add(a)
	return a.ID, nil
}

// RemoveScripted removes every registry-created actor. Implements
// scripting.WorldPort.
func (s *State) RemoveScripted() int {
	removed := 0
	for id, a := range s.actors {
		if a.Scripted {
			s.Remove(id)
			removed++
		}
	}
	return removed
}

func chebyshev(x1, y1, x2, y2 int32) int {
	dx := x1 - x2
	dy := y1 - y2
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dy > dx {
		return int(dy)
	}
	return int(dx)
}
