package ai

import lua "github.com/yuin/gopher-lua"

// Surface is the actor capability surface the engine drives primitives
// through. Movement and combat outcomes are the world/combat layer's job;
// the engine never computes them. Follow and Attack are polled: the engine
// re-invokes them each tick until they report done, so completion arrives
// asynchronously from the collaborator's point of view.
type Surface interface {
	// Say broadcasts a chat line from the actor.
	Say(actorID int32, text string)

	// Follow moves the actor toward target until within [minRange, maxRange]
	// tiles. Reports true once satisfied (including immediately).
	Follow(actorID, targetID int32, minRange, maxRange int) bool

	// Attack strikes target for a damage sampled from [minDmg, maxDmg].
	// Reports true once the swing has resolved.
	Attack(actorID, targetID int32, minDmg, maxDmg int) bool

	// BeginSkill starts a cast and returns its duration in ticks.
	BeginSkill(actorID, targetID int32, skillID int) (castTicks int, err error)

	// FinishSkill resolves a cast begun earlier.
	FinishSkill(actorID, targetID int32, skillID int)

	// CancelSkill releases any skill-in-progress state for the actor.
	CancelSkill(actorID int32)

	// Wander takes one leashed idle move. Reports true when the move (or a
	// decision not to move) is complete.
	Wander(actorID int32) bool

	// Dead reports whether the actor is dead or gone from the world.
	Dead(actorID int32) bool

	// Distance returns the tile distance between two actors, or -1 when
	// either is absent.
	Distance(aID, bID int32) int

	// Candidates returns living actors whose class matches one of the
	// patterns, within radius tiles of the actor.
	Candidates(actorID int32, classes []string, radius int) []int32

	// InCone reports whether target sits inside the actor's forward visual
	// cone of the given angle. Callers skip the check at 360 degrees.
	InCone(actorID, targetID int32, coneDeg float64) bool

	// PowerRating compares two actors: positive when the first is stronger.
	PowerRating(actorID, otherID int32) int
}

// HandlerContext is the read snapshot handed to a Lua handler when a plan is
// built. Counters are instance-local and writable through StepCounter.
type HandlerContext struct {
	ActorID     int32
	State       string
	Event       EventKind // empty for state handlers
	EventSrc    int32
	TargetID    int32
	TargetDist  int
	TargetPower int // relative strength from Surface.PowerRating; 0 without a target
	Counters    map[string]int
}

// Invoker runs a compiled handler against a context and decodes the step
// plan it returns. Implemented by the script registry, which owns the VM.
type Invoker interface {
	Invoke(fn *lua.LFunction, ctx HandlerContext) ([]Step, error)
}
