// Package world holds the runtime actor state the behavior runtime drives.
// It implements the actor capability surface for the AI engine and the
// placement port for the script registry. Accessed only from the game loop
// goroutine — no locks.
package world

import "sync/atomic"

// actorIDCounter generates unique actor object IDs. Starts high to stay
// clear of persistent character IDs.
var actorIDCounter atomic.Int32

func init() {
	actorIDCounter.Store(200_000_000)
}

// NextActorID returns a unique object ID for an actor instance.
func NextActorID() int32 {
	return actorIDCounter.Add(1)
}

// Actor classes the hate patterns match against.
const (
	ClassPlayer  = "player"
	ClassPet     = "pet"
	ClassMonster = "monster"
	ClassNPC     = "npc"
)

// Actor is one live entity in the world.
type Actor struct {
	ID      int32
	Name    string
	Class   string
	MapID   int
	X, Y    int32
	Heading int16
	Level   int16
	HP      int32
	MaxHP   int32
	Dead    bool

	// AIName is the behavior designation; empty means no AI.
	AIName string

	// Scripted marks actors created by the script registry; reload removes
	// them all before rebuilding.
	Scripted   bool
	SpawnDefID int
	SpawnX     int32
	SpawnY     int32

	castingSkill int
	casting      bool
}
