package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wyrmgate/server/internal/ai"
	"github.com/wyrmgate/server/internal/rng"
	"github.com/wyrmgate/server/internal/scripting"
)

func newTestState() *State {
	return NewState(rng.New(1), 12, zap.NewNop())
}

func placeActor(t *testing.T, s *State, x, y int32) *Actor {
	t.Helper()
	id, err := s.Place(scripting.SpawnPlacement{Name: "mob", Class: ClassMonster, X: x, Y: y})
	require.NoError(t, err)
	return s.Get(id)
}

func TestPlaceDefaults(t *testing.T) {
	s := newTestState()
	id, err := s.Place(scripting.SpawnPlacement{Name: "rat", X: 5, Y: 5, SpawnDefID: 9})
	require.NoError(t, err)

	a := s.Get(id)
	require.NotNil(t, a)
	assert.Equal(t, ClassMonster, a.Class, "class defaults to monster")
	assert.True(t, a.Scripted)
	assert.Equal(t, int32(5), a.SpawnX)
	assert.Equal(t, 9, a.SpawnDefID)
	assert.Equal(t, int32(100), a.HP)
}

func TestPlaceOutOfBounds(t *testing.T) {
	s := newTestState()
	_, err := s.Place(scripting.SpawnPlacement{Name: "rat", X: -1, Y: 5})
	assert.Error(t, err)
}

func TestRemoveScriptedKeepsPlayers(t *testing.T) {
	s := newTestState()
	placeActor(t, s, 1, 1)
	placeActor(t, s, 2, 2)
	player := &Actor{ID: NextActorID(), Name: "hero", Class: ClassPlayer, X: 3, Y: 3, HP: 100}
	s.Add(player)

	removed := s.RemoveScripted()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Count())
	assert.NotNil(t, s.Get(player.ID))
}

func TestRemoveCallsHook(t *testing.T) {
	s := newTestState()
	var detached []int32
	s.SetRemoveHook(func(id int32) { detached = append(detached, id) })

	a := placeActor(t, s, 1, 1)
	s.Remove(a.ID)
	assert.Equal(t, []int32{a.ID}, detached)
}

func TestDistanceAndAbsent(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 0, 0)
	b := placeActor(t, s, 3, 4)

	assert.Equal(t, 4, s.Distance(a.ID, b.ID), "chebyshev metric")
	assert.Equal(t, -1, s.Distance(a.ID, 999))

	b.MapID = 7
	assert.Equal(t, -1, s.Distance(a.ID, b.ID), "different maps never in range")
}

func TestFollowStepsTowardTarget(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 0, 0)
	b := placeActor(t, s, 5, 0)

	done := s.Follow(a.ID, b.ID, 1, 1)
	assert.False(t, done)
	assert.Equal(t, int32(1), a.X, "one tile per call")

	for i := 0; i < 10 && !done; i++ {
		done = s.Follow(a.ID, b.ID, 1, 1)
	}
	assert.True(t, done)
	assert.Equal(t, 1, s.Distance(a.ID, b.ID))
}

func TestFollowAbsentTargetCompletes(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 0, 0)
	assert.True(t, s.Follow(a.ID, 999, 1, 1))
}

func TestAttackDamagesAndDeliversHit(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 0, 0)
	b := placeActor(t, s, 1, 0)

	var delivered []ai.Event
	s.SetEventSink(func(id int32, ev ai.Event) {
		require.Equal(t, b.ID, id)
		delivered = append(delivered, ev)
	})

	done := s.Attack(a.ID, b.ID, 5, 10)
	assert.True(t, done, "a swing resolves in one call")
	assert.Less(t, b.HP, int32(100))
	require.Len(t, delivered, 1)
	assert.Equal(t, ai.EventHit, delivered[0].Kind)
	assert.Equal(t, a.ID, delivered[0].Source)
	assert.Equal(t, int(int32(100)-b.HP), delivered[0].Amount)
}

func TestAttackKillsAtZero(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 0, 0)
	b := placeActor(t, s, 1, 0)
	b.HP = 1

	var events int
	s.SetEventSink(func(int32, ai.Event) { events++ })
	var deaths []string
	s.SetHookRunner(func(owner, point string, id int32) {
		deaths = append(deaths, owner+"/"+point)
		assert.Equal(t, b.ID, id)
	})

	s.Attack(a.ID, b.ID, 5, 10)
	assert.True(t, b.Dead)
	assert.Equal(t, int32(0), b.HP)
	assert.Zero(t, events, "no hit event for a killing blow")
	assert.Equal(t, []string{"mob/on_death"}, deaths)
}

func TestAttackDeathFeedsRespawnSink(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 0, 0)
	id, err := s.Place(scripting.SpawnPlacement{Name: "rat", X: 1, Y: 0, SpawnDefID: 7})
	require.NoError(t, err)
	s.Get(id).HP = 1

	var scheduled []int
	s.SetDeathSink(func(defID int) { scheduled = append(scheduled, defID) })
	var hooks []string
	s.SetHookRunner(func(owner, point string, _ int32) { hooks = append(hooks, owner+"/"+point) })
	var removed []int32
	s.SetRemoveHook(func(id int32) { removed = append(removed, id) })

	s.Attack(a.ID, id, 5, 10)

	assert.Equal(t, []int{7}, scheduled)
	assert.Equal(t, []string{"rat/on_death"}, hooks, "death hooks run before the corpse goes")
	assert.Equal(t, []int32{id}, removed)
	assert.Nil(t, s.Get(id), "spawned corpse is removed")
	assert.NotNil(t, s.Get(a.ID))
}

func TestWanderStaysLeashed(t *testing.T) {
	s := NewState(rng.New(1), 3, zap.NewNop())
	a := placeActor(t, s, 50, 50)

	for i := 0; i < 200; i++ {
		s.Wander(a.ID)
		d := chebyshev(a.X, a.Y, a.SpawnX, a.SpawnY)
		assert.LessOrEqual(t, d, 4, "one step past the leash at most, then pulled back")
	}
}

func TestCandidatesByClassAndRadius(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 10, 10)
	near := &Actor{ID: NextActorID(), Class: ClassPlayer, X: 12, Y: 10, HP: 100}
	far := &Actor{ID: NextActorID(), Class: ClassPlayer, X: 30, Y: 10, HP: 100}
	deadOne := &Actor{ID: NextActorID(), Class: ClassPlayer, X: 11, Y: 10, HP: 0, Dead: true}
	mob := &Actor{ID: NextActorID(), Class: ClassMonster, X: 11, Y: 11, HP: 100}
	s.Add(near)
	s.Add(far)
	s.Add(deadOne)
	s.Add(mob)

	got := s.Candidates(a.ID, []string{"players"}, 8)
	assert.Equal(t, []int32{near.ID}, got)
}

func TestInCone(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 10, 10)
	east := placeActor(t, s, 14, 10)
	west := placeActor(t, s, 6, 10)
	a.Heading = 2 // facing east

	assert.True(t, s.InCone(a.ID, east.ID, 120))
	assert.False(t, s.InCone(a.ID, west.ID, 120))
	assert.True(t, s.InCone(a.ID, west.ID, 360), "full circle skips the check")
}

func TestInConeDiagonalHeading(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 10, 10)
	ahead := placeActor(t, s, 13, 7)
	behind := placeActor(t, s, 7, 13)
	a.Heading = 1 // facing northeast

	assert.True(t, s.InCone(a.ID, ahead.ID, 120), "target directly along a diagonal heading")
	assert.False(t, s.InCone(a.ID, behind.ID, 120))

	side := placeActor(t, s, 13, 10) // 45 degrees off the heading
	assert.True(t, s.InCone(a.ID, side.ID, 120))
	assert.False(t, s.InCone(a.ID, side.ID, 60))
}

func TestSkillCastLifecycle(t *testing.T) {
	s := newTestState()
	a := placeActor(t, s, 0, 0)
	b := placeActor(t, s, 2, 0)

	ticks, err := s.BeginSkill(a.ID, b.ID, 7)
	require.NoError(t, err)
	assert.Positive(t, ticks)

	_, err = s.BeginSkill(a.ID, b.ID, 8)
	assert.Error(t, err, "one cast at a time")

	s.FinishSkill(a.ID, b.ID, 7)
	_, err = s.BeginSkill(a.ID, b.ID, 8)
	assert.NoError(t, err)

	s.CancelSkill(a.ID)
	_, err = s.BeginSkill(a.ID, b.ID, 9)
	assert.NoError(t, err)
}
