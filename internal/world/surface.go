package world

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wyrmgate/server/internal/ai"
)

// State implements ai.Surface: the engine drives every behavior primitive
// through these methods and never computes movement or combat itself.

// defaultCastTicks paces a skill cast when no skill table entry overrides
// it (combat math lives outside this runtime).
const defaultCastTicks = 3

var headingDX = [8]int32{0, 1, 1, 1, 0, -1, -1, -1}
var headingDY = [8]int32{-1, -1, 0, 1, 1, 1, 0, -1}

func calcHeading(sx, sy, tx, ty int32) int16 {
	dx := tx - sx
	dy := ty - sy
	if dx > 0 {
		dx = 1
	} else if dx < 0 {
		dx = -1
	}
	if dy > 0 {
		dy = 1
	} else if dy < 0 {
		dy = -1
	}
	for i := int16(0); i < 8; i++ {
		if headingDX[i] == dx && headingDY[i] == dy {
			return i
		}
	}
	return 0
}

// Say broadcasts a chat line from the actor.
func (s *State) Say(actorID int32, text string) {
	a := s.actors[actorID]
	if a == nil {
		return
	}
	s.log.Info("say", zap.String("actor", a.Name), zap.Int32("id", actorID), zap.String("text", text))
}

// Follow steps the actor one tile toward target and reports whether it is
// now within [minRange, maxRange].
func (s *State) Follow(actorID, targetID int32, minRange, maxRange int) bool {
	a := s.actors[actorID]
	t := s.actors[targetID]
	if a == nil || t == nil || a.MapID != t.MapID {
		return true // nothing to follow; the step completes
	}
	if maxRange < 1 {
		maxRange = 1
	}
	dist := chebyshev(a.X, a.Y, t.X, t.Y)
	if dist <= maxRange {
		a.Heading = calcHeading(a.X, a.Y, t.X, t.Y)
		return true
	}
	s.stepToward(a, t.X, t.Y)
	return chebyshev(a.X, a.Y, t.X, t.Y) <= maxRange
}

// stepToward moves one tile toward (tx, ty), side-stepping around an
// occupied primary tile.
func (s *State) stepToward(a *Actor, tx, ty int32) {
	dx := tx - a.X
	dy := ty - a.Y

	mx, my := a.X, a.Y
	if dx > 0 {
		mx++
	} else if dx < 0 {
		mx--
	}
	if dy > 0 {
		my++
	} else if dy < 0 {
		my--
	}

	type candidate struct{ x, y int32 }
	candidates := []candidate{{mx, my}}
	if dx != 0 && dy != 0 {
		candidates = append(candidates, candidate{mx, a.Y}, candidate{a.X, my})
	}

	for _, c := range candidates {
		if c.x == a.X && c.y == a.Y {
			continue
		}
		if s.occupied(c.x, c.y, a.MapID) {
			continue
		}
		a.Heading = calcHeading(a.X, a.Y, c.x, c.y)
		a.X, a.Y = c.x, c.y
		return
	}
}

func (s *State) occupied(x, y int32, mapID int) bool {
	for _, a := range s.actors {
		if !a.Dead && a.MapID == mapID && a.X == x && a.Y == y {
			return true
		}
	}
	return false
}

// Attack resolves one swing with damage sampled from [minDmg, maxDmg] and
// feeds the hit back to the target's instance (if any) through the event
// sink. A swing resolves in one slice.
func (s *State) Attack(actorID, targetID int32, minDmg, maxDmg int) bool {
	a := s.actors[actorID]
	t := s.actors[targetID]
	if a == nil || t == nil || t.Dead {
		return true
	}
	a.Heading = calcHeading(a.X, a.Y, t.X, t.Y)

	dmg := int32(s.rng.Between(minDmg, maxDmg))
	if dmg < 0 {
		dmg = 0
	}
	t.HP -= dmg
	if t.HP <= 0 {
		t.HP = 0
		t.Dead = true
		if s.hookRunner != nil {
			s.hookRunner(t.Name, "on_death", t.ID)
		}
		// Spawned actors go back through the respawn schedule; the corpse
		// is removed once the death hooks have seen it.
		if t.SpawnDefID != 0 {
			if s.deathSink != nil {
				s.deathSink(t.SpawnDefID)
			}
			s.Remove(t.ID)
		}
	}
	s.log.Debug("attack",
		zap.Int32("attacker", actorID), zap.Int32("target", targetID), zap.Int32("damage", dmg))

	if s.eventSink != nil && !t.Dead {
		s.eventSink(targetID, ai.Event{Kind: ai.EventHit, Source: actorID, Amount: int(dmg)})
	}
	return true
}

// BeginSkill starts a cast and returns its tick duration.
func (s *State) BeginSkill(actorID, targetID int32, skillID int) (int, error) {
	a := s.actors[actorID]
	if a == nil {
		return 0, fmt.Errorf("actor %d not in world", actorID)
	}
	if a.casting {
		return 0, fmt.Errorf("actor %d already casting skill %d", actorID, a.castingSkill)
	}
	a.casting = true
	a.castingSkill = skillID
	if t := s.actors[targetID]; t != nil {
		a.Heading = calcHeading(a.X, a.Y, t.X, t.Y)
	}
	return defaultCastTicks, nil
}

// FinishSkill resolves a cast. Skill outcomes belong to the combat
// collaborator; here the cast state is released and the resolution logged.
func (s *State) FinishSkill(actorID, targetID int32, skillID int) {
	a := s.actors[actorID]
	if a == nil {
		return
	}
	a.casting = false
	a.castingSkill = 0
	s.log.Debug("skill resolved",
		zap.Int32("caster", actorID), zap.Int32("target", targetID), zap.Int("skill", skillID))
}

// CancelSkill releases any skill-in-progress state for the actor.
func (s *State) CancelSkill(actorID int32) {
	a := s.actors[actorID]
	if a == nil {
		return
	}
	a.casting = false
	a.castingSkill = 0
}

// Wander takes one leashed idle move: a random direction inside the leash,
// back toward the spawn point beyond it.
func (s *State) Wander(actorID int32) bool {
	a := s.actors[actorID]
	if a == nil {
		return true
	}
	if chebyshev(a.X, a.Y, a.SpawnX, a.SpawnY) > s.leash {
		s.stepToward(a, a.SpawnX, a.SpawnY)
		return true
	}
	dir := int16(s.rng.Intn(8))
	nx := a.X + headingDX[dir]
	ny := a.Y + headingDY[dir]
	if nx < 0 || ny < 0 || s.occupied(nx, ny, a.MapID) {
		return true
	}
	a.Heading = dir
	a.X, a.Y = nx, ny
	return true
}

// Dead reports whether the actor is dead or gone.
func (s *State) Dead(actorID int32) bool {
	a := s.actors[actorID]
	return a == nil || a.Dead
}

// Distance returns the tile distance between two actors, -1 when either is
// absent or they are on different maps.
func (s *State) Distance(aID, bID int32) int {
	a := s.actors[aID]
	b := s.actors[bID]
	if a == nil || b == nil || a.MapID != b.MapID {
		return -1
	}
	return chebyshev(a.X, a.Y, b.X, b.Y)
}

// Candidates returns living actors of the given classes within radius.
func (s *State) Candidates(actorID int32, classes []string, radius int) []int32 {
	a := s.actors[actorID]
	if a == nil {
		return nil
	}
	var out []int32
	for _, other := range s.Actors() {
		if other.ID == actorID || other.Dead || other.MapID != a.MapID {
			continue
		}
		if !classMatch(other.Class, classes) {
			continue
		}
		if chebyshev(a.X, a.Y, other.X, other.Y) <= radius {
			out = append(out, other.ID)
		}
	}
	return out
}

func classMatch(class string, patterns []string) bool {
	for _, p := range patterns {
		if p == class || p == class+"s" { // scripts write plurals: "players"
			return true
		}
	}
	return false
}

// InCone reports whether target sits inside the actor's forward cone of
// the given angle.
func (s *State) InCone(actorID, targetID int32, coneDeg float64) bool {
	if coneDeg >= 360 {
		return true
	}
	a := s.actors[actorID]
	t := s.actors[targetID]
	if a == nil || t == nil {
		return false
	}
	fx := float64(headingDX[a.Heading%8])
	fy := float64(headingDY[a.Heading%8])
	dx := float64(t.X - a.X)
	dy := float64(t.Y - a.Y)
	if dx == 0 && dy == 0 {
		return true
	}
	// Both vectors must be normalized; diagonal headings have magnitude
	// sqrt(2) and an unnormalized dot product pushes Acos out of domain.
	cos := (fx*dx + fy*dy) / (math.Hypot(dx, dy) * math.Hypot(fx, fy))
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos)*180/math.Pi <= coneDeg/2
}

// PowerRating compares two actors by level: positive when the first is
// stronger.
func (s *State) PowerRating(actorID, otherID int32) int {
	a := s.actors[actorID]
	b := s.actors[otherID]
	if a == nil || b == nil {
		return 0
	}
	return int(a.Level) - int(b.Level)
}
