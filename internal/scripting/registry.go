package scripting

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wyrmgate/server/internal/ai"
	"github.com/wyrmgate/server/internal/config"
	"github.com/wyrmgate/server/internal/rng"
)

// WorldPort is what the registry needs from the world layer to place and
// tear down scripted actors.
type WorldPort interface {
	// Place creates one actor. An error is a fatal placement failure; the
	// registry stops the current spawn batch but keeps already-placed actors.
	Place(p SpawnPlacement) (int32, error)

	// RemoveScripted removes every actor created by the registry and
	// returns how many were removed.
	RemoveScripted() int
}

// EnginePort is what the registry needs from the AI engine during spawn and
// reload.
type EnginePort interface {
	Attach(actorID int32, def *ai.Definition) *ai.Instance
	DetachAll()
	Count() int
}

// SpawnSource supplies persisted spawn definitions, applied at the end of
// every load. Implemented by the persist layer; nil disables the step.
type SpawnSource interface {
	SpawnDefs(ctx context.Context) ([]SpawnDef, error)
}

// generation holds everything one load produced: the VM the units were
// compiled into and every index built during registration. Immutable after
// publish; reload builds a new generation and swaps it in whole.
type generation struct {
	vm *lua.LState

	units  []*Unit
	ais    map[string]*ai.Definition
	items  map[int]*ItemBehavior
	hooks  map[HookKey][]*lua.LFunction
	quests map[int]*Quest
	shops  map[int]*Shop

	spawns     map[int]SpawnDef
	spawnOrder []int
}

func newGeneration() *generation {
	return &generation{
		vm:     lua.NewState(),
		ais:    make(map[string]*ai.Definition),
		items:  make(map[int]*ItemBehavior),
		hooks:  make(map[HookKey][]*lua.LFunction),
		quests: make(map[int]*Quest),
		shops:  make(map[int]*Shop),
		spawns: make(map[int]SpawnDef),
	}
}

func (g *generation) registerSpawn(def SpawnDef) {
	if _, exists := g.spawns[def.ID]; !exists {
		g.spawnOrder = append(g.spawnOrder, def.ID)
	}
	g.spawns[def.ID] = def
}

// Registry owns all loaded behavior units and the indices over them. Load
// and reload run on the game loop; lookups read the published generation
// pointer, which is swapped atomically so a reader sees either the whole
// old registry or the whole new one.
type Registry struct {
	log    *zap.Logger
	cfg    config.ScriptsConfig
	rng    *rng.RNG
	cache  *Cache
	world  WorldPort
	engine EnginePort
	spawns SpawnSource

	gen atomic.Pointer[generation]

	// Pending replacements for dead spawned actors. Game loop only.
	respawns []respawnEntry
}

type respawnEntry struct {
	defID int
	due   time.Time
}

func NewRegistry(cfg config.ScriptsConfig, r *rng.RNG, world WorldPort, engine EnginePort, spawns SpawnSource, log *zap.Logger) *Registry {
	return &Registry{
		log:    log,
		cfg:    cfg,
		rng:    r,
		cache:  NewCache(cfg.CacheDir, log),
		world:  world,
		engine: engine,
		spawns: spawns,
	}
}

func (r *Registry) generation() *generation {
	return r.gen.Load()
}

// Load runs the full pipeline: AI sources, item behaviors (synthetic
// aggregate plus explicit files), the main manifest, then persisted spawn
// definitions. Not safe to call while instances from a previous load are
// still attached; Reload handles that ordering.
func (r *Registry) Load(ctx context.Context) error {
	gen := newGeneration()
	ls := &loadState{reg: r, gen: gen}
	installAPI(gen.vm, ls)

	resolver := NewResolver(r.cfg.BaseRoot, r.cfg.OverrideRoot, r.log)

	// AI behavior sources. A missing AI manifest is startup-fatal.
	entries, err := resolver.ResolveManifest(r.cfg.AIManifest)
	if err != nil {
		gen.vm.Close()
		return fmt.Errorf("ai manifest: %w", err)
	}
	for _, entry := range entries {
		r.loadUnit(ls, entry)
	}

	// Item behaviors from structured data.
	if r.cfg.ItemData != "" {
		r.loadItems(ls, resolver)
	}

	// General manifest: NPC extensions, quests, shops, global hooks.
	if r.cfg.MainManifest != "" {
		if entries, err := resolver.ResolveManifest(r.cfg.MainManifest); err != nil {
			r.log.Warn("main manifest unresolvable", zap.Error(err))
		} else {
			for _, entry := range entries {
				r.loadUnit(ls, entry)
			}
		}
	}

	// Persisted spawn definitions from the database.
	var persisted []SpawnDef
	if r.spawns != nil {
		defs, err := r.spawns.SpawnDefs(ctx)
		if err != nil {
			r.log.Error("load persisted spawn definitions", zap.Error(err))
		} else {
			for _, def := range defs {
				gen.registerSpawn(def)
				persisted = append(persisted, def)
			}
		}
	}

	// Publish, then place the persisted world spawns against the new
	// generation. Replacements queued against the old generation are void:
	// the fresh load places every definition at full count.
	r.gen.Store(gen)
	r.respawns = nil
	for _, def := range persisted {
		if _, err := r.Spawn(def, 0); err != nil {
			r.log.Error("apply persisted spawn", zap.Int("spawn", def.ID), zap.Error(err))
		}
	}

	r.log.Info("scripts loaded",
		zap.Int("units", len(gen.units)),
		zap.Int("ais", len(gen.ais)),
		zap.Int("items", len(gen.items)),
		zap.Int("hooks", len(gen.hooks)),
		zap.Int("quests", len(gen.quests)),
		zap.Int("shops", len(gen.shops)),
		zap.Int("spawn_defs", len(gen.spawns)))
	return nil
}

// Reload tears down every scripted world entity from the previous load,
// then runs Load again. No instance survives into the new generation: the
// engine is fully quiesced before the indices are replaced.
func (r *Registry) Reload(ctx context.Context) error {
	old := r.generation()

	r.engine.DetachAll()
	removed := r.world.RemoveScripted()
	if r.engine.Count() != 0 {
		// Quiesce-before-publish is structural; reaching this line is a
		// programming error, not a recoverable condition.
		panic("scripting: ai instances attached after quiesce")
	}
	r.log.Info("scripted world state torn down", zap.Int("actors_removed", removed))

	if err := r.Load(ctx); err != nil {
		// The old generation is still published and its VM must stay
		// usable; the world runs degraded (scripted actors already torn
		// down) until a later reload succeeds.
		r.log.Error("reload failed, keeping previous script generation", zap.Error(err))
		return err
	}
	if old != nil {
		old.vm.Close()
	}
	return nil
}

// Close disposes the current generation's VM.
func (r *Registry) Close() {
	if gen := r.generation(); gen != nil {
		gen.vm.Close()
	}
}

// loadUnit compiles one resolved source through the cache and executes its
// registration phase. Per-unit failures are logged and skipped so one bad
// script never aborts the load.
func (r *Registry) loadUnit(ls *loadState, entry SourceEntry) {
	unit, err := r.cache.Unit(entry)
	if err != nil {
		r.log.Warn("behavior unit failed to compile",
			zap.String("rel", entry.Rel), zap.Error(err))
		return
	}
	ls.unit = unit
	defer func() { ls.unit = nil }()

	vm := ls.gen.vm
	vm.Push(vm.NewFunctionFromProto(unit.Proto))
	if err := vm.PCall(0, 0, nil); err != nil {
		r.log.Warn("behavior unit failed to run",
			zap.String("rel", entry.Rel), zap.Error(err))
		return
	}
	ls.gen.units = append(ls.gen.units, unit)
}

// loadItems builds the synthetic aggregate from inline snippets and
// resolves explicit per-item script files. The data file being absent is
// not fatal: items simply have no scripted behavior.
func (r *Registry) loadItems(ls *loadState, resolver *Resolver) {
	items, modTime, err := LoadItemData(r.cfg.ItemData)
	if err != nil {
		r.log.Warn("item data unavailable", zap.String("path", r.cfg.ItemData), zap.Error(err))
		return
	}

	unit, err := r.cache.Synthetic("items", modTime, func() ([]byte, error) {
		return GenerateItemAggregate(items), nil
	})
	if err != nil {
		r.log.Warn("item aggregate failed to compile", zap.Error(err))
	} else {
		ls.unit = unit
		vm := ls.gen.vm
		vm.Push(vm.NewFunctionFromProto(unit.Proto))
		if err := vm.PCall(0, 0, nil); err != nil {
			r.log.Warn("item aggregate failed to run", zap.Error(err))
		} else {
			ls.gen.units = append(ls.gen.units, unit)
		}
		ls.unit = nil
	}

	// Explicit single-file item scripts, keyed by the id in the data row.
	for _, item := range items {
		if strings.TrimSpace(item.OnUse) != "" {
			continue
		}
		ref := item.Script
		if ref == "" {
			ref = fmt.Sprintf("items/%d.lua", item.ID)
		}
		src, ok := resolver.Resolve(ref)
		if !ok {
			if item.Script != "" {
				r.log.Warn("item script unresolvable",
					zap.Int("item", item.ID), zap.String("script", item.Script))
			}
			continue
		}
		r.loadItemFile(ls, src, item.ID)
	}
}

// loadItemFile compiles a standalone item script. The chunk returns the
// on-use handler, which is registered under the id the data row supplied.
func (r *Registry) loadItemFile(ls *loadState, entry SourceEntry, id int) {
	unit, err := r.cache.Unit(entry)
	if err != nil {
		r.log.Warn("item script failed to compile",
			zap.Int("item", id), zap.String("rel", entry.Rel), zap.Error(err))
		return
	}
	vm := ls.gen.vm
	vm.Push(vm.NewFunctionFromProto(unit.Proto))
	if err := vm.PCall(0, 1, nil); err != nil {
		r.log.Warn("item script failed to run",
			zap.Int("item", id), zap.String("rel", entry.Rel), zap.Error(err))
		return
	}
	ret := vm.Get(-1)
	vm.Pop(1)
	fn, ok := ret.(*lua.LFunction)
	if !ok {
		r.log.Warn("item script did not return a handler",
			zap.Int("item", id), zap.String("rel", entry.Rel))
		return
	}
	ls.gen.items[id] = &ItemBehavior{ID: id, OnUse: fn, Unit: unit}
	ls.gen.units = append(ls.gen.units, unit)
}

// --- Lookup surface ---

// AI returns the definition registered under name, or nil.
func (r *Registry) AI(name string) *ai.Definition {
	gen := r.generation()
	if gen == nil {
		return nil
	}
	return gen.ais[name]
}

// ItemBehavior returns the behavior for an item id, or nil.
func (r *Registry) ItemBehavior(id int) *ItemBehavior {
	gen := r.generation()
	if gen == nil {
		return nil
	}
	return gen.items[id]
}

// Hooks returns the ordered hook chain for (owner, point). Never nil; an
// unregistered point yields an empty slice.
func (r *Registry) Hooks(owner, point string) []*lua.LFunction {
	gen := r.generation()
	if gen == nil {
		return []*lua.LFunction{}
	}
	chain := gen.hooks[HookKey{Owner: owner, Point: point}]
	out := make([]*lua.LFunction, len(chain))
	copy(out, chain)
	return out
}

// Quest returns the quest registered under id, or nil.
func (r *Registry) Quest(id int) *Quest {
	gen := r.generation()
	if gen == nil {
		return nil
	}
	return gen.quests[id]
}

// Shop returns the shop registered under id, or nil.
func (r *Registry) Shop(id int) *Shop {
	gen := r.generation()
	if gen == nil {
		return nil
	}
	return gen.shops[id]
}

// SpawnDefByID returns a registered spawn definition.
func (r *Registry) SpawnDefByID(id int) (SpawnDef, bool) {
	gen := r.generation()
	if gen == nil {
		return SpawnDef{}, false
	}
	def, ok := gen.spawns[id]
	return def, ok
}

// SpawnDefs returns every registered spawn definition in registration order.
func (r *Registry) SpawnDefs() []SpawnDef {
	gen := r.generation()
	if gen == nil {
		return nil
	}
	out := make([]SpawnDef, 0, len(gen.spawnOrder))
	for _, id := range gen.spawnOrder {
		out = append(out, gen.spawns[id])
	}
	return out
}

// AINames returns the sorted-by-registration set of AI names, for
// diagnostics and tests.
func (r *Registry) AINames() []string {
	gen := r.generation()
	if gen == nil {
		return nil
	}
	names := make([]string, 0, len(gen.ais))
	for name := range gen.ais {
		names = append(names, name)
	}
	return names
}

// --- Spawn orchestration ---

// Spawn places count actors (or the definition's default) at positions
// sampled within the definition's area, attaching an AI instance when the
// definition names one. A missing AI definition is a warning, not a
// failure: the actor stays AI-less. Returns the number of actors actually
// placed; a fatal placement failure stops the batch early without undoing
// prior placements.
func (r *Registry) Spawn(def SpawnDef, count int) (int, error) {
	if count <= 0 {
		count = def.Count
	}
	if count <= 0 {
		count = 1
	}
	gen := r.generation()
	if gen == nil {
		return 0, fmt.Errorf("spawn before load")
	}

	placed := 0
	for i := 0; i < count; i++ {
		x, y := def.X, def.Y
		if def.RangeX > 0 {
			x += int32(r.rng.Between(-int(def.RangeX), int(def.RangeX)))
		}
		if def.RangeY > 0 {
			y += int32(r.rng.Between(-int(def.RangeY), int(def.RangeY)))
		}
		actorID, err := r.world.Place(SpawnPlacement{
			Name:       def.Name,
			Class:      def.Class,
			AI:         def.AI,
			MapID:      def.MapID,
			X:          x,
			Y:          y,
			SpawnDefID: def.ID,
		})
		if err != nil {
			r.log.Error("spawn placement failed",
				zap.Int("spawn", def.ID), zap.Int("placed", placed), zap.Error(err))
			return placed, err
		}
		placed++

		if def.AI != "" {
			if aiDef := gen.ais[def.AI]; aiDef != nil {
				r.engine.Attach(actorID, aiDef)
			} else {
				r.log.Warn("spawn names unknown ai",
					zap.Int("spawn", def.ID), zap.String("ai", def.AI))
			}
		}
		r.RunHooks(def.Name, "on_spawn", lua.LNumber(actorID))
	}
	return placed, nil
}

// ScheduleRespawn queues one replacement for a dead spawned actor, due
// after the definition's respawn delay. Definitions without a delay, and
// ids no generation knows, respawn nothing.
func (r *Registry) ScheduleRespawn(defID int) {
	def, ok := r.SpawnDefByID(defID)
	if !ok || def.RespawnS <= 0 {
		return
	}
	r.respawns = append(r.respawns, respawnEntry{
		defID: defID,
		due:   time.Now().Add(time.Duration(def.RespawnS) * time.Second),
	})
}

// TickRespawns places every queued replacement whose delay has elapsed and
// returns how many actors came back. Called once per game tick.
func (r *Registry) TickRespawns(now time.Time) int {
	if len(r.respawns) == 0 {
		return 0
	}
	keep := r.respawns[:0]
	spawned := 0
	for _, entry := range r.respawns {
		if entry.due.After(now) {
			keep = append(keep, entry)
			continue
		}
		def, ok := r.SpawnDefByID(entry.defID)
		if !ok {
			continue
		}
		n, err := r.Spawn(def, 1)
		if err != nil {
			r.log.Error("respawn placement failed",
				zap.Int("spawn", entry.defID), zap.Error(err))
		}
		spawned += n
	}
	r.respawns = keep
	return spawned
}
