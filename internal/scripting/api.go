package scripting

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wyrmgate/server/internal/ai"
)

// loadState is the registration context while a generation is being built.
// Every API closure below writes into the generation under construction,
// never into the published one.
type loadState struct {
	reg  *Registry
	gen  *generation
	unit *Unit // unit currently executing, for attribution
}

// installAPI registers the load-time registration surface and the sampling
// helpers behavior scripts use. API_VERSION lets scripts refuse to load
// against an incompatible runtime.
func installAPI(vm *lua.LState, ls *loadState) {
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	vm.SetGlobal("register_ai", vm.NewFunction(ls.luaRegisterAI))
	vm.SetGlobal("register_item", vm.NewFunction(ls.luaRegisterItem))
	vm.SetGlobal("register_hook", vm.NewFunction(ls.luaRegisterHook))
	vm.SetGlobal("register_quest", vm.NewFunction(ls.luaRegisterQuest))
	vm.SetGlobal("register_shop", vm.NewFunction(ls.luaRegisterShop))
	vm.SetGlobal("register_spawn", vm.NewFunction(ls.luaRegisterSpawn))

	vm.SetGlobal("roll", vm.NewFunction(ls.luaRoll))
	vm.SetGlobal("rand_between", vm.NewFunction(ls.luaRandBetween))
	vm.SetGlobal("weighted", vm.NewFunction(ls.luaWeighted))
}

// register_ai{ name=, hates={...}, states={ idle=fn, ... },
//              on_event={ aggro={ hit=fn, ... }, ... },
//              audio_radius=, visual_radius=, visual_cone= }
func (ls *loadState) luaRegisterAI(L *lua.LState) int {
	tbl := L.CheckTable(1)
	name := tblString(tbl, "name")
	if name == "" {
		L.RaiseError("register_ai: name is required")
		return 0
	}

	def := &ai.Definition{
		Name:          name,
		States:        make(map[string]*lua.LFunction),
		Events:        make(map[string]map[ai.EventKind]*lua.LFunction),
		AudioRadius:   tblInt(tbl, "audio_radius"),
		VisualRadius:  tblInt(tbl, "visual_radius"),
		VisualConeDeg: tblFloat(tbl, "visual_cone"),
	}

	if hates := tblTable(tbl, "hates"); hates != nil {
		hates.ForEach(func(_, v lua.LValue) {
			if s, ok := v.(lua.LString); ok {
				def.Hates = append(def.Hates, string(s))
			}
		})
	}
	if states := tblTable(tbl, "states"); states != nil {
		states.ForEach(func(k, v lua.LValue) {
			if fn, ok := v.(*lua.LFunction); ok {
				def.States[strings.ToLower(lua.LVAsString(k))] = fn
			}
		})
	}
	if events := tblTable(tbl, "on_event"); events != nil {
		events.ForEach(func(stateKey, kinds lua.LValue) {
			kindTbl, ok := kinds.(*lua.LTable)
			if !ok {
				return
			}
			state := strings.ToLower(lua.LVAsString(stateKey))
			byKind := make(map[ai.EventKind]*lua.LFunction)
			kindTbl.ForEach(func(kindKey, v lua.LValue) {
				if fn, ok := v.(*lua.LFunction); ok {
					byKind[ai.EventKind(strings.ToLower(lua.LVAsString(kindKey)))] = fn
				}
			})
			def.Events[state] = byKind
		})
	}

	if _, exists := ls.gen.ais[name]; exists {
		ls.reg.log.Warn("ai definition redefined", zap.String("name", name),
			zap.String("unit", ls.unitName()))
	}
	ls.gen.ais[name] = def
	return 0
}

// register_item{ id=, on_use=fn }
func (ls *loadState) luaRegisterItem(L *lua.LState) int {
	tbl := L.CheckTable(1)
	id := tblInt(tbl, "id")
	fn := tblFunc(tbl, "on_use")
	if id == 0 || fn == nil {
		L.RaiseError("register_item: id and on_use are required")
		return 0
	}
	ls.gen.items[id] = &ItemBehavior{ID: id, OnUse: fn, Unit: ls.unit}
	return 0
}

// register_hook(owner, point, fn) — hooks accumulate; insertion order is
// call order.
func (ls *loadState) luaRegisterHook(L *lua.LState) int {
	owner := L.CheckString(1)
	point := L.CheckString(2)
	fn := L.CheckFunction(3)
	key := HookKey{Owner: owner, Point: point}
	ls.gen.hooks[key] = append(ls.gen.hooks[key], fn)
	return 0
}

// register_quest{ id=, name=, giver=, min_level=, reward_exp=, reward_item= }
func (ls *loadState) luaRegisterQuest(L *lua.LState) int {
	tbl := L.CheckTable(1)
	id := tblInt(tbl, "id")
	if id == 0 {
		L.RaiseError("register_quest: id is required")
		return 0
	}
	ls.gen.quests[id] = &Quest{
		ID:         id,
		Name:       tblString(tbl, "name"),
		Giver:      tblString(tbl, "giver"),
		MinLevel:   tblInt(tbl, "min_level"),
		RewardExp:  tblInt(tbl, "reward_exp"),
		RewardItem: tblInt(tbl, "reward_item"),
	}
	return 0
}

// register_shop{ id=, npc=, items={ {item_id=, price=}, ... } }
func (ls *loadState) luaRegisterShop(L *lua.LState) int {
	tbl := L.CheckTable(1)
	id := tblInt(tbl, "id")
	if id == 0 {
		L.RaiseError("register_shop: id is required")
		return 0
	}
	shop := &Shop{ID: id, NPC: tblString(tbl, "npc")}
	if items := tblTable(tbl, "items"); items != nil {
		items.ForEach(func(_, v lua.LValue) {
			if row, ok := v.(*lua.LTable); ok {
				shop.Items = append(shop.Items, ShopItem{
					ItemID: tblInt(row, "item_id"),
					Price:  tblInt(row, "price"),
				})
			}
		})
	}
	ls.gen.shops[id] = shop
	return 0
}

// register_spawn{ id=, name=, class=, ai=, map=, x=, y=, range_x=, range_y=,
//                 count=, respawn_s= }
func (ls *loadState) luaRegisterSpawn(L *lua.LState) int {
	tbl := L.CheckTable(1)
	def := SpawnDef{
		ID:       tblInt(tbl, "id"),
		Name:     tblString(tbl, "name"),
		Class:    tblString(tbl, "class"),
		AI:       tblString(tbl, "ai"),
		MapID:    tblInt(tbl, "map"),
		X:        int32(tblInt(tbl, "x")),
		Y:        int32(tblInt(tbl, "y")),
		RangeX:   int32(tblInt(tbl, "range_x")),
		RangeY:   int32(tblInt(tbl, "range_y")),
		Count:    tblInt(tbl, "count"),
		RespawnS: tblInt(tbl, "respawn_s"),
	}
	if def.ID == 0 {
		L.RaiseError("register_spawn: id is required")
		return 0
	}
	ls.gen.registerSpawn(def)
	return 0
}

// roll(n) reports a hit with probability n/100.
func (ls *loadState) luaRoll(L *lua.LState) int {
	n := L.CheckInt(1)
	L.Push(lua.LBool(ls.reg.rng.Percent(n)))
	return 1
}

// rand_between(min, max) samples inclusively.
func (ls *loadState) luaRandBetween(L *lua.LState) int {
	min := L.CheckInt(1)
	max := L.CheckInt(2)
	L.Push(lua.LNumber(ls.reg.rng.Between(min, max)))
	return 1
}

// weighted{w1, w2, ...} returns a 1-based index chosen by weight.
func (ls *loadState) luaWeighted(L *lua.LState) int {
	tbl := L.CheckTable(1)
	var weights []int
	tbl.ForEach(func(_, v lua.LValue) {
		weights = append(weights, int(lua.LVAsNumber(v)))
	})
	L.Push(lua.LNumber(ls.reg.rng.WeightedSelect(weights) + 1))
	return 1
}

func (ls *loadState) unitName() string {
	if ls.unit == nil {
		return ""
	}
	return ls.unit.Name
}

// --- Lua table helpers ---

func tblString(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

func tblInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

func tblFloat(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

func tblTable(t *lua.LTable, key string) *lua.LTable {
	if v, ok := t.RawGetString(key).(*lua.LTable); ok {
		return v
	}
	return nil
}

func tblFunc(t *lua.LTable, key string) *lua.LFunction {
	if v, ok := t.RawGetString(key).(*lua.LFunction); ok {
		return v
	}
	return nil
}
