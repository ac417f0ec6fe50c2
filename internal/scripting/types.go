package scripting

import lua "github.com/yuin/gopher-lua"

// ItemBehavior is the compiled on-use behavior for one item id.
type ItemBehavior struct {
	ID    int
	OnUse *lua.LFunction
	Unit  *Unit // unit that registered it, for diagnostics
}

// Quest is a script-registered quest definition. Last write wins on id.
type Quest struct {
	ID         int
	Name       string
	Giver      string // NPC name offering the quest
	MinLevel   int
	RewardExp  int
	RewardItem int
}

// ShopItem is one line of a shop's stock.
type ShopItem struct {
	ItemID int
	Price  int
}

// Shop is a script-registered shop definition. Last write wins on id.
type Shop struct {
	ID    int
	NPC   string
	Items []ShopItem
}

// HookKey addresses an ordered hook chain: owner name plus hook point
// ("on_talk", "on_death", "on_spawn", or a global point).
type HookKey struct {
	Owner string
	Point string
}

// SpawnDef describes where and how to place scripted actors. Registered by
// scripts or loaded from the persisted spawn table.
type SpawnDef struct {
	ID       int
	Name     string
	Class    string // actor class of the spawned actors
	AI       string // AI definition name; empty = no AI
	MapID    int
	X, Y     int32
	RangeX   int32 // placement sampled within +/- range of (X, Y)
	RangeY   int32
	Count    int
	RespawnS int
}

// SpawnPlacement is one concrete actor placement handed to the world layer.
type SpawnPlacement struct {
	Name       string
	Class      string
	AI         string
	MapID      int
	X, Y       int32
	SpawnDefID int
}
