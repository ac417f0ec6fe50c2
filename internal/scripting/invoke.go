package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wyrmgate/server/internal/ai"
)

// Invoke runs a compiled AI handler against an instance context and decodes
// the step plan it returns. Satisfies ai.Invoker. Handler errors surface to
// the engine, which degrades the instance instead of propagating.
func (r *Registry) Invoke(fn *lua.LFunction, hc ai.HandlerContext) ([]ai.Step, error) {
	gen := r.generation()
	if gen == nil {
		return nil, fmt.Errorf("no script generation loaded")
	}
	vm := gen.vm

	ctx := vm.NewTable()
	ctx.RawSetString("actor", lua.LNumber(hc.ActorID))
	ctx.RawSetString("state", lua.LString(hc.State))
	if hc.Event != "" {
		ctx.RawSetString("event", lua.LString(string(hc.Event)))
		ctx.RawSetString("event_source", lua.LNumber(hc.EventSrc))
	}
	ctx.RawSetString("target", lua.LNumber(hc.TargetID))
	ctx.RawSetString("target_dist", lua.LNumber(hc.TargetDist))
	ctx.RawSetString("target_power", lua.LNumber(hc.TargetPower))
	counters := vm.NewTable()
	for k, v := range hc.Counters {
		counters.RawSetString(k, lua.LNumber(v))
	}
	ctx.RawSetString("counters", counters)

	if err := vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, ctx); err != nil {
		return nil, err
	}
	result := vm.Get(-1)
	vm.Pop(1)

	if result == lua.LNil {
		return nil, nil
	}
	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("handler returned %s, want a step list", result.Type())
	}
	return r.decodePlan(rt)
}

func (r *Registry) decodePlan(rt *lua.LTable) ([]ai.Step, error) {
	var steps []ai.Step
	var badRow bool
	rt.ForEach(func(_, v lua.LValue) {
		row, ok := v.(*lua.LTable)
		if !ok {
			badRow = true
			return
		}
		step, ok := decodeStep(row)
		if !ok {
			r.log.Warn("unknown step in handler plan")
			return
		}
		steps = append(steps, step)
	})
	if badRow {
		return steps, fmt.Errorf("plan contains a non-table step")
	}
	return steps, nil
}

func decodeStep(row *lua.LTable) (ai.Step, bool) {
	if v := row.RawGetString("say"); v != lua.LNil {
		return ai.Step{Kind: ai.StepSay, Text: lua.LVAsString(v)}, true
	}
	if v := row.RawGetString("wait"); v != lua.LNil {
		min, max := bounds(v)
		return ai.Step{Kind: ai.StepWait, Min: min, Max: max}, true
	}
	if v := row.RawGetString("skill"); v != lua.LNil {
		return ai.Step{Kind: ai.StepSkill, SkillID: int(lua.LVAsNumber(v))}, true
	}
	if v := row.RawGetString("attack"); v != lua.LNil {
		min, max := bounds(v)
		return ai.Step{Kind: ai.StepAttack, Min: min, Max: max}, true
	}
	if v := row.RawGetString("follow"); v != lua.LNil {
		min, max := bounds(v)
		return ai.Step{Kind: ai.StepFollow, Min: min, Max: max}, true
	}
	if row.RawGetString("cancel") == lua.LTrue {
		return ai.Step{Kind: ai.StepCancel}, true
	}
	if row.RawGetString("wander") == lua.LTrue {
		return ai.Step{Kind: ai.StepWander}, true
	}
	if row.RawGetString("lose_target") == lua.LTrue {
		return ai.Step{Kind: ai.StepLoseTarget}, true
	}
	if v := row.RawGetString("counter"); v != lua.LNil {
		if t, ok := v.(*lua.LTable); ok {
			name := lua.LVAsString(t.RawGetInt(1))
			delta := int(lua.LVAsNumber(t.RawGetInt(2)))
			if delta == 0 {
				delta = 1
			}
			if name != "" {
				return ai.Step{Kind: ai.StepCounter, Counter: name, Delta: delta}, true
			}
		}
		return ai.Step{}, false
	}
	if v := row.RawGetString("state"); v != lua.LNil {
		return ai.Step{Kind: ai.StepState, Text: lua.LVAsString(v)}, true
	}
	return ai.Step{}, false
}

// bounds reads a {min, max} pair from either a bare number, a named table
// { min=, max= }, or a positional pair { a, b }.
func bounds(v lua.LValue) (int, int) {
	switch t := v.(type) {
	case lua.LNumber:
		n := int(t)
		return n, n
	case *lua.LTable:
		if t.RawGetString("min") != lua.LNil || t.RawGetString("max") != lua.LNil {
			return int(lua.LVAsNumber(t.RawGetString("min"))), int(lua.LVAsNumber(t.RawGetString("max")))
		}
		return int(lua.LVAsNumber(t.RawGetInt(1))), int(lua.LVAsNumber(t.RawGetInt(2)))
	}
	return 0, 0
}

// RunHooks invokes every callable registered for (owner, point), in
// registration order. Hook failures are logged and do not stop the chain.
func (r *Registry) RunHooks(owner, point string, args ...lua.LValue) {
	gen := r.generation()
	if gen == nil {
		return
	}
	for _, fn := range gen.hooks[HookKey{Owner: owner, Point: point}] {
		if err := gen.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
			r.log.Warn("hook failed",
				zap.String("owner", owner), zap.String("point", point), zap.Error(err))
		}
	}
}

// RunActorHooks runs a hook chain with the actor id as the sole argument.
// Convenience for callers that do not build Lua values themselves.
func (r *Registry) RunActorHooks(owner, point string, actorID int32) {
	r.RunHooks(owner, point, lua.LNumber(actorID))
}

// UseItem invokes an item's on-use behavior with an actor context table.
// Reports false when the item has no registered behavior.
func (r *Registry) UseItem(id int, actorID int32) (bool, error) {
	gen := r.generation()
	if gen == nil {
		return false, nil
	}
	behavior, ok := gen.items[id]
	if !ok {
		return false, nil
	}
	vm := gen.vm
	ctx := vm.NewTable()
	ctx.RawSetString("actor", lua.LNumber(actorID))
	ctx.RawSetString("item", lua.LNumber(id))
	if err := vm.CallByParam(lua.P{Fn: behavior.OnUse, NRet: 0, Protect: true}, ctx); err != nil {
		return true, fmt.Errorf("item %d on_use: %w", id, err)
	}
	return true, nil
}
