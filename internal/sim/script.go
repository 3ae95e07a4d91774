package sim

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/sekia-ai/edbridge/internal/editor"
	"github.com/sekia-ai/edbridge/internal/script"
)

// scriptRun collects the output of one RunScript call.
type scriptRun struct {
	host *Host
	ctx  context.Context
	log  []editor.ScriptLogEntry
}

func (r *scriptRun) emit(typ editor.ScriptLogType, line string) {
	r.log = append(r.log, editor.ScriptLogEntry{Type: typ, Output: line})
}

// RunScript executes Lua code against the editor world. The host stays
// locked for the duration of the chunk.
func (h *Host) RunScript(ctx context.Context, code string) (editor.ScriptResult, error) {
	if !h.cfg.ScriptingEnabled {
		return editor.ScriptResult{}, editor.ErrScriptingUnavailable
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	run := &scriptRun{host: h, ctx: ctx}
	L := script.NewSandboxedState(func(line string) { run.emit(editor.ScriptInfo, line) })
	defer L.Close()
	registerEditorModule(L, run)

	rets, err := script.Run(ctx, L, "editor_script", code, h.cfg.ScriptTimeout)
	if err != nil {
		h.logger.Debug().Err(err).Msg("script failed")
		return editor.ScriptResult{Success: false, Log: run.log, CommandResult: err.Error()}, nil
	}

	res := editor.ScriptResult{Success: true, Log: run.log}
	if len(rets) > 0 && rets[0] != lua.LNil {
		if s, ok := rets[0].(lua.LString); ok {
			res.CommandResult = string(s)
		} else if out, err := script.EncodeJSON(rets[0]); err == nil {
			res.CommandResult = out
		}
	}
	return res, nil
}

// registerEditorModule creates the global "editor" table.
func registerEditorModule(L *lua.LState, run *scriptRun) {
	mod := L.NewTable()
	L.SetField(mod, "actors", L.NewFunction(run.luaActors))
	L.SetField(mod, "find_actor", L.NewFunction(run.luaFindActor))
	L.SetField(mod, "spawn", L.NewFunction(run.luaSpawn))
	L.SetField(mod, "destroy", L.NewFunction(run.luaDestroy))
	L.SetField(mod, "get_selection", L.NewFunction(run.luaGetSelection))
	L.SetField(mod, "set_selection", L.NewFunction(run.luaSetSelection))
	L.SetField(mod, "clear_selection", L.NewFunction(run.luaClearSelection))
	L.SetField(mod, "level", L.NewFunction(run.luaLevel))
	L.SetField(mod, "json_encode", L.NewFunction(luaJSONEncode))
	L.SetField(mod, "json_decode", L.NewFunction(luaJSONDecode))
	L.SetField(mod, "warn", L.NewFunction(run.luaWarn))
	L.SetField(mod, "error", L.NewFunction(run.luaError))
	L.SetGlobal("editor", mod)
}

// editor.actors() -> {actor, ...}
func (r *scriptRun) luaActors(L *lua.LState) int {
	actors, err := r.host.actorsLocked()
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	list := L.NewTable()
	for _, a := range actors {
		list.Append(script.MapToTable(L, editor.ActorJSON(a)))
	}
	L.Push(list)
	return 1
}

// editor.find_actor(name) -> actor | nil
func (r *scriptRun) luaFindActor(L *lua.LState) int {
	name := L.CheckString(1)
	actors, err := r.host.actorsLocked()
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	for _, a := range actors {
		if a.Name == name {
			L.Push(script.MapToTable(L, editor.ActorDetailsJSON(a)))
			return 1
		}
	}
	L.Push(lua.LNil)
	return 1
}

// editor.spawn(class, name, {location = {x,y,z}, rotation = {p,y,r}, scale = {x,y,z}}) -> actor
func (r *scriptRun) luaSpawn(L *lua.LState) int {
	class := L.CheckString(1)
	name := L.CheckString(2)
	xf := editor.IdentityTransform()
	if opts := L.OptTable(3, nil); opts != nil {
		if v, ok := luaTriple(L.GetField(opts, "location")); ok {
			xf.Location = editor.Vector{X: v[0], Y: v[1], Z: v[2]}
		}
		if v, ok := luaTriple(L.GetField(opts, "rotation")); ok {
			xf.Rotation = editor.Rotator{Pitch: v[0], Yaw: v[1], Roll: v[2]}
		}
		if v, ok := luaTriple(L.GetField(opts, "scale")); ok {
			xf.Scale = editor.Vector{X: v[0], Y: v[1], Z: v[2]}
		}
	}
	a, err := r.host.spawnLocked(r.ctx, class, name, xf)
	if err != nil {
		L.RaiseError("spawn %s: %s", name, err.Error())
		return 0
	}
	L.Push(script.MapToTable(L, editor.ActorDetailsJSON(a)))
	return 1
}

func luaTriple(v lua.LValue) ([3]float64, bool) {
	var out [3]float64
	tbl, ok := v.(*lua.LTable)
	if !ok || tbl.Len() != 3 {
		return out, false
	}
	for i := 1; i <= 3; i++ {
		n, ok := tbl.RawGetInt(i).(lua.LNumber)
		if !ok {
			return out, false
		}
		out[i-1] = float64(n)
	}
	return out, true
}

// editor.destroy(name) -> bool
func (r *scriptRun) luaDestroy(L *lua.LState) int {
	name := L.CheckString(1)
	L.Push(lua.LBool(r.host.destroyLocked(name) == nil))
	return 1
}

// editor.get_selection() -> {name, ...}
func (r *scriptRun) luaGetSelection(L *lua.LState) int {
	names := L.NewTable()
	for _, n := range r.host.selection {
		names.Append(lua.LString(n))
	}
	L.Push(names)
	return 1
}

// editor.set_selection({name, ...}) -> count
func (r *scriptRun) luaSetSelection(L *lua.LState) int {
	tbl := L.CheckTable(1)
	var names []string
	for i := 1; i <= tbl.Len(); i++ {
		names = append(names, lua.LVAsString(tbl.RawGetInt(i)))
	}
	n, err := r.host.selectLocked(names)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

// editor.clear_selection()
func (r *scriptRun) luaClearSelection(L *lua.LState) int {
	r.host.selection = nil
	return 0
}

// editor.level() -> {path, actor_count, dirty}
func (r *scriptRun) luaLevel(L *lua.LState) int {
	info, err := r.host.levelInfoLocked()
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	tbl := L.NewTable()
	L.SetField(tbl, "path", lua.LString(info.PackagePath))
	L.SetField(tbl, "actor_count", lua.LNumber(info.ActorCount))
	L.SetField(tbl, "dirty", lua.LBool(info.Dirty))
	L.Push(tbl)
	return 1
}

// editor.json_encode(value) -> string
func luaJSONEncode(L *lua.LState) int {
	s, err := script.EncodeJSON(L.CheckAny(1))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LString(s))
	return 1
}

// editor.json_decode(string) -> value
func luaJSONDecode(L *lua.LState) int {
	v, err := script.DecodeJSON(L, L.CheckString(1))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(v)
	return 1
}

// editor.warn(msg) writes to the warning stream.
func (r *scriptRun) luaWarn(L *lua.LState) int {
	r.emit(editor.ScriptWarning, L.ToStringMeta(L.CheckAny(1)).String())
	return 0
}

// editor.error(msg) writes to the error stream without aborting the script.
func (r *scriptRun) luaError(L *lua.LState) int {
	r.emit(editor.ScriptError, L.ToStringMeta(L.CheckAny(1)).String())
	return 0
}
