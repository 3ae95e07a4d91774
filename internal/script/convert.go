package script

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// GoToLua converts a decoded JSON value to an LValue.
func GoToLua(L *lua.LState, val any) lua.LValue {
	if val == nil {
		return lua.LNil
	}
	switch v := val.(type) {
	case string:
		return lua.LString(v)
	case float64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(float64(v))
	case int:
		return lua.LNumber(float64(v))
	case int64:
		return lua.LNumber(float64(v))
	case bool:
		return lua.LBool(v)
	case map[string]any:
		return MapToTable(L, v)
	case []any:
		return SliceToTable(L, v)
	case []string:
		tbl := L.NewTable()
		for _, s := range v {
			tbl.Append(lua.LString(s))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// LuaToGo converts an LValue to a JSON-compatible Go value.
func LuaToGo(val lua.LValue) any {
	switch v := val.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		return TableToMap(v)
	default:
		return nil
	}
}

// MapToTable converts a map[string]any to an LTable.
func MapToTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		L.SetField(tbl, k, GoToLua(L, v))
	}
	return tbl
}

// SliceToTable converts a []any to an LTable with 1-based integer keys.
func SliceToTable(L *lua.LState, s []any) *lua.LTable {
	tbl := L.NewTable()
	for _, v := range s {
		tbl.Append(GoToLua(L, v))
	}
	return tbl
}

// TableToMap converts an LTable to map[string]any, or to []any when the
// table only has the sequential keys 1..n.
func TableToMap(tbl *lua.LTable) any {
	maxN := tbl.MaxN()
	isArray := maxN > 0
	if isArray {
		count := 0
		tbl.ForEach(func(_, _ lua.LValue) {
			count++
		})
		isArray = count == maxN
	}

	if isArray {
		arr := make([]any, 0, maxN)
		for i := 1; i <= maxN; i++ {
			arr = append(arr, LuaToGo(tbl.RawGetInt(i)))
		}
		return arr
	}

	m := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		switch key := k.(type) {
		case lua.LString:
			m[string(key)] = LuaToGo(v)
		case lua.LNumber:
			m[key.String()] = LuaToGo(v)
		}
	})
	return m
}

// EncodeJSON serializes an LValue. Functions and userdata encode as null.
func EncodeJSON(val lua.LValue) (string, error) {
	data, err := json.Marshal(LuaToGo(val))
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(data), nil
}

// DecodeJSON parses s into an LValue.
func DecodeJSON(L *lua.LState, s string) (lua.LValue, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return lua.LNil, fmt.Errorf("decode json: %w", err)
	}
	return GoToLua(L, v), nil
}
