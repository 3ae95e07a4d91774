package script

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// NewSandboxedState creates an LState with only safe libraries loaded.
// The os, io, debug and package modules are never opened, and the base
// loaders (dofile, loadfile, load, loadstring) are removed. Each call to
// print is joined with tabs and handed to printFn.
func NewSandboxedState(printFn func(line string)) *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		if printFn != nil {
			printFn(strings.Join(parts, "\t"))
		}
		return 0
	}))

	return L
}
