package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ErrTimeout is returned when a chunk runs past its deadline.
var ErrTimeout = errors.New("script timed out")

// Run compiles and executes code on L. The returned values are the chunk's
// return values converted with LuaToGo. When timeout is positive the chunk is
// interrupted once it elapses.
func Run(ctx context.Context, L *lua.LState, name, code string, timeout time.Duration) ([]lua.LValue, error) {
	fn, err := L.Load(strings.NewReader(code), name)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	L.SetContext(ctx)
	defer L.RemoveContext()

	top := L.GetTop()
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	n := L.GetTop() - top
	rets := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		rets[i] = L.Get(top + 1 + i)
	}
	L.Pop(n)
	return rets, nil
}
