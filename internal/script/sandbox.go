package script

import (
	"github.com/Shopify/go-lua"
)

// blockedGlobals are base-library entries that reach outside the sandbox.
// They are removed right after the libraries are opened.
var blockedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "print"}

// NewSandbox returns a fresh Lua state with the safe library subset opened.
// Callers own the state; states are not safe for concurrent use.
func NewSandbox() *lua.State {
	l := lua.NewState()

	lua.Require(l, "_G", lua.BaseOpen, true)
	l.Pop(1)
	lua.Require(l, "string", lua.StringOpen, true)
	l.Pop(1)
	lua.Require(l, "table", lua.TableOpen, true)
	l.Pop(1)
	lua.Require(l, "math", lua.MathOpen, true)
	l.Pop(1)

	for _, name := range blockedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}

	return l
}
