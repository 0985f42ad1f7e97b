package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/aretw0/arbor/pkg/domain"
)

// Bindings is the host side of the capability table. The runtime's turn
// context implements it; errors returned here are raised as Lua errors and
// fail the block run.
type Bindings interface {
	// GetParam returns the value and whether the key exists.
	GetParam(key string) (string, bool, error)
	SetParam(key, value string) error
	// SendMessage buffers an outbound message; it must not dispatch.
	SendMessage(msg domain.Message)
	GoTo(blockID int64) error
	StartModule(name string) error
	CallModule(name, fn string, args []any) (any, error)
}

// Input carries the per-run scalars of the capability table.
type Input struct {
	// Text is the inbound message text, exposed as input_text.
	Text string
	// Event is "message" for a user reply and "enter" for first arrival
	// at a block after a go_to.
	Event string
}

// Run executes one block script in a fresh sandboxed state. name is used as
// the Lua chunk name in error messages (e.g. "block:12").
func Run(source, name string, in Input, b Bindings) error {
	l := NewSandbox()
	register(l, b)

	l.PushString(in.Text)
	l.SetGlobal("input_text")
	l.PushString(in.Event)
	l.SetGlobal("event")

	if err := l.Load(strings.NewReader(source), "@"+name, ""); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("run %s: %w", name, err)
	}
	return nil
}

func register(l *lua.State, b Bindings) {
	l.Register("get_param", func(l *lua.State) int {
		key := lua.CheckString(l, 1)
		value, ok, err := b.GetParam(key)
		if err != nil {
			raise(l, fmt.Sprintf("get_param(%q): %s", key, err))
		}
		if !ok {
			l.PushNil()
		} else {
			l.PushString(value)
		}
		return 1
	})

	l.Register("set_param", func(l *lua.State) int {
		key := lua.CheckString(l, 1)
		lua.CheckAny(l, 2)
		if err := b.SetParam(key, stringify(l, 2)); err != nil {
			raise(l, fmt.Sprintf("set_param(%q): %s", key, err))
		}
		return 0
	})

	l.Register("send_message", func(l *lua.State) int {
		msg := domain.Message{
			Text:   lua.CheckString(l, 1),
			Format: domain.Format(lua.OptString(l, 3, string(domain.FormatText))),
		}
		if l.TypeOf(2) == lua.TypeTable {
			msg.Buttons = ToStringSlice(l, 2)
		}
		if !l.IsNoneOrNil(4) {
			msg.RequestContact = l.ToBoolean(4)
		}
		b.SendMessage(msg)
		return 0
	})

	l.Register("go_to", func(l *lua.State) int {
		id := lua.CheckInteger(l, 1)
		if err := b.GoTo(int64(id)); err != nil {
			raise(l, fmt.Sprintf("go_to(%d): %s", id, err))
		}
		return 0
	})

	l.Register("start_module", func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		if err := b.StartModule(name); err != nil {
			raise(l, fmt.Sprintf("start_module(%q): %s", name, err))
		}
		return 0
	})

	l.Register("call_module", func(l *lua.State) int {
		name := lua.CheckString(l, 1)
		fn := lua.CheckString(l, 2)
		args := make([]any, 0, l.Top()-2)
		for i := 3; i <= l.Top(); i++ {
			args = append(args, ToGoValue(l, i))
		}
		result, err := b.CallModule(name, fn, args)
		if err != nil {
			raise(l, fmt.Sprintf("call_module(%q, %q): %s", name, fn, err))
		}
		PushValue(l, result)
		return 1
	})
}

// raise reports a pre-formatted message as a Lua error. Errorf's format
// support mirrors lua_pushfstring, which chokes on verbs like %q, so messages
// are built with fmt first and handed over verbatim.
func raise(l *lua.State, msg string) {
	lua.Errorf(l, "%s", msg)
}

// stringify renders the Lua value at index the way set_param persists it.
// Whole numbers print without a decimal part.
func stringify(l *lua.State, index int) string {
	switch l.TypeOf(index) {
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		if n, ok := normalizeNumber(value).(int); ok {
			return strconv.Itoa(n)
		}
		return strconv.FormatFloat(value, 'g', -1, 64)
	case lua.TypeBoolean:
		return strconv.FormatBool(l.ToBoolean(index))
	case lua.TypeNil:
		return ""
	default:
		return fmt.Sprint(ToGoValue(l, index))
	}
}
