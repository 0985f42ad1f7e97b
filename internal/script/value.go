package script

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Shopify/go-lua"
)

// PushValue pushes a Go value onto the Lua stack. Supported kinds: nil, bool,
// integers, floats, string, []any and map[string]any (recursively). Anything
// else is pushed as its fmt.Sprint form.
func PushValue(l *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(v)
	case int:
		l.PushInteger(v)
	case int64:
		l.PushInteger(int(v))
	case float64:
		l.PushNumber(v)
	case string:
		l.PushString(v)
	case []any:
		l.NewTable()
		for i, item := range v {
			PushValue(l, item)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.NewTable()
		for key, item := range v {
			PushValue(l, item)
			l.SetField(-2, key)
		}
	default:
		l.PushString(fmt.Sprint(v))
	}
}

// ToGoValue converts the Lua value at index to a Go value: nil, bool, string,
// int/float64 (whole numbers become int), []any for sequence tables, and
// map[string]any otherwise.
func ToGoValue(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(l, index)
	default:
		return nil
	}
}

// ToStringSlice reads a Lua sequence of strings at index. Non-string entries
// are stringified.
func ToStringSlice(l *lua.State, index int) []string {
	index = l.AbsIndex(index)
	var out []string
	for i := 1; ; i++ {
		l.RawGetInt(index, i)
		if l.TypeOf(-1) == lua.TypeNil {
			l.Pop(1)
			break
		}
		value, ok := l.ToString(-1)
		if !ok {
			value = fmt.Sprint(ToGoValue(l, -1))
		}
		out = append(out, value)
		l.Pop(1)
	}
	return out
}

func tableToGo(l *lua.State, index int) any {
	index = l.AbsIndex(index)

	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			result = append(result, ToGoValue(l, -1))
			l.Pop(1)
		}
		return result
	}

	result := map[string]any{}
	l.PushNil()
	for l.Next(index) {
		// ToString on a number key would rewrite the slot and confuse Next,
		// so numeric keys are read with the number accessors instead.
		switch l.TypeOf(-2) {
		case lua.TypeString:
			key, _ := l.ToString(-2)
			result[key] = ToGoValue(l, -1)
		case lua.TypeNumber:
			if n, ok := l.ToNumber(-2); ok {
				result[formatNumberKey(n)] = ToGoValue(l, -1)
			}
		}
		l.Pop(1)
	}
	return result
}

func formatNumberKey(n float64) string {
	if i, ok := normalizeNumber(n).(int); ok {
		return strconv.Itoa(i)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
