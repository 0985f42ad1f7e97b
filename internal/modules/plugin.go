package modules

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/aretw0/arbor/internal/script"
)

// Plugin is an opaque handle around a loaded Lua plugin. The plugin's
// exported surface is the set of global functions its source defines.
// A mutex guards the state: Lua states are not safe for concurrent use, and
// plugins keep state between calls (token caches, conversation history).
type Plugin struct {
	name string

	mu sync.Mutex
	l  *lua.State
}

// newPlugin executes the plugin source at path in its own sandboxed state.
// Beyond the block-script sandbox, plugins get host helpers for calling
// external services: http_request, json_encode, json_decode and env.
func newPlugin(name, path string) (*Plugin, error) {
	if err := statModuleFile(path); err != nil {
		return nil, err
	}

	l := script.NewSandbox()
	registerHostHelpers(l)

	if err := lua.LoadFile(l, path, ""); err != nil {
		return nil, fmt.Errorf("parse plugin: %w", err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("init plugin: %w", err)
	}

	return &Plugin{name: name, l: l}, nil
}

// Call invokes an exported function by name. It returns
// ErrFunctionNotExported (wrapped) when the global is absent or not a
// function.
func (p *Plugin) Call(fn string, args []any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.l.Global(fn)
	if p.l.TypeOf(-1) != lua.TypeFunction {
		p.l.Pop(1)
		return nil, fmt.Errorf("module %q has no function %q: %w", p.name, fn, ErrFunctionNotExported)
	}

	for _, arg := range args {
		script.PushValue(p.l, arg)
	}
	if err := p.l.ProtectedCall(len(args), 1, 0); err != nil {
		return nil, fmt.Errorf("module %q call %q: %w", p.name, fn, err)
	}

	result := script.ToGoValue(p.l, -1)
	p.l.Pop(1)
	return result, nil
}

// Exports reports whether the plugin defines fn. Used by tooling; Call
// performs its own check.
func (p *Plugin) Exports(fn string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.l.Global(fn)
	defined := p.l.TypeOf(-1) == lua.TypeFunction
	p.l.Pop(1)
	return defined
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// registerHostHelpers grants plugin states the extended capabilities that
// block scripts never see. Plugins are operator-authored; these helpers are
// what lets a plugin wrap an external assistant API.
func registerHostHelpers(l *lua.State) {
	l.Register("http_request", func(l *lua.State) int {
		method := strings.ToUpper(lua.CheckString(l, 1))
		url := lua.CheckString(l, 2)
		body := lua.OptString(l, 3, "")

		req, err := http.NewRequest(method, url, strings.NewReader(body))
		if err != nil {
			lua.Errorf(l, "http_request: %s", err.Error())
		}
		if l.TypeOf(4) == lua.TypeTable {
			headers, _ := script.ToGoValue(l, 4).(map[string]any)
			for key, value := range headers {
				req.Header.Set(key, fmt.Sprint(value))
			}
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			lua.Errorf(l, "http_request: %s", err.Error())
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			lua.Errorf(l, "http_request: read body: %s", err.Error())
		}

		l.PushInteger(resp.StatusCode)
		l.PushString(string(data))
		return 2
	})

	l.Register("json_encode", func(l *lua.State) int {
		data, err := json.Marshal(script.ToGoValue(l, 1))
		if err != nil {
			lua.Errorf(l, "json_encode: %s", err.Error())
		}
		l.PushString(string(data))
		return 1
	})

	l.Register("json_decode", func(l *lua.State) int {
		var value any
		if err := json.Unmarshal([]byte(lua.CheckString(l, 1)), &value); err != nil {
			lua.Errorf(l, "json_decode: %s", err.Error())
		}
		script.PushValue(l, value)
		return 1
	})

	l.Register("env", func(l *lua.State) int {
		l.PushString(os.Getenv(lua.CheckString(l, 1)))
		return 1
	})
}
