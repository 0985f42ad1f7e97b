package script_test

import (
	"errors"
	"testing"

	"github.com/aretw0/arbor/internal/script"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBindings records capability calls for assertions.
type fakeBindings struct {
	params  map[string]string
	sent    []domain.Message
	jumps   []int64
	started []string
	calls   []string

	lastArgs   []any
	callResult any
	callErr    error
	getErr     error
	setErr     error
	startErr   error
}

func newFakeBindings() *fakeBindings {
	return &fakeBindings{params: map[string]string{}}
}

func (f *fakeBindings) GetParam(key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.params[key]
	return v, ok, nil
}

func (f *fakeBindings) SetParam(key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.params[key] = value
	return nil
}

func (f *fakeBindings) SendMessage(msg domain.Message) {
	f.sent = append(f.sent, msg)
}

func (f *fakeBindings) GoTo(blockID int64) error {
	f.jumps = append(f.jumps, blockID)
	return nil
}

func (f *fakeBindings) StartModule(name string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, name)
	return nil
}

func (f *fakeBindings) CallModule(name, fn string, args []any) (any, error) {
	f.calls = append(f.calls, name+"."+fn)
	f.lastArgs = args
	return f.callResult, f.callErr
}

func run(t *testing.T, source string, b script.Bindings, in script.Input) error {
	t.Helper()
	return script.Run(source, "block:1", in, b)
}

func TestRun_InputGlobals(t *testing.T) {
	b := newFakeBindings()
	err := run(t, `
		set_param("text", input_text)
		set_param("event", event)
	`, b, script.Input{Text: "hello", Event: "message"})
	require.NoError(t, err)

	assert.Equal(t, "hello", b.params["text"])
	assert.Equal(t, "message", b.params["event"])
}

func TestRun_GetParamMiss(t *testing.T) {
	b := newFakeBindings()
	err := run(t, `
		if get_param("missing") == nil then
			set_param("checked", "yes")
		end
	`, b, script.Input{})
	require.NoError(t, err)
	assert.Equal(t, "yes", b.params["checked"])
}

func TestRun_SetParamStringifies(t *testing.T) {
	b := newFakeBindings()
	err := run(t, `
		set_param("int", 42)
		set_param("float", 1.5)
		set_param("bool", true)
		set_param("nilval", nil)
	`, b, script.Input{})
	require.NoError(t, err)

	assert.Equal(t, "42", b.params["int"])
	assert.Equal(t, "1.5", b.params["float"])
	assert.Equal(t, "true", b.params["bool"])
	assert.Equal(t, "", b.params["nilval"])
}

func TestRun_SendMessageForms(t *testing.T) {
	b := newFakeBindings()
	err := run(t, `
		send_message("plain")
		send_message("with buttons", {"yes", "no"})
		send_message("styled", nil, "markdown")
		send_message("contact", nil, "text", true)
	`, b, script.Input{})
	require.NoError(t, err)

	require.Len(t, b.sent, 4)
	assert.Equal(t, domain.Message{Text: "plain", Format: domain.FormatText}, b.sent[0])
	assert.Equal(t, []string{"yes", "no"}, b.sent[1].Buttons)
	assert.Equal(t, domain.FormatMarkdown, b.sent[2].Format)
	assert.True(t, b.sent[3].RequestContact)
}

func TestRun_GoTo(t *testing.T) {
	b := newFakeBindings()
	err := run(t, `
		go_to(7)
		set_param("after", "still runs")
	`, b, script.Input{})
	require.NoError(t, err)

	assert.Equal(t, []int64{7}, b.jumps)
	// Statements after go_to still execute within the same block run.
	assert.Equal(t, "still runs", b.params["after"])
}

func TestRun_Modules(t *testing.T) {
	b := newFakeBindings()
	b.callResult = map[string]any{"temp": 21, "city": "berlin"}

	err := run(t, `
		start_module("weather")
		local r = call_module("weather", "current", "berlin", 3)
		set_param("temp", r.temp)
		set_param("city", r.city)
	`, b, script.Input{})
	require.NoError(t, err)

	assert.Equal(t, []string{"weather"}, b.started)
	assert.Equal(t, []string{"weather.current"}, b.calls)
	assert.Equal(t, "21", b.params["temp"])
	assert.Equal(t, "berlin", b.params["city"])
}

// Host errors raised from the capability primitives must reach the caller
// with their original text intact, including the quoted argument.
func TestRun_HostErrorsKeepTheirCause(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*fakeBindings)
		source string
		want   []string
	}{
		{
			name:   "get_param",
			setup:  func(f *fakeBindings) { f.getErr = errors.New("store offline") },
			source: `get_param("name")`,
			want:   []string{`get_param("name")`, "store offline"},
		},
		{
			name:   "set_param",
			setup:  func(f *fakeBindings) { f.setErr = errors.New("store offline") },
			source: `set_param("name", "ann")`,
			want:   []string{`set_param("name")`, "store offline"},
		},
		{
			name:   "start_module",
			setup:  func(f *fakeBindings) { f.startErr = errors.New("module file missing") },
			source: `start_module("weather")`,
			want:   []string{`start_module("weather")`, "module file missing"},
		},
		{
			name:   "call_module",
			setup:  func(f *fakeBindings) { f.callErr = errors.New("function not exported") },
			source: `call_module("weather", "forecast")`,
			want:   []string{`call_module("weather", "forecast")`, "function not exported"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBindings()
			tt.setup(b)
			err := run(t, tt.source, b, script.Input{})
			require.Error(t, err)
			for _, fragment := range tt.want {
				assert.Contains(t, err.Error(), fragment)
			}
		})
	}
}

func TestRun_ModuleErrorFailsScript(t *testing.T) {
	b := newFakeBindings()
	b.callErr = errors.New("plugin exploded")

	err := run(t, `call_module("weather", "current")`, b, script.Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin exploded")
}

func TestRun_MixedTableKeepsArrayEntries(t *testing.T) {
	b := newFakeBindings()
	err := run(t, `call_module("m", "fn", {10, "a", x = true})`, b, script.Input{})
	require.NoError(t, err)

	require.Len(t, b.lastArgs, 1)
	assert.Equal(t, map[string]any{"1": 10, "2": "a", "x": true}, b.lastArgs[0])
}

func TestRun_SyntaxError(t *testing.T) {
	b := newFakeBindings()
	err := run(t, `this is not lua`, b, script.Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block:1")
}

func TestRun_RuntimeError(t *testing.T) {
	b := newFakeBindings()
	err := run(t, `error("boom")`, b, script.Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRun_SandboxBlocksEscapes(t *testing.T) {
	for _, global := range []string{"dofile", "loadfile", "load", "loadstring", "print"} {
		t.Run(global, func(t *testing.T) {
			b := newFakeBindings()
			err := run(t, `
				if `+global+` == nil then
					set_param("blocked", "yes")
				end
			`, b, script.Input{})
			require.NoError(t, err)
			assert.Equal(t, "yes", b.params["blocked"])
		})
	}
}

func TestRun_SafeLibrariesAvailable(t *testing.T) {
	b := newFakeBindings()
	err := run(t, `
		set_param("upper", string.upper("abc"))
		set_param("floor", math.floor(3.9))
		set_param("joined", table.concat({"a", "b"}, "-"))
	`, b, script.Input{})
	require.NoError(t, err)

	assert.Equal(t, "ABC", b.params["upper"])
	assert.Equal(t, "3", b.params["floor"])
	assert.Equal(t, "a-b", b.params["joined"])
}

func TestRun_FreshStatePerRun(t *testing.T) {
	b := newFakeBindings()
	require.NoError(t, run(t, `leak = "value"`, b, script.Input{}))

	err := run(t, `
		if leak == nil then
			set_param("isolated", "yes")
		end
	`, b, script.Input{})
	require.NoError(t, err)
	assert.Equal(t, "yes", b.params["isolated"])
}
