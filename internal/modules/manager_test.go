package modules_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/modules"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
)

const echoPlugin = `
function greet(name)
	return "hello, " .. name
end

function stats(values)
	local sum = 0
	for _, v in ipairs(values) do
		sum = sum + v
	end
	return { sum = sum, count = #values }
end

function read_env(key)
	return env(key)
end

function round_trip(value)
	return json_decode(json_encode(value))
end
`

func setupManager(t *testing.T, source string) (*modules.Manager, *memory.Store) {
	t.Helper()

	root := t.TempDir()
	if source != "" {
		err := os.WriteFile(filepath.Join(root, "echo.lua"), []byte(source), 0o644)
		require.NoError(t, err)
	}

	store := memory.NewStore()
	err := store.SaveModule(context.Background(), &domain.Module{
		Name:   "echo",
		File:   "echo.lua",
		Status: domain.ModuleStatusStop,
	})
	require.NoError(t, err)

	return modules.NewManager(store, root), store
}

func TestManager_CallExportedFunction(t *testing.T) {
	mgr, _ := setupManager(t, echoPlugin)

	result, err := mgr.Call(context.Background(), "echo", "greet", []any{"world"})
	require.NoError(t, err)
	assert.Equal(t, "hello, world", result)
}

func TestManager_ValueConversionRoundTrip(t *testing.T) {
	mgr, _ := setupManager(t, echoPlugin)

	result, err := mgr.Call(context.Background(), "echo", "stats", []any{[]any{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sum": 6, "count": 3}, result)
}

func TestManager_StartMarksModuleRunning(t *testing.T) {
	mgr, store := setupManager(t, echoPlugin)

	require.NoError(t, mgr.Start(context.Background(), "echo"))

	record, err := store.FindModule(context.Background(), "echo")
	require.NoError(t, err)
	assert.Equal(t, domain.ModuleStatusRun, record.Status)
}

func TestManager_LoadFailureMarksError(t *testing.T) {
	mgr, store := setupManager(t, "this is not lua")

	err := mgr.Start(context.Background(), "echo")
	require.Error(t, err)

	record, findErr := store.FindModule(context.Background(), "echo")
	require.NoError(t, findErr)
	assert.Equal(t, domain.ModuleStatusError, record.Status)
}

func TestManager_MissingFile(t *testing.T) {
	mgr, _ := setupManager(t, "")

	err := mgr.Start(context.Background(), "echo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "echo.lua")
}

func TestManager_UnknownModule(t *testing.T) {
	mgr, _ := setupManager(t, echoPlugin)

	err := mgr.Start(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModuleNotFound)
}

func TestManager_FunctionNotExported(t *testing.T) {
	mgr, _ := setupManager(t, echoPlugin)

	_, err := mgr.Call(context.Background(), "echo", "missing", nil)
	assert.ErrorIs(t, err, modules.ErrFunctionNotExported)
}

func TestManager_CachesHandleAcrossCalls(t *testing.T) {
	mgr, _ := setupManager(t, echoPlugin)
	ctx := context.Background()

	first, err := mgr.Get(ctx, "echo")
	require.NoError(t, err)
	second, err := mgr.Get(ctx, "echo")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestManager_ConcurrentFirstLoadsShareOnePlugin(t *testing.T) {
	mgr, _ := setupManager(t, echoPlugin)
	ctx := context.Background()

	const workers = 16
	handles := make([]*modules.Plugin, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plugin, err := mgr.Get(ctx, "echo")
			assert.NoError(t, err)
			handles[i] = plugin
		}()
	}
	wg.Wait()

	for _, h := range handles {
		require.NotNil(t, h)
		assert.Same(t, handles[0], h)
	}
}

func TestPlugin_KeepsStateBetweenCalls(t *testing.T) {
	mgr, _ := setupManager(t, `
		counter = 0
		function bump()
			counter = counter + 1
			return counter
		end
	`)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		result, err := mgr.Call(ctx, "echo", "bump", nil)
		require.NoError(t, err)
		assert.Equal(t, want, result)
	}
}

func TestPlugin_HostHelpers(t *testing.T) {
	t.Setenv("ARBOR_PLUGIN_TOKEN", "s3cret")
	mgr, _ := setupManager(t, echoPlugin)
	ctx := context.Background()

	result, err := mgr.Call(ctx, "echo", "read_env", []any{"ARBOR_PLUGIN_TOKEN"})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", result)

	result, err = mgr.Call(ctx, "echo", "round_trip", []any{map[string]any{"n": 7, "tags": []any{"a", "b"}}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 7, "tags": []any{"a", "b"}}, result)
}

func TestPlugin_Exports(t *testing.T) {
	mgr, _ := setupManager(t, echoPlugin)

	plugin, err := mgr.Get(context.Background(), "echo")
	require.NoError(t, err)
	assert.True(t, plugin.Exports("greet"))
	assert.False(t, plugin.Exports("missing"))
}
