package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

// RunStoreContract runs a suite of tests to verify that a FlowStore
// implementation adheres to the defined interface contract. Adapter test
// files call it with a freshly opened store.
func RunStoreContract(t *testing.T, store FlowStore) {
	ctx := context.Background()
	userID := "contract-user-" + time.Now().Format("20060102150405")
	platform := "contract"

	t.Run("User lifecycle", func(t *testing.T) {
		_, err := store.FindUser(ctx, userID, platform)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)

		user := &domain.BotUser{
			UserID:    userID,
			Platform:  platform,
			Username:  "alice",
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.CreateUser(ctx, user))

		found, err := store.FindUser(ctx, userID, platform)
		require.NoError(t, err)
		assert.Equal(t, "alice", found.Username)
		assert.True(t, found.IsActive)

		found.Username = "alice2"
		found.IsActive = false
		require.NoError(t, store.UpdateUser(ctx, found))

		found, err = store.FindUser(ctx, userID, platform)
		require.NoError(t, err)
		assert.Equal(t, "alice2", found.Username)
		assert.False(t, found.IsActive)

		// Same external id on a different platform is a distinct user.
		_, err = store.FindUser(ctx, userID, "other-platform")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("Session lifecycle", func(t *testing.T) {
		_, err := store.FindSession(ctx, userID, platform)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		session := &domain.UserSession{
			UserID:         userID,
			Platform:       platform,
			CurrentBlockID: 1,
			UpdatedAt:      time.Now().UTC(),
		}
		require.NoError(t, store.CreateSession(ctx, session))

		found, err := store.FindSession(ctx, userID, platform)
		require.NoError(t, err)
		assert.Equal(t, int64(1), found.CurrentBlockID)

		found.CurrentBlockID = 2
		found.UpdatedAt = time.Now().UTC()
		require.NoError(t, store.UpdateSession(ctx, found))

		found, err = store.FindSession(ctx, userID, platform)
		require.NoError(t, err)
		assert.Equal(t, int64(2), found.CurrentBlockID)
	})

	t.Run("Params", func(t *testing.T) {
		_, err := store.GetParam(ctx, userID, platform, "name")
		assert.ErrorIs(t, err, domain.ErrParamNotFound)

		param := &domain.UserParam{UserID: userID, Platform: platform, Key: "name", Value: "Bob"}
		require.NoError(t, store.SetParam(ctx, param))

		value, err := store.GetParam(ctx, userID, platform, "name")
		require.NoError(t, err)
		assert.Equal(t, "Bob", value)

		// Upsert overwrites.
		param.Value = "Carol"
		require.NoError(t, store.SetParam(ctx, param))
		value, err = store.GetParam(ctx, userID, platform, "name")
		require.NoError(t, err)
		assert.Equal(t, "Carol", value)
	})

	t.Run("Blocks", func(t *testing.T) {
		_, err := store.FindBlock(ctx, 99999)
		assert.ErrorIs(t, err, domain.ErrBlockNotFound)

		require.NoError(t, store.SaveBlock(ctx, &domain.Block{
			ID:      1,
			Name:    "menu",
			Script:  `send_message("hello")`,
			IsStart: true,
		}))
		require.NoError(t, store.SaveBlock(ctx, &domain.Block{
			ID:     2,
			Name:   "next",
			Script: `go_to(1)`,
		}))

		block, err := store.FindBlock(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "next", block.Name)

		start, err := store.FindStartBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), start.ID)

		blocks, err := store.ListBlocks(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(blocks), 2)
	})

	t.Run("Traces", func(t *testing.T) {
		blockID := int64(1)
		for i, content := range []string{"first", "second", "third"} {
			trace := &domain.Trace{
				TurnID:    "turn-contract",
				UserID:    userID,
				Platform:  platform,
				Direction: domain.DirectionInbound,
				Content:   content,
				CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
			}
			if i > 0 {
				trace.BlockID = &blockID
				trace.Direction = domain.DirectionOutbound
			}
			require.NoError(t, store.AppendTrace(ctx, trace))
		}

		traces, err := store.ListTraces(ctx, userID, platform, 2)
		require.NoError(t, err)
		require.Len(t, traces, 2)
		assert.Equal(t, "third", traces[0].Content)
		require.NotNil(t, traces[0].BlockID)
		assert.Equal(t, blockID, *traces[0].BlockID)

		traces, err = store.ListTraces(ctx, userID, platform, 10)
		require.NoError(t, err)
		require.Len(t, traces, 3)
		assert.Equal(t, "first", traces[2].Content)
		assert.Nil(t, traces[2].BlockID)
	})

	t.Run("Modules", func(t *testing.T) {
		_, err := store.FindModule(ctx, "assistant")
		assert.ErrorIs(t, err, domain.ErrModuleNotFound)

		require.NoError(t, store.SaveModule(ctx, &domain.Module{
			Name:   "assistant",
			File:   "mod/assistant.lua",
			Status: domain.ModuleStatusStop,
		}))

		module, err := store.FindModule(ctx, "assistant")
		require.NoError(t, err)
		assert.Equal(t, domain.ModuleStatusStop, module.Status)

		require.NoError(t, store.UpdateModuleStatus(ctx, "assistant", domain.ModuleStatusRun))
		module, err = store.FindModule(ctx, "assistant")
		require.NoError(t, err)
		assert.Equal(t, domain.ModuleStatusRun, module.Status)

		err = store.UpdateModuleStatus(ctx, "missing-module", domain.ModuleStatusError)
		assert.Error(t, err)
	})
}
