package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/modules"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// turnContext is the script capability context: one per block run, bound to a
// user, platform and session. It implements script.Bindings and owns the
// outbound buffer the flush drains after the script returns.
//
// The turn's context.Context is carried in the struct because the Lua call
// path has no room for one; a turnContext never outlives its block run.
type turnContext struct {
	ctx context.Context

	store     ports.Store
	connector ports.Connector
	modules   *modules.Manager
	logger    *slog.Logger
	clock     func() time.Time

	turnID   string
	userID   string
	platform string
	session  *domain.UserSession

	chunkLimit int
	onChunk    func()

	outbox []domain.Message
	jumped bool
}

func (t *turnContext) GetParam(key string) (string, bool, error) {
	value, err := t.store.GetParam(t.ctx, t.userID, t.platform, key)
	if errors.Is(err, domain.ErrParamNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (t *turnContext) SetParam(key, value string) error {
	return t.store.SetParam(t.ctx, &domain.UserParam{
		UserID:   t.userID,
		Platform: t.platform,
		Key:      key,
		Value:    value,
	})
}

// SendMessage buffers; nothing reaches the connector until Flush.
func (t *turnContext) SendMessage(msg domain.Message) {
	t.outbox = append(t.outbox, msg)
}

// GoTo advances the session row immediately and flags the engine to re-enter.
// Script statements after the call still run.
func (t *turnContext) GoTo(blockID int64) error {
	t.session.CurrentBlockID = blockID
	t.session.UpdatedAt = t.clock().UTC()
	if err := t.store.UpdateSession(t.ctx, t.session); err != nil {
		return err
	}
	t.jumped = true
	return nil
}

func (t *turnContext) StartModule(name string) error {
	return t.modules.Start(t.ctx, name)
}

func (t *turnContext) CallModule(name, fn string, args []any) (any, error) {
	return t.modules.Call(t.ctx, name, fn, args)
}

// flush drains the outbound buffer in call order: each message is chunked,
// each chunk is traced (intent-to-send) and then handed to the connector.
// Buttons and the contact request ride only on the last chunk of a message.
// Connector failures are logged and never abort the rest of the flush.
func (t *turnContext) flush(ctx context.Context) {
	for _, msg := range t.outbox {
		if msg.Text == "" {
			continue
		}

		chunks := SplitMessage(msg.Text, t.chunkLimit)
		for i, chunk := range chunks {
			blockID := t.session.CurrentBlockID
			trace := &domain.Trace{
				TurnID:    t.turnID,
				UserID:    t.userID,
				Platform:  t.platform,
				BlockID:   &blockID,
				Direction: domain.DirectionOutbound,
				Content:   chunk,
				CreatedAt: t.clock().UTC(),
			}
			if err := t.store.AppendTrace(ctx, trace); err != nil {
				t.logger.Error("outbound trace write failed", "user_id", t.userID, "err", err)
			}

			out := domain.Message{Text: chunk, Format: msg.Format}
			if i == len(chunks)-1 {
				out.Buttons = msg.Buttons
				out.RequestContact = msg.RequestContact
			}
			if err := t.connector.Send(ctx, t.userID, out); err != nil {
				t.logger.Error("connector send failed",
					"user_id", t.userID,
					"platform", t.platform,
					"err", err,
				)
			}
			if t.onChunk != nil {
				t.onChunk()
			}
		}
	}
	t.outbox = nil
}

// chunkName names a block's Lua chunk in script error messages.
func chunkName(blockID int64) string {
	return fmt.Sprintf("block:%d", blockID)
}
