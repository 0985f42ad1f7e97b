package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Connector carries outbound messages to the user. Implemented per messaging
// platform (webhook push, console, a real platform SDK...). The inbound half
// of a connector is expected to call the engine's Process directly.
//
// Send failures are logged by the engine and never retried or surfaced to the
// running script.
type Connector interface {
	Send(ctx context.Context, userID string, msg domain.Message) error
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, userID string, msg domain.Message) error

func (f ConnectorFunc) Send(ctx context.Context, userID string, msg domain.Message) error {
	return f(ctx, userID, msg)
}
