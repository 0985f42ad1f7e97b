package domain

import "time"

// Direction tags a trace row as user-to-bot or bot-to-user.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Trace is one append-only audit row per message direction. Outbound messages
// produce one row per chunk, written before the connector attempt, so the
// trace records intent-to-send rather than confirmed delivery. The engine
// never mutates or deletes trace rows.
type Trace struct {
	ID int64 `json:"id"`

	// TurnID correlates all rows produced by a single inbound message,
	// including chained block re-entries.
	TurnID string `json:"turn_id"`

	UserID   string `json:"user_id"`
	Platform string `json:"platform"`

	// BlockID is the session's current block at the time of logging.
	// Nil when the user has no session yet.
	BlockID *int64 `json:"block_id,omitempty"`

	Direction Direction `json:"direction"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
