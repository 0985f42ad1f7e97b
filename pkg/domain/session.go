package domain

import "time"

// UserSession is the pointer to a user's current block, at most one per
// (UserID, Platform). It is created lazily on the user's first message,
// pointing at the start block, and mutated only by go_to. The engine never
// deletes sessions.
type UserSession struct {
	UserID         string    `json:"user_id"`
	Platform       string    `json:"platform"`
	CurrentBlockID int64     `json:"current_block_id"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SessionKey returns the serialization key for a (user, platform) pair.
// All turn processing for one key runs under one lock (see pkg/session).
func SessionKey(userID, platform string) string {
	return platform + ":" + userID
}
