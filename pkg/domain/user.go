package domain

import "time"

// BotUser identifies a chat user on a specific platform.
// The (UserID, Platform) pair is unique; the same human on two platforms is
// two distinct BotUsers.
type BotUser struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform"`

	// Username is the platform-supplied display name, refreshed whenever the
	// platform reports a different one.
	Username string `json:"username,omitempty"`

	// IsActive gates processing: messages from inactive users are dropped
	// silently, before any trace or session work.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
}

// UserParam is one key-value entry of per-user persistent state, keyed by
// (UserID, Platform, Key). Values are always strings; set_param stringifies.
// Params have no TTL and accumulate for the lifetime of the user.
type UserParam struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}
