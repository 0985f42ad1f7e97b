package domain

import "errors"

// ErrUserNotFound is returned when no BotUser exists for a (user, platform) pair.
var ErrUserNotFound = errors.New("user not found")

// ErrSessionNotFound is returned when a (user, platform) pair has no session.
var ErrSessionNotFound = errors.New("session not found")

// ErrParamNotFound is returned for a point lookup on an absent user param.
var ErrParamNotFound = errors.New("param not found")

// ErrBlockNotFound is returned when a block id references no existing block.
var ErrBlockNotFound = errors.New("block not found")

// ErrNoStartBlock is returned when the flow defines no start block.
// It is a configuration error: the turn is aborted without a user notice.
var ErrNoStartBlock = errors.New("no start block defined")

// ErrModuleNotFound is returned when a module name has no record.
var ErrModuleNotFound = errors.New("module not found")
