package permission

import "errors"

// Permission errors.
var (
	// ErrEmptyIdentity indicates a missing subscriber identity.
	ErrEmptyIdentity = errors.New("subscriber identity cannot be empty")

	// ErrInvalidRule indicates a malformed permission rule pattern.
	ErrInvalidRule = errors.New("invalid permission rule")

	// ErrRulesUnreadable indicates the rules source could not be read at all.
	ErrRulesUnreadable = errors.New("permission rules unreadable")
)
