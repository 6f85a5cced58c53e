package chat

import "errors"

// Send and dispatch rejections. These surface to the acting user; they never
// leave partial state behind because each dispatch is a single write.
var (
	ErrChatLocked        = errors.New("chat is locked")
	ErrArchiveReadOnly   = errors.New("archived lessons are read-only")
	ErrEmptyMessage      = errors.New("message content is required")
	ErrPremiumRequired   = errors.New("premium subscription required")
	ErrReplyTargetGone   = errors.New("reply target not found in this room")
	ErrInvalidTransition = errors.New("invalid lesson state transition")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("not permitted")
)
