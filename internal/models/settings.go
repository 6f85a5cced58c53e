package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatLockSetting is the platform-wide chat lock flag, mutable by staff and
// observed by all class-room participants. Stored as a single row.
type ChatLockSetting struct {
	IsLocked  bool       `json:"is_locked"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
