package chat

import "github.com/studyhall-app/studyhall/internal/models"

// Capabilities is the set of chat permissions derived from a role. It is
// resolved once per identity instead of comparing role strings at each
// decision point.
type Capabilities struct {
	CanModerate   bool // lock/unlock chat, manage lessons, delete any message
	CanViewAllDMs bool
	CanUnlockSelf bool // exempt from the global lock without a per-student grant
}

// ResolveCapabilities maps a role to its capability set.
func ResolveCapabilities(role models.Role) Capabilities {
	switch role {
	case models.RoleAdmin:
		return Capabilities{CanModerate: true, CanViewAllDMs: true, CanUnlockSelf: true}
	case models.RoleTA:
		return Capabilities{CanModerate: true, CanViewAllDMs: true, CanUnlockSelf: true}
	default:
		return Capabilities{}
	}
}
