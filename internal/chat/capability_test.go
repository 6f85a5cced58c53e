package chat

import (
	"testing"

	"github.com/studyhall-app/studyhall/internal/models"
)

func TestResolveCapabilities(t *testing.T) {
	tests := []struct {
		role models.Role
		want Capabilities
	}{
		{models.RoleAdmin, Capabilities{CanModerate: true, CanViewAllDMs: true, CanUnlockSelf: true}},
		{models.RoleTA, Capabilities{CanModerate: true, CanViewAllDMs: true, CanUnlockSelf: true}},
		{models.RoleStudent, Capabilities{}},
		{models.Role("unknown"), Capabilities{}},
	}

	for _, tt := range tests {
		if got := ResolveCapabilities(tt.role); got != tt.want {
			t.Errorf("ResolveCapabilities(%q) = %+v, want %+v", tt.role, got, tt.want)
		}
	}
}
