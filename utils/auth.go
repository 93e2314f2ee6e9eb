package utils

import "echo-helper/model"

// Capability levels
const (
	NoCapability          = "none"
	StaffCapability       = "staff"
	TicketAdminCapability = "ticket_admin"
	CouncilCapability     = "council"
	TeamCapability        = "team"
	CommunityCapability   = "community"
	MediaCapability       = "media"
)

// contains checks if a slice of strings contains an element.
func contains(slice []string, item string) bool {
	for _, a := range slice {
		if a == item {
			return true
		}
	}
	return false
}

func hasAny(userRoleIDs []string, required ...string) bool {
	for _, id := range required {
		if id != "" && contains(userRoleIDs, id) {
			return true
		}
	}
	return false
}

// HasCapability checks a member's roles against one capability.
func HasCapability(userRoleIDs []string, capability string, roles model.RoleConfig) bool {
	switch capability {
	case NoCapability:
		return true
	case StaffCapability:
		return hasAny(userRoleIDs, roles.Staff()...)
	case TicketAdminCapability:
		return hasAny(userRoleIDs, roles.TicketAdmin)
	case CouncilCapability:
		return hasAny(userRoleIDs, roles.Council)
	case TeamCapability:
		return hasAny(userRoleIDs, roles.Team)
	case CommunityCapability:
		return hasAny(userRoleIDs, roles.Community)
	case MediaCapability:
		return hasAny(userRoleIDs, roles.Media)
	default:
		return false
	}
}

// HasAllCapabilities requires every listed capability.
func HasAllCapabilities(userRoleIDs []string, roles model.RoleConfig, capabilities ...string) bool {
	for _, c := range capabilities {
		if !HasCapability(userRoleIDs, c, roles) {
			return false
		}
	}
	return true
}

// HasAnyCapability requires at least one listed capability.
func HasAnyCapability(userRoleIDs []string, roles model.RoleConfig, capabilities ...string) bool {
	for _, c := range capabilities {
		if HasCapability(userRoleIDs, c, roles) {
			return true
		}
	}
	return false
}
