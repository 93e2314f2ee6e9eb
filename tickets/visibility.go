package tickets

import "echo-helper/model"

func roleRule(id string, allow bool) model.VisibilityRule {
	return model.VisibilityRule{PrincipalID: id, Kind: model.PrincipalRole, Allow: allow}
}

func memberRule(id string, allow bool) model.VisibilityRule {
	return model.VisibilityRule{PrincipalID: id, Kind: model.PrincipalMember, Allow: allow}
}

// openRules is the visibility of an unclaimed ticket: hidden from everyone
// except the requester and every staff role.
func openRules(everyoneRoleID, requesterID string, roles model.RoleConfig) []model.VisibilityRule {
	rules := []model.VisibilityRule{roleRule(everyoneRoleID, false)}
	if requesterID != "" {
		rules = append(rules, memberRule(requesterID, true))
	}
	for _, id := range roles.Staff() {
		rules = append(rules, roleRule(id, true))
	}
	return rules
}

// claimedRules narrows a ticket to ticket admins, the requester and the claimant.
func claimedRules(everyoneRoleID, requesterID, claimantID string, roles model.RoleConfig) []model.VisibilityRule {
	rules := []model.VisibilityRule{roleRule(everyoneRoleID, false)}
	for _, id := range roles.StaffTiers() {
		rules = append(rules, roleRule(id, false))
	}
	if roles.TicketAdmin != "" {
		rules = append(rules, roleRule(roles.TicketAdmin, true))
	}
	if requesterID != "" {
		rules = append(rules, memberRule(requesterID, true))
	}
	rules = append(rules, memberRule(claimantID, true))
	return rules
}
