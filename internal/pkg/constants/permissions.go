package constants

const (
	ManageListings = "manage_listings"
	ViewLeads      = "view_leads"
	ManageLeads    = "manage_leads"
	ViewAnalytics  = "view_analytics"
)

// PermissionRoles maps each back-office permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ManageListings: {RoleAgent, RoleAdmin},
	ViewLeads:      {RoleAgent, RoleAdmin},
	ManageLeads:    {RoleAgent, RoleAdmin},
	ViewAnalytics:  {RoleAgent, RoleAdmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
