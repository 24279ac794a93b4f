package domain

// Seeded permission groups. New users join DefaultGroupID.
const (
	DefaultGroupID = "00000000-0000-0000-0000-000000000001"
	AdminGroupID   = "00000000-0000-0000-0000-000000000002"
)

// SeedPermissions mirrors the group_permissions rows the migrations insert.
// The in-process store is seeded from it.
var SeedPermissions = map[string][]string{
	DefaultGroupID: {
		"delete@/api/v1/auth/logout",
		"get@/api/v1/auth/me",
		"post@/api/v1/auth/change_password",
		"post@/api/v1/videos",
	},
	AdminGroupID: {
		"delete@/api/v1/auth/logout",
		"delete@/api/v1/auth/tokens/expired",
		"delete@/api/v1/videos/{id}",
		"get@/api/v1/auth/me",
		"post@/api/v1/auth/change_password",
		"post@/api/v1/videos",
	},
}
