// Package rbac maps the two account kinds to the capabilities they hold.
package rbac

type Role string
type Action string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

const (
	// ActionRead covers shared read surfaces (sermons, categories, search).
	ActionRead Action = "read"
	// ActionParticipate covers member-facing operations: events, prayers,
	// view/like ledgers, notifications, own profile.
	ActionParticipate Action = "participate"
	// ActionManage covers admin operations: content CRUD, member
	// administration, workflow decisions, dashboard.
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return action == ActionRead || action == ActionManage
	case RoleMember:
		return action == ActionRead || action == ActionParticipate
	default:
		return false
	}
}

// Normalize returns the known role or empty. Unknown roles must not fall
// back to a permissive default.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleAdmin:
		return Role(role)
	default:
		return ""
	}
}
