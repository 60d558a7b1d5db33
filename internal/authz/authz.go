package authz

import "github.com/eventra/eventra/internal/domain/user"

// Operation names a protected action. The table below is the single place
// role checks are declared; handlers add ownership checks on top where the
// operation is creator-or-management scoped.
type Operation string

const (
	OpCreateEvent       Operation = "events.create"
	OpUpdateEvent       Operation = "events.update"
	OpDeleteEvent       Operation = "events.delete"
	OpApproveEvent      Operation = "events.approve"
	OpRejectEvent       Operation = "events.reject"
	OpListRegistrations Operation = "registrations.list"
	OpRegister          Operation = "registrations.create"
	OpCancelOwn         Operation = "registrations.cancel"
	OpAttachFeedback    Operation = "registrations.feedback"
)

var permissions = map[Operation][]user.Role{
	OpCreateEvent:       {user.RolePresident, user.RoleManagement},
	OpUpdateEvent:       {user.RolePresident, user.RoleManagement},
	OpDeleteEvent:       {user.RolePresident, user.RoleManagement},
	OpApproveEvent:      {user.RoleManagement},
	OpRejectEvent:       {user.RoleManagement},
	OpListRegistrations: {user.RolePresident, user.RoleManagement},
	OpRegister:          {user.RoleStudent},
	OpCancelOwn:         {user.RoleStudent},
	OpAttachFeedback:    {user.RoleStudent},
}

// Allowed reports whether the role may perform the operation. Unknown
// operations are denied.
func Allowed(role user.Role, op Operation) bool {
	for _, r := range permissions[op] {
		if r == role {
			return true
		}
	}

	return false
}
