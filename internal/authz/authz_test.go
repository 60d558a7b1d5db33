package authz

import (
	"testing"

	"github.com/eventra/eventra/internal/domain/user"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name string
		role user.Role
		op   Operation
		want bool
	}{
		{"president creates events", user.RolePresident, OpCreateEvent, true},
		{"management creates events", user.RoleManagement, OpCreateEvent, true},
		{"student cannot create events", user.RoleStudent, OpCreateEvent, false},
		{"finance cannot create events", user.RoleFinance, OpCreateEvent, false},

		{"management approves", user.RoleManagement, OpApproveEvent, true},
		{"president cannot approve", user.RolePresident, OpApproveEvent, false},
		{"management rejects", user.RoleManagement, OpRejectEvent, true},

		{"student registers", user.RoleStudent, OpRegister, true},
		{"president cannot register", user.RolePresident, OpRegister, false},
		{"management cannot register", user.RoleManagement, OpRegister, false},

		{"student cancels own", user.RoleStudent, OpCancelOwn, true},
		{"student leaves feedback", user.RoleStudent, OpAttachFeedback, true},

		{"president lists registrations", user.RolePresident, OpListRegistrations, true},
		{"management lists registrations", user.RoleManagement, OpListRegistrations, true},
		{"student cannot list registrations", user.RoleStudent, OpListRegistrations, false},

		{"unknown operation denied", user.RoleManagement, Operation("events.explode"), false},
		{"empty role denied", user.Role(""), OpCreateEvent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(tt.role, tt.op); got != tt.want {
				t.Errorf("Allowed(%s, %s) = %v, want %v", tt.role, tt.op, got, tt.want)
			}
		})
	}
}
