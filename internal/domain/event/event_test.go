package event

import (
	"testing"
	"time"

	"github.com/eventra/eventra/internal/domain/user"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"idea to pending", StatusIdea, StatusPending, true},
		{"pending to approved", StatusPending, StatusApproved, true},
		{"approved to live", StatusApproved, StatusLive, true},
		{"live to completed", StatusLive, StatusCompleted, true},

		{"idea to approved skips review", StatusIdea, StatusApproved, false},
		{"pending to live skips approval", StatusPending, StatusLive, false},
		{"approved back to pending", StatusApproved, StatusPending, false},
		{"completed to live", StatusCompleted, StatusLive, false},

		{"idea cancellable", StatusIdea, StatusCancelled, true},
		{"pending cancellable", StatusPending, StatusCancelled, true},
		{"live cancellable", StatusLive, StatusCancelled, true},
		{"completed not cancellable", StatusCompleted, StatusCancelled, false},
		{"cancelled not cancellable again", StatusCancelled, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusForCreator(t *testing.T) {
	tests := []struct {
		role user.Role
		want Status
	}{
		{user.RolePresident, StatusPending},
		{user.RoleManagement, StatusApproved},
		{user.RoleStudent, StatusIdea},
		{user.RoleFinance, StatusIdea},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			if got := StatusForCreator(tt.role); got != tt.want {
				t.Errorf("StatusForCreator(%s) = %s, want %s", tt.role, got, tt.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusIdea, StatusPending, StatusApproved, StatusLive} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}

	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestOpenForRegistration(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusIdea, false},
		{StatusPending, false},
		{StatusApproved, true},
		{StatusLive, true},
		{StatusCompleted, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		e := Event{Status: tt.status}
		if got := e.OpenForRegistration(); got != tt.want {
			t.Errorf("OpenForRegistration with status %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestNewFromCreateRequest(t *testing.T) {
	start := time.Now().Add(48 * time.Hour)

	req := CreateEventRequest{
		Title:                "Robotics Expo",
		Club:                 "Robotics Club",
		StartDate:            start,
		EndDate:              start.Add(4 * time.Hour),
		Capacity:             120,
		RegistrationDeadline: start.Add(-24 * time.Hour),
	}

	e := NewFromCreateRequest(req, "creator-1", user.RolePresident)

	if e.ID == "" {
		t.Fatal("expected a generated id")
	}

	if e.Status != StatusPending {
		t.Errorf("president-created event status = %s, want %s", e.Status, StatusPending)
	}

	if e.CreatedBy != "creator-1" {
		t.Errorf("createdBy = %q, want creator-1", e.CreatedBy)
	}
}
