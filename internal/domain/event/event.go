package event

import (
	"errors"
	"time"

	"github.com/eventra/eventra/internal/domain/user"
)

// Status is the approval/publication state of an event.
type Status string

const (
	StatusIdea      Status = "idea"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusLive      Status = "live"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrInvalidState = errors.New("event is not in a valid state for this transition")
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// transitions holds the legal forward edges of the state machine. Cancellation
// is handled separately: any non-terminal state may be cancelled by an
// authorized action.
var transitions = map[Status][]Status{
	StatusIdea:     {StatusPending},
	StatusPending:  {StatusApproved},
	StatusApproved: {StatusLive},
	StatusLive:     {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}

	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// StatusForCreator determines the state a freshly created event lands in.
// Presidents submit for approval, management publishes directly, anyone else
// gets a private draft.
func StatusForCreator(role user.Role) Status {
	switch role {
	case user.RolePresident:
		return StatusPending
	case user.RoleManagement:
		return StatusApproved
	default:
		return StatusIdea
	}
}

type Event struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Description          string    `json:"description,omitempty"`
	Club                 string    `json:"club,omitempty"`
	CreatedBy            string    `json:"createdBy"`
	StartDate            time.Time `json:"startDate"`
	EndDate              time.Time `json:"endDate"`
	Location             string    `json:"location,omitempty"`
	Capacity             int       `json:"capacity"`
	RegistrationDeadline time.Time `json:"registrationDeadline"`
	Status               Status    `json:"status"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// OpenForRegistration reports whether a student may register at all;
// deadline and capacity are checked separately by the ledger.
func (e Event) OpenForRegistration() bool {
	return e.Status == StatusApproved || e.Status == StatusLive
}

// Visibility scopes a listing query to what the caller may see. The zero
// value means unauthenticated, which gets the student set.
type Visibility struct {
	Role   user.Role
	UserID string
}

// with pointers if optional, it will be nil
type ListEventsFilter struct {
	Club   *string
	From   *time.Time
	To     *time.Time
	Scope  Visibility
	Limit  int
	Offset int
}

// Cross-field date rules live in the binding tags so every violated field
// comes back in one validation response.
type CreateEventRequest struct {
	Title                string    `json:"title" binding:"required,min=3,max=120"`
	Description          string    `json:"description" binding:"omitempty,max=2000"`
	Club                 string    `json:"club" binding:"required,min=2,max=80"`
	StartDate            time.Time `json:"startDate" binding:"required"`
	EndDate              time.Time `json:"endDate" binding:"required,gtfield=StartDate"`
	Location             string    `json:"location" binding:"omitempty,max=160"`
	Capacity             int       `json:"capacity" binding:"required,min=1,max=50000"`
	RegistrationDeadline time.Time `json:"registrationDeadline" binding:"required,ltfield=StartDate"`
}

// Updates replay full-document validation, so the payload mirrors create.
type UpdateEventRequest struct {
	Title                string    `json:"title" binding:"required,min=3,max=120"`
	Description          string    `json:"description" binding:"omitempty,max=2000"`
	Club                 string    `json:"club" binding:"required,min=2,max=80"`
	StartDate            time.Time `json:"startDate" binding:"required"`
	EndDate              time.Time `json:"endDate" binding:"required,gtfield=StartDate"`
	Location             string    `json:"location" binding:"omitempty,max=160"`
	Capacity             int       `json:"capacity" binding:"required,min=1,max=50000"`
	RegistrationDeadline time.Time `json:"registrationDeadline" binding:"required,ltfield=StartDate"`
}
