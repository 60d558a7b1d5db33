package registration

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrAlreadyRegistered = errors.New("registration already exists")
	ErrEventFull         = errors.New("event is full")
	ErrDeadlinePassed    = errors.New("registration deadline has passed")
	ErrEventNotOpen      = errors.New("event is not open for registration")
	ErrEventNotOver      = errors.New("event has not ended yet")
	ErrNotFound          = errors.New("registration not found")
)

type Registration struct {
	ID                  string    `json:"id"`
	EventID             string    `json:"eventId"`
	StudentID           string    `json:"studentId"`
	RegistrationDate    time.Time `json:"registrationDate"`
	RollNumber          string    `json:"rollNumber"`
	Course              string    `json:"course,omitempty"`
	Year                int       `json:"year,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	DietaryRequirements string    `json:"dietaryRequirements,omitempty"`
	SpecialRequests     string    `json:"specialRequests,omitempty"`
	Feedback            *string   `json:"feedback,omitempty"`
	Status              Status    `json:"status"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type CreateRegistrationRequest struct {
	EventID             string `json:"-"`
	StudentID           string `json:"-"`
	RollNumber          string `json:"rollNumber" binding:"required,min=1,max=40"`
	Course              string `json:"course" binding:"omitempty,max=120"`
	Year                int    `json:"year" binding:"omitempty,min=1,max=8"`
	Phone               string `json:"phone" binding:"omitempty,min=7,max=20"`
	DietaryRequirements string `json:"dietaryRequirements" binding:"omitempty,max=300"`
	SpecialRequests     string `json:"specialRequests" binding:"omitempty,max=500"`
}

type AttachFeedbackRequest struct {
	Feedback string `json:"feedback" binding:"required,min=1,max=2000"`
}

// A factory to build a Registration from the incoming DTO

func NewFromCreateRequest(req CreateRegistrationRequest) Registration {
	now := time.Now().UTC()
	return Registration{
		ID:                  uuid.NewString(),
		EventID:             req.EventID,
		StudentID:           req.StudentID,
		RegistrationDate:    now,
		RollNumber:          req.RollNumber,
		Course:              req.Course,
		Year:                req.Year,
		Phone:               req.Phone,
		DietaryRequirements: req.DietaryRequirements,
		SpecialRequests:     req.SpecialRequests,
		Status:              StatusConfirmed,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
