package event

import (
	"time"

	"github.com/eventra/eventra/internal/domain/user"
	"github.com/google/uuid"
)

func NewFromCreateRequest(req CreateEventRequest, createdBy string, creatorRole user.Role) Event {
	now := time.Now().UTC()

	return Event{
		ID:                   uuid.NewString(),
		Title:                req.Title,
		Description:          req.Description,
		Club:                 req.Club,
		CreatedBy:            createdBy,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		Location:             req.Location,
		Capacity:             req.Capacity,
		RegistrationDeadline: req.RegistrationDeadline,
		Status:               StatusForCreator(creatorRole),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}
