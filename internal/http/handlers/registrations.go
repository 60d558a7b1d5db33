package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eventra/eventra/internal/config"
	"github.com/eventra/eventra/internal/domain/event"
	"github.com/eventra/eventra/internal/domain/registration"
	"github.com/eventra/eventra/internal/domain/user"
	"github.com/eventra/eventra/internal/http/middlewares"
	"github.com/eventra/eventra/internal/utils"
	"github.com/gin-gonic/gin"
)

type RegistrationStore interface {
	Create(ctx context.Context, req registration.CreateRegistrationRequest, now time.Time) (registration.Registration, error)
	GetByID(ctx context.Context, registrationID string) (registration.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]registration.Registration, error)
	ListByStudent(ctx context.Context, studentID string) ([]registration.Registration, error)
	Cancel(ctx context.Context, registrationID string) (registration.Registration, error)
	AttachFeedback(ctx context.Context, registrationID, feedback string) (registration.Registration, error)
}

// EventReader is the slice of the events store the ledger needs for
// ownership and end-date checks.
type EventReader interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
}

type RegistrationHandler struct {
	registrations RegistrationStore
	events        EventReader
}

func NewRegistrationHandler(registrations RegistrationStore, events EventReader) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		events:        events,
	}
}

// Register admits the caller to an event. All admission rules (duplicate,
// capacity, deadline, open state) are enforced atomically by the store.
func (h *RegistrationHandler) Register(ctx *gin.Context) {
	eventID := ctx.Param("id")

	if !utils.IsUUID(eventID) {
		RespondBadRequest(ctx, "invalid_reference", "Invalid event id", nil)
		return
	}

	var req registration.CreateRegistrationRequest

	if !BindJSON(ctx, &req) {
		return
	}

	studentID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || studentID == "" {
		RespondUnauthenticated(ctx, "Missing identity")
		return
	}

	req.EventID = eventID
	req.StudentID = studentID

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	reg, err := h.registrations.Create(cctx, req, time.Now().UTC())

	if err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		case errors.Is(err, registration.ErrAlreadyRegistered):
			RespondConflict(ctx, "already_registered", "You are already registered for this event")
		case errors.Is(err, registration.ErrEventFull):
			RespondConflict(ctx, "capacity_exceeded", "Event is at full capacity")
		case errors.Is(err, registration.ErrDeadlinePassed):
			RespondBadRequest(ctx, "deadline_passed", "Registration deadline has passed", nil)
		case errors.Is(err, registration.ErrEventNotOpen):
			RespondBadRequest(ctx, "invalid_state", "Event is not open for registration", nil)
		default:
			RespondInternal(ctx, "Could not register for event")
		}
		return
	}

	RespondData(ctx, http.StatusCreated, "Registered successfully", gin.H{"registration": reg})
}

// ListForEvent serves the attendee roster. Management sees any event's
// roster, presidents only their own events'.
func (h *RegistrationHandler) ListForEvent(ctx *gin.Context) {
	eventID := ctx.Param("id")

	if !utils.IsUUID(eventID) {
		RespondBadRequest(ctx, "invalid_reference", "Invalid event id", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	role, _ := middlewares.RoleFromContext(ctx)

	if role != user.RoleManagement {
		e, err := h.events.GetByID(cctx, eventID)

		if err != nil {
			if errors.Is(err, event.ErrNotFound) {
				RespondNotFound(ctx, "Event not found")
				return
			}
			RespondInternal(ctx, "Could not list registrations")
			return
		}

		userID, _ := middlewares.UserIDFromContext(ctx)

		if e.CreatedBy != userID {
			RespondForbidden(ctx, "You may only view registrations for events you created")
			return
		}
	}

	regs, err := h.registrations.ListByEvent(cctx, eventID)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not list registrations")
		return
	}

	RespondData(ctx, http.StatusOK, "", gin.H{
		"registrations": regs,
		"count":         len(regs),
	})
}

// ListMine returns the caller's own registration history, newest first.
func (h *RegistrationHandler) ListMine(ctx *gin.Context) {
	studentID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || studentID == "" {
		RespondUnauthenticated(ctx, "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	regs, err := h.registrations.ListByStudent(cctx, studentID)

	if err != nil {
		RespondInternal(ctx, "Could not list registrations")
		return
	}

	RespondData(ctx, http.StatusOK, "", gin.H{
		"registrations": regs,
		"count":         len(regs),
	})
}

// loadOwned fetches a registration under its event path and enforces that the
// caller owns it. A registration reached through the wrong event looks absent.
func (h *RegistrationHandler) loadOwned(ctx *gin.Context, cctx context.Context) (registration.Registration, bool) {
	eventID := ctx.Param("id")
	registrationID := ctx.Param("registrationId")

	if !utils.IsUUID(eventID) {
		RespondBadRequest(ctx, "invalid_reference", "Invalid event id", nil)
		return registration.Registration{}, false
	}

	if !utils.IsUUID(registrationID) {
		RespondBadRequest(ctx, "invalid_reference", "Invalid registration id", nil)
		return registration.Registration{}, false
	}

	reg, err := h.registrations.GetByID(cctx, registrationID)

	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			RespondNotFound(ctx, "Registration not found")
			return registration.Registration{}, false
		}
		RespondInternal(ctx, "Could not fetch registration")
		return registration.Registration{}, false
	}

	if reg.EventID != eventID {
		RespondNotFound(ctx, "Registration not found")
		return registration.Registration{}, false
	}

	studentID, _ := middlewares.UserIDFromContext(ctx)

	if reg.StudentID != studentID {
		RespondForbidden(ctx, "You may only manage your own registrations")
		return registration.Registration{}, false
	}

	return reg, true
}

// Cancel releases the caller's seat. Cancelling twice is a no-op success.
func (h *RegistrationHandler) Cancel(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	reg, ok := h.loadOwned(ctx, cctx)

	if !ok {
		return
	}

	if reg.Status == registration.StatusCancelled {
		RespondData(ctx, http.StatusOK, "Registration already cancelled", gin.H{"registration": reg})
		return
	}

	cancelled, err := h.registrations.Cancel(cctx, reg.ID)

	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			RespondNotFound(ctx, "Registration not found")
			return
		}
		RespondInternal(ctx, "Could not cancel registration")
		return
	}

	RespondData(ctx, http.StatusOK, "Registration cancelled", gin.H{"registration": cancelled})
}

// AttachFeedback accepts feedback once the event has ended; writing again
// overwrites the previous text.
func (h *RegistrationHandler) AttachFeedback(ctx *gin.Context) {
	var req registration.AttachFeedbackRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	reg, ok := h.loadOwned(ctx, cctx)

	if !ok {
		return
	}

	if reg.Status == registration.StatusCancelled {
		RespondBadRequest(ctx, "invalid_state", "Cancelled registrations cannot receive feedback", nil)
		return
	}

	e, err := h.events.GetByID(cctx, reg.EventID)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not attach feedback")
		return
	}

	if time.Now().UTC().Before(e.EndDate) {
		RespondBadRequest(ctx, "invalid_state", "Feedback can only be left after the event has ended", nil)
		return
	}

	updated, err := h.registrations.AttachFeedback(cctx, reg.ID, req.Feedback)

	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			RespondNotFound(ctx, "Registration not found")
			return
		}
		RespondInternal(ctx, "Could not attach feedback")
		return
	}

	RespondData(ctx, http.StatusOK, "Feedback saved", gin.H{"registration": updated})
}
