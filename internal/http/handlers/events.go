package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/eventra/eventra/internal/cache"
	"github.com/eventra/eventra/internal/config"
	"github.com/eventra/eventra/internal/domain/event"
	"github.com/eventra/eventra/internal/domain/user"
	"github.com/eventra/eventra/internal/http/middlewares"
	"github.com/eventra/eventra/internal/utils"
	"github.com/gin-gonic/gin"
)

type EventStore interface {
	Create(ctx context.Context, e event.Event) (event.Event, error)
	List(ctx context.Context, filter event.ListEventsFilter) ([]event.Event, int, error)
	GetByID(ctx context.Context, id string) (event.Event, error)
	Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	Transition(ctx context.Context, id string, from, to event.Status) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

type EventHandler struct {
	events EventStore
	cache  *cache.Cache
}

func NewEventHandler(events EventStore, c *cache.Cache) *EventHandler {
	return &EventHandler{
		events: events,
		cache:  c,
	}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func eventCacheKey(id string) string {
	return "event:" + id
}

func (h *EventHandler) invalidate(id string) {
	if h.cache != nil {
		h.cache.Delete(eventCacheKey(id))
	}
}

// CreateEvent lands the new event in the state the creator's role dictates:
// presidents submit for approval, management publishes directly.
func (h *EventHandler) CreateEvent(ctx *gin.Context) {
	var req event.CreateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID, _ := middlewares.UserIDFromContext(ctx)
	role, ok := middlewares.RoleFromContext(ctx)

	if userID == "" || !ok {
		RespondUnauthenticated(ctx, "Missing identity")
		return
	}

	e := event.NewFromCreateRequest(req, userID, role)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	created, err := h.events.Create(cctx, e)

	if err != nil {
		RespondInternal(ctx, "Could not create event")
		return
	}

	RespondData(ctx, http.StatusCreated, "Event created successfully", gin.H{"event": created})
}

// ListEvents is public; an attached identity only ever widens what comes back.
func (h *EventHandler) ListEvents(ctx *gin.Context) {
	filter, ok := parseListFilter(ctx)

	if !ok {
		return
	}

	if userID, has := middlewares.UserIDFromContext(ctx); has {
		role, _ := middlewares.RoleFromContext(ctx)
		filter.Scope = event.Visibility{Role: role, UserID: userID}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	events, total, err := h.events.List(cctx, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list events")
		return
	}

	RespondData(ctx, http.StatusOK, "", gin.H{
		"events": events,
		"pagination": gin.H{
			"total":  total,
			"limit":  filter.Limit,
			"offset": filter.Offset,
		},
	})
}

func parseListFilter(ctx *gin.Context) (event.ListEventsFilter, bool) {
	filter := event.ListEventsFilter{
		Limit: defaultPageSize,
	}

	if club := ctx.Query("club"); club != "" {
		filter.Club = &club
	}

	if raw := ctx.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "validation_error", "Invalid 'from' date, expected RFC3339", nil)
			return filter, false
		}
		filter.From = &t
	}

	if raw := ctx.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "validation_error", "Invalid 'to' date, expected RFC3339", nil)
			return filter, false
		}
		filter.To = &t
	}

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			RespondBadRequest(ctx, "validation_error", "Invalid 'limit', expected a positive integer", nil)
			return filter, false
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		filter.Limit = n
	}

	if raw := ctx.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondBadRequest(ctx, "validation_error", "Invalid 'offset', expected a non-negative integer", nil)
			return filter, false
		}
		filter.Offset = n
	}

	return filter, true
}

func (h *EventHandler) GetEventByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_reference", "Invalid event id", nil)
		return
	}

	if h.cache != nil {
		if v, ok := h.cache.Get(eventCacheKey(id)); ok {
			if e, ok := v.(event.Event); ok && h.visible(ctx, e) {
				RespondJSONWithETag(ctx, http.StatusOK, gin.H{"success": true, "data": gin.H{"event": e}})
				return
			}
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.events.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not fetch event")
		return
	}

	if !h.visible(ctx, e) {
		// hidden events look absent, not forbidden
		RespondNotFound(ctx, "Event not found")
		return
	}

	if h.cache != nil {
		h.cache.Set(eventCacheKey(id), e)
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"success": true, "data": gin.H{"event": e}})
}

// visible applies the same scoping rule the listing query uses, for a single
// fetched row.
func (h *EventHandler) visible(ctx *gin.Context, e event.Event) bool {
	if e.Status == event.StatusApproved || e.Status == event.StatusLive ||
		e.Status == event.StatusCompleted {
		return true
	}

	role, ok := middlewares.RoleFromContext(ctx)

	if !ok {
		return false
	}

	switch role {
	case user.RoleManagement:
		return true
	case user.RolePresident:
		userID, _ := middlewares.UserIDFromContext(ctx)
		return e.CreatedBy == userID
	default:
		return false
	}
}

// canModify gates update/delete: the creator or management, nobody else.
func canModify(ctx *gin.Context, e event.Event) bool {
	role, ok := middlewares.RoleFromContext(ctx)

	if !ok {
		return false
	}

	if role == user.RoleManagement {
		return true
	}

	userID, _ := middlewares.UserIDFromContext(ctx)

	return e.CreatedBy == userID
}

func (h *EventHandler) UpdateEvent(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_reference", "Invalid event id", nil)
		return
	}

	var req event.UpdateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	existing, err := h.events.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not update event")
		return
	}

	if !canModify(ctx, existing) {
		RespondForbidden(ctx, "You may only modify events you created")
		return
	}

	if existing.Status.Terminal() {
		RespondBadRequest(ctx, "invalid_state", "Completed or cancelled events cannot be modified", nil)
		return
	}

	updated, err := h.events.Update(cctx, id, req)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not update event")
		return
	}

	h.invalidate(id)

	RespondData(ctx, http.StatusOK, "Event updated successfully", gin.H{"event": updated})
}

func (h *EventHandler) DeleteEvent(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_reference", "Invalid event id", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	existing, err := h.events.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not delete event")
		return
	}

	if !canModify(ctx, existing) {
		RespondForbidden(ctx, "You may only delete events you created")
		return
	}

	if err := h.events.Delete(cctx, id); err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not delete event")
		return
	}

	h.invalidate(id)

	RespondData(ctx, http.StatusOK, "Event deleted successfully", nil)
}

// ApproveEvent publishes a pending submission. Approving anything else is a
// state error, not a permission error.
func (h *EventHandler) ApproveEvent(ctx *gin.Context) {
	h.transition(ctx, event.StatusPending, event.StatusApproved, "Event approved successfully")
}

// RejectEvent cancels a pending submission.
func (h *EventHandler) RejectEvent(ctx *gin.Context) {
	h.transition(ctx, event.StatusPending, event.StatusCancelled, "Event rejected")
}

func (h *EventHandler) transition(ctx *gin.Context, from, to event.Status, message string) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_reference", "Invalid event id", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	e, err := h.events.Transition(cctx, id, from, to)

	if err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		case errors.Is(err, event.ErrInvalidState):
			RespondBadRequest(ctx, "invalid_state", "Event is not pending approval", nil)
		default:
			RespondInternal(ctx, "Could not update event status")
		}
		return
	}

	h.invalidate(id)

	RespondData(ctx, http.StatusOK, message, gin.H{"event": e})
}
