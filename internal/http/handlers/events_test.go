package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/eventra/eventra/internal/cache"
	"github.com/eventra/eventra/internal/domain/event"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeEventStore struct {
	events map[string]event.Event

	lastFilter event.ListEventsFilter
	listErr    error
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: map[string]event.Event{}}
}

func (s *fakeEventStore) Create(_ context.Context, e event.Event) (event.Event, error) {
	s.events[e.ID] = e
	return e, nil
}

func (s *fakeEventStore) List(_ context.Context, filter event.ListEventsFilter) ([]event.Event, int, error) {
	s.lastFilter = filter

	if s.listErr != nil {
		return nil, 0, s.listErr
	}

	out := make([]event.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}

	return out, len(out), nil
}

func (s *fakeEventStore) GetByID(_ context.Context, id string) (event.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return e, nil
}

func (s *fakeEventStore) Update(_ context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}

	e.Title = req.Title
	e.Description = req.Description
	e.Club = req.Club
	e.StartDate = req.StartDate
	e.EndDate = req.EndDate
	e.Location = req.Location
	e.Capacity = req.Capacity
	e.RegistrationDeadline = req.RegistrationDeadline
	e.UpdatedAt = time.Now().UTC()

	s.events[id] = e

	return e, nil
}

func (s *fakeEventStore) Transition(_ context.Context, id string, from, to event.Status) (event.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}

	if e.Status != from {
		return event.Event{}, event.ErrInvalidState
	}

	e.Status = to
	s.events[id] = e

	return e, nil
}

func (s *fakeEventStore) Delete(_ context.Context, id string) error {
	if _, ok := s.events[id]; !ok {
		return event.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func seedEvent(s *fakeEventStore, status event.Status, createdBy string) event.Event {
	start := time.Now().UTC().Add(48 * time.Hour)

	e := event.Event{
		ID:                   uuid.NewString(),
		Title:                "Tech Fest",
		Club:                 "CS Society",
		CreatedBy:            createdBy,
		StartDate:            start,
		EndDate:              start.Add(6 * time.Hour),
		Capacity:             100,
		RegistrationDeadline: start.Add(-12 * time.Hour),
		Status:               status,
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}

	s.events[e.ID] = e

	return e
}

const validEventBody = `{
	"title":"Tech Fest",
	"club":"CS Society",
	"startDate":"2027-03-01T10:00:00Z",
	"endDate":"2027-03-01T18:00:00Z",
	"capacity":100,
	"registrationDeadline":"2027-02-27T23:59:59Z"
}`

func asRole(userID, role string, params ...gin.Param) func(*gin.Context) {
	return func(c *gin.Context) {
		setTestIdentity(c, userID, userID+"@campus.edu", role)
		c.Params = append(c.Params, params...)
	}
}

func anonymous(params ...gin.Param) func(*gin.Context) {
	return func(c *gin.Context) {
		c.Params = append(c.Params, params...)
	}
}

func TestCreateEvent(t *testing.T) {
	tests := []struct {
		role       string
		wantStatus event.Status
	}{
		{"president", event.StatusPending},
		{"management", event.StatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			store := newFakeEventStore()
			h := NewEventHandler(store, nil)

			rec := performJSON(h.CreateEvent, validEventBody, asRole("creator-1", tt.role))

			if rec.Code != http.StatusCreated {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}

			if len(store.events) != 1 {
				t.Fatalf("stored %d events", len(store.events))
			}

			for _, e := range store.events {
				if e.Status != tt.wantStatus {
					t.Errorf("status = %s, want %s", e.Status, tt.wantStatus)
				}
				if e.CreatedBy != "creator-1" {
					t.Errorf("createdBy = %s", e.CreatedBy)
				}
			}
		})
	}

	t.Run("rejects end date before start date", func(t *testing.T) {
		store := newFakeEventStore()
		h := NewEventHandler(store, nil)

		body := `{
			"title":"Tech Fest",
			"club":"CS Society",
			"startDate":"2027-03-01T18:00:00Z",
			"endDate":"2027-03-01T10:00:00Z",
			"capacity":100,
			"registrationDeadline":"2027-02-27T23:59:59Z"
		}`

		rec := performJSON(h.CreateEvent, body, asRole("creator-1", "president"))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("rejects deadline after start date", func(t *testing.T) {
		store := newFakeEventStore()
		h := NewEventHandler(store, nil)

		body := `{
			"title":"Tech Fest",
			"club":"CS Society",
			"startDate":"2027-03-01T10:00:00Z",
			"endDate":"2027-03-01T18:00:00Z",
			"capacity":100,
			"registrationDeadline":"2027-03-02T00:00:00Z"
		}`

		rec := performJSON(h.CreateEvent, body, asRole("creator-1", "president"))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestListEventsScope(t *testing.T) {
	t.Run("anonymous gets the zero scope", func(t *testing.T) {
		store := newFakeEventStore()
		h := NewEventHandler(store, nil)

		rec := performJSON(h.ListEvents, "", anonymous())

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		if store.lastFilter.Scope.Role != "" || store.lastFilter.Scope.UserID != "" {
			t.Errorf("anonymous scope = %+v", store.lastFilter.Scope)
		}
	})

	t.Run("identity widens the scope", func(t *testing.T) {
		store := newFakeEventStore()
		h := NewEventHandler(store, nil)

		rec := performJSON(h.ListEvents, "", asRole("pres-1", "president"))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		if store.lastFilter.Scope.UserID != "pres-1" {
			t.Errorf("scope userID = %q", store.lastFilter.Scope.UserID)
		}
	})

	t.Run("default pagination applied", func(t *testing.T) {
		store := newFakeEventStore()
		h := NewEventHandler(store, nil)

		performJSON(h.ListEvents, "", anonymous())

		if store.lastFilter.Limit != defaultPageSize {
			t.Errorf("limit = %d, want %d", store.lastFilter.Limit, defaultPageSize)
		}
	})
}

func TestGetEventByID(t *testing.T) {
	t.Run("malformed id", func(t *testing.T) {
		h := NewEventHandler(newFakeEventStore(), nil)

		rec := performJSON(h.GetEventByID, "", anonymous(gin.Param{Key: "id", Value: "not-a-uuid"}))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("well formed but absent id", func(t *testing.T) {
		h := NewEventHandler(newFakeEventStore(), nil)

		rec := performJSON(h.GetEventByID, "", anonymous(gin.Param{Key: "id", Value: uuid.NewString()}))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("published event is public and tagged", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusApproved, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.GetEventByID, "", anonymous(gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		if rec.Header().Get("ETag") == "" {
			t.Error("no ETag on event detail")
		}
	})

	t.Run("draft hidden from anonymous callers", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusIdea, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.GetEventByID, "", anonymous(gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("draft visible to its creator", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusIdea, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.GetEventByID, "", asRole("pres-1", "president", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("pending visible to management", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusPending, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.GetEventByID, "", asRole("mgr-1", "management", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("second read hits the cache", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusApproved, "pres-1")
		h := NewEventHandler(store, cache.New(time.Minute))

		performJSON(h.GetEventByID, "", anonymous(gin.Param{Key: "id", Value: e.ID}))

		// remove from the store: a cache hit still serves it
		delete(store.events, e.ID)

		rec := performJSON(h.GetEventByID, "", anonymous(gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want cached 200", rec.Code)
		}
	})
}

func TestUpdateEvent(t *testing.T) {
	t.Run("creator updates own event", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusPending, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.UpdateEvent, validEventBody, asRole("pres-1", "president", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("other president forbidden", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusPending, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.UpdateEvent, validEventBody, asRole("pres-2", "president", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("management updates anyone's event", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusPending, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.UpdateEvent, validEventBody, asRole("mgr-1", "management", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("terminal event immutable", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusCompleted, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.UpdateEvent, validEventBody, asRole("pres-1", "president", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("update invalidates the detail cache", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusApproved, "pres-1")
		c := cache.New(time.Minute)
		h := NewEventHandler(store, c)

		// warm the cache
		performJSON(h.GetEventByID, "", anonymous(gin.Param{Key: "id", Value: e.ID}))

		rec := performJSON(h.UpdateEvent, validEventBody, asRole("pres-1", "president", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		if _, hit := c.Get("event:" + e.ID); hit {
			t.Error("stale entry survived the update")
		}
	})
}

func TestDeleteEvent(t *testing.T) {
	t.Run("other president forbidden", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusPending, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.DeleteEvent, "", asRole("pres-2", "president", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}

		if _, ok := store.events[e.ID]; !ok {
			t.Error("event deleted despite 403")
		}
	})

	t.Run("creator deletes own event", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusPending, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.DeleteEvent, "", asRole("pres-1", "president", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		if _, ok := store.events[e.ID]; ok {
			t.Error("event still present")
		}
	})
}

func TestApproveEvent(t *testing.T) {
	t.Run("pending approved", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusPending, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.ApproveEvent, "", asRole("mgr-1", "management", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		if store.events[e.ID].Status != event.StatusApproved {
			t.Errorf("status = %s", store.events[e.ID].Status)
		}
	})

	t.Run("approving a non-pending event is a state error", func(t *testing.T) {
		store := newFakeEventStore()
		e := seedEvent(store, event.StatusLive, "pres-1")
		h := NewEventHandler(store, nil)

		rec := performJSON(h.ApproveEvent, "", asRole("mgr-1", "management", gin.Param{Key: "id", Value: e.ID}))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		h := NewEventHandler(newFakeEventStore(), nil)

		rec := performJSON(h.ApproveEvent, "", asRole("mgr-1", "management", gin.Param{Key: "id", Value: uuid.NewString()}))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestRejectEvent(t *testing.T) {
	store := newFakeEventStore()
	e := seedEvent(store, event.StatusPending, "pres-1")
	h := NewEventHandler(store, nil)

	rec := performJSON(h.RejectEvent, "", asRole("mgr-1", "management", gin.Param{Key: "id", Value: e.ID}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if store.events[e.ID].Status != event.StatusCancelled {
		t.Errorf("status = %s, want cancelled", store.events[e.ID].Status)
	}
}
