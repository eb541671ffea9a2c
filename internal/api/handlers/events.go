package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/api/problem"
	"github.com/campusevents/server/internal/audit"
	"github.com/campusevents/server/internal/domain/events"
)

type EventService interface {
	List(ctx context.Context, collegeID int64, filters events.Filters, page pagination.Params) (events.ListResult, error)
	Get(ctx context.Context, id, collegeID int64) (*events.Event, error)
	Create(ctx context.Context, createdBy, collegeID int64, in events.Input) (*events.Event, error)
	Update(ctx context.Context, id, collegeID int64, in events.Input) (*events.Event, error)
	SetStatus(ctx context.Context, id, collegeID int64, raw string) (*events.Event, error)
	Delete(ctx context.Context, id, collegeID int64) error
	Registrations(ctx context.Context, id, collegeID int64, status string, page pagination.Params) (events.RosterResult, error)
}

const (
	eventsPageSize = 10
	rosterPageSize = 20
	msgEventGone   = "Event not found"
)

type EventsHandler struct {
	Service EventService
	Audit   *audit.Logger
	Env     string
}

func NewEventsHandler(svc EventService, auditLogger *audit.Logger, env string) *EventsHandler {
	return &EventsHandler{Service: svc, Audit: auditLogger, Env: env}
}

var eventNotFound = notFound(events.ErrNotFound, msgEventGone)

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}

	q := r.URL.Query()
	filters := events.Filters{
		CategoryID: queryInt64(r, "categoryId"),
		Search:     q.Get("search"),
		SortBy:     events.ParseSortField(q.Get("sortBy")),
		SortOrder:  pagination.ParseSortOrder(q.Get("sortOrder"), pagination.Asc),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, valid := events.ParseStatus(raw)
		if !valid {
			problem.Write(w, r, http.StatusBadRequest, problem.TitleValidation,
				"Invalid status. Must be one of: draft, published, cancelled, completed", nil, h.Env)
			return
		}
		filters.Status = status
	}
	page := pagination.Parse(q, eventsPageSize)

	result, err := h.Service.List(r.Context(), user.CollegeID, filters, page)
	if err != nil {
		problem.Internal(w, r, "Failed to fetch events", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, paged("events", result.Events, page, result.Total))
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}

	event, err := h.Service.Get(r.Context(), id, user.CollegeID)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch event", eventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	var in events.Input
	if !decodeJSON(w, r, &in, h.Env) {
		return
	}

	event, err := h.Service.Create(r.Context(), user.ID, user.CollegeID, in)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to create event",
			badRequest(events.ErrInvalidCategory, "Invalid category ID"),
		)
		return
	}

	h.Audit.Success(r, actor(user), "event.create", "event", event.ID, map[string]string{"title": event.Title})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Event created successfully",
		"event":   event,
	})
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}
	var in events.Input
	if !decodeJSON(w, r, &in, h.Env) {
		return
	}

	event, err := h.Service.Update(r.Context(), id, user.CollegeID, in)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to update event",
			eventNotFound,
			badRequest(events.ErrCompleted, "Cannot update completed events"),
			badRequest(events.ErrInvalidCategory, "Invalid category ID"),
		)
		return
	}

	h.Audit.Success(r, actor(user), "event.update", "event", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Event updated successfully",
		"event":   event,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *EventsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}
	var in statusRequest
	if !decodeJSON(w, r, &in, h.Env) {
		return
	}

	event, err := h.Service.SetStatus(r.Context(), id, user.CollegeID, in.Status)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to update event status",
			eventNotFound,
			errorCase{events.ErrInvalidStatus, http.StatusBadRequest, problem.TitleValidation,
				"Invalid status. Must be one of: draft, published, cancelled, completed"},
		)
		return
	}

	h.Audit.Success(r, actor(user), "event.status", "event", id, map[string]string{"status": string(event.Status)})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Event status updated successfully",
		"event":   event,
	})
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), id, user.CollegeID); err != nil {
		fail(w, r, err, h.Env, "Failed to delete event",
			eventNotFound,
			badRequest(events.ErrHasRegistrations, "Cannot delete event with existing registrations"),
		)
		return
	}

	h.Audit.Success(r, actor(user), "event.delete", "event", id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}

func (h *EventsHandler) Registrations(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}
	page := pagination.Parse(r.URL.Query(), rosterPageSize)

	roster, err := h.Service.Registrations(r.Context(), id, user.CollegeID, r.URL.Query().Get("status"), page)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch registrations", eventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, paged("registrations", roster.Registrations, page, roster.Total))
}
