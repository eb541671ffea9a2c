package handlers

import (
	"context"
	"net/http"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/registrations"
	"github.com/campusevents/server/internal/metrics"
)

// RegistrationService is implemented by *registrations.Service.
type RegistrationService interface {
	Register(ctx context.Context, userID, collegeID, eventID int64) (*registrations.Registration, error)
	Cancel(ctx context.Context, userID, eventID int64) (*registrations.Registration, error)
	CheckIn(ctx context.Context, userID, collegeID, eventID int64) (*registrations.Attendance, error)
	CheckOut(ctx context.Context, userID, eventID int64) (*registrations.Attendance, error)
	Attendance(ctx context.Context, collegeID, eventID int64, page pagination.Params) (registrations.AttendeePage, error)
	Summary(ctx context.Context, collegeID, eventID int64) (*registrations.Summary, error)
	History(ctx context.Context, userID int64, filters registrations.HistoryFilters, page pagination.Params) (registrations.HistoryPage, error)
	AttendanceHistory(ctx context.Context, userID int64, filters registrations.AttendanceFilters, page pagination.Params) (registrations.AttendanceHistoryPage, error)
	Browse(ctx context.Context, userID, collegeID int64, filters registrations.BrowseFilters, page pagination.Params) (registrations.BrowsePage, error)
	BrowseEvent(ctx context.Context, userID, collegeID, eventID int64) (*registrations.BrowseEvent, error)
}

const historyPageSize = 10

type StudentHandler struct {
	Service RegistrationService
	Env     string
}

func NewStudentHandler(svc RegistrationService, env string) *StudentHandler {
	return &StudentHandler{Service: svc, Env: env}
}

func (h *StudentHandler) Events(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	q := r.URL.Query()
	filters := registrations.BrowseFilters{
		CategoryID: queryInt64(r, "categoryId"),
		Search:     q.Get("search"),
		SortBy:     events.ParseSortField(q.Get("sortBy")),
		SortOrder:  pagination.ParseSortOrder(q.Get("sortOrder"), pagination.Asc),
	}
	page := pagination.Parse(q, eventsPageSize)

	result, err := h.Service.Browse(r.Context(), user.ID, user.CollegeID, filters, page)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch events")
		return
	}
	writeJSON(w, http.StatusOK, paged("events", result.Events, page, result.Total))
}

func (h *StudentHandler) Event(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}

	event, err := h.Service.BrowseEvent(r.Context(), user.ID, user.CollegeID, id)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch event",
			notFound(registrations.ErrEventNotFound, msgEventGone),
		)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (h *StudentHandler) Register(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "Event not found or not available for registration", h.Env)
	if !ok {
		return
	}

	reg, err := h.Service.Register(r.Context(), user.ID, user.CollegeID, id)
	metrics.Registrations.WithLabelValues(outcomeOf(err,
		outcomeLabel{registrations.ErrEventUnavailable, "unavailable"},
		outcomeLabel{registrations.ErrDeadlinePassed, "deadline_passed"},
		outcomeLabel{registrations.ErrCapacityReached, "capacity_reached"},
		outcomeLabel{registrations.ErrAlreadyRegistered, "already_registered"},
	)).Inc()
	if err != nil {
		fail(w, r, err, h.Env, "Failed to register for event",
			notFound(registrations.ErrEventUnavailable, "Event not found or not available for registration"),
			badRequest(registrations.ErrDeadlinePassed, "Registration deadline has passed"),
			conflict(registrations.ErrCapacityReached, "Event is at full capacity"),
			conflict(registrations.ErrAlreadyRegistered, "Already registered for this event"),
		)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":      "Successfully registered for event",
		"registration": reg,
	})
}

func (h *StudentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "Registration not found", h.Env)
	if !ok {
		return
	}

	reg, err := h.Service.Cancel(r.Context(), user.ID, id)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to cancel registration",
			notFound(registrations.ErrRegistrationNotFound, "Registration not found"),
		)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Registration cancelled successfully",
		"registration": reg,
	})
}

func (h *StudentHandler) Registrations(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	q := r.URL.Query()
	filters := registrations.HistoryFilters{
		Status:    q.Get("status"),
		SortBy:    registrations.ParseRegistrationSort(q.Get("sortBy")),
		SortOrder: pagination.ParseSortOrder(q.Get("sortOrder"), pagination.Desc),
	}
	page := pagination.Parse(q, historyPageSize)

	result, err := h.Service.History(r.Context(), user.ID, filters, page)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch registrations")
		return
	}
	writeJSON(w, http.StatusOK, paged("registrations", result.Registrations, page, result.Total))
}

func (h *StudentHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	q := r.URL.Query()
	filters := registrations.AttendanceFilters{
		SortBy:    registrations.ParseAttendanceSort(q.Get("sortBy")),
		SortOrder: pagination.ParseSortOrder(q.Get("sortOrder"), pagination.Desc),
	}
	page := pagination.Parse(q, historyPageSize)

	result, err := h.Service.AttendanceHistory(r.Context(), user.ID, filters, page)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch attendance history")
		return
	}
	writeJSON(w, http.StatusOK, paged("attendance", result.Attendance, page, result.Total))
}
