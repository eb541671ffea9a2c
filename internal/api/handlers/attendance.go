package handlers

import (
	"net/http"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/api/problem"
	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/domain/registrations"
	"github.com/campusevents/server/internal/metrics"
)

const attendancePageSize = 20

// AttendanceHandler serves check-in/out for any role and the admin views.
// The admin views check the role themselves because their 403 messages are
// specific to the view.
type AttendanceHandler struct {
	Service RegistrationService
	Env     string
}

func NewAttendanceHandler(svc RegistrationService, env string) *AttendanceHandler {
	return &AttendanceHandler{Service: svc, Env: env}
}

func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "Event not found or not available for check-in", h.Env)
	if !ok {
		return
	}

	att, err := h.Service.CheckIn(r.Context(), user.ID, user.CollegeID, id)
	metrics.CheckIns.WithLabelValues(outcomeOf(err,
		outcomeLabel{registrations.ErrCheckInUnavailable, "unavailable"},
		outcomeLabel{registrations.ErrNotRegistered, "not_registered"},
		outcomeLabel{registrations.ErrNotEventDay, "not_event_day"},
		outcomeLabel{registrations.ErrAlreadyCheckedIn, "already_checked_in"},
	)).Inc()
	if err != nil {
		fail(w, r, err, h.Env, "Failed to check in for event",
			notFound(registrations.ErrCheckInUnavailable, "Event not found or not available for check-in"),
			badRequest(registrations.ErrNotRegistered, "You must be registered for this event to check in"),
			badRequest(registrations.ErrNotEventDay, "Check-in is only available on the event date"),
			conflict(registrations.ErrAlreadyCheckedIn, "Already checked in for this event"),
		)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Successfully checked in for event",
		"attendance": att,
	})
}

func (h *AttendanceHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "No active attendance record found for this event", h.Env)
	if !ok {
		return
	}

	att, err := h.Service.CheckOut(r.Context(), user.ID, id)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to check out from event",
			notFound(registrations.ErrAttendanceNotFound, "No active attendance record found for this event"),
		)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Successfully checked out from event",
		"attendance": att,
	})
}

func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	if !auth.IsAdmin(user.Role) {
		problem.Write(w, r, http.StatusForbidden, problem.TitleForbidden, "Only admins can view attendance lists", nil, h.Env)
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}
	page := pagination.Parse(r.URL.Query(), attendancePageSize)

	result, err := h.Service.Attendance(r.Context(), user.CollegeID, id, page)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch attendance list",
			notFound(registrations.ErrEventNotFound, msgEventGone),
		)
		return
	}
	writeJSON(w, http.StatusOK, paged("attendance", result.Attendance, page, result.Total))
}

func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	if !auth.IsAdmin(user.Role) {
		problem.Write(w, r, http.StatusForbidden, problem.TitleForbidden, "Only admins can view attendance summaries", nil, h.Env)
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}

	summary, err := h.Service.Summary(r.Context(), user.CollegeID, id)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch attendance summary",
			notFound(registrations.ErrEventNotFound, msgEventGone),
		)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}
