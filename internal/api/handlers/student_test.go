package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/api/problem"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/registrations"
	"github.com/campusevents/server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRegistrations serves both StudentHandler and AttendanceHandler.
type stubRegistrations struct {
	err error

	registration *registrations.Registration
	attendance   *registrations.Attendance
	attendees    registrations.AttendeePage
	summary      *registrations.Summary
	history      registrations.HistoryPage
	attended     registrations.AttendanceHistoryPage
	browse       registrations.BrowsePage
	browseEvent  *registrations.BrowseEvent

	gotCollege  int64
	gotPage     pagination.Params
	gotBrowse   registrations.BrowseFilters
	gotHistory  registrations.HistoryFilters
	gotAttended registrations.AttendanceFilters
}

func (s *stubRegistrations) Register(_ context.Context, _, collegeID, _ int64) (*registrations.Registration, error) {
	s.gotCollege = collegeID
	return s.registration, s.err
}

func (s *stubRegistrations) Cancel(_ context.Context, _, _ int64) (*registrations.Registration, error) {
	return s.registration, s.err
}

func (s *stubRegistrations) CheckIn(_ context.Context, _, collegeID, _ int64) (*registrations.Attendance, error) {
	s.gotCollege = collegeID
	return s.attendance, s.err
}

func (s *stubRegistrations) CheckOut(_ context.Context, _, _ int64) (*registrations.Attendance, error) {
	return s.attendance, s.err
}

func (s *stubRegistrations) Attendance(_ context.Context, collegeID, _ int64, page pagination.Params) (registrations.AttendeePage, error) {
	s.gotCollege, s.gotPage = collegeID, page
	return s.attendees, s.err
}

func (s *stubRegistrations) Summary(_ context.Context, collegeID, _ int64) (*registrations.Summary, error) {
	s.gotCollege = collegeID
	return s.summary, s.err
}

func (s *stubRegistrations) History(_ context.Context, _ int64, filters registrations.HistoryFilters, page pagination.Params) (registrations.HistoryPage, error) {
	s.gotHistory, s.gotPage = filters, page
	return s.history, s.err
}

func (s *stubRegistrations) AttendanceHistory(_ context.Context, _ int64, filters registrations.AttendanceFilters, page pagination.Params) (registrations.AttendanceHistoryPage, error) {
	s.gotAttended, s.gotPage = filters, page
	return s.attended, s.err
}

func (s *stubRegistrations) Browse(_ context.Context, _, collegeID int64, filters registrations.BrowseFilters, page pagination.Params) (registrations.BrowsePage, error) {
	s.gotCollege, s.gotBrowse, s.gotPage = collegeID, filters, page
	return s.browse, s.err
}

func (s *stubRegistrations) BrowseEvent(_ context.Context, _, collegeID, _ int64) (*registrations.BrowseEvent, error) {
	s.gotCollege = collegeID
	return s.browseEvent, s.err
}

func TestStudentHandler_Register(t *testing.T) {
	svc := &stubRegistrations{registration: &registrations.Registration{
		ID: 7, EventID: 3, UserID: 2, Status: registrations.StatusRegistered, RegistrationDate: time.Now(),
	}}
	h := NewStudentHandler(svc, testEnv)
	before := testutil.ToFloat64(metrics.Registrations.WithLabelValues("ok"))

	rec := httptest.NewRecorder()
	h.Register(rec, newRequest(t, http.MethodPost, "/api/student/events/3/register", testStudent, "3", nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody[struct {
		Message      string                     `json:"message"`
		Registration registrations.Registration `json:"registration"`
	}](t, rec)
	assert.Equal(t, "Successfully registered for event", body.Message)
	assert.Equal(t, int64(7), body.Registration.ID)
	assert.Equal(t, int64(10), svc.gotCollege)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Registrations.WithLabelValues("ok")))
}

func TestStudentHandler_RegisterErrors(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
		outcome string
	}{
		{registrations.ErrEventUnavailable, http.StatusNotFound, "Event not found or not available for registration", "unavailable"},
		{registrations.ErrDeadlinePassed, http.StatusBadRequest, "Registration deadline has passed", "deadline_passed"},
		{registrations.ErrCapacityReached, http.StatusConflict, "Event is at full capacity", "capacity_reached"},
		{registrations.ErrAlreadyRegistered, http.StatusConflict, "Already registered for this event", "already_registered"},
		{errors.New("deadlock"), http.StatusInternalServerError, "Failed to register for event", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			h := NewStudentHandler(&stubRegistrations{err: tt.err}, testEnv)
			counter := metrics.Registrations.WithLabelValues(tt.outcome)
			before := testutil.ToFloat64(counter)

			rec := httptest.NewRecorder()
			h.Register(rec, newRequest(t, http.MethodPost, "/api/student/events/3/register", testStudent, "3", nil))

			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeBody[problem.Body](t, rec).Message)
			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestStudentHandler_Cancel(t *testing.T) {
	h := NewStudentHandler(&stubRegistrations{err: registrations.ErrRegistrationNotFound}, testEnv)
	rec := httptest.NewRecorder()
	h.Cancel(rec, newRequest(t, http.MethodDelete, "/api/student/events/3/register", testStudent, "3", nil))
	requireProblem(t, rec, http.StatusNotFound, problem.TitleNotFound, "Registration not found")

	h = NewStudentHandler(&stubRegistrations{registration: &registrations.Registration{ID: 7, Status: registrations.StatusCancelled}}, testEnv)
	rec = httptest.NewRecorder()
	h.Cancel(rec, newRequest(t, http.MethodDelete, "/api/student/events/3/register", testStudent, "3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Registration cancelled successfully", decodeBody[map[string]any](t, rec)["message"])
}

func TestStudentHandler_Browse(t *testing.T) {
	svc := &stubRegistrations{browse: registrations.BrowsePage{
		Events: []registrations.BrowseEvent{{Event: events.Event{ID: 3, Title: "Open Mic"}, IsRegistered: true}},
		Total:  1,
	}}
	h := NewStudentHandler(svc, testEnv)

	rec := httptest.NewRecorder()
	h.Events(rec, newRequest(t, http.MethodGet, "/api/student/events?search=mic&sortBy=title&limit=500", testStudent, "", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mic", svc.gotBrowse.Search)
	assert.Equal(t, events.SortTitle, svc.gotBrowse.SortBy)
	assert.Equal(t, pagination.Asc, svc.gotBrowse.SortOrder)
	assert.Equal(t, pagination.MaxLimit, svc.gotPage.Limit)

	body := decodeBody[struct {
		Events []registrations.BrowseEvent `json:"events"`
	}](t, rec)
	require.Len(t, body.Events, 1)
	assert.True(t, body.Events[0].IsRegistered)
}

func TestStudentHandler_EventNotFound(t *testing.T) {
	h := NewStudentHandler(&stubRegistrations{err: registrations.ErrEventNotFound}, testEnv)
	rec := httptest.NewRecorder()
	h.Event(rec, newRequest(t, http.MethodGet, "/api/student/events/3", testStudent, "3", nil))
	requireProblem(t, rec, http.StatusNotFound, problem.TitleNotFound, "Event not found")
}

func TestStudentHandler_History(t *testing.T) {
	svc := &stubRegistrations{}
	h := NewStudentHandler(svc, testEnv)

	rec := httptest.NewRecorder()
	h.Registrations(rec, newRequest(t, http.MethodGet, "/api/student/registrations?status=cancelled&page=3", testStudent, "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", svc.gotHistory.Status)
	assert.Equal(t, pagination.Desc, svc.gotHistory.SortOrder)
	assert.Equal(t, pagination.Params{Page: 3, Limit: historyPageSize}, svc.gotPage)

	body := decodeBody[struct {
		Pagination pagination.Meta `json:"pagination"`
	}](t, rec)
	assert.Equal(t, 0, body.Pagination.Pages)

	rec = httptest.NewRecorder()
	h.Attendance(rec, newRequest(t, http.MethodGet, "/api/student/attendance?sortOrder=asc", testStudent, "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pagination.Asc, svc.gotAttended.SortOrder)
}

func TestAttendanceHandler_CheckIn(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"checked in", nil, http.StatusCreated, "Successfully checked in for event"},
		{"unavailable", registrations.ErrCheckInUnavailable, http.StatusNotFound, "Event not found or not available for check-in"},
		{"not registered", registrations.ErrNotRegistered, http.StatusBadRequest, "You must be registered for this event to check in"},
		{"wrong day", registrations.ErrNotEventDay, http.StatusBadRequest, "Check-in is only available on the event date"},
		{"twice", registrations.ErrAlreadyCheckedIn, http.StatusConflict, "Already checked in for this event"},
		{"storage", errors.New("boom"), http.StatusInternalServerError, "Failed to check in for event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubRegistrations{err: tt.err, attendance: &registrations.Attendance{ID: 1, Status: registrations.AttendancePresent}}
			h := NewAttendanceHandler(svc, testEnv)

			rec := httptest.NewRecorder()
			h.CheckIn(rec, newRequest(t, http.MethodPost, "/api/attendance/events/3/checkin", testStudent, "3", nil))

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.message, decodeBody[map[string]any](t, rec)["message"])
		})
	}
}

func TestAttendanceHandler_CheckOut(t *testing.T) {
	h := NewAttendanceHandler(&stubRegistrations{err: registrations.ErrAttendanceNotFound}, testEnv)
	rec := httptest.NewRecorder()
	h.CheckOut(rec, newRequest(t, http.MethodPost, "/api/attendance/events/3/checkout", testStudent, "3", nil))
	requireProblem(t, rec, http.StatusNotFound, problem.TitleNotFound, "No active attendance record found for this event")

	now := time.Now()
	h = NewAttendanceHandler(&stubRegistrations{attendance: &registrations.Attendance{ID: 1, CheckOutTime: &now}}, testEnv)
	rec = httptest.NewRecorder()
	h.CheckOut(rec, newRequest(t, http.MethodPost, "/api/attendance/events/3/checkout", testStudent, "3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully checked out from event", decodeBody[map[string]any](t, rec)["message"])
}

func TestAttendanceHandler_AdminViews(t *testing.T) {
	svc := &stubRegistrations{
		attendees: registrations.AttendeePage{Attendance: []registrations.Attendee{{FirstName: "Sam"}}, Total: 1},
		summary:   &registrations.Summary{EventID: 3, TotalRegistrations: 5, TotalAttendance: 2, AttendancePercentage: 40},
	}
	h := NewAttendanceHandler(svc, testEnv)

	rec := httptest.NewRecorder()
	h.List(rec, newRequest(t, http.MethodGet, "/api/attendance/events/3", testStudent, "3", nil))
	requireProblem(t, rec, http.StatusForbidden, problem.TitleForbidden, "Only admins can view attendance lists")

	rec = httptest.NewRecorder()
	h.Summary(rec, newRequest(t, http.MethodGet, "/api/attendance/events/3/summary", testStudent, "3", nil))
	requireProblem(t, rec, http.StatusForbidden, problem.TitleForbidden, "Only admins can view attendance summaries")

	rec = httptest.NewRecorder()
	h.List(rec, newRequest(t, http.MethodGet, "/api/attendance/events/3", testAdmin, "3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, attendancePageSize, svc.gotPage.Limit)
	assert.Len(t, decodeBody[map[string]any](t, rec)["attendance"], 1)

	rec = httptest.NewRecorder()
	h.Summary(rec, newRequest(t, http.MethodGet, "/api/attendance/events/3/summary", testAdmin, "3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[map[string]registrations.Summary](t, rec)["summary"]
	assert.InDelta(t, 40.0, summary.AttendancePercentage, 0.001)
}

func TestAttendanceHandler_AdminViewsEventNotFound(t *testing.T) {
	h := NewAttendanceHandler(&stubRegistrations{err: registrations.ErrEventNotFound}, testEnv)

	rec := httptest.NewRecorder()
	h.Summary(rec, newRequest(t, http.MethodGet, "/api/attendance/events/3/summary", testAdmin, "3", nil))
	requireProblem(t, rec, http.StatusNotFound, problem.TitleNotFound, "Event not found")
}
