package handlers

import (
	"context"
	"net/http"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/domain/feedback"
	"github.com/campusevents/server/internal/metrics"
)

type FeedbackService interface {
	Submit(ctx context.Context, userID, collegeID, eventID int64, in feedback.Input) (*feedback.Feedback, error)
	Update(ctx context.Context, userID, eventID int64, in feedback.Input) (*feedback.Feedback, error)
	Delete(ctx context.Context, userID, eventID int64) error
	List(ctx context.Context, collegeID, eventID int64, page pagination.Params) (feedback.ListResult, error)
	Summary(ctx context.Context, userID, collegeID int64, role auth.Role, eventID int64) (*feedback.Summary, error)
}

const (
	feedbackPageSize    = 20
	msgFeedbackGone     = "Feedback not found"
	msgEventNotComplete = "Event not found or not completed"
)

type FeedbackHandler struct {
	Service FeedbackService
	Env     string
}

func NewFeedbackHandler(svc FeedbackService, env string) *FeedbackHandler {
	return &FeedbackHandler{Service: svc, Env: env}
}

var feedbackNotFound = notFound(feedback.ErrNotFound, msgFeedbackGone)

func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgEventNotComplete, h.Env)
	if !ok {
		return
	}
	var in feedback.Input
	if !decodeJSON(w, r, &in, h.Env) {
		return
	}

	fb, err := h.Service.Submit(r.Context(), user.ID, user.CollegeID, id, in)
	metrics.FeedbackSubmissions.WithLabelValues(outcomeOf(err,
		outcomeLabel{feedback.ErrEventNotCompleted, "not_completed"},
		outcomeLabel{feedback.ErrNotAttended, "not_attended"},
		outcomeLabel{feedback.ErrAlreadySubmitted, "already_submitted"},
	)).Inc()
	if err != nil {
		fail(w, r, err, h.Env, "Failed to submit feedback",
			notFound(feedback.ErrEventNotCompleted, msgEventNotComplete),
			badRequest(feedback.ErrNotAttended, "You must have attended this event to submit feedback"),
			conflict(feedback.ErrAlreadySubmitted, "Feedback already submitted for this event"),
		)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Feedback submitted successfully",
		"feedback": fb,
	})
}

type feedbackAverage struct {
	AverageRating *float64 `json:"average_rating"`
	TotalFeedback int      `json:"total_feedback"`
}

func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}
	page := pagination.Parse(r.URL.Query(), feedbackPageSize)

	result, err := h.Service.List(r.Context(), user.CollegeID, id, page)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch feedback",
			notFound(feedback.ErrEventNotFound, msgEventGone),
		)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event":    result.Event,
		"feedback": result.Feedback,
		"summary": feedbackAverage{
			AverageRating: result.Aggregate.Average,
			TotalFeedback: result.Aggregate.Count,
		},
		"pagination": page.MetaFor(result.Aggregate.Count),
	})
}

func (h *FeedbackHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgEventGone, h.Env)
	if !ok {
		return
	}

	summary, err := h.Service.Summary(r.Context(), user.ID, user.CollegeID, user.Role, id)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch feedback summary",
			notFound(feedback.ErrEventNotFound, msgEventGone),
			forbidden(feedback.ErrSummaryForbidden, "You must have attended this event to view feedback summary"),
		)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (h *FeedbackHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgFeedbackGone, h.Env)
	if !ok {
		return
	}
	var in feedback.Input
	if !decodeJSON(w, r, &in, h.Env) {
		return
	}

	fb, err := h.Service.Update(r.Context(), user.ID, id, in)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to update feedback", feedbackNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Feedback updated successfully",
		"feedback": fb,
	})
}

func (h *FeedbackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	id, ok := pathID(w, r, msgFeedbackGone, h.Env)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), user.ID, id); err != nil {
		fail(w, r, err, h.Env, "Failed to delete feedback", feedbackNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback deleted successfully"})
}
