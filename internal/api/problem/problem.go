// Package problem writes the JSON error body shared by every endpoint:
// {"error": <title>, "message": <user-facing text>}.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/campusevents/server/internal/validation"
	"github.com/rs/zerolog"
)

const contentType = "application/json; charset=utf-8"

const (
	TitleValidation      = "Validation Error"
	TitleBadRequest      = "Bad Request"
	TitleUnauthorized    = "Unauthorized"
	TitleAccessDenied    = "Access denied"
	TitleForbidden       = "Forbidden"
	TitleNotFound        = "Not Found"
	TitleConflict        = "Conflict"
	TitleTooLarge        = "Payload Too Large"
	TitleTooManyRequests = "Too Many Requests"
	TitleInternal        = "Internal Server Error"
	TitleUnavailable     = "Service Unavailable"
)

type Body struct {
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Details []validation.Error `json:"details,omitempty"`
	Debug   string             `json:"debug,omitempty"`
}

type Option func(*Body)

// WithDetails attaches per-field validation failures.
func WithDetails(errs validation.Errors) Option {
	return func(b *Body) {
		b.Details = errs
	}
}

// Write logs err through the request logger and writes the error body. The
// underlying error text is only exposed in development and test.
func Write(w http.ResponseWriter, r *http.Request, status int, title, message string, err error, env string, opts ...Option) {
	body := Body{Error: title, Message: message}
	for _, opt := range opts {
		opt(&body)
	}
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}
	if err != nil && status >= 500 && (env == "development" || env == "test") {
		body.Debug = err.Error()
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		var event *zerolog.Event
		if status >= 500 {
			event = logger.Error()
		} else {
			event = logger.Warn()
		}
		event.Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	}

	WriteBody(w, status, body)
}

// Validation writes a 400 whose message is the first failure.
func Validation(w http.ResponseWriter, r *http.Request, errs validation.Errors, env string) {
	message := ""
	if len(errs) > 0 {
		message = errs[0].Message
	}
	Write(w, r, http.StatusBadRequest, TitleValidation, message, errs, env, WithDetails(errs))
}

// Internal writes a 500 with a fixed, operation-specific message.
func Internal(w http.ResponseWriter, r *http.Request, message string, err error, env string) {
	Write(w, r, http.StatusInternalServerError, TitleInternal, message, err, env)
}

func WriteBody(w http.ResponseWriter, status int, body Body) {
	payload, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal Server Error","message":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
