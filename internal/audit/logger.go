// Package audit records administrative mutations (event creation, updates,
// status changes, deletions) as structured zerolog events.
package audit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	ActorID      int64             `json:"actor_id"`
	ActorEmail   string            `json:"actor_email,omitempty"`
	CollegeID    int64             `json:"college_id"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   int64             `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address"`
	RequestID    string            `json:"request_id,omitempty"`
	Status       string            `json:"status"`
	Details      map[string]string `json:"details,omitempty"`
}

// Actor identifies who performed an audited action.
type Actor struct {
	ID        int64
	Email     string
	CollegeID int64
}

type Logger struct {
	logger zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Str("component", "audit").Logger()}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.logger.Info().Interface("audit", entry).Msg(entry.Action)
}

// Success records a completed action taken during request r.
func (l *Logger) Success(r *http.Request, actor Actor, action, resourceType string, resourceID int64, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		ActorID:      actor.ID,
		ActorEmail:   actor.Email,
		CollegeID:    actor.CollegeID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    clientIP(r),
		RequestID:    r.Header.Get("X-Request-ID"),
		Status:       "success",
		Details:      details,
	})
}

// Failure records a rejected action.
func (l *Logger) Failure(r *http.Request, actor Actor, action, resourceType string, resourceID int64, reason string) {
	l.Log(Entry{
		Action:       action,
		ActorID:      actor.ID,
		ActorEmail:   actor.Email,
		CollegeID:    actor.CollegeID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    clientIP(r),
		RequestID:    r.Header.Get("X-Request-ID"),
		Status:       "failure",
		Details:      map[string]string{"reason": reason},
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
