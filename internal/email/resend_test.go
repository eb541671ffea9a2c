package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/campusevents/server/internal/config"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	mockServer := httptest.NewServer(handler)
	t.Cleanup(mockServer.Close)

	cfg := config.EmailConfig{
		Enabled:      true,
		From:         "events@college.edu",
		ResendAPIKey: "test-api-key",
	}
	svc, err := NewService(cfg, zerolog.Nop())
	require.NoError(t, err)

	client := resend.NewClient("test-api-key")
	baseURL, err := url.Parse(mockServer.URL)
	require.NoError(t, err)
	client.BaseURL = baseURL
	svc.resendClient = client
	return svc
}

var testMessage = outgoing{to: "student@college.edu", subject: "subject", html: "<p>hi</p>", kind: "feedback_request"}

func TestSendViaResend_Success(t *testing.T) {
	var got map[string]any
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email-123"})
	})

	err := svc.SendRegistrationConfirmation(context.Background(), RegistrationConfirmation{
		To:          "student@college.edu",
		StudentName: "Ada",
		EventTitle:  "Robotics Workshop",
	})
	require.NoError(t, err)

	assert.Equal(t, "events@college.edu", got["from"])
	assert.Equal(t, []any{"student@college.edu"}, got["to"])
	assert.Equal(t, "Registration confirmed: Robotics Workshop", got["subject"])
	assert.Contains(t, got["html"], "Robotics Workshop")
	assert.Equal(t, []any{map[string]any{"name": "notification", "value": "registration_confirmation"}}, got["tags"])
}

func TestSendViaResend_RateLimited(t *testing.T) {
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Rate limit exceeded"})
	})

	err := svc.sendViaResend(context.Background(), testMessage)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSendViaResend_ServerError(t *testing.T) {
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "boom"})
	})

	err := svc.sendViaResend(context.Background(), testMessage)
	require.Error(t, err)
	assert.ErrorContains(t, err, "resend API error")
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestSendViaResend_ContextCancelled(t *testing.T) {
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.sendViaResend(ctx, testMessage)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
