package problem

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusevents/server/internal/validation"
)

func decode(t *testing.T, res *httptest.ResponseRecorder) Body {
	t.Helper()
	var body Body
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestWrite_ErrorAndMessage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/events/9", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusNotFound, TitleNotFound, "Event not found", errors.New("no rows"), "production")

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if got := res.Result().Header.Get("Content-Type"); got != contentType {
		t.Fatalf("unexpected content type %s", got)
	}
	body := decode(t, res)
	if body.Error != "Not Found" || body.Message != "Event not found" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Debug != "" {
		t.Fatalf("4xx must not carry debug detail, got %q", body.Debug)
	}
}

func TestWrite_DevIncludesDebugOnServerErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/events", nil)
	res := httptest.NewRecorder()

	Internal(res, req, "Failed to fetch events", errors.New("connection refused"), "development")

	body := decode(t, res)
	if body.Message != "Failed to fetch events" {
		t.Fatalf("expected generic message, got %s", body.Message)
	}
	if body.Debug != "connection refused" {
		t.Fatalf("expected debug detail, got %q", body.Debug)
	}
}

func TestWrite_ProdHidesServerErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/events", nil)
	res := httptest.NewRecorder()

	Internal(res, req, "Failed to fetch events", errors.New("connection refused"), "production")

	if body := decode(t, res); body.Debug != "" {
		t.Fatalf("expected no debug detail, got %q", body.Debug)
	}
}

func TestValidation_FirstMessageAndDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/auth/register", nil)
	res := httptest.NewRecorder()

	errs := validation.Errors{
		{Field: "password", Message: "password must be at least 6 characters long"},
		{Field: "role", Message: "role must be one of: admin, student"},
	}
	Validation(res, req, errs, "production")

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	body := decode(t, res)
	if body.Error != TitleValidation || body.Message != errs[0].Message {
		t.Fatalf("unexpected body %+v", body)
	}
	if len(body.Details) != 2 {
		t.Fatalf("expected 2 details, got %d", len(body.Details))
	}
}
