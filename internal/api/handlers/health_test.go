package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = r.values[i].(int)
		case *int64:
			*p = r.values[i].(int64)
		case *bool:
			*p = r.values[i].(bool)
		}
	}
	return nil
}

// fakeHealthDB answers each check by matching a fragment of its query.
type fakeHealthDB map[string]fakeRow

func (db fakeHealthDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	for fragment, row := range db {
		if strings.Contains(sql, fragment) {
			return row
		}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func healthyDB() fakeHealthDB {
	return fakeHealthDB{
		"SELECT 1":           {values: []any{1}},
		"schema_migrations":  {values: []any{int64(7), false}},
		"information_schema": {values: []any{true}},
		"FROM river_job":     {values: []any{int64(2), int64(0)}},
	}
}

func runHealth(t *testing.T, checker *HealthChecker) (*httptest.ResponseRecorder, HealthCheck) {
	t.Helper()
	rec := httptest.NewRecorder()
	checker.Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec, decodeBody[HealthCheck](t, rec)
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	checker := NewHealthChecker(healthyDB(), true, "1.2.0", "abc123")

	rec, body := runHealth(t, checker)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "1.2.0", body.Version)
	assert.Equal(t, "abc123", body.GitCommit)
	assert.NotEmpty(t, body.Timestamp)
	for _, name := range []string{"database", "migrations", "job_queue"} {
		assert.Equal(t, checkPass, body.Checks[name].Status, name)
	}
	assert.EqualValues(t, 7, body.Checks["migrations"].Details["version"])
	assert.EqualValues(t, 2, body.Checks["job_queue"].Details["pending_jobs"])
}

func TestHealthCheck_JobsDisabledIsDegraded(t *testing.T) {
	checker := NewHealthChecker(healthyDB(), false, "dev", "")

	rec, body := runHealth(t, checker)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, checkWarn, body.Checks["job_queue"].Status)
}

func TestHealthCheck_MissingRiverTable(t *testing.T) {
	db := healthyDB()
	db["information_schema"] = fakeRow{values: []any{false}}

	_, body := runHealth(t, NewHealthChecker(db, true, "dev", ""))

	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "River job queue table not found", body.Checks["job_queue"].Message)
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	db := healthyDB()
	db["SELECT 1"] = fakeRow{err: errors.New("dial tcp: connection refused")}

	rec, body := runHealth(t, NewHealthChecker(db, true, "dev", ""))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "Database connection refused", body.Checks["database"].Message)
}

func TestHealthCheck_Migrations(t *testing.T) {
	tests := []struct {
		name    string
		row     fakeRow
		message string
	}{
		{"dirty", fakeRow{values: []any{int64(3), true}}, "Database in dirty migration state - manual intervention required"},
		{"never applied", fakeRow{err: pgx.ErrNoRows}, "Migrations have not been applied"},
		{"table missing", fakeRow{err: errors.New(`relation "schema_migrations" does not exist`)}, "Migrations have not been applied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := healthyDB()
			db["schema_migrations"] = tt.row

			rec, body := runHealth(t, NewHealthChecker(db, true, "dev", ""))

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Equal(t, checkFail, body.Checks["migrations"].Status)
			assert.Equal(t, tt.message, body.Checks["migrations"].Message)
		})
	}
}

func TestHealthCheck_NilPool(t *testing.T) {
	rec, body := runHealth(t, NewHealthChecker(nil, false, "dev", ""))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Database pool not initialized", body.Checks["database"].Message)
}

func TestHealthCheck_ShuttingDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx)
	NewHealthChecker(healthyDB(), true, "dev", "").Health().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting_down", decodeBody[map[string]string](t, rec)["status"])
}
