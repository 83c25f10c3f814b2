package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/models"
)

func seedLogs(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&models.AuditLog{
			Action:  "USER_LOGIN",
			Details: "test entry",
		}).Error)
	}
}

func TestListLogsPagination(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &LogHandler{DB: db}
	seedLogs(t, db, 60)

	rec := invoke(t, e, h.List, httptest.NewRequest(http.MethodGet, "/api/logs", nil), callOpts{})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Len(t, body["logs"], 50)
	pagination := body["pagination"].(map[string]any)
	require.EqualValues(t, 60, pagination["total"])
	require.EqualValues(t, 2, pagination["totalPages"])

	rec = invoke(t, e, h.List, httptest.NewRequest(http.MethodGet, "/api/logs?page=2", nil), callOpts{})
	body = decodeBody(t, rec)
	require.Len(t, body["logs"], 10)
}

func TestHealth(t *testing.T) {
	e := testEcho()
	rec := invoke(t, e, Health, httptest.NewRequest(http.MethodGet, "/api/health", nil), callOpts{})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, body["timestamp"])
}
