package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/audit"
	"github.com/staffdesk/emis/internal/config"
	"github.com/staffdesk/emis/internal/httperr"
	"github.com/staffdesk/emis/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	return db
}

func testEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	return e
}

func testAudit(db *gorm.DB) *audit.Recorder {
	return &audit.Recorder{DB: db}
}

type callOpts struct {
	principal *models.User
	params    map[string]string
}

func invoke(t *testing.T, e *echo.Echo, h echo.HandlerFunc, req *http.Request, opts callOpts) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if opts.principal != nil {
		c.Set("principal", opts.principal)
	}
	if len(opts.params) > 0 {
		names := make([]string, 0, len(opts.params))
		values := make([]string, 0, len(opts.params))
		for name, value := range opts.params {
			names = append(names, name)
			values = append(values, value)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func jsonReq(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func adminPrincipal(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "irrelevant",
		Role:         models.RoleAdmin,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedEmployee(t *testing.T, db *gorm.DB, name, position string, salary float64, deptID *uint) *models.Employee {
	t.Helper()
	emp := &models.Employee{Name: name, Position: position, Salary: salary, DepartmentID: deptID}
	require.NoError(t, db.Create(emp).Error)
	return emp
}

func seedDepartment(t *testing.T, db *gorm.DB, name string) *models.Department {
	t.Helper()
	dept := &models.Department{Name: name}
	require.NoError(t, db.Create(dept).Error)
	return dept
}

func seedCategory(t *testing.T, db *gorm.DB, name string) *models.FeedbackCategory {
	t.Helper()
	cat := &models.FeedbackCategory{Name: name}
	require.NoError(t, db.Create(cat).Error)
	return cat
}
