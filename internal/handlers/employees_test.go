package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/staffdesk/emis/internal/models"
)

func TestListEmployeesPagination(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &EmployeeHandler{DB: db, Audit: testAudit(db)}

	for i := 0; i < 15; i++ {
		seedEmployee(t, db, "Employee", "Engineer", 50000, nil)
	}

	rec := invoke(t, e, h.List, httptest.NewRequest(http.MethodGet, "/api/employees?page=2&limit=10", nil), callOpts{})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Len(t, body["employees"], 5)

	pagination := body["pagination"].(map[string]any)
	require.EqualValues(t, 15, pagination["total"])
	require.EqualValues(t, 2, pagination["page"])
	require.EqualValues(t, 10, pagination["limit"])
	require.EqualValues(t, 2, pagination["totalPages"])
}

func TestListEmployeesSearch(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &EmployeeHandler{DB: db, Audit: testAudit(db)}

	seedEmployee(t, db, "Alice Johnson", "Engineer", 70000, nil)
	seedEmployee(t, db, "Bob Smith", "Designer", 60000, nil)

	rec := invoke(t, e, h.List, httptest.NewRequest(http.MethodGet, "/api/employees?search=alice", nil), callOpts{})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Len(t, body["employees"], 1)
	require.Contains(t, rec.Body.String(), "Alice Johnson")

	// Position matches too.
	rec = invoke(t, e, h.List, httptest.NewRequest(http.MethodGet, "/api/employees?search=design", nil), callOpts{})
	require.Contains(t, rec.Body.String(), "Bob Smith")
}

func TestListEmployeesDepartmentFilter(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &EmployeeHandler{DB: db, Audit: testAudit(db)}

	eng := seedDepartment(t, db, "Engineering")
	sales := seedDepartment(t, db, "Sales")
	seedEmployee(t, db, "Alice", "Engineer", 70000, &eng.ID)
	seedEmployee(t, db, "Bob", "Rep", 50000, &sales.ID)

	rec := invoke(t, e, h.List, httptest.NewRequest(http.MethodGet, "/api/employees?department=Engineering", nil), callOpts{})
	body := decodeBody(t, rec)
	require.Len(t, body["employees"], 1)
	require.Contains(t, rec.Body.String(), "Alice")

	// "all" disables the filter.
	rec = invoke(t, e, h.List, httptest.NewRequest(http.MethodGet, "/api/employees?department=all", nil), callOpts{})
	body = decodeBody(t, rec)
	require.Len(t, body["employees"], 2)
}

func TestGetEmployee(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &EmployeeHandler{DB: db, Audit: testAudit(db)}

	dept := seedDepartment(t, db, "Engineering")
	seedEmployee(t, db, "Alice", "Engineer", 70000, &dept.ID)

	rec := invoke(t, e, h.Get, httptest.NewRequest(http.MethodGet, "/api/employees/1", nil),
		callOpts{params: map[string]string{"id": "1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Alice")
	require.Contains(t, rec.Body.String(), "Engineering")

	rec = invoke(t, e, h.Get, httptest.NewRequest(http.MethodGet, "/api/employees/999", nil),
		callOpts{params: map[string]string{"id": "999"}})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Employee not found")
}

func TestCreateEmployee(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &EmployeeHandler{DB: db, Audit: testAudit(db)}
	admin := adminPrincipal(t, db)

	rec := invoke(t, e, h.Create,
		jsonReq(http.MethodPost, "/api/employees", `{"name":"Alice","position":"Engineer","salary":70000}`),
		callOpts{principal: admin})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "Alice")

	var count int64
	require.NoError(t, db.Model(&models.Employee{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// The add lands in the audit trail.
	var log models.AuditLog
	require.NoError(t, db.Where("action = ?", "EMPLOYEE_ADDED").First(&log).Error)
	require.Equal(t, &admin.ID, log.UserID)
}

func TestCreateEmployeeMissingFields(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &EmployeeHandler{DB: db, Audit: testAudit(db)}

	rec := invoke(t, e, h.Create,
		jsonReq(http.MethodPost, "/api/employees", `{"name":"Alice"}`), callOpts{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "All fields are required")

	// Zero is a valid salary; only a missing one is rejected.
	rec = invoke(t, e, h.Create,
		jsonReq(http.MethodPost, "/api/employees", `{"name":"Intern","position":"Intern","salary":0}`), callOpts{})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestUpdateEmployeePartial(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &EmployeeHandler{DB: db, Audit: testAudit(db)}

	emp := seedEmployee(t, db, "Alice", "Engineer", 70000, nil)

	rec := invoke(t, e, h.Update,
		jsonReq(http.MethodPut, "/api/employees/1", `{"salary":80000}`),
		callOpts{params: map[string]string{"id": "1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Employee
	require.NoError(t, db.First(&updated, emp.ID).Error)
	require.Equal(t, "Alice", updated.Name)
	require.Equal(t, "Engineer", updated.Position)
	require.EqualValues(t, 80000, updated.Salary)
}

func TestDeleteEmployee(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &EmployeeHandler{DB: db, Audit: testAudit(db)}

	seedEmployee(t, db, "Alice", "Engineer", 70000, nil)

	rec := invoke(t, e, h.Delete, httptest.NewRequest(http.MethodDelete, "/api/employees/1", nil),
		callOpts{params: map[string]string{"id": "1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Employee deleted successfully")

	var count int64
	require.NoError(t, db.Model(&models.Employee{}).Count(&count).Error)
	require.EqualValues(t, 0, count)

	rec = invoke(t, e, h.Delete, httptest.NewRequest(http.MethodDelete, "/api/employees/1", nil),
		callOpts{params: map[string]string{"id": "1"}})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchUnavailableWithoutBackend(t *testing.T) {
	e := testEcho()
	db := testDB(t)
	h := &EmployeeHandler{DB: db, Audit: testAudit(db)}

	rec := invoke(t, e, h.Search, httptest.NewRequest(http.MethodGet, "/api/employees/search?q=alice", nil), callOpts{})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "Search is not available")
}
