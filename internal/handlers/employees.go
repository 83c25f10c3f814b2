package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/audit"
	"github.com/staffdesk/emis/internal/httperr"
	"github.com/staffdesk/emis/internal/logging"
	authmw "github.com/staffdesk/emis/internal/middleware/auth"
	"github.com/staffdesk/emis/internal/models"
	"github.com/staffdesk/emis/internal/service/search"
	"github.com/staffdesk/emis/internal/util"
)

type EmployeeHandler struct {
	DB    *gorm.DB
	Audit *audit.Recorder
	ES    *elasticsearch.Client
	Index string
}

func (h *EmployeeHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, limit, offset := util.Normalize(page, limit, 10)

	q := h.DB.WithContext(ctx).Model(&models.Employee{})
	if s := c.QueryParam("search"); s != "" {
		like := "%" + s + "%"
		q = q.Where("lower(name) LIKE lower(?) OR lower(position) LIKE lower(?)", like, like)
	}
	if dept := c.QueryParam("department"); dept != "" && dept != "all" {
		q = q.Joins("JOIN departments ON departments.id = employees.department_id").
			Where("departments.name = ?", dept)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return internalError(c, "list_employees", err)
	}

	var employees []models.Employee
	if err := q.Preload("Department").
		Order("employees.id asc").
		Offset(offset).Limit(limit).
		Find(&employees).Error; err != nil {
		return internalError(c, "list_employees", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"employees":  employees,
		"pagination": util.Paginate(total, page, limit),
	})
}

func (h *EmployeeHandler) Get(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid employee id")
	}

	var employee models.Employee
	if err := h.DB.WithContext(c.Request().Context()).
		Preload("Department").
		First(&employee, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, "Employee not found")
		}
		return internalError(c, "get_employee", err)
	}
	return c.JSON(http.StatusOK, employee)
}

type employeeRequest struct {
	Name         string   `json:"name"`
	Position     string   `json:"position"`
	Salary       *float64 `json:"salary"`
	DepartmentID *uint    `json:"department_id"`
}

func (h *EmployeeHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_employee")

	var req employeeRequest
	if err := c.Bind(&req); err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid body")
	}
	if req.Name == "" || req.Position == "" || req.Salary == nil {
		return httperr.New(http.StatusBadRequest, "All fields are required")
	}

	employee := models.Employee{
		Name:         req.Name,
		Position:     req.Position,
		Salary:       *req.Salary,
		DepartmentID: req.DepartmentID,
	}
	if err := h.DB.WithContext(ctx).Create(&employee).Error; err != nil {
		return internalError(c, "create_employee", err)
	}

	principal := authmw.Principal(c)
	h.Audit.Record(ctx, audit.ActionEmployeeAdded, principalID(principal), c.RealIP(),
		"Added employee: "+employee.Name)

	h.indexEmployee(c, l, &employee)

	l.Info("employee_created", "employee_id", employee.ID)
	return c.JSON(http.StatusCreated, employee)
}

func (h *EmployeeHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_employee")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid employee id")
	}

	var employee models.Employee
	if err := h.DB.WithContext(ctx).First(&employee, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, "Employee not found")
		}
		return internalError(c, "update_employee", err)
	}

	var req employeeRequest
	if err := c.Bind(&req); err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid body")
	}
	if req.Name != "" {
		employee.Name = req.Name
	}
	if req.Position != "" {
		employee.Position = req.Position
	}
	if req.Salary != nil {
		employee.Salary = *req.Salary
	}
	if req.DepartmentID != nil {
		employee.DepartmentID = req.DepartmentID
	}

	if err := h.DB.WithContext(ctx).Save(&employee).Error; err != nil {
		return internalError(c, "update_employee", err)
	}

	h.Audit.Record(ctx, audit.ActionEmployeeUpdated, principalID(authmw.Principal(c)), c.RealIP(),
		"Updated employee: "+employee.Name)
	h.indexEmployee(c, l, &employee)

	return c.JSON(http.StatusOK, employee)
}

func (h *EmployeeHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete_employee")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid employee id")
	}

	var employee models.Employee
	if err := h.DB.WithContext(ctx).First(&employee, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, "Employee not found")
		}
		return internalError(c, "delete_employee", err)
	}

	if err := h.DB.WithContext(ctx).Delete(&models.Employee{}, id).Error; err != nil {
		return internalError(c, "delete_employee", err)
	}

	h.Audit.Record(ctx, audit.ActionEmployeeDeleted, principalID(authmw.Principal(c)), c.RealIP(),
		"Deleted employee: "+employee.Name)

	if h.ES != nil {
		if err := search.DeleteEmployee(ctx, h.ES, h.Index, employee.ID); err != nil {
			l.Warn("es_delete_failed", "employee_id", employee.ID, "error", err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Employee deleted successfully"})
}

func (h *EmployeeHandler) Search(c echo.Context) error {
	if h.ES == nil {
		return httperr.New(http.StatusServiceUnavailable, "Search is not available")
	}

	q := c.QueryParam("q")
	if q == "" {
		return httperr.New(http.StatusBadRequest, "Query parameter q is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, limit, offset := util.Normalize(page, limit, 10)

	total, employees, err := search.Search(c.Request().Context(), h.ES, h.Index, q, offset, limit)
	if err != nil {
		return internalError(c, "search_employees", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"employees":  employees,
		"pagination": util.Paginate(total, page, limit),
	})
}

func (h *EmployeeHandler) indexEmployee(c echo.Context, l *slog.Logger, employee *models.Employee) {
	if h.ES == nil {
		return
	}
	if err := search.IndexEmployee(c.Request().Context(), h.ES, h.Index, employee); err != nil {
		l.Warn("es_index_failed", "employee_id", employee.ID, "error", err)
	}
}

func principalID(user *models.User) *uint {
	if user == nil {
		return nil
	}
	return &user.ID
}

func internalError(c echo.Context, handler string, err error) error {
	logging.FromContext(c.Request().Context()).Error(fmt.Sprintf("%s_failed", handler),
		"status", 500, "error", err)
	return httperr.New(http.StatusInternalServerError, "Internal server error")
}
