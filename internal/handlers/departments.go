package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/audit"
	"github.com/staffdesk/emis/internal/cache"
	"github.com/staffdesk/emis/internal/httperr"
	authmw "github.com/staffdesk/emis/internal/middleware/auth"
	"github.com/staffdesk/emis/internal/models"
)

type DepartmentHandler struct {
	DB    *gorm.DB
	Audit *audit.Recorder
	Cache *cache.Cache[[]models.Department]
}

func (h *DepartmentHandler) List(c echo.Context) error {
	if departments, ok := h.Cache.Get(); ok {
		return c.JSON(http.StatusOK, departments)
	}

	var departments []models.Department
	if err := h.DB.WithContext(c.Request().Context()).
		Order("name asc").
		Find(&departments).Error; err != nil {
		return internalError(c, "list_departments", err)
	}

	h.Cache.Set(departments)
	return c.JSON(http.StatusOK, departments)
}

func (h *DepartmentHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return httperr.New(http.StatusBadRequest, "Department name is required")
	}

	department := models.Department{Name: strings.TrimSpace(req.Name)}
	if err := h.DB.WithContext(ctx).Create(&department).Error; err != nil {
		if isUniqueViolation(err) {
			return httperr.New(http.StatusBadRequest, "Department already exists")
		}
		return internalError(c, "create_department", err)
	}

	h.Cache.Invalidate()
	h.Audit.Record(ctx, audit.ActionDepartmentCreated, principalID(authmw.Principal(c)), c.RealIP(),
		"Created department: "+department.Name)
	return c.JSON(http.StatusCreated, department)
}

func (h *DepartmentHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid department id")
	}

	var department models.Department
	if err := h.DB.WithContext(ctx).First(&department, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, "Department not found")
		}
		return internalError(c, "update_department", err)
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return httperr.New(http.StatusBadRequest, "Department name is required")
	}

	department.Name = strings.TrimSpace(req.Name)
	if err := h.DB.WithContext(ctx).Save(&department).Error; err != nil {
		if isUniqueViolation(err) {
			return httperr.New(http.StatusBadRequest, "Department already exists")
		}
		return internalError(c, "update_department", err)
	}

	h.Cache.Invalidate()
	h.Audit.Record(ctx, audit.ActionDepartmentUpdated, principalID(authmw.Principal(c)), c.RealIP(),
		"Updated department: "+department.Name)
	return c.JSON(http.StatusOK, department)
}

func (h *DepartmentHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid department id")
	}

	var department models.Department
	if err := h.DB.WithContext(ctx).First(&department, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, "Department not found")
		}
		return internalError(c, "delete_department", err)
	}

	var employeeCount int64
	if err := h.DB.WithContext(ctx).Model(&models.Employee{}).
		Where("department_id = ?", department.ID).
		Count(&employeeCount).Error; err != nil {
		return internalError(c, "delete_department", err)
	}
	if employeeCount > 0 {
		return httperr.New(http.StatusBadRequest,
			fmt.Sprintf("Cannot delete department with %d assigned employee(s)", employeeCount))
	}

	if err := h.DB.WithContext(ctx).Delete(&models.Department{}, id).Error; err != nil {
		return internalError(c, "delete_department", err)
	}

	h.Cache.Invalidate()
	h.Audit.Record(ctx, audit.ActionDepartmentDeleted, principalID(authmw.Principal(c)), c.RealIP(),
		"Deleted department: "+department.Name)
	return c.JSON(http.StatusOK, echo.Map{"message": "Department deleted successfully"})
}

// isUniqueViolation matches the unique-constraint signal across the
// backing stores in play (Postgres in production, sqlite in tests).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
