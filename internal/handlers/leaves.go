package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/audit"
	"github.com/staffdesk/emis/internal/httperr"
	authmw "github.com/staffdesk/emis/internal/middleware/auth"
	"github.com/staffdesk/emis/internal/models"
)

type LeaveHandler struct {
	DB    *gorm.DB
	Audit *audit.Recorder
}

// List returns every request for ADMIN/HR (optionally filtered by status)
// and only the caller's own requests otherwise.
func (h *LeaveHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	user := authmw.Principal(c)
	if user == nil {
		return httperr.New(http.StatusUnauthorized, "Access token required")
	}

	q := h.DB.WithContext(ctx).Model(&models.LeaveRequest{}).Preload("Employee")

	if user.Role == models.RoleAdmin || user.Role == models.RoleHR {
		if status := c.QueryParam("status"); status != "" && status != "all" {
			q = q.Where("status = ?", status)
		}
	} else {
		if user.EmployeeID == nil {
			return c.JSON(http.StatusOK, []models.LeaveRequest{})
		}
		q = q.Where("employee_id = ?", *user.EmployeeID)
	}

	var leaves []models.LeaveRequest
	if err := q.Order("created_at desc").Find(&leaves).Error; err != nil {
		return internalError(c, "list_leaves", err)
	}
	return c.JSON(http.StatusOK, leaves)
}

func (h *LeaveHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	user := authmw.Principal(c)
	if user == nil {
		return httperr.New(http.StatusUnauthorized, "Access token required")
	}
	if user.EmployeeID == nil {
		return httperr.New(http.StatusBadRequest, "No employee profile linked to this account")
	}

	var req struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
		Type      string `json:"type"`
		Reason    string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid body")
	}
	if req.StartDate == "" || req.EndDate == "" {
		return httperr.New(http.StatusBadRequest, "Start and end dates are required")
	}
	if !models.ValidLeaveType(req.Type) {
		return httperr.New(http.StatusBadRequest, "Invalid leave type")
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid start date")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid end date")
	}
	if end.Before(start) {
		return httperr.New(http.StatusBadRequest, "End date must be after start date")
	}

	leave := models.LeaveRequest{
		EmployeeID: *user.EmployeeID,
		StartDate:  start,
		EndDate:    end,
		Type:       req.Type,
		Reason:     req.Reason,
		Status:     models.LeaveStatusPending,
	}
	if err := h.DB.WithContext(ctx).Create(&leave).Error; err != nil {
		return internalError(c, "create_leave", err)
	}
	return c.JSON(http.StatusCreated, leave)
}

// UpdateStatus approves or rejects a pending request. ADMIN/HR only,
// enforced at the route.
func (h *LeaveHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid leave id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid body")
	}
	if req.Status != models.LeaveStatusApproved && req.Status != models.LeaveStatusRejected {
		return httperr.New(http.StatusBadRequest, "Status must be APPROVED or REJECTED")
	}

	var leave models.LeaveRequest
	if err := h.DB.WithContext(ctx).First(&leave, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, "Leave request not found")
		}
		return internalError(c, "update_leave", err)
	}

	leave.Status = req.Status
	if err := h.DB.WithContext(ctx).Save(&leave).Error; err != nil {
		return internalError(c, "update_leave", err)
	}

	action := audit.ActionLeaveApproved
	if req.Status == models.LeaveStatusRejected {
		action = audit.ActionLeaveRejected
	}
	h.Audit.Record(ctx, action, principalID(authmw.Principal(c)), c.RealIP(),
		"Leave request "+strconv.Itoa(id)+" "+req.Status)

	return c.JSON(http.StatusOK, leave)
}
