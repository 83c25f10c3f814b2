package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/httperr"
	"github.com/staffdesk/emis/internal/models"
	"github.com/staffdesk/emis/internal/util"
)

type FeedbackHandler struct {
	DB *gorm.DB
}

func (h *FeedbackHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, limit, offset := util.Normalize(page, limit, 20)

	q := h.DB.WithContext(ctx).Model(&models.Feedback{})
	if category := c.QueryParam("category"); category != "" && category != "all" {
		q = q.Joins("JOIN feedback_categories ON feedback_categories.id = feedbacks.category_id").
			Where("feedback_categories.name = ?", category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return internalError(c, "list_feedback", err)
	}

	var feedback []models.Feedback
	if err := q.Preload("Employee").Preload("Category").
		Order("date_submitted desc").
		Offset(offset).Limit(limit).
		Find(&feedback).Error; err != nil {
		return internalError(c, "list_feedback", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"feedback":   feedback,
		"pagination": util.Paginate(total, page, limit),
	})
}

func (h *FeedbackHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		EmployeeID uint   `json:"employeeId"`
		CategoryID uint   `json:"categoryId"`
		Message    string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid body")
	}
	if req.EmployeeID == 0 || req.CategoryID == 0 || req.Message == "" {
		return httperr.New(http.StatusBadRequest, "All fields are required")
	}

	var employee models.Employee
	if err := h.DB.WithContext(ctx).First(&employee, req.EmployeeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, "Employee not found")
		}
		return internalError(c, "create_feedback", err)
	}

	categoryID := req.CategoryID
	feedback := models.Feedback{
		EmployeeID: req.EmployeeID,
		CategoryID: &categoryID,
		Message:    req.Message,
	}
	if err := h.DB.WithContext(ctx).Create(&feedback).Error; err != nil {
		return internalError(c, "create_feedback", err)
	}

	if err := h.DB.WithContext(ctx).
		Preload("Employee").Preload("Category").
		First(&feedback, feedback.ID).Error; err != nil {
		return internalError(c, "create_feedback", err)
	}
	return c.JSON(http.StatusCreated, feedback)
}
