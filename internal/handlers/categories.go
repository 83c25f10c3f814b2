package handlers

import (
	"errors"
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

type CategoryHandler struct {
	DB    *gorm.DB
	Audit *audit.Recorder
	Cache *cache.Cache[[]models.FeedbackCategory]
}

func (h *CategoryHandler) List(c echo.Context) error {
	if categories, ok := h.Cache.Get(); ok {
		return c.JSON(http.StatusOK, categories)
	}

	var categories []models.FeedbackCategory
	if err := h.DB.WithContext(c.Request().Context()).
		Order("name asc").
		Find(&categories).Error; err != nil {
		return internalError(c, "list_categories", err)
	}

	h.Cache.Set(categories)
	return c.JSON(http.StatusOK, categories)
}

func (h *CategoryHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return httperr.New(http.StatusBadRequest, "Category name is required")
	}

	category := models.FeedbackCategory{Name: strings.TrimSpace(req.Name)}
	if err := h.DB.WithContext(ctx).Create(&category).Error; err != nil {
		if isUniqueViolation(err) {
			return httperr.New(http.StatusBadRequest, "Category already exists")
		}
		return internalError(c, "create_category", err)
	}

	h.Cache.Invalidate()
	h.Audit.Record(ctx, audit.ActionCategoryCreated, principalID(authmw.Principal(c)), c.RealIP(),
		"Created feedback category: "+category.Name)
	return c.JSON(http.StatusCreated, category)
}

func (h *CategoryHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid category id")
	}

	var category models.FeedbackCategory
	if err := h.DB.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, "Category not found")
		}
		return internalError(c, "update_category", err)
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return httperr.New(http.StatusBadRequest, "Category name is required")
	}

	category.Name = strings.TrimSpace(req.Name)
	if err := h.DB.WithContext(ctx).Save(&category).Error; err != nil {
		if isUniqueViolation(err) {
			return httperr.New(http.StatusBadRequest, "Category already exists")
		}
		return internalError(c, "update_category", err)
	}

	h.Cache.Invalidate()
	h.Audit.Record(ctx, audit.ActionCategoryUpdated, principalID(authmw.Principal(c)), c.RealIP(),
		"Updated feedback category: "+category.Name)
	return c.JSON(http.StatusOK, category)
}

func (h *CategoryHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid category id")
	}

	var category models.FeedbackCategory
	if err := h.DB.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, "Category not found")
		}
		return internalError(c, "delete_category", err)
	}

	if err := h.DB.WithContext(ctx).Delete(&models.FeedbackCategory{}, id).Error; err != nil {
		return internalError(c, "delete_category", err)
	}

	h.Cache.Invalidate()
	h.Audit.Record(ctx, audit.ActionCategoryDeleted, principalID(authmw.Principal(c)), c.RealIP(),
		"Deleted feedback category: "+category.Name)
	return c.JSON(http.StatusOK, echo.Map{"message": "Category deleted successfully"})
}
