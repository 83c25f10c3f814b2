package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/models"
	"github.com/staffdesk/emis/internal/util"
)

type LogHandler struct {
	DB *gorm.DB
}

func (h *LogHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, limit, offset := util.Normalize(page, limit, 50)

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.AuditLog{}).Count(&total).Error; err != nil {
		return internalError(c, "list_logs", err)
	}

	var logs []models.AuditLog
	if err := h.DB.WithContext(ctx).
		Order("timestamp desc").
		Offset(offset).Limit(limit).
		Find(&logs).Error; err != nil {
		return internalError(c, "list_logs", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"logs":       logs,
		"pagination": util.Paginate(total, page, limit),
	})
}
