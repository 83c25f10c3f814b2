package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/audit"
	"github.com/staffdesk/emis/internal/hash"
	"github.com/staffdesk/emis/internal/httperr"
	"github.com/staffdesk/emis/internal/logging"
	authmw "github.com/staffdesk/emis/internal/middleware/auth"
	"github.com/staffdesk/emis/internal/models"
)

type UserHandler struct {
	DB    *gorm.DB
	Audit *audit.Recorder
}

func (h *UserHandler) List(c echo.Context) error {
	var users []models.User
	if err := h.DB.WithContext(c.Request().Context()).
		Preload("Employee").
		Order("id asc").
		Find(&users).Error; err != nil {
		return internalError(c, "list_users", err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_user")

	var req struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		Role       string `json:"role"`
		EmployeeID *uint  `json:"employee_id"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.New(http.StatusBadRequest, "Invalid body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		return httperr.New(http.StatusBadRequest, "All fields are required")
	}
	if !models.ValidRole(req.Role) {
		return httperr.New(http.StatusBadRequest, "Role must be one of ADMIN, HR, EMPLOYEE")
	}
	if len(req.Password) < 6 {
		return httperr.New(http.StatusBadRequest, "Password must be at least 6 characters long")
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("create_user_failed", "status", 500, "reason", "cannot_hash", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}

	user := models.User{
		Username:     req.Username,
		Email:        normalizeEmail(req.Email),
		PasswordHash: passwordHash,
		Role:         req.Role,
		EmployeeID:   req.EmployeeID,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return httperr.New(http.StatusBadRequest, "Username or email already exists")
		}
		return internalError(c, "create_user", err)
	}

	h.Audit.Record(ctx, audit.ActionUserCreated, principalID(authmw.Principal(c)), c.RealIP(),
		"Created user: "+user.Username)
	l.Info("user_created", "user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}
