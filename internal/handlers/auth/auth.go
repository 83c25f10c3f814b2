package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/audit"
	"github.com/staffdesk/emis/internal/hash"
	"github.com/staffdesk/emis/internal/httperr"
	"github.com/staffdesk/emis/internal/logging"
	authmw "github.com/staffdesk/emis/internal/middleware/auth"
	"github.com/staffdesk/emis/internal/middleware/ratelimit"
	"github.com/staffdesk/emis/internal/models"
	"github.com/staffdesk/emis/internal/token"
)

type Handler struct {
	DB           *gorm.DB
	Tokens       *token.Service
	Registry     token.Registry
	Audit        *audit.Recorder
	LoginLimiter *ratelimit.Limiter
	Notifier     Notifier
}

func (h *Handler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return httperr.New(http.StatusBadRequest, "Email and password required")
	}
	if req.Email == "" || req.Password == "" {
		l.Warn("login_error", "status", 400, "reason", "missing_fields")
		return httperr.New(http.StatusBadRequest, "Email and password required")
	}

	var user models.User
	err := h.DB.WithContext(ctx).
		Preload("Employee").
		Where("lower(email) = ?", strings.ToLower(req.Email)).
		First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.Error("login_failed", "status", 500, "reason", "db_error", "error", err)
			return httperr.New(http.StatusInternalServerError, "Internal server error")
		}
		// Burn a bcrypt verification so this path is not distinguishable
		// from a wrong password by timing.
		hash.DummyCheck(req.Password)
		h.loginFailed(c, l)
		return httperr.WithCode(http.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS")
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		h.loginFailed(c, l)
		return httperr.WithCode(http.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS")
	}

	accessToken, err := h.Tokens.IssueAccess(&user)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot_sign_access", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}
	refreshToken, jti, err := h.Tokens.IssueRefresh(&user)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot_sign_refresh", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}
	if err := h.Registry.Add(ctx, jti, h.Tokens.RefreshTTL); err != nil {
		l.Error("login_failed", "status", 500, "reason", "registry_add", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}

	now := h.Tokens.Now()
	c.SetCookie(CreateCookie(AccessCookieName, accessToken, accessCookiePath, now.Add(h.Tokens.AccessTTL)))
	c.SetCookie(CreateCookie(RefreshCookieName, refreshToken, refreshCookiePath, now.Add(h.Tokens.RefreshTTL)))

	h.Audit.Record(ctx, audit.ActionUserLogin, &user.ID, c.RealIP(), "User "+user.Username+" logged in")
	l.Info("login_successful", "user_id", user.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"user":  user,
		"token": accessToken,
	})
}

func (h *Handler) loginFailed(c echo.Context, l *slog.Logger) {
	h.LoginLimiter.Fail(c.RealIP())
	l.Warn("login_failed", "status", 401, "reason", "invalid_credentials")
}

func (h *Handler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	raw := ""
	if cookie, err := c.Cookie(RefreshCookieName); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.Bind(&req); err == nil {
			raw = req.RefreshToken
		}
	}
	if raw == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "missing_token")
		return httperr.WithCode(http.StatusUnauthorized, "Refresh token required", "INVALID_REFRESH_TOKEN")
	}

	claims, err := h.Tokens.VerifyRefresh(raw)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "verify", "error", err)
		return httperr.WithCode(http.StatusUnauthorized, "Invalid refresh token", "INVALID_REFRESH_TOKEN")
	}

	ok, err := h.Registry.Contains(ctx, claims.JTI)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "registry", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}
	if !ok {
		l.Warn("refresh_failed", "status", 401, "reason", "revoked")
		return httperr.WithCode(http.StatusUnauthorized, "Invalid refresh token", "INVALID_REFRESH_TOKEN")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).Preload("Employee").First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "user_not_found")
			return httperr.WithCode(http.StatusUnauthorized, "Invalid refresh token", "INVALID_REFRESH_TOKEN")
		}
		l.Error("refresh_failed", "status", 500, "reason", "db_error", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}

	accessToken, err := h.Tokens.IssueAccess(&user)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot_sign_access", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}
	refreshToken, jti, err := h.Tokens.IssueRefresh(&user)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot_sign_refresh", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}

	// Rotation: the old entry goes away only once the replacement pair has
	// been signed, so a failure above leaves the old token usable.
	if err := h.Registry.Remove(ctx, claims.JTI); err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "registry_remove", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}
	if err := h.Registry.Add(ctx, jti, h.Tokens.RefreshTTL); err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "registry_add", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}

	now := h.Tokens.Now()
	c.SetCookie(CreateCookie(AccessCookieName, accessToken, accessCookiePath, now.Add(h.Tokens.AccessTTL)))
	c.SetCookie(CreateCookie(RefreshCookieName, refreshToken, refreshCookiePath, now.Add(h.Tokens.RefreshTTL)))

	l.Info("refresh_successful", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"token": accessToken,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if cookie, err := c.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		if claims, err := h.Tokens.VerifyRefresh(cookie.Value); err == nil {
			if err := h.Registry.Remove(ctx, claims.JTI); err != nil {
				l.Error("logout_revoke_failed", "error", err)
			}
		}
	}

	c.SetCookie(DeleteCookie(AccessCookieName, accessCookiePath))
	c.SetCookie(DeleteCookie(RefreshCookieName, refreshCookiePath))

	if user := authmw.Principal(c); user != nil {
		h.Audit.Record(ctx, audit.ActionUserLogout, &user.ID, c.RealIP(), "User "+user.Username+" logged out")
	}

	l.Info("logout_successful")
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Logged out successfully",
	})
}

func (h *Handler) Me(c echo.Context) error {
	user := authmw.Principal(c)
	if user == nil {
		return httperr.New(http.StatusUnauthorized, "Access token required")
	}
	return c.JSON(http.StatusOK, user)
}

// ForgotPassword always answers with the same generic message so the
// endpoint cannot be used to probe which emails exist.
func (h *Handler) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_forgot_password")

	const genericMessage = "If that email exists, a reset link has been sent"

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return httperr.New(http.StatusBadRequest, "Email required")
	}

	var user models.User
	err := h.DB.WithContext(ctx).
		Where("lower(email) = ?", strings.ToLower(req.Email)).
		First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.Error("forgot_password_failed", "status", 500, "reason", "db_error", "error", err)
			return httperr.New(http.StatusInternalServerError, "Internal server error")
		}
		l.Info("forgot_password_unknown_email")
		return c.JSON(http.StatusOK, echo.Map{"message": genericMessage})
	}

	resetToken, err := h.Tokens.IssueReset(&user)
	if err != nil {
		l.Error("forgot_password_failed", "status", 500, "reason", "cannot_sign_reset", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}

	expiry := h.Tokens.Now().Add(h.Tokens.ResetTTL)
	if err := h.DB.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"reset_token":        resetToken,
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		l.Error("forgot_password_failed", "status", 500, "reason", "db_error", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}

	if err := h.Notifier.SendPasswordReset(ctx, user.Email, resetToken); err != nil {
		l.Error("forgot_password_notify_failed", "error", err)
	}

	h.Audit.Record(ctx, audit.ActionPasswordResetRequested, &user.ID, c.RealIP(),
		"Password reset requested for "+user.Email)
	return c.JSON(http.StatusOK, echo.Map{"message": genericMessage})
}

func (h *Handler) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_reset_password")

	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return httperr.New(http.StatusBadRequest, "Reset token required")
	}
	if len(req.NewPassword) < 6 {
		return httperr.New(http.StatusBadRequest, "Password must be at least 6 characters long")
	}

	claims, err := h.Tokens.VerifyReset(req.Token)
	if err != nil {
		l.Warn("reset_password_failed", "status", 400, "reason", "verify", "error", err)
		return httperr.New(http.StatusBadRequest, "Invalid or expired reset token")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		l.Warn("reset_password_failed", "status", 400, "reason", "user_not_found")
		return httperr.New(http.StatusBadRequest, "Invalid or expired reset token")
	}

	// A syntactically valid signed token is not enough: it must match the
	// stored value and the stored expiry must not have passed.
	if user.ResetToken == nil || *user.ResetToken != req.Token ||
		user.ResetTokenExpiry == nil || h.Tokens.Now().After(*user.ResetTokenExpiry) {
		l.Warn("reset_password_failed", "status", 400, "reason", "state_mismatch")
		return httperr.New(http.StatusBadRequest, "Invalid or expired reset token")
	}

	newHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		l.Error("reset_password_failed", "status", 500, "reason", "cannot_hash", "error", err)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}

	// Consume-and-clear in one guarded update so the token is single-use
	// even under concurrent attempts.
	res := h.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reset_token = ?", user.ID, req.Token).
		Updates(map[string]interface{}{
			"password_hash":      newHash,
			"reset_token":        nil,
			"reset_token_expiry": nil,
		})
	if res.Error != nil {
		l.Error("reset_password_failed", "status", 500, "reason", "db_error", "error", res.Error)
		return httperr.New(http.StatusInternalServerError, "Internal server error")
	}
	if res.RowsAffected == 0 {
		l.Warn("reset_password_failed", "status", 400, "reason", "already_consumed")
		return httperr.New(http.StatusBadRequest, "Invalid or expired reset token")
	}

	h.Audit.Record(ctx, audit.ActionPasswordReset, &user.ID, c.RealIP(),
		"Password reset for "+user.Email)
	l.Info("reset_password_successful", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successfully"})
}
