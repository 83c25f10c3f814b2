package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/httperr"
	"github.com/staffdesk/emis/internal/logging"
	"github.com/staffdesk/emis/internal/models"
	"github.com/staffdesk/emis/internal/token"
)

const principalKey = "principal"

// Authenticator gates requests on a valid access token and re-resolves the
// user from the database on every request, so role changes and deletions
// take effect immediately instead of at token expiry.
type Authenticator struct {
	DB     *gorm.DB
	Tokens *token.Service
}

// Principal returns the authenticated user attached by Require, or nil.
func Principal(c echo.Context) *models.User {
	if u, ok := c.Get(principalKey).(*models.User); ok {
		return u
	}
	return nil
}

func extractToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

func (a *Authenticator) Require(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context())

		raw := extractToken(c)
		if raw == "" {
			return httperr.New(http.StatusUnauthorized, "Access token required")
		}

		claims, err := a.Tokens.VerifyAccess(raw)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrExpired):
				l.Warn("auth_rejected", "status", 401, "reason", "token_expired")
				return httperr.WithCode(http.StatusUnauthorized, "Access token expired", "TOKEN_EXPIRED")
			case errors.Is(err, token.ErrWrongType):
				l.Warn("auth_rejected", "status", 403, "reason", "wrong_token_type")
				return httperr.New(http.StatusForbidden, "Invalid token")
			default:
				l.Warn("auth_rejected", "status", 403, "reason", "invalid_token")
				return httperr.New(http.StatusForbidden, "Invalid token")
			}
		}

		var user models.User
		if err := a.DB.WithContext(c.Request().Context()).
			Preload("Employee").
			First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				l.Warn("auth_rejected", "status", 401, "reason", "user_not_found")
				return httperr.New(http.StatusUnauthorized, "User not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, httperr.Body{Error: "Internal server error"}).SetInternal(err)
		}

		c.Set(principalKey, &user)
		return next(c)
	}
}

// RequireRoles authorizes the already-authenticated principal against a
// statically declared role set.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := Principal(c)
			if user == nil {
				return httperr.New(http.StatusUnauthorized, "Access token required")
			}
			if _, ok := allowed[user.Role]; !ok {
				logging.FromContext(c.Request().Context()).Warn("authz_rejected",
					"status", 403, "role", user.Role, "path", c.Path())
				return httperr.New(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}
