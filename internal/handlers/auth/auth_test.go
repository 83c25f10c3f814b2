package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/audit"
	"github.com/staffdesk/emis/internal/config"
	"github.com/staffdesk/emis/internal/hash"
	"github.com/staffdesk/emis/internal/httperr"
	"github.com/staffdesk/emis/internal/middleware/ratelimit"
	"github.com/staffdesk/emis/internal/models"
	"github.com/staffdesk/emis/internal/token"
)

type captureNotifier struct {
	email string
	token string
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.email = email
	n.token = token
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *captureNotifier) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	notifier := &captureNotifier{}
	return &Handler{
		DB:           db,
		Tokens:       token.NewService([]byte("access"), []byte("refresh"), []byte("reset")),
		Registry:     token.NewMemoryRegistry(),
		Audit:        &audit.Recorder{DB: db},
		LoginLimiter: ratelimit.New(15*time.Minute, 5),
		Notifier:     notifier,
	}, notifier
}

func seedUser(t *testing.T, db *gorm.DB, password string) *models.User {
	t.Helper()
	hashed, err := hash.HashPassword(password)
	require.NoError(t, err)
	user := &models.User{
		Username:     "jordan",
		Email:        "jordan@example.com",
		PasswordHash: hashed,
		Role:         models.RoleEmployee,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func call(e *echo.Echo, h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func cookieValue(rec *httptest.ResponseRecorder, name string) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestLoginSuccess(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	seedUser(t, h.DB, "hunter22")

	rec := call(e, h.Login, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"jordan@example.com","password":"hunter22"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"token"`)
	require.Contains(t, rec.Body.String(), "jordan@example.com")
	require.NotContains(t, rec.Body.String(), "password")

	access := cookieValue(rec, AccessCookieName)
	require.NotEmpty(t, access)
	_, err := h.Tokens.VerifyAccess(access)
	require.NoError(t, err)

	refresh := cookieValue(rec, RefreshCookieName)
	require.NotEmpty(t, refresh)
	claims, err := h.Tokens.VerifyRefresh(refresh)
	require.NoError(t, err)
	ok, err := h.Registry.Contains(context.Background(), claims.JTI)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoginEmailIsCaseInsensitive(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	seedUser(t, h.DB, "hunter22")

	rec := call(e, h.Login, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"JORDAN@Example.COM","password":"hunter22"}`))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	seedUser(t, h.DB, "hunter22")

	rec := call(e, h.Login, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"jordan@example.com","password":"wrong"}`))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid email or password")
	require.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")
}

func TestLoginUnknownEmailSameResponse(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	seedUser(t, h.DB, "hunter22")

	wrongPw := call(e, h.Login, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"jordan@example.com","password":"wrong"}`))
	unknown := call(e, h.Login, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"nobody@example.com","password":"wrong"}`))

	require.Equal(t, wrongPw.Code, unknown.Code)
	require.Equal(t, wrongPw.Body.String(), unknown.Body.String())
}

func TestLoginMissingFields(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)

	rec := call(e, h.Login, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"jordan@example.com"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Email and password required")
}

func TestLoginFailureChargesLimiter(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	seedUser(t, h.DB, "hunter22")

	req := jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"jordan@example.com","password":"wrong"}`)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	call(e, h.Login, req)

	require.Equal(t, 1, h.LoginLimiter.Count("10.0.0.9"))
}

func TestRefreshRotation(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	user := seedUser(t, h.DB, "hunter22")

	refresh, jti, err := h.Tokens.IssueRefresh(user)
	require.NoError(t, err)
	require.NoError(t, h.Registry.Add(context.Background(), jti, h.Tokens.RefreshTTL))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: refresh})
	rec := call(e, h.Refresh, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"token"`)

	// The old token is revoked and a replay is rejected.
	replay := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	replay.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: refresh})
	rec = call(e, h.Refresh, replay)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_REFRESH_TOKEN")
}

func TestRefreshRotatedTokenWorks(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	user := seedUser(t, h.DB, "hunter22")

	refresh, jti, err := h.Tokens.IssueRefresh(user)
	require.NoError(t, err)
	require.NoError(t, h.Registry.Add(context.Background(), jti, h.Tokens.RefreshTTL))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: refresh})
	first := call(e, h.Refresh, req)
	require.Equal(t, http.StatusOK, first.Code)

	rotated := cookieValue(first, RefreshCookieName)
	require.NotEmpty(t, rotated)

	second := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	second.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: rotated})
	rec := call(e, h.Refresh, second)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshFromBody(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	user := seedUser(t, h.DB, "hunter22")

	refresh, jti, err := h.Tokens.IssueRefresh(user)
	require.NoError(t, err)
	require.NoError(t, h.Registry.Add(context.Background(), jti, h.Tokens.RefreshTTL))

	rec := call(e, h.Refresh, jsonRequest(http.MethodPost, "/api/auth/refresh",
		`{"refreshToken":"`+refresh+`"}`))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	user := seedUser(t, h.DB, "hunter22")

	access, err := h.Tokens.IssueAccess(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: access})
	rec := call(e, h.Refresh, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_REFRESH_TOKEN")
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)
	user := seedUser(t, h.DB, "hunter22")

	refresh, jti, err := h.Tokens.IssueRefresh(user)
	require.NoError(t, err)
	require.NoError(t, h.Registry.Add(context.Background(), jti, h.Tokens.RefreshTTL))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: refresh})
	rec := call(e, h.Logout, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Logged out successfully")

	ok, err := h.Registry.Contains(context.Background(), jti)
	require.NoError(t, err)
	require.False(t, ok)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == AccessCookieName || cookie.Name == RefreshCookieName {
			require.Empty(t, cookie.Value)
			require.Negative(t, cookie.MaxAge)
		}
	}
}

func TestForgotPasswordGenericResponse(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, notifier := newTestHandler(t)
	seedUser(t, h.DB, "hunter22")

	known := call(e, h.ForgotPassword, jsonRequest(http.MethodPost, "/api/auth/forgot-password",
		`{"email":"jordan@example.com"}`))
	unknown := call(e, h.ForgotPassword, jsonRequest(http.MethodPost, "/api/auth/forgot-password",
		`{"email":"nobody@example.com"}`))

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, known.Body.String(), unknown.Body.String())
	require.Contains(t, known.Body.String(), "If that email exists, a reset link has been sent")

	// The notifier fired only for the real account.
	require.Equal(t, "jordan@example.com", notifier.email)
	require.NotEmpty(t, notifier.token)
}

func TestResetPasswordFlow(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, notifier := newTestHandler(t)
	seedUser(t, h.DB, "hunter22")

	call(e, h.ForgotPassword, jsonRequest(http.MethodPost, "/api/auth/forgot-password",
		`{"email":"jordan@example.com"}`))
	require.NotEmpty(t, notifier.token)

	rec := call(e, h.ResetPassword, jsonRequest(http.MethodPost, "/api/auth/reset-password",
		`{"token":"`+notifier.token+`","newPassword":"newsecret"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Password reset successfully")

	// Old password is out, the new one is in.
	rec = call(e, h.Login, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"jordan@example.com","password":"hunter22"}`))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = call(e, h.Login, jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"jordan@example.com","password":"newsecret"}`))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResetPasswordTokenIsSingleUse(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, notifier := newTestHandler(t)
	seedUser(t, h.DB, "hunter22")

	call(e, h.ForgotPassword, jsonRequest(http.MethodPost, "/api/auth/forgot-password",
		`{"email":"jordan@example.com"}`))

	first := call(e, h.ResetPassword, jsonRequest(http.MethodPost, "/api/auth/reset-password",
		`{"token":"`+notifier.token+`","newPassword":"newsecret"}`))
	require.Equal(t, http.StatusOK, first.Code)

	second := call(e, h.ResetPassword, jsonRequest(http.MethodPost, "/api/auth/reset-password",
		`{"token":"`+notifier.token+`","newPassword":"another1"}`))
	require.Equal(t, http.StatusBadRequest, second.Code)
	require.Contains(t, second.Body.String(), "Invalid or expired reset token")
}

func TestResetPasswordTooShort(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)

	rec := call(e, h.ResetPassword, jsonRequest(http.MethodPost, "/api/auth/reset-password",
		`{"token":"whatever","newPassword":"short"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "at least 6 characters")
}

func TestResetPasswordGarbageToken(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler
	h, _ := newTestHandler(t)

	rec := call(e, h.ResetPassword, jsonRequest(http.MethodPost, "/api/auth/reset-password",
		`{"token":"not-a-jwt","newPassword":"longenough"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid or expired reset token")
}
