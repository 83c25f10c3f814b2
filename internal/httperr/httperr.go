package httperr

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/staffdesk/emis/internal/logging"
)

// Body is the stable error shape every endpoint returns. Code is only set
// for responses clients branch on programmatically.
type Body struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// New builds an *echo.HTTPError carrying the standard body.
func New(status int, message string) *echo.HTTPError {
	return echo.NewHTTPError(status, Body{Error: message})
}

// WithCode builds an *echo.HTTPError carrying a machine-readable code.
func WithCode(status int, message, code string) *echo.HTTPError {
	return echo.NewHTTPError(status, Body{Error: message, Code: code})
}

// Handler renders every error as the {error, code?} JSON body. Internal
// detail is logged server-side and never leaks to the client.
func Handler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := Body{Error: "Internal server error"}

	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch m := he.Message.(type) {
		case Body:
			body = m
		case string:
			body = Body{Error: m}
		default:
			body = Body{Error: http.StatusText(status)}
		}
		if he.Internal != nil {
			logging.FromContext(c.Request().Context()).Error("request error", "status", status, "error", he.Internal)
		}
	} else {
		logging.FromContext(c.Request().Context()).Error("unhandled error", "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}
