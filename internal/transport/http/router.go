package httpserver

import (
	"github.com/labstack/echo/v4"

	authhdl "github.com/staffdesk/emis/internal/handlers/auth"

	"github.com/staffdesk/emis/internal/handlers"
	authmw "github.com/staffdesk/emis/internal/middleware/auth"
	"github.com/staffdesk/emis/internal/middleware/csrf"
	"github.com/staffdesk/emis/internal/middleware/ratelimit"
	"github.com/staffdesk/emis/internal/models"
)

type Deps struct {
	Authenticator *authmw.Authenticator
	GeneralLimit  *ratelimit.Limiter
	AuthLimit     *ratelimit.Limiter

	AuthHandler       *authhdl.Handler
	EmployeeHandler   *handlers.EmployeeHandler
	DepartmentHandler *handlers.DepartmentHandler
	CategoryHandler   *handlers.CategoryHandler
	FeedbackHandler   *handlers.FeedbackHandler
	LeaveHandler      *handlers.LeaveHandler
	AnalyticsHandler  *handlers.AnalyticsHandler
	LogHandler        *handlers.LogHandler
	UserHandler       *handlers.UserHandler
}

// Register wires every route behind the gate chain: rate limit, CSRF,
// authentication, role check, handler. Order matters and is fixed here.
func Register(e *echo.Echo, d *Deps) {
	api := e.Group("/api", d.GeneralLimit.Middleware(), csrf.Middleware(csrf.DefaultConfig()))

	api.GET("/health", handlers.Health)

	// Public auth surface. Login additionally sits behind the failed-attempt
	// gate; the handler charges the budget on bad credentials.
	auth := api.Group("/auth")
	auth.POST("/login", d.AuthHandler.Login, d.AuthLimit.Gate())
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	auth.POST("/reset-password", d.AuthHandler.ResetPassword)

	auth.POST("/logout", d.AuthHandler.Logout, d.Authenticator.Require)
	auth.GET("/me", d.AuthHandler.Me, d.Authenticator.Require)

	adminOnly := authmw.RequireRoles(models.RoleAdmin)
	adminOrHR := authmw.RequireRoles(models.RoleAdmin, models.RoleHR)

	employees := api.Group("/employees", d.Authenticator.Require)
	employees.GET("", d.EmployeeHandler.List)
	employees.GET("/search", d.EmployeeHandler.Search)
	employees.GET("/:id", d.EmployeeHandler.Get)
	employees.POST("", d.EmployeeHandler.Create, adminOnly)
	employees.PUT("/:id", d.EmployeeHandler.Update, adminOnly)
	employees.DELETE("/:id", d.EmployeeHandler.Delete, adminOnly)

	departments := api.Group("/departments", d.Authenticator.Require)
	departments.GET("", d.DepartmentHandler.List)
	departments.POST("", d.DepartmentHandler.Create, adminOnly)
	departments.PUT("/:id", d.DepartmentHandler.Update, adminOnly)
	departments.DELETE("/:id", d.DepartmentHandler.Delete, adminOnly)

	categories := api.Group("/feedback-categories", d.Authenticator.Require)
	categories.GET("", d.CategoryHandler.List)
	categories.POST("", d.CategoryHandler.Create, adminOrHR)
	categories.PUT("/:id", d.CategoryHandler.Update, adminOrHR)
	categories.DELETE("/:id", d.CategoryHandler.Delete, adminOrHR)

	feedback := api.Group("/feedback", d.Authenticator.Require)
	feedback.GET("", d.FeedbackHandler.List, adminOrHR)
	feedback.POST("", d.FeedbackHandler.Create)

	leaves := api.Group("/leaves", d.Authenticator.Require)
	leaves.GET("", d.LeaveHandler.List)
	leaves.POST("", d.LeaveHandler.Create)
	leaves.PATCH("/:id", d.LeaveHandler.UpdateStatus, adminOrHR)

	api.GET("/analytics", d.AnalyticsHandler.Get, d.Authenticator.Require, adminOrHR)
	api.GET("/logs", d.LogHandler.List, d.Authenticator.Require, adminOnly)

	users := api.Group("/users", d.Authenticator.Require, adminOnly)
	users.GET("", d.UserHandler.List)
	users.POST("", d.UserHandler.Create)
}
