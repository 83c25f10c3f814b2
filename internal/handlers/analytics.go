package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/models"
)

type AnalyticsHandler struct {
	DB *gorm.DB
}

type departmentCount struct {
	Department string `json:"department"`
	Count      int64  `json:"count"`
}

type categoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type monthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type departmentAvgSalary struct {
	Department string  `json:"department"`
	AvgSalary  float64 `json:"avgSalary"`
}

func (h *AnalyticsHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	db := h.DB.WithContext(ctx)

	var employeesByDepartment []departmentCount
	if err := db.Model(&models.Employee{}).
		Select("departments.name as department, count(employees.id) as count").
		Joins("JOIN departments ON departments.id = employees.department_id").
		Group("departments.name").
		Scan(&employeesByDepartment).Error; err != nil {
		return internalError(c, "analytics", err)
	}

	var feedbackByCategory []categoryCount
	if err := db.Model(&models.Feedback{}).
		Select("feedback_categories.name as category, count(feedbacks.id) as count").
		Joins("JOIN feedback_categories ON feedback_categories.id = feedbacks.category_id").
		Group("feedback_categories.name").
		Scan(&feedbackByCategory).Error; err != nil {
		return internalError(c, "analytics", err)
	}

	// Month bucketing has no portable SQL spelling; tests run on sqlite.
	monthExpr := "strftime('%Y-%m', date_submitted)"
	if h.DB.Dialector.Name() == "postgres" {
		monthExpr = "TO_CHAR(date_submitted, 'YYYY-MM')"
	}

	sixMonthsAgo := time.Now().AddDate(0, -6, 0)
	var feedbackTrends []monthCount
	if err := db.Model(&models.Feedback{}).
		Select(monthExpr + " as month, count(*) as count").
		Where("date_submitted >= ?", sixMonthsAgo).
		Group("month").
		Order("month").
		Scan(&feedbackTrends).Error; err != nil {
		return internalError(c, "analytics", err)
	}

	var totalEmployees, totalFeedback, totalUsers int64
	if err := db.Model(&models.Employee{}).Count(&totalEmployees).Error; err != nil {
		return internalError(c, "analytics", err)
	}
	if err := db.Model(&models.Feedback{}).Count(&totalFeedback).Error; err != nil {
		return internalError(c, "analytics", err)
	}
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return internalError(c, "analytics", err)
	}

	var avgSalaryByDepartment []departmentAvgSalary
	if err := db.Model(&models.Employee{}).
		Select("departments.name as department, avg(employees.salary) as avg_salary").
		Joins("JOIN departments ON departments.id = employees.department_id").
		Group("departments.name").
		Scan(&avgSalaryByDepartment).Error; err != nil {
		return internalError(c, "analytics", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"employeesByDepartment": employeesByDepartment,
		"feedbackByCategory":    feedbackByCategory,
		"feedbackTrends":        feedbackTrends,
		"totals": echo.Map{
			"employees": totalEmployees,
			"feedback":  totalFeedback,
			"users":     totalUsers,
		},
		"avgSalaryByDepartment": avgSalaryByDepartment,
	})
}
