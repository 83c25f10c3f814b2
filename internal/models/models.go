package models

import (
	"time"
)

const (
	RoleAdmin    = "ADMIN"
	RoleHR       = "HR"
	RoleEmployee = "EMPLOYEE"
)

// ValidRole reports whether role is one of the three enumerated roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleHR || role == RoleEmployee
}

type User struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username         string     `gorm:"unique;not null"          json:"username"`
	Email            string     `gorm:"unique;not null"          json:"email"`
	PasswordHash     string     `gorm:"not null"                 json:"-"`
	Role             string     `gorm:"not null"                 json:"role"`
	EmployeeID       *uint      `gorm:"unique"                   json:"employee_id,omitempty"`
	Employee         *Employee  `json:"employee,omitempty"`
	ResetToken       *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
}

type Employee struct {
	ID           uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string      `gorm:"not null;index"           json:"name"`
	Position     string      `gorm:"not null"                 json:"position"`
	Salary       float64     `gorm:"not null"                 json:"salary"`
	DepartmentID *uint       `gorm:"index"                    json:"department_id,omitempty"`
	Department   *Department `json:"department,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type Department struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"unique;not null"          json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type FeedbackCategory struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"unique;not null"          json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Feedback struct {
	ID            uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	EmployeeID    uint              `gorm:"index;not null"           json:"employee_id"`
	Employee      *Employee         `json:"employee,omitempty"`
	CategoryID    *uint             `gorm:"index"                    json:"category_id,omitempty"`
	Category      *FeedbackCategory `json:"category,omitempty"`
	Message       string            `gorm:"not null"                 json:"message"`
	DateSubmitted time.Time         `gorm:"index;autoCreateTime"     json:"date_submitted"`
}

const (
	LeaveTypeAnnual = "ANNUAL"
	LeaveTypeSick   = "SICK"
	LeaveTypeUnpaid = "UNPAID"
	LeaveTypeOther  = "OTHER"

	LeaveStatusPending  = "PENDING"
	LeaveStatusApproved = "APPROVED"
	LeaveStatusRejected = "REJECTED"
)

// ValidLeaveType reports whether t is one of the enumerated leave types.
func ValidLeaveType(t string) bool {
	return t == LeaveTypeAnnual || t == LeaveTypeSick || t == LeaveTypeUnpaid || t == LeaveTypeOther
}

type LeaveRequest struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EmployeeID uint      `gorm:"index;not null"           json:"employee_id"`
	Employee   *Employee `json:"employee,omitempty"`
	StartDate  time.Time `gorm:"not null"                 json:"start_date"`
	EndDate    time.Time `gorm:"not null"                 json:"end_date"`
	Type       string    `gorm:"not null"                 json:"type"`
	Reason     string    `json:"reason"`
	Status     string    `gorm:"not null;default:PENDING" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type AuditLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Action    string    `gorm:"index;not null"           json:"action"`
	UserID    *uint     `gorm:"index"                    json:"user_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Details   string    `json:"details"`
	Timestamp time.Time `gorm:"index;autoCreateTime"     json:"timestamp"`
}
