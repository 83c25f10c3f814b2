package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/staffdesk/emis/internal/events"
	"github.com/staffdesk/emis/internal/logging"
	"github.com/staffdesk/emis/internal/models"
)

// Security-relevant actions recorded in the audit trail.
const (
	ActionUserLogin              = "USER_LOGIN"
	ActionUserLogout             = "USER_LOGOUT"
	ActionUserCreated            = "USER_CREATED"
	ActionPasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	ActionPasswordReset          = "PASSWORD_RESET"
	ActionEmployeeAdded          = "EMPLOYEE_ADDED"
	ActionEmployeeUpdated        = "EMPLOYEE_UPDATED"
	ActionEmployeeDeleted        = "EMPLOYEE_DELETED"
	ActionDepartmentCreated      = "DEPARTMENT_CREATED"
	ActionDepartmentUpdated      = "DEPARTMENT_UPDATED"
	ActionDepartmentDeleted      = "DEPARTMENT_DELETED"
	ActionCategoryCreated        = "CATEGORY_CREATED"
	ActionCategoryUpdated        = "CATEGORY_UPDATED"
	ActionCategoryDeleted        = "CATEGORY_DELETED"
	ActionLeaveApproved          = "LEAVE_APPROVED"
	ActionLeaveRejected          = "LEAVE_REJECTED"
)

// Recorder appends audit events to the database and, when a producer is
// configured, mirrors them onto the audit_events stream. Stream publish
// failures are logged and never fail the request.
type Recorder struct {
	DB       *gorm.DB
	Producer *events.Producer
}

type event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	UserID    *uint     `json:"user_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *Recorder) Record(ctx context.Context, action string, userID *uint, ip, details string) {
	l := logging.FromContext(ctx)

	entry := models.AuditLog{
		Action:  action,
		UserID:  userID,
		IP:      ip,
		Details: details,
	}
	if err := r.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		l.Error("audit_write_failed", "action", action, "error", err)
	}

	if r.Producer == nil {
		return
	}
	e := event{
		ID:        uuid.NewString(),
		Action:    action,
		UserID:    userID,
		IP:        ip,
		Details:   details,
		Timestamp: entry.Timestamp,
	}
	if err := r.Producer.PublishEvent(ctx, action, e); err != nil {
		l.Warn("audit_publish_failed", "action", action, "error", err)
	}
}
