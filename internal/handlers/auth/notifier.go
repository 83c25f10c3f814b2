package auth

import (
	"context"

	"github.com/staffdesk/emis/internal/logging"
)

// Notifier delivers password-reset tokens to users. Delivery mechanics are
// an external concern; the default implementation only logs.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

type LogNotifier struct{}

func (LogNotifier) SendPasswordReset(ctx context.Context, email, _ string) error {
	logging.FromContext(ctx).Info("password_reset_notification", "email", email)
	return nil
}
