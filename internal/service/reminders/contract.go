package reminders

import (
	"context"

	"github.com/mkondr/salonbot/internal/model"
)

type (
	Service interface {
		RegisterUser(ctx context.Context, user model.User) error
		UserByChatID(ctx context.Context, chatID int64) (*model.User, error)
		UserByClientID(ctx context.Context, clientID int64) (*model.User, error)

		ReminderByRecordID(ctx context.Context, recordID int64) (*model.Reminder, error)
		EnsureReminder(ctx context.Context, reminder model.Reminder) (*model.Reminder, error)
		ClaimSent(ctx context.Context, recordID int64) (bool, error)
		Confirm(ctx context.Context, recordID int64) error
		Cancel(ctx context.Context, recordID int64) error

		RequestReschedule(ctx context.Context, request model.RescheduleRequest) (int64, error)
		PendingReschedules(ctx context.Context) ([]model.RescheduleRequest, error)
		ProcessReschedule(ctx context.Context, requestID int64, managerComment string) error

		LogNotification(ctx context.Context, entry model.NotificationLog) error
	}
)
