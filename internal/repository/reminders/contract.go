package reminders

import (
	"context"

	"github.com/mkondr/salonbot/internal/model"
)

type (
	Repository interface {
		GetUserByChatID(ctx context.Context, chatID int64) (*model.User, error)
		GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
		GetUserByClientID(ctx context.Context, clientID int64) (*model.User, error)
		CreateUser(ctx context.Context, user model.User) error

		GetReminderByRecordID(ctx context.Context, recordID int64) (*model.Reminder, error)
		CreateReminder(ctx context.Context, reminder model.Reminder) error
		ClaimReminderSent(ctx context.Context, recordID int64) (bool, error)
		MarkReminderConfirmed(ctx context.Context, recordID int64) error
		MarkReminderCancelled(ctx context.Context, recordID int64) error

		CreateRescheduleRequest(ctx context.Context, request model.RescheduleRequest) (int64, error)
		PendingRescheduleRequests(ctx context.Context) ([]model.RescheduleRequest, error)
		MarkRescheduleProcessed(ctx context.Context, requestID int64, managerComment string) error

		LogNotification(ctx context.Context, entry model.NotificationLog) error
	}
)
