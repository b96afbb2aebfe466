package reminders

import (
	"context"
	"errors"

	"github.com/mkondr/salonbot/internal/model"
	"github.com/mkondr/salonbot/internal/repository/reminders"
)

type DefaultService struct {
	repo reminders.Repository
}

func NewDefaultService(repo reminders.Repository) *DefaultService {
	return &DefaultService{repo: repo}
}

// RegisterUser creates the user unless one already exists for the chat.
func (d *DefaultService) RegisterUser(ctx context.Context, user model.User) error {
	_, err := d.repo.GetUserByChatID(ctx, user.ChatID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return err
	}
	return d.repo.CreateUser(ctx, user)
}

func (d *DefaultService) UserByChatID(ctx context.Context, chatID int64) (*model.User, error) {
	return d.repo.GetUserByChatID(ctx, chatID)
}

func (d *DefaultService) UserByClientID(ctx context.Context, clientID int64) (*model.User, error) {
	return d.repo.GetUserByClientID(ctx, clientID)
}

func (d *DefaultService) ReminderByRecordID(ctx context.Context, recordID int64) (*model.Reminder, error) {
	return d.repo.GetReminderByRecordID(ctx, recordID)
}

// EnsureReminder creates the reminder row when missing and returns the
// persisted state either way. The record_id unique constraint keeps the
// create idempotent; a concurrent run that lost the insert race still
// reads back the single surviving row.
func (d *DefaultService) EnsureReminder(ctx context.Context, reminder model.Reminder) (*model.Reminder, error) {
	existing, err := d.repo.GetReminderByRecordID(ctx, reminder.RecordID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrReminderNotFound) {
		return nil, err
	}

	if err = d.repo.CreateReminder(ctx, reminder); err != nil {
		return nil, err
	}
	return d.repo.GetReminderByRecordID(ctx, reminder.RecordID)
}

func (d *DefaultService) ClaimSent(ctx context.Context, recordID int64) (bool, error) {
	return d.repo.ClaimReminderSent(ctx, recordID)
}

func (d *DefaultService) Confirm(ctx context.Context, recordID int64) error {
	return d.repo.MarkReminderConfirmed(ctx, recordID)
}

func (d *DefaultService) Cancel(ctx context.Context, recordID int64) error {
	return d.repo.MarkReminderCancelled(ctx, recordID)
}

func (d *DefaultService) RequestReschedule(ctx context.Context, request model.RescheduleRequest) (int64, error) {
	return d.repo.CreateRescheduleRequest(ctx, request)
}

func (d *DefaultService) PendingReschedules(ctx context.Context) ([]model.RescheduleRequest, error) {
	return d.repo.PendingRescheduleRequests(ctx)
}

func (d *DefaultService) ProcessReschedule(ctx context.Context, requestID int64, managerComment string) error {
	return d.repo.MarkRescheduleProcessed(ctx, requestID, managerComment)
}

func (d *DefaultService) LogNotification(ctx context.Context, entry model.NotificationLog) error {
	return d.repo.LogNotification(ctx, entry)
}
