package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mkondr/salonbot/internal/metrics"
	"github.com/mkondr/salonbot/internal/model"
	"github.com/mkondr/salonbot/internal/service/audit"
	"github.com/mkondr/salonbot/internal/service/reminders"
)

// windowSlack widens the polling window past the reminder horizon so an
// appointment is not missed between two ticks.
const windowSlack = time.Hour

type (
	// Bookings is the slice of the YClients client the scheduler needs.
	Bookings interface {
		Records(ctx context.Context, from, to time.Time, clientID int64) ([]model.Appointment, error)
	}

	// Sender delivers one reminder message with its inline keyboard.
	Sender interface {
		SendReminder(reminder *model.Reminder) error
	}
)

type Notifier struct {
	bookings  Bookings
	reminders reminders.Service
	sender    Sender
	audit     audit.Publisher
	log       *zap.Logger

	horizon  time.Duration
	schedule string

	cron *cron.Cron
	now  func() time.Time
}

func New(bookings Bookings, remindersServ reminders.Service, sender Sender, auditPub audit.Publisher, log *zap.Logger, horizon time.Duration, schedule string) *Notifier {
	return &Notifier{
		bookings:  bookings,
		reminders: remindersServ,
		sender:    sender,
		audit:     auditPub,
		log:       log,
		horizon:   horizon,
		schedule:  schedule,
		now:       time.Now,
	}
}

// Start runs one reconciliation immediately and then on the configured
// schedule. The schedule accepts both cron expressions and "@every"
// interval specs.
func (n *Notifier) Start() error {
	n.log.Info("notifier started", zap.String("schedule", n.schedule), zap.Duration("horizon", n.horizon))

	n.Run(context.Background())

	n.cron = cron.New()
	if _, err := n.cron.AddFunc(n.schedule, func() {
		n.Run(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule reminder check '%s': %w", n.schedule, err)
	}
	n.cron.Start()
	return nil
}

// Stop waits for a running reconciliation to finish.
func (n *Notifier) Stop() {
	if n.cron != nil {
		<-n.cron.Stop().Done()
	}
	n.log.Info("notifier stopped")
}

// Run executes one poll-compare-notify cycle. It never fails past its
// own boundary: per-appointment errors are logged, counted as skipped
// and the rest of the batch continues.
func (n *Notifier) Run(ctx context.Context) {
	now := n.now().UTC()
	windowEnd := now.Add(n.horizon + windowSlack)

	records, err := n.bookings.Records(ctx, now, windowEnd, 0)
	if err != nil {
		// Degraded listing: indistinguishable from "no appointments" by
		// design, the run proceeds with whatever came back.
		n.log.Warn("records listing degraded", zap.Error(err))
	}
	n.log.Info("reminder check started", zap.Int("records", len(records)))

	sent, skipped := 0, 0
	for _, record := range records {
		delivered, err := n.processRecord(ctx, record)
		if err != nil {
			n.log.Error("failed to process record",
				zap.Int64("record_id", record.ID),
				zap.Error(err),
			)
			skipped++
			continue
		}
		if delivered {
			sent++
		} else {
			skipped++
		}
	}

	metrics.ObserveRun(sent, skipped)
	n.log.Info("reminder check completed", zap.Int("sent", sent), zap.Int("skipped", skipped))
}

// processRecord reconciles one remote appointment against the persisted
// reminder state. Delivery is gated solely on the persisted sent flag,
// so it survives restarts and overlapping runs.
func (n *Notifier) processRecord(ctx context.Context, record model.Appointment) (bool, error) {
	user, err := n.reminders.UserByClientID(ctx, record.ClientID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			n.log.Debug("no registered user for client", zap.Int64("client_id", record.ClientID))
			return false, nil
		}
		return false, err
	}

	reminder, err := n.reminders.EnsureReminder(ctx, model.Reminder{
		UserChatID:    user.ChatID,
		RecordID:      record.ID,
		AppointmentAt: record.StartAt,
		ServiceName:   record.ServiceName,
		StaffName:     record.StaffName,
	})
	if err != nil {
		return false, err
	}

	if reminder.Sent {
		return false, nil
	}

	if err = n.sender.SendReminder(reminder); err != nil {
		n.logDelivery(ctx, reminder, false, err.Error())
		return false, fmt.Errorf("failed to deliver reminder: %w", err)
	}

	claimed, err := n.reminders.ClaimSent(ctx, reminder.RecordID)
	if err != nil {
		return false, err
	}
	if !claimed {
		// An overlapping run marked it sent first; nothing more to log.
		n.log.Warn("reminder already claimed by another run", zap.Int64("record_id", reminder.RecordID))
		return false, nil
	}

	n.logDelivery(ctx, reminder, true, "")
	return true, nil
}

func (n *Notifier) logDelivery(ctx context.Context, reminder *model.Reminder, success bool, errMsg string) {
	err := n.reminders.LogNotification(ctx, model.NotificationLog{
		ChatID:       reminder.UserChatID,
		MessageType:  model.MessageTypeReminder,
		RecordID:     reminder.RecordID,
		Successful:   success,
		ErrorMessage: errMsg,
	})
	if err != nil {
		n.log.Error("failed to log notification", zap.Int64("record_id", reminder.RecordID), zap.Error(err))
	}

	err = n.audit.Publish(ctx, audit.Event{
		RecordID:    reminder.RecordID,
		ChatID:      reminder.UserChatID,
		MessageType: model.MessageTypeReminder,
		Successful:  success,
		Error:       errMsg,
	})
	if err != nil {
		n.log.Error("failed to publish audit event", zap.Int64("record_id", reminder.RecordID), zap.Error(err))
	}
}
