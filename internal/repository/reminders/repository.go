package reminders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/mkondr/salonbot/infrastructure/tracing"
	"github.com/mkondr/salonbot/internal/model"
)

type DefaultRepository struct {
	db *sql.DB
}

func NewDefaultRepository(pg *sql.DB) *DefaultRepository {
	return &DefaultRepository{pg}
}

func (d *DefaultRepository) GetUserByChatID(ctx context.Context, chatID int64) (*model.User, error) {
	user := &model.User{}
	query := `
		SELECT id, chat_id, phone, full_name, email, yclients_client_id, is_registered, created_at
		FROM users WHERE chat_id = $1
	`
	err := d.db.QueryRowContext(ctx, query, chatID).Scan(
		&user.ID, &user.ChatID, &user.Phone, &user.FullName, &user.Email,
		&user.ClientID, &user.Registered, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by chat id '%d': %w", chatID, err)
	}
	return user, nil
}

func (d *DefaultRepository) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	user := &model.User{}
	query := `
		SELECT id, chat_id, phone, full_name, email, yclients_client_id, is_registered, created_at
		FROM users WHERE phone = $1
	`
	err := d.db.QueryRowContext(ctx, query, phone).Scan(
		&user.ID, &user.ChatID, &user.Phone, &user.FullName, &user.Email,
		&user.ClientID, &user.Registered, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return user, nil
}

func (d *DefaultRepository) GetUserByClientID(ctx context.Context, clientID int64) (*model.User, error) {
	user := &model.User{}
	query := `
		SELECT id, chat_id, phone, full_name, email, yclients_client_id, is_registered, created_at
		FROM users WHERE yclients_client_id = $1
	`
	err := d.db.QueryRowContext(ctx, query, clientID).Scan(
		&user.ID, &user.ChatID, &user.Phone, &user.FullName, &user.Email,
		&user.ClientID, &user.Registered, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by client id '%d': %w", clientID, err)
	}
	return user, nil
}

func (d *DefaultRepository) CreateUser(ctx context.Context, user model.User) error {
	query := `
		INSERT INTO users (chat_id, phone, full_name, email, yclients_client_id, is_registered, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
	`
	if _, err := d.db.ExecContext(ctx, query, user.ChatID, user.Phone, user.FullName, user.Email, user.ClientID); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (d *DefaultRepository) GetReminderByRecordID(ctx context.Context, recordID int64) (*model.Reminder, error) {
	reminder := &model.Reminder{}
	query := `
		SELECT id, user_chat_id, record_id, appointment_at, service_name, staff_name,
		       is_sent, is_confirmed, is_cancelled, reminder_sent_at, created_at
		FROM reminders WHERE record_id = $1
	`
	err := d.db.QueryRowContext(ctx, query, recordID).Scan(
		&reminder.ID, &reminder.UserChatID, &reminder.RecordID, &reminder.AppointmentAt,
		&reminder.ServiceName, &reminder.StaffName, &reminder.Sent, &reminder.Confirmed,
		&reminder.Cancelled, &reminder.SentAt, &reminder.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to get reminder for record '%d': %w", recordID, err)
	}
	return reminder, nil
}

// CreateReminder inserts a reminder row. The unique constraint on
// record_id makes creation idempotent across overlapping poll cycles:
// a concurrent insert simply becomes a no-op.
func (d *DefaultRepository) CreateReminder(ctx context.Context, reminder model.Reminder) error {
	query := `
		INSERT INTO reminders (user_chat_id, record_id, appointment_at, service_name, staff_name, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (record_id) DO NOTHING
	`
	_, err := d.db.ExecContext(ctx, query,
		reminder.UserChatID, reminder.RecordID, reminder.AppointmentAt,
		reminder.ServiceName, reminder.StaffName,
	)
	if err != nil {
		return fmt.Errorf("failed to create reminder for record '%d': %w", reminder.RecordID, err)
	}
	return nil
}

// ClaimReminderSent flips is_sent to true only when it was false and
// reports whether this caller won the claim. Overlapping runs observing
// the same unsent reminder therefore record at most one send.
func (d *DefaultRepository) ClaimReminderSent(ctx context.Context, recordID int64) (bool, error) {
	query := `
		UPDATE reminders SET is_sent = TRUE, reminder_sent_at = NOW()
		WHERE record_id = $1 AND is_sent = FALSE
	`
	res, err := d.db.ExecContext(ctx, query, recordID)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent for record '%d': %w", recordID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check mark-sent result for record '%d': %w", recordID, err)
	}
	return affected > 0, nil
}

func (d *DefaultRepository) MarkReminderConfirmed(ctx context.Context, recordID int64) error {
	query := `UPDATE reminders SET is_confirmed = TRUE WHERE record_id = $1`
	if _, err := d.db.ExecContext(ctx, query, recordID); err != nil {
		return fmt.Errorf("failed to mark reminder confirmed for record '%d': %w", recordID, err)
	}
	return nil
}

func (d *DefaultRepository) MarkReminderCancelled(ctx context.Context, recordID int64) error {
	query := `UPDATE reminders SET is_cancelled = TRUE WHERE record_id = $1`
	if _, err := d.db.ExecContext(ctx, query, recordID); err != nil {
		return fmt.Errorf("failed to mark reminder cancelled for record '%d': %w", recordID, err)
	}
	return nil
}

func (d *DefaultRepository) CreateRescheduleRequest(ctx context.Context, request model.RescheduleRequest) (int64, error) {
	query := `
		INSERT INTO reschedule_requests
			(record_id, user_chat_id, original_datetime, client_phone, client_name, service_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`
	var requestID int64
	err := d.db.QueryRowContext(ctx, query,
		request.RecordID, request.UserChatID, request.OriginalDatetime,
		request.ClientPhone, request.ClientName, request.ServiceName,
		model.RescheduleStatusPending,
	).Scan(&requestID)
	if err != nil {
		return 0, fmt.Errorf("failed to create reschedule request for record '%d': %w", request.RecordID, err)
	}
	return requestID, nil
}

func (d *DefaultRepository) PendingRescheduleRequests(ctx context.Context) ([]model.RescheduleRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "PendingRescheduleRequests_repo")
	defer span.End()

	queryBuilder := squirrel.
		Select("id",
			"record_id",
			"user_chat_id",
			"original_datetime",
			"client_phone",
			"client_name",
			"service_name",
			"status",
			"created_at").
		From("reschedule_requests").
		Where(squirrel.Eq{"status": model.RescheduleStatusPending}).
		OrderBy("created_at").
		PlaceholderFormat(squirrel.Dollar)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reschedule requests: %w", err)
	}
	defer rows.Close()

	var requests []model.RescheduleRequest
	for rows.Next() {
		var request model.RescheduleRequest
		if err = rows.Scan(&request.ID, &request.RecordID, &request.UserChatID,
			&request.OriginalDatetime, &request.ClientPhone, &request.ClientName,
			&request.ServiceName, &request.Status, &request.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reschedule request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, nil
}

func (d *DefaultRepository) MarkRescheduleProcessed(ctx context.Context, requestID int64, managerComment string) error {
	query := `
		UPDATE reschedule_requests
		SET status = $2, manager_comment = $3, processed_at = NOW()
		WHERE id = $1
	`
	if _, err := d.db.ExecContext(ctx, query, requestID, model.RescheduleStatusProcessed, managerComment); err != nil {
		return fmt.Errorf("failed to mark reschedule request '%d' processed: %w", requestID, err)
	}
	return nil
}

// LogNotification appends an audit row. Nothing in the bot reads these
// back; each write is a single atomic insert.
func (d *DefaultRepository) LogNotification(ctx context.Context, entry model.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (chat_id, message_type, record_id, is_successful, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := d.db.ExecContext(ctx, query,
		entry.ChatID, entry.MessageType, entry.RecordID, entry.Successful, entry.ErrorMessage,
	); err != nil {
		return fmt.Errorf("failed to log notification for record '%d': %w", entry.RecordID, err)
	}
	return nil
}
