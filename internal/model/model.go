package model

import "time"

type (
	// User is a registered bot user resolved to a YClients client.
	User struct {
		ID         int64
		ChatID     int64
		Phone      string
		FullName   string
		Email      string
		ClientID   int64
		Registered bool
		CreatedAt  time.Time
	}

	// Reminder tracks whether a notification for a remote appointment
	// was sent, confirmed or cancelled. Keyed uniquely by RecordID.
	Reminder struct {
		ID            int64
		UserChatID    int64
		RecordID      int64
		AppointmentAt time.Time
		ServiceName   string
		StaffName     string
		Sent          bool
		Confirmed     bool
		Cancelled     bool
		SentAt        *time.Time
		CreatedAt     time.Time
	}

	// RescheduleRequest is created when a client asks to move an
	// appointment; a manager processes it out of band.
	RescheduleRequest struct {
		ID               int64
		RecordID         int64
		UserChatID       int64
		OriginalDatetime time.Time
		ClientPhone      string
		ClientName       string
		ServiceName      string
		Status           string
		ManagerComment   string
		ProcessedAt      *time.Time
		CreatedAt        time.Time
	}

	// NotificationLog is an append-only delivery audit record. The core
	// only ever writes these.
	NotificationLog struct {
		ChatID       int64
		MessageType  string
		RecordID     int64
		Successful   bool
		ErrorMessage string
	}
)

// Remote records sourced from the YClients API. Transient: they live for
// one reconciliation pass and are never cached.
type (
	Appointment struct {
		ID          int64
		ClientID    int64
		StartAt     time.Time
		ServiceName string
		StaffName   string
	}

	RemoteClient struct {
		ID    int64
		Name  string
		Phone string
		Email string
	}

	Service struct {
		ID    int64
		Title string
	}

	Staff struct {
		ID   int64
		Name string
	}
)

const (
	RescheduleStatusPending   = "pending"
	RescheduleStatusProcessed = "processed"

	MessageTypeReminder     = "reminder"
	MessageTypeConfirmation = "confirmation"
	MessageTypeCancellation = "cancellation"
	MessageTypeReschedule   = "reschedule_request"
)
