package audit

import "context"

// Event is one delivery outcome published to the audit stream.
type Event struct {
	RecordID    int64  `json:"record_id"`
	ChatID      int64  `json:"chat_id"`
	MessageType string `json:"message_type"`
	Successful  bool   `json:"successful"`
	Error       string `json:"error,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
