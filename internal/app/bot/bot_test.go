package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+7 (900) 123-45-67", "+79001234567"},
		{"89001234567", "+79001234567"},
		{"79001234567", "+79001234567"},
		{"9001234567", "+79001234567"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePhone(tt.in), tt.in)
	}
}

func TestReminderKeyboard(t *testing.T) {
	markup := reminderKeyboard(100)

	assert.Len(t, markup.InlineKeyboard, 3)
	for _, row := range markup.InlineKeyboard {
		assert.Equal(t, "100", row[0].Data)
	}
	assert.Equal(t, "confirm", markup.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "reschedule", markup.InlineKeyboard[1][0].Unique)
	assert.Equal(t, "cancel", markup.InlineKeyboard[2][0].Unique)
}

func TestCancelReasonKeyboard(t *testing.T) {
	markup := cancelReasonKeyboard(100)

	assert.Len(t, markup.InlineKeyboard, 3)
	for _, row := range markup.InlineKeyboard {
		assert.Equal(t, "cancel_reason", row[0].Unique)
	}
	assert.Equal(t, "100|ill", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "100|busy", markup.InlineKeyboard[1][0].Data)
	assert.Equal(t, "100|other", markup.InlineKeyboard[2][0].Data)
}
