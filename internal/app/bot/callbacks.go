package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"

	"github.com/mkondr/salonbot/internal/model"
	"github.com/mkondr/salonbot/internal/yclients"
)

var cancelReasons = map[string]string{
	"ill":   "Плохое самочувствие",
	"busy":  "Занят/Занята",
	"other": "Другая причина",
}

func reminderKeyboard(recordID int64) *telebot.ReplyMarkup {
	data := strconv.FormatInt(recordID, 10)
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{{Unique: "confirm", Text: "✅ Подтвердить", Data: data}},
		{{Unique: "reschedule", Text: "🔄 Перенести", Data: data}},
		{{Unique: "cancel", Text: "❌ Отменить", Data: data}},
	}
	return markup
}

func cancelReasonKeyboard(recordID int64) *telebot.ReplyMarkup {
	row := func(reason, text string) []telebot.InlineButton {
		return []telebot.InlineButton{{
			Unique: "cancel_reason",
			Text:   text,
			Data:   fmt.Sprintf("%d|%s", recordID, reason),
		}}
	}

	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		row("ill", "🤒 Плохое самочувствие"),
		row("busy", "⏰ Занят/Занята"),
		row("other", "📝 Другая причина"),
	}
	return markup
}

// confirmHandler подтверждение записи: сквозная запись в YClients,
// затем локальный флаг.
func (b *Bot) confirmHandler() {
	b.bot.Handle(&telebot.InlineButton{Unique: "confirm"}, func(c telebot.Context) error {
		recordID, err := strconv.ParseInt(c.Data(), 10, 64)
		if err != nil {
			b.log.Error("failed to parse record id from callback", zap.String("data", c.Data()), zap.Error(err))
			return c.Respond()
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		success := b.bookings.UpdateRecordStatus(ctx, recordID, yclients.StatusConfirmed,
			"Подтверждено клиентом через Telegram бота")
		if !success {
			if err = c.Send("❌ Не удалось подтвердить запись. Пожалуйста, попробуйте позже или свяжитесь с салоном."); err != nil {
				b.log.Error("failed to send confirm failure notice", zap.Error(err))
			}
			return c.Respond()
		}

		if err = b.reminders.Confirm(ctx, recordID); err != nil {
			b.log.Error("failed to mark reminder confirmed", zap.Int64("record_id", recordID), zap.Error(err))
		}
		b.logAction(ctx, c.Sender().ID, model.MessageTypeConfirmation, recordID)

		b.log.Info("record confirmed", zap.Int64("record_id", recordID), zap.Int64("chat_id", c.Sender().ID))

		if err = c.Edit(c.Message().Text + "\n\n✅ Запись подтверждена!\nЖдем вас в назначенное время."); err != nil {
			b.log.Error("failed to edit confirmation message", zap.Error(err))
		}
		return c.Respond()
	})
}

// cancelHandler первый шаг отмены: выбор причины.
func (b *Bot) cancelHandler() {
	b.bot.Handle(&telebot.InlineButton{Unique: "cancel"}, func(c telebot.Context) error {
		recordID, err := strconv.ParseInt(c.Data(), 10, 64)
		if err != nil {
			b.log.Error("failed to parse record id from callback", zap.String("data", c.Data()), zap.Error(err))
			return c.Respond()
		}

		if err = c.Edit(
			c.Message().Text+"\n\nПожалуйста, укажите причину отмены:",
			cancelReasonKeyboard(recordID),
		); err != nil {
			b.log.Error("failed to show cancel reasons", zap.Error(err))
		}
		return c.Respond()
	})
}

// cancelReasonHandler второй шаг отмены: сквозная запись в YClients с
// комментарием-причиной.
func (b *Bot) cancelReasonHandler() {
	b.bot.Handle(&telebot.InlineButton{Unique: "cancel_reason"}, func(c telebot.Context) error {
		parts := strings.SplitN(c.Data(), "|", 2)
		if len(parts) != 2 {
			b.log.Error("malformed cancel reason callback", zap.String("data", c.Data()))
			return c.Respond()
		}
		recordID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			b.log.Error("failed to parse record id from callback", zap.String("data", c.Data()), zap.Error(err))
			return c.Respond()
		}

		reasonText, ok := cancelReasons[parts[1]]
		if !ok {
			reasonText = "Не указана"
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		success := b.bookings.UpdateRecordStatus(ctx, recordID, yclients.StatusCancelled,
			fmt.Sprintf("Отменено клиентом: %s", reasonText))
		if !success {
			if err = c.Send("❌ Не удалось отменить запись. Пожалуйста, попробуйте позже или свяжитесь с салоном."); err != nil {
				b.log.Error("failed to send cancel failure notice", zap.Error(err))
			}
			return c.Respond()
		}

		if err = b.reminders.Cancel(ctx, recordID); err != nil {
			b.log.Error("failed to mark reminder cancelled", zap.Int64("record_id", recordID), zap.Error(err))
		}
		b.logAction(ctx, c.Sender().ID, model.MessageTypeCancellation, recordID)

		b.log.Info("record cancelled",
			zap.Int64("record_id", recordID),
			zap.Int64("chat_id", c.Sender().ID),
			zap.String("reason", reasonText),
		)

		if err = c.Edit(fmt.Sprintf(
			"❌ Запись отменена.\n\nПричина: %s\n\nДля новой записи свяжитесь с салоном.", reasonText,
		)); err != nil {
			b.log.Error("failed to edit cancellation message", zap.Error(err))
		}
		return c.Respond()
	})
}

// rescheduleHandler создает запрос на перенос и уведомляет менеджера.
func (b *Bot) rescheduleHandler() {
	b.bot.Handle(&telebot.InlineButton{Unique: "reschedule"}, func(c telebot.Context) error {
		recordID, err := strconv.ParseInt(c.Data(), 10, 64)
		if err != nil {
			b.log.Error("failed to parse record id from callback", zap.String("data", c.Data()), zap.Error(err))
			return c.Respond()
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		user, userErr := b.reminders.UserByChatID(ctx, c.Sender().ID)
		reminder, remErr := b.reminders.ReminderByRecordID(ctx, recordID)
		if userErr != nil || remErr != nil {
			if userErr != nil && !errors.Is(userErr, model.ErrUserNotFound) {
				b.log.Error("failed to load user for reschedule", zap.Error(userErr))
			}
			if remErr != nil && !errors.Is(remErr, model.ErrReminderNotFound) {
				b.log.Error("failed to load reminder for reschedule", zap.Error(remErr))
			}
			if err = c.Send("❌ Не удалось создать запрос на перенос. Пожалуйста, попробуйте позже."); err != nil {
				b.log.Error("failed to send reschedule failure notice", zap.Error(err))
			}
			return c.Respond()
		}

		fullName := user.FullName
		if fullName == "" {
			fullName = "Не указано"
		}

		_, err = b.reminders.RequestReschedule(ctx, model.RescheduleRequest{
			RecordID:         recordID,
			UserChatID:       c.Sender().ID,
			OriginalDatetime: reminder.AppointmentAt,
			ClientPhone:      user.Phone,
			ClientName:       fullName,
			ServiceName:      reminder.ServiceName,
		})
		if err != nil {
			b.log.Error("failed to create reschedule request", zap.Int64("record_id", recordID), zap.Error(err))
			if err = c.Send("❌ Не удалось создать запрос на перенос. Пожалуйста, попробуйте позже."); err != nil {
				b.log.Error("failed to send reschedule failure notice", zap.Error(err))
			}
			return c.Respond()
		}

		b.notifyAdminReschedule(recordID, user, reminder)
		b.logAction(ctx, c.Sender().ID, model.MessageTypeReschedule, recordID)

		b.log.Info("reschedule request created", zap.Int64("record_id", recordID), zap.Int64("chat_id", c.Sender().ID))

		if err = c.Edit(c.Message().Text +
			"\n\n🔄 Запрос на перенос отправлен!\n\n" +
			"Менеджер салона свяжется с вами в ближайшее время для уточнения новой даты и времени."); err != nil {
			b.log.Error("failed to edit reschedule message", zap.Error(err))
		}
		return c.Respond()
	})
}

func (b *Bot) notifyAdminReschedule(recordID int64, user *model.User, reminder *model.Reminder) {
	if b.adminChatID == 0 {
		return
	}

	message := fmt.Sprintf(
		"🔔 Новый запрос на перенос записи\n\n"+
			"📋 ID записи: %d\n"+
			"👤 Клиент: %s\n"+
			"📞 Телефон: %s\n"+
			"💇 Услуга: %s\n"+
			"👩 Мастер: %s\n"+
			"📅 Текущая дата: %s\n\n"+
			"Пожалуйста, свяжитесь с клиентом для уточнения новой даты.",
		recordID, user.FullName, user.Phone, reminder.ServiceName, reminder.StaffName,
		reminder.AppointmentAt.Format(appointmentTimeLayout),
	)

	if _, err := b.bot.Send(telebot.ChatID(b.adminChatID), message); err != nil {
		b.log.Error("failed to send admin notification", zap.Error(err))
	}
}

func (b *Bot) logAction(ctx context.Context, chatID int64, messageType string, recordID int64) {
	err := b.reminders.LogNotification(ctx, model.NotificationLog{
		ChatID:      chatID,
		MessageType: messageType,
		RecordID:    recordID,
		Successful:  true,
	})
	if err != nil {
		b.log.Error("failed to log notification", zap.Int64("record_id", recordID), zap.Error(err))
	}
}
