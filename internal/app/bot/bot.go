package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"

	"github.com/mkondr/salonbot/internal/model"
	"github.com/mkondr/salonbot/internal/service/reminders"
)

const (
	longProcessTimeout = 5 * time.Second

	appointmentTimeLayout = "02.01.2006 15:04"
)

type (
	// Bookings is the slice of the YClients client the chat side needs.
	Bookings interface {
		Records(ctx context.Context, from, to time.Time, clientID int64) ([]model.Appointment, error)
		FindClient(ctx context.Context, phone, email string) (*model.RemoteClient, error)
		UpdateRecordStatus(ctx context.Context, recordID int64, status, comment string) bool
	}
)

type Bot struct {
	bot         *telebot.Bot
	bookings    Bookings
	reminders   reminders.Service
	log         *zap.Logger
	adminChatID int64
}

func New(bot *telebot.Bot, bookings Bookings, remindersServ reminders.Service, log *zap.Logger, adminChatID int64) *Bot {
	return &Bot{
		bot:         bot,
		bookings:    bookings,
		reminders:   remindersServ,
		log:         log,
		adminChatID: adminChatID,
	}
}

func (b *Bot) Start() {
	b.startHandler()
	b.contactHandler()
	b.helpHandler()
	b.todayHandler()
	b.confirmHandler()
	b.cancelHandler()
	b.cancelReasonHandler()
	b.rescheduleHandler()
	b.requestsHandler()
	b.requestDoneHandler()

	b.log.Info("bot started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

// SendReminder delivers the reminder message with its inline keyboard.
// Used by the reconciliation scheduler.
func (b *Bot) SendReminder(reminder *model.Reminder) error {
	text := fmt.Sprintf(
		"Напоминание о записи\n\n"+
			"Дата: %s\n"+
			"Услуга: %s\n"+
			"Мастер: %s\n\n"+
			"Подтвердите или отмените запись.",
		reminder.AppointmentAt.Format(appointmentTimeLayout),
		reminder.ServiceName,
		reminder.StaffName,
	)

	_, err := b.bot.Send(telebot.ChatID(reminder.UserChatID), text, reminderKeyboard(reminder.RecordID))
	if err != nil {
		return fmt.Errorf("failed to send reminder to chat %d: %w", reminder.UserChatID, err)
	}
	return nil
}

// startHandler обработчик команды /start
func (b *Bot) startHandler() {
	b.bot.Handle("/start", func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		user, err := b.reminders.UserByChatID(ctx, c.Sender().ID)
		if err == nil && user.Registered {
			return c.Send(fmt.Sprintf("С возвращением, %s!", user.FullName))
		}

		markup := &telebot.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
		markup.Reply(markup.Row(markup.Contact("Поделиться номером")))

		return c.Send(
			"Добро пожаловать!\n\n"+
				"Для получения напоминаний о визитах нажмите кнопку ниже:",
			markup,
		)
	})
}

// contactHandler регистрация по номеру телефона
func (b *Bot) contactHandler() {
	b.bot.Handle(telebot.OnContact, func(c telebot.Context) error {
		contact := c.Message().Contact
		if contact == nil {
			return nil
		}

		phone := normalizePhone(contact.PhoneNumber)

		if err := c.Send("Ищу вас в системе..."); err != nil {
			b.log.Error("failed to send lookup notice", zap.Error(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		client, err := b.bookings.FindClient(ctx, phone, "")
		if err != nil || client == nil {
			if err != nil {
				b.log.Warn("client lookup failed", zap.Error(err))
			}
			return c.Send(
				"Не удалось найти вас в системе.\n"+
					"Свяжитесь с администратором салона.",
				&telebot.ReplyMarkup{RemoveKeyboard: true},
			)
		}

		err = b.reminders.RegisterUser(ctx, model.User{
			ChatID:   c.Sender().ID,
			Phone:    phone,
			FullName: client.Name,
			Email:    client.Email,
			ClientID: client.ID,
		})
		if err != nil {
			b.log.Error("failed to register user", zap.Int64("chat_id", c.Sender().ID), zap.Error(err))
			return c.Send("Не удалось завершить регистрацию. Попробуйте позже.")
		}

		b.log.Info("user registered", zap.Int64("chat_id", c.Sender().ID), zap.Int64("client_id", client.ID))
		return c.Send(
			fmt.Sprintf("Готово, %s! Теперь вы будете получать напоминания о записях.", client.Name),
			&telebot.ReplyMarkup{RemoveKeyboard: true},
		)
	})
}

// helpHandler обработчик помощь
func (b *Bot) helpHandler() {
	helpMessage := "Доступные команды:\n" +
		"/start - регистрация для получения напоминаний\n" +
		"/today - мои записи на сегодня\n" +
		"/help - показать это сообщение"

	b.bot.Handle("/help", func(c telebot.Context) error {
		return c.Send(helpMessage)
	})
}

// todayHandler показать записи на сегодня
func (b *Bot) todayHandler() {
	b.bot.Handle("/today", func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		user, err := b.reminders.UserByChatID(ctx, c.Sender().ID)
		if err != nil || !user.Registered {
			return c.Send("Вы не зарегистрированы.\nИспользуйте /start для регистрации.")
		}

		now := time.Now().UTC()
		dayEnd := now.Truncate(24 * time.Hour).Add(24 * time.Hour)

		records, err := b.bookings.Records(ctx, now, dayEnd, user.ClientID)
		if err != nil {
			b.log.Warn("failed to list today records", zap.Int64("chat_id", c.Sender().ID), zap.Error(err))
			return c.Send("Не удалось получить список записей. Попробуйте позже.")
		}

		if len(records) == 0 {
			return c.Send("На сегодня записей нет.")
		}

		var response strings.Builder
		response.WriteString("Ваши записи на сегодня:\n")
		for i, record := range records {
			response.WriteString(fmt.Sprintf("%d. %s — %s (мастер: %s)\n",
				i+1, record.StartAt.Format("15:04"), record.ServiceName, record.StaffName))
		}
		return c.Send(response.String())
	})
}

// normalizePhone приводит номер к виду +7XXXXXXXXXX
func normalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	if strings.HasPrefix(digits, "8") && len(digits) == 11 {
		digits = "7" + digits[1:]
	}
	if !strings.HasPrefix(digits, "7") {
		digits = "7" + digits
	}
	return "+" + digits
}
