package bot

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"
)

// requestsHandler команда менеджера: необработанные запросы на перенос.
func (b *Bot) requestsHandler() {
	b.bot.Handle("/requests", func(c telebot.Context) error {
		if c.Sender().ID != b.adminChatID {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		requests, err := b.reminders.PendingReschedules(ctx)
		if err != nil {
			b.log.Error("failed to list pending reschedules", zap.Error(err))
			return c.Send("Не удалось получить список запросов.")
		}

		if len(requests) == 0 {
			return c.Send("Необработанных запросов на перенос нет.")
		}

		for _, request := range requests {
			text := fmt.Sprintf(
				"📋 Запрос #%d\n"+
					"Запись: %d\n"+
					"Клиент: %s (%s)\n"+
					"Услуга: %s\n"+
					"Дата: %s",
				request.ID, request.RecordID, request.ClientName, request.ClientPhone,
				request.ServiceName, request.OriginalDatetime.Format(appointmentTimeLayout),
			)

			markup := &telebot.ReplyMarkup{}
			markup.InlineKeyboard = [][]telebot.InlineButton{
				{{Unique: "request_done", Text: "✔ Обработано", Data: strconv.FormatInt(request.ID, 10)}},
			}

			if err = c.Send(text, markup); err != nil {
				b.log.Error("failed to send reschedule request", zap.Int64("request_id", request.ID), zap.Error(err))
			}
		}
		return nil
	})
}

// requestDoneHandler помечает запрос на перенос обработанным.
func (b *Bot) requestDoneHandler() {
	b.bot.Handle(&telebot.InlineButton{Unique: "request_done"}, func(c telebot.Context) error {
		if c.Sender().ID != b.adminChatID {
			return c.Respond()
		}

		requestID, err := strconv.ParseInt(c.Data(), 10, 64)
		if err != nil {
			b.log.Error("failed to parse request id from callback", zap.String("data", c.Data()), zap.Error(err))
			return c.Respond()
		}

		ctx, cancel := context.WithTimeout(context.Background(), longProcessTimeout)
		defer cancel()

		if err = b.reminders.ProcessReschedule(ctx, requestID, "Обработано менеджером"); err != nil {
			b.log.Error("failed to mark reschedule processed", zap.Int64("request_id", requestID), zap.Error(err))
			return c.Respond()
		}

		b.log.Info("reschedule request processed", zap.Int64("request_id", requestID))

		if err = c.Edit(c.Message().Text + "\n\n✔ Обработано"); err != nil {
			b.log.Error("failed to edit request message", zap.Error(err))
		}
		return c.Respond()
	})
}
