package service

import (
	"context"
	"strings"

	"divergence_bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// кнопки клавиатуры -> команды
var buttons = map[string]string{
	"⚙️ Settings": "settings",
	"📊 Status":   "status",
	"❓ Help":     "help",
}

func keyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("⚙️ Settings"),
			tgbotapi.NewKeyboardButton("📊 Status"),
			tgbotapi.NewKeyboardButton("❓ Help"),
		),
	)
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		// callback, inline и т.п. не используем
		return
	}

	chatID := msg.Chat.ID
	if chatID != t.chatID {
		logger.Warn("telegram: ignoring message from foreign chat %d", chatID)
		return
	}

	var name string
	var args []string
	switch {
	case msg.IsCommand():
		name = msg.Command()
		args = strings.Fields(msg.CommandArguments())
	default:
		cmd, ok := buttons[strings.TrimSpace(msg.Text)]
		if !ok {
			return
		}
		name = cmd
	}

	reply := t.handler.Handle(ctx, source(chatID), name, args)

	out := tgbotapi.NewMessage(chatID, reply)
	out.ParseMode = tgbotapi.ModeMarkdown
	if name == "start" {
		out.ReplyMarkup = keyboard()
	}

	sendCtx, cancel := context.WithTimeout(ctx, t.cfg.SendTimeout)
	defer cancel()
	if err := t.send(sendCtx, out); err != nil {
		logger.Error("telegram: reply to /%s failed: %v", name, err)
	}
}
