package service

import (
	"context"
	"strconv"
	"sync"

	"divergence_bot/internal/modules/config"
	"divergence_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Handler: исполнитель команд оператора.
type Handler interface {
	Handle(ctx context.Context, source, name string, args []string) string
}

type botAPI interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram: одна чат-комната: алерты туда, команды только оттуда.
type Telegram struct {
	bot     botAPI
	chatID  int64
	handler Handler
	cfg     config.TelegramConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTelegram(cfg *config.Config, handler Handler) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	logger.Info("telegram: authorized as @%s", b.Self.UserName)
	return newTelegram(b, cfg.Telegram, handler), nil
}

func newTelegram(bot botAPI, cfg config.TelegramConfig, handler Handler) *Telegram {
	return &Telegram{
		bot:     bot,
		chatID:  cfg.ChatID,
		handler: handler,
		cfg:     cfg,
	}
}

// Send: notify.Notifier. Markdown, без повторов; ctx ограничивает ожидание.
func (t *Telegram) Send(ctx context.Context, text string) error {
	msg := tgbot.NewMessage(t.chatID, text)
	msg.ParseMode = tgbot.ModeMarkdown
	return t.send(ctx, msg)
}

func (t *Telegram) send(ctx context.Context, c tgbot.Chattable) error {
	errCh := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(c)
		errCh <- err
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start: long polling в отдельной горутине.
func (t *Telegram) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				// начатая команда доводится до конца и при остановке
				t.handleUpdate(context.WithoutCancel(ctx), update)
			}
		}
	}()
}

func (t *Telegram) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	t.bot.StopReceivingUpdates()
	cancel()
	t.wg.Wait()
}

func source(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}
