// Package bot implements the Telegram front end: long polling, the
// command set, and the download conversation flow.
package bot

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Raks-kmt/kaishou/internal/config"
	"github.com/Raks-kmt/kaishou/internal/domain"
	"github.com/Raks-kmt/kaishou/internal/service"
	"github.com/Raks-kmt/kaishou/internal/session"
)

// Downloader runs the full download pipeline for one share link.
type Downloader interface {
	Download(ctx context.Context, shareURL string, opts service.Options) (*domain.DownloadResult, error)
}

// sender is the slice of the Telegram API the bot sends through.
// *tgbotapi.BotAPI satisfies it.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot wires Telegram updates to the download service.
type Bot struct {
	api         *tgbotapi.BotAPI
	sender      sender
	svc         Downloader
	sessions    session.Store
	handle      string
	pollTimeout int
	maxFileSize int64
	logger      *slog.Logger

	wg sync.WaitGroup
}

// New creates the bot around an authorized API client.
func New(
	api *tgbotapi.BotAPI,
	svc Downloader,
	sessions session.Store,
	botCfg config.BotConfig,
	storageCfg config.StorageConfig,
	logger *slog.Logger,
) *Bot {
	return &Bot{
		api:         api,
		sender:      api,
		svc:         svc,
		sessions:    sessions,
		handle:      botCfg.Handle,
		pollTimeout: botCfg.PollTimeout,
		maxFileSize: storageCfg.MaxFileSize,
		logger:      logger,
	}
}

// Run polls for updates until ctx is cancelled. Each message runs on its
// own goroutine; Run returns once in-flight handlers have finished.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot polling", "username", b.api.Self.UserName, "timeout", b.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.logger.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.dispatch(ctx, update)
		}
	}
}

// dispatch hands one update to a handler goroutine. Panics in a handler
// are confined to that message.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("message handler panic",
					"panic", r,
					"user_id", msg.From.ID,
					"stack", string(debug.Stack()),
				)
				b.reply(msg, systemErrorText)
			}
		}()

		b.handleMessage(ctx, msg)
	}()
}

// reply sends a Markdown message in response to msg. Send failures are
// logged, not propagated.
func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	b.replyMessage(msg, text)
}

// replyMessage sends a Markdown reply and returns the sent message for
// later edits, or nil when sending failed.
func (b *Bot) replyMessage(msg *tgbotapi.Message, text string) *tgbotapi.Message {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeMarkdown
	out.ReplyToMessageID = msg.MessageID
	out.DisableWebPagePreview = true

	sent, err := b.sender.Send(out)
	if err != nil {
		b.logger.Warn("send failed", "chat_id", msg.Chat.ID, "error", err)
		return nil
	}
	return &sent
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.sender.Send(edit); err != nil {
		b.logger.Warn("edit failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.sender.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.logger.Warn("delete failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}
