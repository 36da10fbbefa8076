package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Raks-kmt/kaishou/internal/classify"
	"github.com/Raks-kmt/kaishou/internal/domain"
	"github.com/Raks-kmt/kaishou/internal/service"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	sess := b.sessions.Touch(msg.From.ID)

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	b.handleLink(ctx, msg, sess.Quality)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(msg, welcomeMessage(msg.From.FirstName))
		b.logger.Info("new user started", "user_id", msg.From.ID, "name", msg.From.FirstName)
	case "help":
		b.reply(msg, helpText)
	case "tutorial":
		b.reply(msg, tutorialText)
	case "quality":
		b.reply(msg, qualityMenu(b.sessions.Quality(msg.From.ID)))
	case "stats":
		b.reply(msg, statsCard(msg.From.FirstName, msg.From.ID, b.sessions.Touch(msg.From.ID)))
	case "set_quality_best":
		b.setQuality(msg, domain.QualityBest)
	case "set_quality_1080":
		b.setQuality(msg, domain.Quality1080)
	case "set_quality_720":
		b.setQuality(msg, domain.Quality720)
	case "set_quality_480":
		b.setQuality(msg, domain.Quality480)
	case "set_quality_360":
		b.setQuality(msg, domain.Quality360)
	default:
		// Unregistered commands get no reply.
	}
}

func (b *Bot) setQuality(msg *tgbotapi.Message, q domain.Quality) {
	b.sessions.SetQuality(msg.From.ID, q)
	b.reply(msg, qualityConfirmation(q))
	b.logger.Info("quality set", "user_id", msg.From.ID, "quality", q)
}

// handleLink runs the download conversation for one candidate link: a
// progress message that is edited through the pipeline stages, the video
// upload, and exactly one terminal reply on failure.
func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message, quality domain.Quality) {
	logger := b.logger.With("user_id", msg.From.ID)

	id, err := classify.Classify(msg.Text)
	if err != nil {
		if errors.Is(err, domain.ErrNotVideoLink) {
			b.reply(msg, notVideoLinkText)
		} else {
			b.reply(msg, invalidLinkText)
		}
		return
	}
	shareURL := classify.CanonicalURL(id)

	logger.Info("link accepted", "content_id", id)

	progress := b.replyMessage(msg, processingText)
	if progress == nil {
		// Can't reach the chat at all; don't download what we can't send.
		return
	}
	edit := func(text string) { b.editText(msg.Chat.ID, progress.MessageID, text) }

	edit(analysisText)

	result, err := b.svc.Download(ctx, shareURL, service.Options{
		Quality: quality,
		OnResolved: func(meta *domain.VideoMetadata) {
			edit(downloadStartingMessage(meta, quality))
		},
		Deliver: func(_ context.Context, r *domain.DownloadResult) error {
			edit(sendingText)
			return b.sendVideo(msg, r)
		},
	})
	if err != nil {
		logger.Warn("download failed",
			"kind", domain.KindOfFailure(err).String(),
			"error", err,
		)
		edit(failureMessage(err, b.maxFileSize))
		return
	}

	count := b.sessions.RecordDownload(msg.From.ID)

	b.deleteMessage(msg.Chat.ID, progress.MessageID)
	b.reply(msg, successText)

	logger.Info("video delivered",
		"download_id", result.ID,
		"title", result.Meta.Title,
		"size_bytes", result.Size,
		"total_downloads", count,
	)
}

// sendVideo uploads the artifact. It runs inside the service's Deliver
// window, while the scratch file still exists.
func (b *Bot) sendVideo(msg *tgbotapi.Message, result *domain.DownloadResult) error {
	video := tgbotapi.NewVideo(msg.Chat.ID, tgbotapi.FilePath(result.Path))
	video.Caption = captionFor(result, b.handle)
	video.ParseMode = tgbotapi.ModeMarkdown
	video.Duration = result.Meta.Duration
	video.SupportsStreaming = true
	video.ReplyToMessageID = msg.MessageID

	_, err := b.sender.Send(video)
	return err
}
