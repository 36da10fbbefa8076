package bot

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Raks-kmt/kaishou/internal/domain"
	"github.com/Raks-kmt/kaishou/internal/service"
	"github.com/Raks-kmt/kaishou/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSender records every Chattable the bot sends.
type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	videoErr error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := c.(tgbotapi.VideoConfig); ok && f.videoErr != nil {
		return tgbotapi.Message{}, f.videoErr
	}

	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) videos() []tgbotapi.VideoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.VideoConfig
	for _, c := range f.sent {
		if v, ok := c.(tgbotapi.VideoConfig); ok {
			out = append(out, v)
		}
	}
	return out
}

// fakeDownloader mimics the download service's callback contract: metadata
// hook, deliver window with a live file, cleanup after deliver.
type fakeDownloader struct {
	meta     *domain.VideoMetadata
	content  []byte
	err      error
	panicMsg string

	calls       int
	lastURL     string
	lastQuality domain.Quality
}

func (f *fakeDownloader) Download(ctx context.Context, shareURL string, opts service.Options) (*domain.DownloadResult, error) {
	f.calls++
	f.lastURL = shareURL
	f.lastQuality = opts.Quality

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}

	meta := *f.meta
	if opts.OnResolved != nil {
		opts.OnResolved(&meta)
	}

	dir, err := os.MkdirTemp("", "kaishou-bot-test-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(path, f.content, 0o644); err != nil {
		return nil, err
	}

	result := &domain.DownloadResult{
		ID:      "abcd1234",
		Path:    path,
		Size:    int64(len(f.content)),
		Quality: opts.Quality,
		Meta:    meta,
	}
	if opts.Deliver != nil {
		if err := opts.Deliver(ctx, result); err != nil {
			return nil, domain.NewDownloadError(result.ID, "deliver", err)
		}
	}
	return result, nil
}

func newTestBot(svc Downloader) (*Bot, *fakeSender) {
	snd := &fakeSender{}
	b := &Bot{
		sender:      snd,
		svc:         svc,
		sessions:    session.NewMemoryStore(),
		handle:      "@KuaishouDownloaderBot",
		pollTimeout: 60,
		maxFileSize: 50 * 1024 * 1024,
		logger:      testLogger(),
	}
	return b, snd
}

func textMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 99,
		From:      &tgbotapi.User{ID: userID, FirstName: "Raj"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
}

func commandMessage(userID int64, text string) *tgbotapi.Message {
	msg := textMessage(userID, text)
	cmd := strings.Fields(text)[0]
	msg.Entities = []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: len(cmd)},
	}
	return msg
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	svc := &fakeDownloader{panicMsg: "handler exploded"}
	b, snd := newTestBot(svc)

	b.dispatch(context.Background(), tgbotapi.Update{
		Message: textMessage(1, "https://v.kuaishou.com/AbC123XyZ"),
	})
	b.wg.Wait()

	msgs := snd.messages()
	if len(msgs) == 0 {
		t.Fatal("no reply sent after panic")
	}
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Text, "System Error") {
		t.Errorf("last reply = %q, want the system error card", last.Text)
	}
}

func TestDispatch_IgnoresNonMessages(t *testing.T) {
	b, snd := newTestBot(&fakeDownloader{})

	b.dispatch(context.Background(), tgbotapi.Update{})
	b.dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{}})
	b.wg.Wait()

	if len(snd.sent) != 0 {
		t.Errorf("sent %d messages for empty updates", len(snd.sent))
	}
}

func TestHandleMessage_EmptyTextIgnored(t *testing.T) {
	b, snd := newTestBot(&fakeDownloader{})

	b.handleMessage(context.Background(), textMessage(1, "   "))

	if len(snd.sent) != 0 {
		t.Errorf("sent %d messages for blank text", len(snd.sent))
	}
	if totals := b.sessions.Totals(); totals.Users != 0 {
		t.Errorf("blank text created %d sessions", totals.Users)
	}
}
