// Package telegram receives bot messages via long polling and replies
// with one message per reply segment.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/enlaceai/enlace/internal/channel"
	"github.com/enlaceai/enlace/internal/media"
)

// User-facing texts for the channel-specific branches.
const (
	unsupportedText      = "Formato no soportado. Envía texto o un mensaje de voz."
	transcribeFailedText = "No se pudo transcribir el audio."
	audioErrorText       = "Ocurrió un error al procesar el audio."
)

// Processor runs one conversation turn.
type Processor interface {
	Process(ctx context.Context, userID, text string) (channel.Result, error)
}

// Transcriber converts a downloaded voice file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// botAPI is the slice of tgbotapi.BotAPI the adapter uses; it exists so
// tests can substitute a fake.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Adapter long-polls Telegram updates and relays each message through
// the turn processor.
type Adapter struct {
	logger      *slog.Logger
	bot         botAPI
	processor   Processor
	transcriber Transcriber
	spool       *media.Spool
	httpClient  *http.Client
}

// NewAdapter authenticates the bot and builds the adapter.
func NewAdapter(log *slog.Logger, token string, processor Processor, transcriber Transcriber, spool *media.Spool) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newAdapter(log, bot, processor, transcriber, spool), nil
}

func newAdapter(log *slog.Logger, bot botAPI, processor Processor, transcriber Transcriber, spool *media.Spool) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger:      log.With(slog.String("adapter", "telegram")),
		bot:         bot,
		processor:   processor,
		transcriber: transcriber,
		spool:       spool,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Run consumes updates until ctx is cancelled. Each message is handled in
// its own goroutine, so a slow provider call never blocks other chats.
func (a *Adapter) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := a.bot.GetUpdatesChan(updateConfig)
	a.logger.Info("long polling started")

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			a.logger.Info("long polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				a.logger.Info("updates channel closed")
				return
			}
			if update.Message == nil {
				continue
			}
			go a.handleMessage(ctx, update.Message)
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	switch {
	case msg.Text != "":
		a.logger.Info("text received", slog.String("chat_id", chatID))
		res, err := a.processor.Process(ctx, chatID, msg.Text)
		_ = channel.Deliver(ctx, a.logger, a.Sender(), chatID, res, err)
	case msg.Voice != nil:
		a.logger.Info("voice received", slog.String("chat_id", chatID))
		a.handleVoice(ctx, chatID, msg.Voice.FileID)
	default:
		a.sendText(ctx, chatID, unsupportedText)
	}
}

// handleVoice downloads the referenced audio to a per-request spool path,
// transcribes it, and runs the transcript through the normal text path.
// The spool file is removed on every exit path.
func (a *Adapter) handleVoice(ctx context.Context, chatID, fileID string) {
	fileURL, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		a.logger.Error("resolve voice file failed",
			slog.String("chat_id", chatID), slog.Any("error", err))
		a.sendText(ctx, chatID, audioErrorText)
		return
	}

	audioPath := a.spool.Allocate(".oga")
	defer a.spool.Remove(audioPath)

	if err := a.download(ctx, fileURL, audioPath); err != nil {
		a.logger.Error("download voice failed",
			slog.String("chat_id", chatID), slog.Any("error", err))
		a.sendText(ctx, chatID, audioErrorText)
		return
	}

	transcript, err := a.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		a.logger.Error("transcription failed",
			slog.String("chat_id", chatID), slog.Any("error", err))
		a.sendText(ctx, chatID, transcribeFailedText)
		return
	}

	res, err := a.processor.Process(ctx, chatID, transcript)
	_ = channel.Deliver(ctx, a.logger, a.Sender(), chatID, res, err)
}

func (a *Adapter) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download audio: status %d", resp.StatusCode)
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Sender exposes the Telegram send primitive for the shared fan-out.
// Replies use Markdown, matching the assistant's output format.
func (a *Adapter) Sender() channel.Sender {
	return channel.SenderFunc(func(_ context.Context, target, text string) error {
		chatID, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram target must be a chat id: %q", target)
		}
		message := tgbotapi.NewMessage(chatID, text)
		message.ParseMode = tgbotapi.ModeMarkdown
		_, err = a.bot.Send(message)
		return err
	})
}

func (a *Adapter) sendText(ctx context.Context, chatID, text string) {
	if err := a.Sender().SendText(ctx, chatID, text); err != nil {
		a.logger.Error("send failed",
			slog.String("chat_id", chatID), slog.Any("error", err))
	}
}
