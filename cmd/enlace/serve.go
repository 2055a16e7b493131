package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/enlaceai/enlace/internal/assistant"
	"github.com/enlaceai/enlace/internal/channel/adapters/telegram"
	"github.com/enlaceai/enlace/internal/channel/adapters/whatsapp"
	"github.com/enlaceai/enlace/internal/config"
	"github.com/enlaceai/enlace/internal/db"
	"github.com/enlaceai/enlace/internal/handlers"
	"github.com/enlaceai/enlace/internal/logger"
	"github.com/enlaceai/enlace/internal/media"
	"github.com/enlaceai/enlace/internal/normalize"
	"github.com/enlaceai/enlace/internal/server"
	"github.com/enlaceai/enlace/internal/threads"
	"github.com/enlaceai/enlace/internal/transcribe"
	"github.com/enlaceai/enlace/internal/turn"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			threads.NewService,
			provideAssistantClient,
			provideConversationService,
			provideTranscriber,
			provideNormalizer,
			provideTurnProcessor,
			provideSpool,
			provideWhatsAppSender,
			provideWebhookHandler,
			provideTelegramAdapter,
			handlers.NewPingHandler,
			provideServer,
		),
		fx.Invoke(
			ensureSchema,
			startSweeper,
			startTelegram,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideAssistantClient(cfg config.Config) *assistant.Client {
	return assistant.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.AssistantID, 60*time.Second)
}

func provideConversationService(log *slog.Logger, cfg config.Config, client *assistant.Client, store *threads.Service) *assistant.ConversationService {
	return assistant.NewConversationService(log, client, store,
		cfg.OpenAI.PollInterval.Std(), cfg.OpenAI.PollTimeout.Std())
}

func provideTranscriber(cfg config.Config) *transcribe.Client {
	return transcribe.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.AudioModel, 60*time.Second)
}

func provideNormalizer(log *slog.Logger, cfg config.Config) (*normalize.Service, error) {
	return normalize.NewService(log, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL,
		cfg.OpenAI.FormatModel, cfg.OpenAI.PromptPath, 60*time.Second)
}

func provideTurnProcessor(log *slog.Logger, conv *assistant.ConversationService, norm *normalize.Service) *turn.Processor {
	return turn.NewProcessor(log, conv, norm)
}

func provideSpool(log *slog.Logger, cfg config.Config) (*media.Spool, error) {
	return media.NewSpool(log, cfg.Media.SpoolDir, cfg.Media.Retention.Std())
}

func provideWhatsAppSender(log *slog.Logger, cfg config.Config) *whatsapp.Sender {
	return whatsapp.NewSender(log, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, processor *turn.Processor, sender *whatsapp.Sender) *whatsapp.WebhookHandler {
	return whatsapp.NewWebhookHandler(log, processor, sender, cfg.Twilio.AuthToken)
}

func provideTelegramAdapter(log *slog.Logger, cfg config.Config, processor *turn.Processor, transcriber *transcribe.Client, spool *media.Spool) (*telegram.Adapter, error) {
	return telegram.NewAdapter(log, cfg.Telegram.BotToken, processor, transcriber, spool)
}

func provideServer(cfg config.Config, pingHandler *handlers.PingHandler, webhookHandler *whatsapp.WebhookHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, pingHandler, webhookHandler)
}

func ensureSchema(lc fx.Lifecycle, store *threads.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return store.EnsureSchema(ctx)
		},
	})
}

func startSweeper(lc fx.Lifecycle, spool *media.Spool) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return spool.StartSweeper() },
		OnStop:  func(context.Context) error { spool.StopSweeper(); return nil },
	})
}

func startTelegram(lc fx.Lifecycle, adapter *telegram.Adapter) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go adapter.Run(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server exited", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
