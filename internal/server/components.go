package server

import (
	"context"

	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/config"
	"github.com/ifuryst/outreach/internal/models"
	"github.com/ifuryst/outreach/internal/service/gemini"
	"github.com/ifuryst/outreach/internal/service/notify"
	"github.com/ifuryst/outreach/internal/service/platform"
	"github.com/ifuryst/outreach/internal/service/platform/reddit"
	"github.com/ifuryst/outreach/internal/service/platform/twitter"
)

// buildRegistry registers one adapter per platform. A platform that is
// switched off or fails to authenticate is registered as Disabled so jobs
// targeting it fail loudly instead of silently doing nothing.
func buildRegistry(ctx context.Context, cfg *config.PlatformsConfig, logger *zap.Logger) *platform.Registry {
	registry := platform.NewRegistry(logger)

	register := func(p models.Platform, enabled bool, connect func() (platform.Adapter, error)) {
		adapter := platform.Adapter(platform.NewDisabled(p, "disabled in configuration"))
		if enabled {
			a, err := connect()
			if err != nil {
				logger.Warn("Platform adapter unavailable", zap.String("platform", string(p)), zap.Error(err))
				adapter = platform.NewDisabled(p, err.Error())
			} else {
				adapter = a
			}
		}
		if err := registry.Register(adapter); err != nil {
			logger.Error("Failed to register platform adapter", zap.Error(err))
		}
	}

	register(models.PlatformReddit, cfg.Reddit.Enabled, func() (platform.Adapter, error) {
		return reddit.New(ctx, cfg.Reddit, logger)
	})
	register(models.PlatformTwitter, cfg.Twitter.Enabled, func() (platform.Adapter, error) {
		return twitter.New(ctx, cfg.Twitter, logger)
	})

	return registry
}

// buildGenerator returns nil when no API key is configured or the client
// cannot be created; AI personalization then falls back to templates.
func buildGenerator(ctx context.Context, cfg *config.GeminiConfig, logger *zap.Logger) *gemini.Client {
	if cfg.APIKey == "" {
		logger.Info("Gemini API key not configured, AI personalization disabled")
		return nil
	}
	client, err := gemini.NewClient(ctx, *cfg, logger)
	if err != nil {
		logger.Warn("Gemini client unavailable, AI personalization disabled", zap.Error(err))
		return nil
	}
	return client
}

func buildNotifier(cfg *config.NotifyConfig, logger *zap.Logger) notify.Notifier {
	var notifiers notify.Multi

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram, logger)
		if err != nil {
			logger.Warn("Telegram notifier unavailable", zap.Error(err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	if cfg.AMQP.Enabled {
		pub, err := notify.NewAMQP(cfg.AMQP, logger)
		if err != nil {
			logger.Warn("AMQP notifier unavailable", zap.Error(err))
		} else {
			notifiers = append(notifiers, pub)
		}
	}

	if len(notifiers) == 0 {
		return notify.Nop{}
	}
	return notifiers
}
