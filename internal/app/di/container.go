package di

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/cache"
	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/database"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/imagegen"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/network"
	"github.com/neuroasura/neuroasura/internal/prompts"
	"github.com/neuroasura/neuroasura/internal/ratelimit"
	"github.com/neuroasura/neuroasura/internal/router"
	"github.com/neuroasura/neuroasura/internal/service"
	"github.com/neuroasura/neuroasura/internal/service/cancel"
	"github.com/neuroasura/neuroasura/internal/session"
	"github.com/neuroasura/neuroasura/internal/telegram"
	"github.com/neuroasura/neuroasura/internal/transcript"
)

var ErrPrimaryBackendMissing = errors.New("primary backend is not configured")

type Container struct {
	BotClient  telegram.Client
	Logger     logger.Logger
	DB         database.Database
	Cache      cache.Cache
	Cfg        *config.Config
	HttpClient *http.Client
	Localizer  *service.Localizer
	Registry   *ai.Registry
	Catalog    *ai.Catalog
	Router     *router.Router
	Dialogs    *dialog.Store
	Session    *session.Service
	Prompts    *prompts.Manager
	Limiter    ratelimit.Limiter
	Images     *imagegen.Generator

	closers []io.Closer
}

func NewContainer(cfg *config.Config) (*Container, error) {
	logCfg := cfg.Log()
	l := logger.NewLogrusLogger(&logCfg)

	db, err := database.NewSQLiteDB(cfg, l)
	if err != nil {
		return nil, err
	}

	localizer, err := service.NewLocalizer(cfg.Global().InterfaceLanguage)
	if err != nil {
		db.Close()
		return nil, err
	}

	container := &Container{
		Logger:    l,
		DB:        db,
		Cache:     cache.NewMemoryCache(time.Hour, 10*time.Minute),
		Cfg:       cfg,
		Localizer: localizer,
	}

	container.HttpClient, err = network.SetupHTTPClient(network.NewDefaultHTTPClientConfig(cfg.HTTP()), l)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := container.initBackends(); err != nil {
		db.Close()
		return nil, err
	}

	sink, err := container.initTranscript()
	if err != nil {
		db.Close()
		return nil, err
	}
	container.Dialogs = dialog.NewStore(cfg.Dialogs(), l, dialog.WithSink(sink))
	container.Prompts = prompts.NewManager(cfg.Prompts())
	container.Session = session.NewService(
		container.Dialogs,
		container.Router,
		container.Prompts,
		cancel.NewManager(),
		session.OptionsFromConfig(cfg),
		l,
	)

	container.Limiter = ratelimit.New(cfg.RateLimit(), container.Cache, l)
	if closer, ok := container.Limiter.(io.Closer); ok {
		container.closers = append(container.closers, closer)
	}

	if imagesCfg := cfg.Images(); imagesCfg.Enabled {
		imagesClient, err := network.SetupHTTPClient(network.NewImagesHTTPClientConfig(cfg.HTTP(), imagesCfg), l)
		if err != nil {
			db.Close()
			return nil, err
		}
		container.Images = imagegen.NewDefaultGenerator(imagesCfg, imagesClient, l)
		l.WithField("providers", container.Images.Providers()).Info("Image generation enabled")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram().Token)
	if err != nil {
		l.WithError(err).Fatal("Bot API client initialization error")
	}
	api.Debug = cfg.Telegram().Debug
	l.Info("Bot API initialized")

	container.BotClient = telegram.NewBotClient(api, l)

	return container, nil
}

// initBackends registers one client per configured provider and builds the router on
// the primary and secondary ones. A missing secondary only disables the fallback pair.
func (c *Container) initBackends() error {
	aiCfg := c.Cfg.AI()
	c.Registry = ai.NewRegistry(c.Logger)

	for _, providerCfg := range aiCfg.Providers {
		providerLog := c.Logger.WithField("provider", providerCfg.Name)
		client, err := network.SetupHTTPClient(network.NewBackendHTTPClientConfig(c.Cfg.HTTP(), providerCfg), c.Logger)
		if err != nil {
			return fmt.Errorf("http client for %s: %w", providerCfg.Name, err)
		}
		backend, err := ai.NewBackend(providerCfg, client, c.Logger)
		if err != nil {
			providerLog.WithError(err).Error("Unsupported AI provider type")
			continue
		}
		if providerCfg.GetAPIKey() == "" {
			providerLog.Warn("AI provider has no API key")
		}
		c.Registry.Register(backend, providerCfg.Label())
		providerLog.WithField("type", providerCfg.Type).Info("Initialized AI provider")
	}

	primary, err := c.Registry.Get(aiCfg.Primary)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrimaryBackendMissing, err)
	}
	secondary, err := c.Registry.Get(aiCfg.Secondary)
	if err != nil {
		c.Logger.WithError(err).Warn("Secondary backend is not configured, fallback disabled")
	}

	c.Router = router.New(primary, secondary, aiCfg.RequestTimeout, c.Logger)

	if lister, ok := primary.(ai.ModelLister); ok {
		c.Catalog = ai.NewCatalog(lister, c.Cache, aiCfg.ModelsCacheTTL, c.Logger)
	}
	return nil
}

func (c *Container) initTranscript() (transcript.Sink, error) {
	cfg := c.Cfg.Transcript()
	var sinks []transcript.Sink

	if cfg.Dir != "" {
		fileSink, err := transcript.NewFileSink(transcript.FileSinkOptions{
			Dir:           cfg.Dir,
			ExcerptLength: cfg.ExcerptLength,
			MaxSizeMB:     cfg.MaxSizeMB,
			MaxBackups:    cfg.MaxBackups,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, fileSink)
		sinks = append(sinks, fileSink)
	}
	if cfg.SQLite {
		sinks = append(sinks, transcript.NewSQLiteSink(c.DB, cfg.ExcerptLength))
	}

	if len(sinks) == 0 {
		c.Logger.Warn("Transcript logging disabled")
		return transcript.Discard, nil
	}
	return transcript.Multi(sinks...), nil
}

// Close releases transcript files, the rate limiter connection and the database.
func (c *Container) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
