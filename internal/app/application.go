package app

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands"
	"github.com/neuroasura/neuroasura/internal/commands/chat"
	"github.com/neuroasura/neuroasura/internal/commands/describe"
	"github.com/neuroasura/neuroasura/internal/commands/dialogs"
	"github.com/neuroasura/neuroasura/internal/commands/draw"
	"github.com/neuroasura/neuroasura/internal/commands/help"
	"github.com/neuroasura/neuroasura/internal/commands/model"
	"github.com/neuroasura/neuroasura/internal/commands/models"
	"github.com/neuroasura/neuroasura/internal/commands/prompt"
	"github.com/neuroasura/neuroasura/internal/commands/start"
	"github.com/neuroasura/neuroasura/internal/commands/status"
	"github.com/neuroasura/neuroasura/internal/commands/stop"
	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/core"
	"github.com/neuroasura/neuroasura/internal/logger"
)

const preloadTimeout = 30 * time.Second

type Application struct {
	Logger logger.Logger
	cfg    *config.Config
	bot    *core.Bot
	di     *di.Container
	ctx    context.Context
}

// New loads the config and wires the container. ctx bounds the whole run.
func New(ctx context.Context) (*Application, error) {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	container, err := di.NewContainer(cfg)
	if err != nil {
		return nil, err
	}
	container.Logger.Info("DI Container created")

	app := &Application{
		cfg:    cfg,
		bot:    core.NewBot(container.BotClient, container.Logger, cfg, container.Localizer),
		di:     container,
		Logger: container.Logger,
		ctx:    ctx,
	}
	app.Logger.Info("Bot instance created")

	app.registerCommands()

	return app, nil
}

// Start blocks until the context is cancelled.
func (a *Application) Start() error {
	a.Logger.Info("Starting application")
	go a.preloadModels()

	err := a.bot.Start(a.ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Application) registerCommands() {
	drawCmd := draw.New(a.di)
	var drawer chat.Drawer
	if a.cfg.GetCommandConfig(draw.CommandName).Enabled {
		drawer = drawCmd
	}
	chatCmd := chat.New(a.di, drawer)

	registered := []commands.Command{
		start.New(a.di),
		help.New(a.di),
		model.New(a.di),
		dialogs.NewNew(a.di),
		dialogs.NewList(a.di),
		dialogs.NewExport(a.di),
		dialogs.NewClear(a.di),
		prompt.New(a.di),
		prompt.NewMy(a.di),
		prompt.NewList(a.di),
		prompt.NewReset(a.di),
		models.NewList(a.di),
		models.NewInfo(a.di),
		models.NewStats(a.di),
		models.NewRefresh(a.di),
		status.New(a.di),
		drawCmd,
		describe.New(a.di),
		stop.New(a.di),
		chatCmd,
	}
	for _, cmd := range registered {
		if !a.cfg.GetCommandConfig(cmd.Name()).Enabled {
			a.Logger.WithField("command", cmd.Name()).Info("Command disabled")
			continue
		}
		a.bot.RegisterCommand(cmd)
	}

	// persona shortcuts like /coding never shadow a regular command
	for _, persona := range a.di.Prompts.List() {
		if a.bot.HasCommand(persona.Name) {
			a.Logger.WithField("persona", persona.Name).Warn("Persona shortcut clashes with a command, skipped")
			continue
		}
		a.bot.RegisterCommand(prompt.NewShortcut(a.di, persona.Name))
	}

	a.bot.SetTextHandler(chatCmd)
}

func (a *Application) preloadModels() {
	if a.di.Catalog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(a.ctx, preloadTimeout)
	defer cancel()

	models, err := a.di.Catalog.Models(ctx, false)
	if err != nil {
		a.Logger.WithError(err).Warn("Failed to preload models")
		return
	}
	a.Logger.WithField("count", len(models)).Info("Models preloaded")
}

// WaitForShutdown waits for in-flight handlers and releases the container.
func (a *Application) WaitForShutdown() {
	<-a.ctx.Done()
	a.Logger.Info("Shutting down, waiting for handlers")
	a.bot.Wait()

	if err := a.di.Close(); err != nil {
		a.Logger.WithError(err).Error("Failed to close resources")
	}
	a.Logger.Info("Application stopped")
}
