package base

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands"
	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/prompts"
	"github.com/neuroasura/neuroasura/internal/ratelimit"
	"github.com/neuroasura/neuroasura/internal/router"
	"github.com/neuroasura/neuroasura/internal/service"
	"github.com/neuroasura/neuroasura/internal/session"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

type Command struct {
	command   commands.Command
	Tg        telegram.Client
	Logger    logger.Logger
	Cfg       *config.Config
	Session   *session.Service
	Prompts   *prompts.Manager
	Limiter   ratelimit.Limiter
	Localizer *service.Localizer

	registry *ai.Registry
	router   *router.Router
}

func NewCommand(cmd commands.Command, di *di.Container) *Command {
	limiter := di.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited
	}
	return &Command{
		command:   cmd,
		Tg:        di.BotClient,
		Logger:    di.Logger,
		Cfg:       di.Cfg,
		Session:   di.Session,
		Prompts:   di.Prompts,
		Limiter:   limiter,
		Localizer: di.Localizer,
		registry:  di.Registry,
		router:    di.Router,
	}
}

func (c *Command) Name() string {
	return ""
}

func (c *Command) Aliases() []string {
	return []string{}
}

// Handle applies the per-command config switches and the rate limiter, then runs Execute.
func (c *Command) Handle(ctx context.Context, update telegram.Update) error {
	cfg := c.Cfg.GetCommandConfig(c.command.Name())
	if !cfg.Enabled {
		return nil
	}

	if cfg.RateLimited {
		userID, chatID, messageID := Origin(update)
		if err := c.Limiter.Allow(ctx, userID); err != nil {
			if !errors.Is(err, ratelimit.ErrRateLimitExceeded) {
				return err
			}
			c.Logger.WithFields(logger.Fields{
				"user_id": userID,
				"command": c.command.Name(),
			}).Warn("Rate limit exceeded")
			return c.Reply(chatID, messageID, c.L("common.rateLimited", nil))
		}
	}

	return c.command.Execute(ctx, update)
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	return nil
}

func (c *Command) L(messageID string, data map[string]any) string {
	return c.Localizer.Localize(messageID, data)
}

// Reply sends plain text as a reply to the message.
func (c *Command) Reply(chatID int64, replyTo int, text string) error {
	_, err := c.Tg.Send(telegram.NewMessage(chatID, text, replyTo))
	if err != nil {
		c.Logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
	return err
}

// ReplyHTML sends pre-formatted HTML, falling back to plain text when Telegram rejects the markup.
func (c *Command) ReplyHTML(chatID int64, replyTo int, html, plain string) error {
	msg := telegram.NewMessage(chatID, html, replyTo)
	msg.ParseMode = telegram.ModeHTML
	msg.LinkPreviewDisabled = true

	_, err := c.Tg.Send(msg)
	if err == nil {
		return nil
	}
	if !telegram.IsParseError(err) {
		c.Logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
		return err
	}

	c.Logger.WithError(err).Warn("Telegram rejected HTML, sending plain text")
	return c.Reply(chatID, replyTo, plain)
}

// BackendLabel is the display name of the backend serving the model, e.g. "GigaChat".
func (c *Command) BackendLabel(model dialog.Model) string {
	backend := c.Backend(model)
	if backend == nil {
		return model.String()
	}
	if c.registry == nil {
		return backend.Name()
	}
	return c.registry.Label(backend.Name())
}

// Backend returns nil when the model has no backend configured.
func (c *Command) Backend(model dialog.Model) ai.Backend {
	if c.router == nil {
		return nil
	}
	return c.router.Backend(model)
}

// Origin returns who sent the update and where to reply.
func Origin(update telegram.Update) (userID, chatID int64, messageID int) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From != nil {
			userID = msg.From.ID
		}
		return userID, msg.Chat.ID, msg.MessageID
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if query.From != nil {
			userID = query.From.ID
		}
		if query.Message != nil {
			chatID = query.Message.Chat.ID
			messageID = query.Message.MessageID
		}
		return userID, chatID, messageID
	}
	return 0, 0, 0
}

// Args is the message text after the command word, trimmed.
func Args(update telegram.Update) string {
	if update.Message == nil {
		return ""
	}
	text := strings.TrimSpace(update.Message.Text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}
