package core

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/neuroasura/neuroasura/internal/commands"
	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/service"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const (
	chatTypePrivate = "private"
	// callback data is "<command>_<payload>", e.g. model_primary
	callbackSeparator = "_"
)

// Bot polls Telegram and dispatches every update to a command in its own goroutine.
type Bot struct {
	commands  map[string]commands.Command
	aliases   map[string]string
	text      commands.Command
	logger    logger.Logger
	tg        telegram.Client
	cfg       *config.Config
	localizer *service.Localizer

	handlers sync.WaitGroup
}

func NewBot(
	tg telegram.Client,
	logger logger.Logger,
	cfg *config.Config,
	localizer *service.Localizer,
) *Bot {
	return &Bot{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		tg:        tg,
		cfg:       cfg,
		logger:    logger,
		localizer: localizer,
	}
}

// Start blocks until ctx is done or the update channel is closed.
func (b *Bot) Start(ctx context.Context) error {
	updates := b.tg.GetUpdatesChan(b.tg.NewUpdate(0, 60, 0))
	b.logger.WithField("username", b.tg.Self().UserName).Info("Bot started")

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			b.logger.Info("Stopped receiving updates")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// Wait blocks until every dispatched handler has returned.
func (b *Bot) Wait() {
	b.handlers.Wait()
}

func (b *Bot) HandleUpdate(ctx context.Context, update telegram.Update) {
	jsonData, _ := json.Marshal(update)
	b.logger.WithField("update_structure", string(jsonData)).Debug("Received update")

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update)
	case update.Message != nil:
		b.handleMessage(ctx, update)
	}
}

func (b *Bot) handleCallback(ctx context.Context, update telegram.Update) {
	query := update.CallbackQuery
	if query.From == nil || query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	if !b.cfg.Telegram().IsAllowed(query.From.ID, chatID) {
		b.logger.WithFields(logger.Fields{
			"user_id": query.From.ID,
			"chat_id": chatID,
		}).Warn("Unauthorized callback")
		return
	}

	name, _, _ := strings.Cut(query.Data, callbackSeparator)
	cmd := b.lookup(name)
	if cmd == nil {
		b.logger.WithField("data", query.Data).Debug("Callback for unknown command")
		return
	}

	b.dispatch(ctx, cmd, update, chatID, query.Message.MessageID)

	if _, err := b.tg.Request(telegram.NewCallback(query.ID, "")); err != nil {
		b.logger.WithError(err).Error("Failed to answer callback query")
	}
}

func (b *Bot) handleMessage(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg.From == nil || msg.From.IsBot {
		return
	}

	if !b.cfg.Telegram().IsAllowed(msg.From.ID, msg.Chat.ID) {
		b.logger.WithFields(logger.Fields{
			"user_id":  msg.From.ID,
			"username": msg.From.UserName,
			"chat_id":  msg.Chat.ID,
		}).Warn("Unauthorized access attempt")
		if msg.Chat.Type == chatTypePrivate {
			b.reply(msg.Chat.ID, msg.MessageID, b.localizer.Localize("common.accessDenied", nil))
		}
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if isCommand(text) {
		b.handleCommand(ctx, update, text)
		return
	}

	if isIgnoreMessage(text) || b.text == nil {
		return
	}

	botUsername := b.tg.Self().UserName
	if msg.Chat.Type != chatTypePrivate {
		mentioned := containsBotMention(text, botUsername)
		if !mentioned && !b.isReplyToBot(msg) {
			return
		}
		if mentioned {
			text = stripBotMention(text, botUsername)
		}
	}

	forwarded := *msg
	forwarded.Text = text
	update.Message = &forwarded

	b.dispatch(ctx, b.text, update, msg.Chat.ID, msg.MessageID)
}

func (b *Bot) handleCommand(ctx context.Context, update telegram.Update, text string) {
	msg := update.Message
	word, target, addressed := strings.Cut(strings.Fields(text)[0], "@")
	if addressed && !strings.EqualFold(target, b.tg.Self().UserName) {
		return // addressed to another bot
	}
	name := strings.ToLower(strings.TrimPrefix(word, "/"))

	cmd := b.lookup(name)
	if cmd == nil {
		b.logger.WithField("command", name).Debug("Unknown command")
		return
	}

	b.logger.WithFields(logger.Fields{
		"command":  name,
		"user_id":  msg.From.ID,
		"username": msg.From.UserName,
		"chat_id":  msg.Chat.ID,
	}).Info("Handling command")

	b.dispatch(ctx, cmd, update, msg.Chat.ID, msg.MessageID)
}

func (b *Bot) dispatch(ctx context.Context, cmd commands.Command, update telegram.Update, chatID int64, messageID int) {
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		if err := cmd.Handle(ctx, update); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.WithError(err).WithField("command", cmd.Name()).Error("Failed to handle command")
			b.sendErrorMessage(chatID, messageID)
		}
	}()
}

// RegisterCommand adds cmd under its name and aliases. Later registrations win.
func (b *Bot) RegisterCommand(cmd commands.Command) {
	if cmd == nil {
		b.logger.Error("Attempting to register nil command")
		return
	}

	name := strings.ToLower(cmd.Name())
	if name == "" {
		b.logger.Error("Attempting to register command with empty name")
		return
	}

	b.logger.WithFields(logger.Fields{
		"command": name,
		"aliases": cmd.Aliases(),
	}).Debug("Registering command")

	b.commands[name] = cmd
	for _, alias := range cmd.Aliases() {
		b.aliases[strings.ToLower(alias)] = name
	}
}

// SetTextHandler sets the command that receives plain, non-command messages.
func (b *Bot) SetTextHandler(cmd commands.Command) {
	b.text = cmd
}

func (b *Bot) HasCommand(name string) bool {
	return b.lookup(strings.ToLower(name)) != nil
}

func (b *Bot) GetCommands() map[string]commands.Command {
	return b.commands
}

func (b *Bot) lookup(name string) commands.Command {
	if cmd, ok := b.commands[name]; ok {
		return cmd
	}
	if target, ok := b.aliases[name]; ok {
		return b.commands[target]
	}
	return nil
}

func (b *Bot) isReplyToBot(msg *telegram.MessageOriginal) bool {
	reply := msg.ReplyToMessage
	return reply != nil && reply.From != nil && reply.From.ID == b.tg.Self().ID
}

func (b *Bot) reply(chatID int64, messageID int, text string) {
	if _, err := b.tg.Send(telegram.NewMessage(chatID, text, messageID)); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

func (b *Bot) sendErrorMessage(chatID int64, messageID int) {
	b.reply(chatID, messageID, b.localizer.Localize("common.error", nil))
}

func isIgnoreMessage(text string) bool {
	return strings.HasPrefix(text, ">")
}

func isCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

func containsBotMention(text string, botUsername string) bool {
	if botUsername == "" || !strings.Contains(text, "@") {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(botUsername))
}

// stripBotMention removes every @botname, matching case-insensitively.
func stripBotMention(text string, botUsername string) string {
	mention := regexp.MustCompile(`(?i)\s*@` + regexp.QuoteMeta(botUsername) + `\b`)
	return strings.TrimSpace(mention.ReplaceAllString(text, ""))
}
