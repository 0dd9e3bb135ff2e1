package chat

import (
	"context"
	"errors"

	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/imagegen"
	"github.com/neuroasura/neuroasura/internal/markdown"
	"github.com/neuroasura/neuroasura/internal/session"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const CommandName = "chat"

// Drawer takes over plain messages that ask for a picture.
type Drawer interface {
	HandleText(ctx context.Context, update telegram.Update, text string) error
}

// Command runs a dialog turn for plain text. It is also reachable as /chat <text>.
type Command struct {
	*base.Command
	drawer Drawer
}

func New(di *di.Container, drawer Drawer) *Command {
	cmd := &Command{drawer: drawer}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)

	text := base.Args(update)
	if text == "" {
		return nil
	}

	if c.drawer != nil && imagegen.IsDrawRequest(text) {
		return c.drawer.HandleText(ctx, update, text)
	}

	c.Tg.SendChatAction(chatID, telegram.ActionTyping)

	reply, err := c.Session.HandleUserMessage(ctx, userID, text)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), ctx.Err() != nil:
			c.Logger.WithField("user_id", userID).Debug("Turn cancelled")
			return nil
		case errors.Is(err, session.ErrEmptyMessage):
			return nil
		}
		c.Logger.WithError(err).WithField("user_id", userID).Error("Error processing message")
		return c.Reply(chatID, messageID, c.L("common.error", nil))
	}

	html, plain := c.format(reply)
	return c.ReplyHTML(chatID, messageID, html, plain)
}

// format renders the answer as Telegram HTML. The model footer is appended only
// when the whole message still fits one Telegram message.
func (c *Command) format(reply session.Reply) (html, plain string) {
	footer := "\n\n" + c.L("chat.answeredBy", map[string]any{"Label": c.BackendLabel(reply.Model)})
	if reply.Switched {
		footer = "\n" + c.L("chat.switched", map[string]any{
			"Secondary": c.BackendLabel(dialog.ModelSecondary),
			"Primary":   c.BackendLabel(reply.Model),
		}) + footer
	}

	html = markdown.ToTelegramHTML(reply.Text)
	if !markdown.Fits(html) {
		html = markdown.FormatLimited(reply.Text, markdown.MaxMessageLength)
	}
	plain = markdown.Truncate(reply.Text, markdown.MaxMessageLength)

	if escaped := markdown.Escape(footer); markdown.Fits(html + escaped) {
		html += escaped
	}
	if markdown.Fits(plain + footer) {
		plain += footer
	}
	return html, plain
}
