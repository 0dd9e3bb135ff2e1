package model

import (
	"context"
	"strings"

	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const (
	CommandName = "model"

	CallbackPrefix    = CommandName + "_"
	CallbackPrimary   = CallbackPrefix + "primary"
	CallbackSecondary = CallbackPrefix + "secondary"
	CallbackCurrent   = CallbackPrefix + "current"
)

type Command struct {
	*base.Command
}

func New(di *di.Container) *Command {
	cmd := &Command{}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"m"}
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return c.handleCallback(update)
	}
	if update.Message == nil {
		return nil
	}

	userID, chatID, messageID := base.Origin(update)
	current := c.Session.CurrentModel(userID)

	msg := telegram.NewMessage(
		chatID,
		c.L("model.choose", map[string]any{
			"Current":   c.BackendLabel(current),
			"Primary":   c.BackendLabel(dialog.ModelPrimary),
			"Secondary": c.BackendLabel(dialog.ModelSecondary),
		}),
		messageID,
	)
	keyboard := Keyboard(c.Command, "model.button", true)
	msg.ReplyMarkup = &keyboard
	_, err := c.Tg.Send(msg)
	return err
}

func (c *Command) handleCallback(update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)
	data := update.CallbackQuery.Data

	var text string
	if data == CallbackCurrent {
		text = c.L("model.current", map[string]any{
			"Label": c.BackendLabel(c.Session.CurrentModel(userID)),
		})
	} else {
		model, ok := c.ParseCallback(data)
		if !ok {
			c.Logger.WithField("data", data).Warn("Unknown model callback")
			return nil
		}
		c.Session.SwitchModel(userID, model)
		c.Logger.WithFields(logger.Fields{
			"user_id": userID,
			"model":   model.String(),
		}).Info("Model switched")

		textID := "model.switchedPrimary"
		if model == dialog.ModelSecondary {
			textID = "model.switchedSecondary"
		}
		text = c.L(textID, map[string]any{
			"Label":   c.BackendLabel(model),
			"Primary": c.BackendLabel(dialog.ModelPrimary),
		})
	}

	_, err := c.Tg.Send(telegram.NewEditMessageText(chatID, messageID, text))
	return err
}

// ParseCallback maps callback data to a model. Besides model_primary and model_secondary
// it accepts model_<backend name>, e.g. model_gigachat.
func (c *Command) ParseCallback(data string) (dialog.Model, bool) {
	suffix, ok := strings.CutPrefix(data, CallbackPrefix)
	if !ok {
		return "", false
	}

	switch suffix {
	case "primary":
		return dialog.ModelPrimary, true
	case "secondary":
		return dialog.ModelSecondary, true
	}
	for _, model := range []dialog.Model{dialog.ModelPrimary, dialog.ModelSecondary} {
		if backend := c.Backend(model); backend != nil && strings.EqualFold(backend.Name(), suffix) {
			return model, true
		}
	}
	return "", false
}

// Keyboard renders the model buttons. labelID is localized with the backend label.
func Keyboard(c *base.Command, labelID string, withCurrent bool) telegram.InlineKeyboardMarkup {
	rows := [][]telegram.InlineKeyboardButton{
		telegram.NewInlineKeyboardRow(telegram.NewInlineKeyboardButtonData(
			"🤖 "+c.L(labelID, map[string]any{"Label": c.BackendLabel(dialog.ModelPrimary)}),
			CallbackPrimary,
		)),
	}
	if c.Backend(dialog.ModelSecondary) != nil {
		rows = append(rows, telegram.NewInlineKeyboardRow(telegram.NewInlineKeyboardButtonData(
			"🧠 "+c.L(labelID, map[string]any{"Label": c.BackendLabel(dialog.ModelSecondary)}),
			CallbackSecondary,
		)))
	}
	if withCurrent {
		rows = append(rows, telegram.NewInlineKeyboardRow(telegram.NewInlineKeyboardButtonData(
			"🔄 "+c.L("model.currentButton", nil),
			CallbackCurrent,
		)))
	}
	return telegram.NewInlineKeyboardMarkup(rows...)
}
