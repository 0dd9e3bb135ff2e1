package start

import (
	"context"

	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/commands/model"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const CommandName = "start"

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

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	if update.Message == nil {
		return nil
	}
	_, chatID, messageID := base.Origin(update)

	welcome := c.L("start.welcome", map[string]any{
		"Primary":   c.BackendLabel(dialog.ModelPrimary),
		"Secondary": c.BackendLabel(dialog.ModelSecondary),
	})
	if err := c.Reply(chatID, messageID, welcome); err != nil {
		return err
	}

	msg := telegram.NewMessage(chatID, c.L("start.chooseModel", nil), 0)
	keyboard := model.Keyboard(c.Command, "start.button", false)
	msg.ReplyMarkup = &keyboard
	_, err := c.Tg.Send(msg)
	return err
}
