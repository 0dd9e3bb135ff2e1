package stop

import (
	"context"

	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const CommandName = "stop"

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
	return []string{"cancel"}
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)
	if !c.Session.Cancel(userID) {
		return c.Reply(chatID, messageID, c.L("stop.nothing", nil))
	}
	c.Logger.WithField("user_id", userID).Info("Turn cancelled by user")
	return c.Reply(chatID, messageID, c.L("stop.stopped", nil))
}
