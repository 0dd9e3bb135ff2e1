package help

import (
	"context"

	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const CommandName = "help"

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
	return []string{"h"}
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	_, chatID, messageID := base.Origin(update)
	return c.Reply(chatID, messageID, c.L("help.text", nil))
}
