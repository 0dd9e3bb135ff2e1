package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/prompts"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const (
	CommandName      = "prompt"
	MyCommandName    = "myprompt"
	ListCommandName  = "prompts"
	ResetCommandName = "resetprompt"

	previewLength = 200
)

// Command is /prompt <name>.
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
	userID, chatID, messageID := base.Origin(update)

	name := strings.ToLower(base.Args(update))
	if name == "" {
		var list strings.Builder
		for _, p := range c.Prompts.List() {
			fmt.Fprintf(&list, "/prompt %s - %s\n", p.Name, p.Title)
		}
		return c.Reply(chatID, messageID, c.L("prompt.usage", map[string]any{
			"List": strings.TrimRight(list.String(), "\n"),
		}))
	}

	_, known := c.Prompts.Get(name)
	persona := c.Prompts.Set(userID, name)
	logPersonaChange(c.Logger, userID, persona)

	if !known {
		return c.Reply(chatID, messageID, c.L("prompt.unknown", map[string]any{
			"Name":    name,
			"Default": persona.Name,
		}))
	}
	return c.Reply(chatID, messageID, c.L("prompt.set", map[string]any{"Name": persona.Name}))
}

type MyCommand struct {
	*base.Command
}

func NewMy(di *di.Container) *MyCommand {
	cmd := &MyCommand{}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *MyCommand) Name() string {
	return MyCommandName
}

func (c *MyCommand) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)

	persona, explicit := c.Prompts.Current(userID)
	textID := "prompt.currentDefault"
	if explicit {
		textID = "prompt.current"
	}
	return c.Reply(chatID, messageID, c.L(textID, map[string]any{
		"Name": persona.Name,
		"Text": preview(persona.Text),
	}))
}

type ListCommand struct {
	*base.Command
}

func NewList(di *di.Container) *ListCommand {
	cmd := &ListCommand{}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *ListCommand) Name() string {
	return ListCommandName
}

func (c *ListCommand) Execute(ctx context.Context, update telegram.Update) error {
	_, chatID, messageID := base.Origin(update)

	var list strings.Builder
	for _, p := range c.Prompts.List() {
		fmt.Fprintf(&list, "/%s - %s\n", p.Name, p.Description)
	}
	return c.Reply(chatID, messageID, c.L("prompt.list", map[string]any{
		"List": strings.TrimRight(list.String(), "\n"),
	}))
}

type ResetCommand struct {
	*base.Command
}

func NewReset(di *di.Container) *ResetCommand {
	cmd := &ResetCommand{}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *ResetCommand) Name() string {
	return ResetCommandName
}

func (c *ResetCommand) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)
	c.Prompts.Reset(userID)
	return c.Reply(chatID, messageID, c.L("prompt.reset", nil))
}

// Shortcut is /<persona>, e.g. /coding.
type Shortcut struct {
	*base.Command
	persona string
}

func NewShortcut(di *di.Container, persona string) *Shortcut {
	cmd := &Shortcut{persona: persona}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Shortcut) Name() string {
	return c.persona
}

func (c *Shortcut) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)
	persona := c.Prompts.Set(userID, c.persona)
	logPersonaChange(c.Logger, userID, persona)
	return c.Reply(chatID, messageID, c.L("prompt.modeSet", map[string]any{"Title": persona.Title}))
}

func logPersonaChange(l logger.Logger, userID int64, persona prompts.Persona) {
	l.WithFields(logger.Fields{
		"user_id": userID,
		"persona": persona.Name,
	}).Info("Persona selected")
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
