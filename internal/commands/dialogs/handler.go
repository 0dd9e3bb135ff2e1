package dialogs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/database"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const (
	NewCommandName    = "newdialog"
	ListCommandName   = "mydialogs"
	ExportCommandName = "exportdialog"
	ClearCommandName  = "cleardialog"

	// exports longer than this are sent as a .txt document
	maxInlineExport = 4000
)

type NewCommand struct {
	*base.Command
}

func NewNew(di *di.Container) *NewCommand {
	cmd := &NewCommand{}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *NewCommand) Name() string {
	return NewCommandName
}

func (c *NewCommand) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)
	d := c.Session.NewDialog(userID)
	return c.Reply(chatID, messageID, c.L("dialogs.created", map[string]any{"ID": d.ID}))
}

type ListCommand struct {
	*base.Command
	db database.Database
}

func NewList(di *di.Container) *ListCommand {
	cmd := &ListCommand{db: di.DB}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *ListCommand) Name() string {
	return ListCommandName
}

func (c *ListCommand) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)

	summaries := c.Session.ListDialogs(userID)
	if len(summaries) == 0 {
		return c.Reply(chatID, messageID, c.L("dialogs.empty", nil))
	}

	activeID := ""
	if active, ok := c.Session.ActiveDialog(userID); ok {
		activeID = active.ID
	}

	var text strings.Builder
	text.WriteString(c.L("dialogs.listHeader", nil))
	text.WriteString("\n\n")
	for i, summary := range summaries {
		marker := ""
		if summary.ID == activeID {
			marker = " ✅"
		}
		text.WriteString(c.L("dialogs.listItem", map[string]any{
			"Index":    i + 1,
			"ID":       summary.ID,
			"Marker":   marker,
			"Created":  summary.CreatedAt.Format("02.01 15:04"),
			"Messages": summary.MessageCount,
		}))
		text.WriteString("\n\n")
	}

	if c.db != nil {
		count, err := c.db.CountTranscripts(ctx, userID)
		if err != nil {
			c.Logger.WithError(err).WithField("user_id", userID).Warn("Failed to count transcripts")
		} else {
			text.WriteString(c.L("dialogs.archived", map[string]any{"Count": count}))
			text.WriteString("\n")
		}
	}
	text.WriteString(c.L("dialogs.exportHint", nil))

	return c.Reply(chatID, messageID, text.String())
}

type ExportCommand struct {
	*base.Command
	db database.Database
}

func NewExport(di *di.Container) *ExportCommand {
	cmd := &ExportCommand{db: di.DB}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *ExportCommand) Name() string {
	return ExportCommandName
}

func (c *ExportCommand) Aliases() []string {
	return []string{"export"}
}

func (c *ExportCommand) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)

	id := strings.ToLower(strings.TrimPrefix(firstWord(base.Args(update)), "#"))
	if id == "" {
		return c.Reply(chatID, messageID, c.L("dialogs.exportUsage", nil))
	}

	text, err := c.Session.Export(userID, id)
	if errors.Is(err, dialog.ErrDialogNotFound) {
		text, err = c.archive(ctx, userID, id)
	}
	if err != nil {
		if errors.Is(err, dialog.ErrDialogNotFound) {
			return c.Reply(chatID, messageID, c.L("dialogs.notFound", nil))
		}
		return err
	}

	c.Logger.WithFields(logger.Fields{
		"user_id":   userID,
		"dialog_id": id,
		"length":    len(text),
	}).Info("Dialog exported")

	if utf8.RuneCountInString(text) > maxInlineExport {
		doc := telegram.NewDocumentMessage(
			chatID,
			telegram.FileBytes{Name: fmt.Sprintf("dialog_%s.txt", id), Bytes: []byte(text)},
			c.L("dialogs.exportCaption", map[string]any{"ID": id}),
			messageID,
		)
		_, err := c.Tg.Send(doc)
		return err
	}

	return c.Reply(chatID, messageID, c.L("dialogs.exportText", map[string]any{
		"ID":   id,
		"Text": text,
	}))
}

// archive renders a dialog that is no longer in memory from the transcript table.
// Stored contents are excerpts, so long messages come back cut.
func (c *ExportCommand) archive(ctx context.Context, userID int64, id string) (string, error) {
	if c.db == nil {
		return "", dialog.ErrDialogNotFound
	}
	entries, err := c.db.ListTranscripts(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", dialog.ErrDialogNotFound
	}
	return RenderArchive(id, entries), nil
}

// RenderArchive follows the live export layout, marked as restored from the archive.
func RenderArchive(id string, entries []database.TranscriptEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Диалог #%s (архив)\n", id)
	fmt.Fprintf(&b, "Создан: %s\n", entries[0].CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Сообщений: %d\n\n", len(entries))

	for _, entry := range entries {
		author := "👤 Вы"
		if entry.Role == string(dialog.RoleAssistant) {
			author = "🤖 Бот"
		}
		if entry.Model != "" {
			author += " (" + entry.Model + ")"
		}
		fmt.Fprintf(&b, "%s (%s):\n%s\n\n", author, entry.CreatedAt.Format("15:04"), entry.Content)
	}
	return b.String()
}

type ClearCommand struct {
	*base.Command
}

func NewClear(di *di.Container) *ClearCommand {
	cmd := &ClearCommand{}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *ClearCommand) Name() string {
	return ClearCommandName
}

func (c *ClearCommand) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)
	if c.Session.Clear(userID) {
		return c.Reply(chatID, messageID, c.L("dialogs.cleared", nil))
	}
	return c.Reply(chatID, messageID, c.L("dialogs.nothingToClear", nil))
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
