package models

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const (
	ListCommandName    = "models"
	InfoCommandName    = "modelinfo"
	StatsCommandName   = "modelstats"
	RefreshCommandName = "refreshmodels"

	listLimit      = 10
	catalogTimeout = 30 * time.Second
)

// catalogCommand carries what every models command needs.
type catalogCommand struct {
	*base.Command
	catalog *ai.Catalog
}

// withCatalog runs fn with a bounded context, or reports the catalog as unavailable.
func (c *catalogCommand) withCatalog(ctx context.Context, update telegram.Update, fn func(ctx context.Context, chatID int64, messageID int) error) error {
	_, chatID, messageID := base.Origin(update)
	if c.catalog == nil {
		return c.Reply(chatID, messageID, c.L("models.unavailable", nil))
	}

	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	return fn(ctx, chatID, messageID)
}

type ListCommand struct {
	catalogCommand
}

func NewList(di *di.Container) *ListCommand {
	cmd := &ListCommand{catalogCommand{catalog: di.Catalog}}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *ListCommand) Name() string {
	return ListCommandName
}

func (c *ListCommand) Execute(ctx context.Context, update telegram.Update) error {
	return c.withCatalog(ctx, update, func(ctx context.Context, chatID int64, messageID int) error {
		models, err := c.catalog.Recommended(ctx)
		if err != nil || len(models) == 0 {
			if err != nil {
				c.Logger.WithError(err).Error("Failed to get models")
			}
			return c.Reply(chatID, messageID, c.L("models.fetchError", nil))
		}

		var list strings.Builder
		for _, model := range models[:min(listLimit, len(models))] {
			fmt.Fprintf(&list, "• %s\n", model.ID)
		}
		text := c.L("models.list", map[string]any{
			"List": strings.TrimRight(list.String(), "\n"),
		})
		if len(models) > listLimit {
			text += "\n\n" + c.L("models.more", map[string]any{"Count": len(models) - listLimit})
		}
		return c.Reply(chatID, messageID, text)
	})
}

type InfoCommand struct {
	catalogCommand
}

func NewInfo(di *di.Container) *InfoCommand {
	cmd := &InfoCommand{catalogCommand{catalog: di.Catalog}}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *InfoCommand) Name() string {
	return InfoCommandName
}

func (c *InfoCommand) Execute(ctx context.Context, update telegram.Update) error {
	name := base.Args(update)
	if name == "" {
		_, chatID, messageID := base.Origin(update)
		return c.Reply(chatID, messageID, c.L("models.infoUsage", nil))
	}

	return c.withCatalog(ctx, update, func(ctx context.Context, chatID int64, messageID int) error {
		model, err := c.catalog.Get(ctx, name)
		if errors.Is(err, ai.ErrModelNotFound) {
			return c.Reply(chatID, messageID, c.L("models.notFound", map[string]any{"Name": name}))
		}
		if err != nil {
			c.Logger.WithError(err).WithField("model", name).Error("Failed to get model info")
			return c.Reply(chatID, messageID, c.L("models.infoError", nil))
		}

		owner := model.OwnedBy
		if owner == "" {
			owner = "unknown"
		}
		return c.Reply(chatID, messageID, c.L("models.info", map[string]any{
			"ID":          model.ID,
			"Object":      model.Object,
			"Owner":       owner,
			"Description": model.Description,
		}))
	})
}

type StatsCommand struct {
	catalogCommand
}

func NewStats(di *di.Container) *StatsCommand {
	cmd := &StatsCommand{catalogCommand{catalog: di.Catalog}}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *StatsCommand) Name() string {
	return StatsCommandName
}

func (c *StatsCommand) Execute(ctx context.Context, update telegram.Update) error {
	return c.withCatalog(ctx, update, func(ctx context.Context, chatID int64, messageID int) error {
		stats, err := c.catalog.Stats(ctx)
		if err != nil {
			c.Logger.WithError(err).Error("Failed to get model stats")
			return c.Reply(chatID, messageID, c.L("models.statsError", nil))
		}

		var text strings.Builder
		text.WriteString(c.L("models.statsTotal", map[string]any{"Total": stats.Total}))
		if len(stats.ByType) > 0 {
			text.WriteString("\n" + c.L("models.statsTypes", nil) + "\n")
			writeCounts(&text, stats.ByType)
		}
		if len(stats.ByOwner) > 0 {
			text.WriteString(c.L("models.statsOwners", nil) + "\n")
			writeCounts(&text, stats.ByOwner)
		}
		if len(stats.Latest) > 0 {
			text.WriteString(c.L("models.statsLatest", map[string]any{
				"List": strings.Join(stats.Latest, ", "),
			}))
		}
		return c.Reply(chatID, messageID, strings.TrimRight(text.String(), "\n"))
	})
}

type RefreshCommand struct {
	catalogCommand
}

func NewRefresh(di *di.Container) *RefreshCommand {
	cmd := &RefreshCommand{catalogCommand{catalog: di.Catalog}}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *RefreshCommand) Name() string {
	return RefreshCommandName
}

func (c *RefreshCommand) Execute(ctx context.Context, update telegram.Update) error {
	return c.withCatalog(ctx, update, func(ctx context.Context, chatID int64, messageID int) error {
		c.catalog.Clear()
		models, err := c.catalog.Models(ctx, true)
		if err != nil {
			c.Logger.WithError(err).Error("Failed to refresh models")
			return c.Reply(chatID, messageID, c.L("models.refreshError", nil))
		}
		return c.Reply(chatID, messageID, c.L("models.refreshed", map[string]any{"Count": len(models)}))
	})
}

func writeCounts(b *strings.Builder, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(b, "   • %s: %d\n", key, counts[key])
	}
}
