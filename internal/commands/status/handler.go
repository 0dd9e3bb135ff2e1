package status

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/imagegen"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const (
	CommandName = "backendstatus"

	probeTimeout = 15 * time.Second
)

type Command struct {
	*base.Command
	images *imagegen.Generator
}

func New(di *di.Container) *Command {
	cmd := &Command{images: di.Images}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"deepseekstatus"}
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	_, chatID, messageID := base.Origin(update)
	c.Tg.SendChatAction(chatID, telegram.ActionTyping)

	models := []dialog.Model{dialog.ModelPrimary, dialog.ModelSecondary}
	statuses := make([]*ai.Status, len(models))

	var wg sync.WaitGroup
	for i, model := range models {
		backend := c.Backend(model)
		if backend == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := ai.Probe(ctx, backend, probeTimeout)
			statuses[i] = &status
		}()
	}
	wg.Wait()

	var text strings.Builder
	text.WriteString(c.L("status.header", nil))
	text.WriteString("\n\n")
	for i, model := range models {
		text.WriteString(c.line(model, statuses[i]))
		text.WriteString("\n")
	}

	if c.images != nil {
		text.WriteString("\n")
		text.WriteString(c.L("status.images", map[string]any{
			"Providers": strings.Join(c.images.Providers(), ", "),
		}))
		text.WriteString("\n")
	}

	if statuses[1] != nil {
		text.WriteString("\n")
		text.WriteString(c.L("status.fallback", map[string]any{
			"Primary":   c.BackendLabel(dialog.ModelPrimary),
			"Secondary": c.BackendLabel(dialog.ModelSecondary),
		}))
	}

	return c.Reply(chatID, messageID, strings.TrimRight(text.String(), "\n"))
}

func (c *Command) line(model dialog.Model, status *ai.Status) string {
	icon := "🤖"
	if model == dialog.ModelSecondary {
		icon = "🧠"
	}
	label := c.BackendLabel(model)

	switch {
	case status == nil:
		return c.L("status.notConfigured", map[string]any{"Icon": icon, "Label": model.String()})
	case status.Available:
		c.Logger.WithFields(logger.Fields{
			"backend": status.Backend,
			"latency": status.Latency,
		}).Debug("Backend probe succeeded")
		return c.L("status.available", map[string]any{
			"Icon":    icon,
			"Label":   label,
			"Latency": status.Latency.Milliseconds(),
		})
	default:
		c.Logger.WithError(status.Err).WithField("backend", status.Backend).Warn("Backend probe failed")
		return c.L("status.unavailable", map[string]any{
			"Icon":  icon,
			"Label": label,
			"Error": shorten(status.Err.Error(), 200),
		})
	}
}

func shorten(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
