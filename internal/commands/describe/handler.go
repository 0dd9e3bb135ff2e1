package describe

import (
	"context"
	"fmt"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/markdown"
	"github.com/neuroasura/neuroasura/internal/router"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const (
	CommandName = "describe"

	maxTokens = 800
)

const descriptionPrompt = `Создай максимально подробное и красочное текстовое описание изображения на основе запроса: "%s"

Опиши в деталях:
1. КОМПОЗИЦИЯ - расположение основных элементов, перспектива, баланс
2. ЦВЕТА - цветовая гамма, сочетания, освещение, тени
3. СТИЛЬ - художественный стиль, техника исполнения
4. АТМОСФЕРА - настроение, эмоции, ощущения
5. ДЕТАЛИ - мелкие особенности, текстуры, элементы

Сделай описание настолько живым и детализированным, чтобы можно было ясно представить изображение.`

// Command asks the primary backend for a text description of an imagined picture.
type Command struct {
	*base.Command
	router      *router.Router
	temperature float32
}

func New(di *di.Container) *Command {
	cmd := &Command{router: di.Router, temperature: di.Cfg.AI().Temperature}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	userID, chatID, messageID := base.Origin(update)

	prompt := base.Args(update)
	if prompt == "" {
		return c.Reply(chatID, messageID, c.L("describe.usage", nil))
	}

	c.Tg.SendChatAction(chatID, telegram.ActionTyping)

	result, err := c.router.Route(ctx, dialog.ModelPrimary, ai.Request{
		Message:     fmt.Sprintf(descriptionPrompt, prompt),
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.Logger.WithError(err).WithField("user_id", userID).Error("Failed to create description")
		return c.Reply(chatID, messageID, c.L("describe.failed", nil))
	}

	header := c.L("describe.header", map[string]any{"Prompt": prompt})
	html := markdown.Escape(header) + "\n\n" + markdown.ToTelegramHTML(result.Reply)
	plain := header + "\n\n" + result.Reply
	if !markdown.Fits(html) {
		html = markdown.Escape(header) + "\n\n" + markdown.FormatLimited(result.Reply, markdown.MaxMessageLength-len([]rune(header))-2)
		plain = markdown.Truncate(plain, markdown.MaxMessageLength)
	}
	return c.ReplyHTML(chatID, messageID, html, plain)
}
