package draw

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/commands/base"
	"github.com/neuroasura/neuroasura/internal/imagegen"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

const (
	CommandName = "draw"

	defaultTimeout = 2 * time.Minute
	// caption space left over for the prompt itself
	maxCaptionPrompt = telegram.MaxCaptionLength - 64
)

type Command struct {
	*base.Command
	images  *imagegen.Generator
	timeout time.Duration
}

func New(di *di.Container) *Command {
	timeout := di.Cfg.Images().Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cmd := &Command{images: di.Images, timeout: timeout}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"image"}
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	prompt := base.Args(update)
	if prompt == "" {
		_, chatID, messageID := base.Origin(update)
		return c.Reply(chatID, messageID, c.L("draw.usage", nil))
	}
	return c.Draw(ctx, update, prompt, false)
}

// HandleText serves a plain message recognised by imagegen.IsDrawRequest.
func (c *Command) HandleText(ctx context.Context, update telegram.Update, text string) error {
	prompt := imagegen.ExtractPrompt(text)
	if prompt == "" {
		_, chatID, messageID := base.Origin(update)
		return c.Reply(chatID, messageID, c.L("draw.examples", nil))
	}
	return c.Draw(ctx, update, prompt, true)
}

// Draw generates an image for prompt and sends it as a photo. With announce set
// the user first gets a message that the request was accepted.
func (c *Command) Draw(ctx context.Context, update telegram.Update, prompt string, announce bool) error {
	userID, chatID, messageID := base.Origin(update)
	if c.images == nil {
		return c.Reply(chatID, messageID, c.L("draw.disabled", nil))
	}

	prompt, err := c.images.ValidatePrompt(prompt)
	switch {
	case errors.Is(err, imagegen.ErrPromptEmpty):
		return c.Reply(chatID, messageID, c.L("draw.usage", nil))
	case errors.Is(err, imagegen.ErrPromptTooLong):
		return c.Reply(chatID, messageID, c.L("draw.tooLong", map[string]any{
			"Max": c.Cfg.Images().MaxPromptLength,
		}))
	case err != nil:
		return err
	}

	if announce {
		if err := c.Reply(chatID, messageID, c.L("draw.accepted", map[string]any{"Prompt": prompt})); err != nil {
			return err
		}
	}

	log := c.Logger.WithFields(logger.Fields{
		"user_id": userID,
		"chat_id": chatID,
	})

	c.Tg.SendChatAction(chatID, telegram.ActionUploadPhoto)

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	image, err := c.images.Generate(genCtx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.WithError(err).Warn("Image generation failed")
		return c.Reply(chatID, messageID, c.generationError(prompt, err))
	}

	photo := telegram.NewPhotoMessage(
		chatID,
		telegram.FileBytes{Name: "image" + extension(image.ContentType), Bytes: image.Data},
		c.L("draw.caption", map[string]any{"Prompt": shorten(prompt, maxCaptionPrompt)}),
		messageID,
	)
	if _, err := c.Tg.SendWithRetry(photo, 3); err != nil {
		log.WithError(err).Error("Failed to send image")
		return c.Reply(chatID, messageID, c.L("draw.sendFailed", map[string]any{"Prompt": prompt}))
	}

	log.WithFields(logger.Fields{
		"provider": image.Provider,
		"size":     len(image.Data),
	}).Info("Image sent")
	return nil
}

func (c *Command) generationError(prompt string, err error) string {
	switch {
	case errors.Is(err, imagegen.ErrImageTooLarge):
		return c.L("draw.tooLarge", nil)
	case errors.Is(err, imagegen.ErrAllUnavailable), errors.Is(err, context.DeadlineExceeded):
		return c.L("draw.failed", map[string]any{"Prompt": prompt})
	default:
		return c.L("draw.error", map[string]any{
			"Prompt": prompt,
			"Error":  shorten(err.Error(), 100),
		})
	}
}

func extension(contentType string) string {
	switch strings.TrimPrefix(contentType, "image/") {
	case "jpeg", "jpg":
		return ".jpg"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".png"
	}
}

func shorten(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
