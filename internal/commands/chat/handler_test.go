package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroasura/neuroasura/internal/commands/commandstest"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

type recordingDrawer struct {
	texts []string
}

func (d *recordingDrawer) HandleText(ctx context.Context, update telegram.Update, text string) error {
	d.texts = append(d.texts, text)
	return nil
}

func lastMessage(t *testing.T, tg *telegram.TestClient) telegram.TextMessage {
	t.Helper()
	sent := tg.Sent()
	require.NotEmpty(t, sent)
	msg, ok := sent[len(sent)-1].(telegram.TextMessage)
	require.True(t, ok)
	return msg
}

func TestChat_Reply(t *testing.T) {
	env := commandstest.NewEnv(t, nil)

	require.NoError(t, New(env.Container, nil).Handle(context.Background(), commandstest.Message(3, "привет")))

	msg := lastMessage(t, env.Tg)
	assert.Equal(t, "primary reply\n\n🤖 Ответ от GigaChat", msg.Text)
	assert.Equal(t, telegram.ModeHTML, msg.ParseMode)
	assert.Equal(t, 100, msg.ReplyTo)
	assert.Equal(t, []telegram.ChatAction{telegram.ActionTyping}, env.Tg.Actions())

	requests := env.Primary.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "привет", requests[0].Message)
}

func TestChat_SecondaryFallback(t *testing.T) {
	env := commandstest.NewEnv(t, nil)
	env.Session.SwitchModel(3, dialog.ModelSecondary)
	env.Secondary.Reply("", errors.New("402 payment required"))

	require.NoError(t, New(env.Container, nil).Handle(context.Background(), commandstest.Message(3, "/chat привет")))

	assert.Equal(t,
		"primary reply\n⚠️ DeepSeek временно недоступен, использован GigaChat\n\n🤖 Ответ от GigaChat",
		lastMessage(t, env.Tg).Text,
	)
	assert.Equal(t, dialog.ModelPrimary, env.Session.CurrentModel(3))
}

func TestChat_BackendsFail(t *testing.T) {
	env := commandstest.NewEnv(t, nil)
	env.Primary.Reply("", errors.New("500"))

	require.NoError(t, New(env.Container, nil).Handle(context.Background(), commandstest.Message(3, "привет")))

	assert.Equal(t, "❌ Произошла ошибка. Попробуйте позже.", env.Tg.LastText())
	assert.True(t, env.Log.HasEntry("error", "Error processing message"))
}

func TestChat_Cancelled(t *testing.T) {
	env := commandstest.NewEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, New(env.Container, nil).Execute(ctx, commandstest.Message(3, "привет")))

	assert.Empty(t, env.Tg.Sent())
}

func TestChat_EmptyCommand(t *testing.T) {
	env := commandstest.NewEnv(t, nil)

	require.NoError(t, New(env.Container, nil).Handle(context.Background(), commandstest.Message(3, "/chat")))

	assert.Empty(t, env.Tg.Sent())
	assert.Empty(t, env.Primary.Requests())
}

func TestChat_DrawRequest(t *testing.T) {
	t.Run("delegated", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)
		drawer := &recordingDrawer{}

		require.NoError(t, New(env.Container, drawer).Handle(context.Background(), commandstest.Message(3, "нарисуй кота")))

		assert.Equal(t, []string{"нарисуй кота"}, drawer.texts)
		assert.Empty(t, env.Primary.Requests())
	})

	t.Run("no drawer", func(t *testing.T) {
		env := commandstest.NewEnv(t, nil)

		require.NoError(t, New(env.Container, nil).Handle(context.Background(), commandstest.Message(3, "нарисуй кота")))

		assert.Len(t, env.Primary.Requests(), 1)
	})
}

func TestChat_LongReplyDropsFooter(t *testing.T) {
	env := commandstest.NewEnv(t, nil)
	env.Primary.Reply(strings.Repeat("a", 4090), nil)

	require.NoError(t, New(env.Container, nil).Handle(context.Background(), commandstest.Message(3, "привет")))

	text := lastMessage(t, env.Tg).Text
	assert.NotContains(t, text, "Ответ от")
	assert.LessOrEqual(t, len([]rune(text)), telegram.MaxMessageLength)
}

func TestChat_ParseErrorFallsBackToPlain(t *testing.T) {
	env := commandstest.NewEnv(t, nil)
	env.Primary.Reply("**bold**", nil)
	env.Tg.SendErr = func(msg telegram.MessageConfig) error {
		if text, ok := msg.(telegram.TextMessage); ok && text.ParseMode == telegram.ModeHTML {
			return errors.New("Bad Request: can't parse entities")
		}
		return nil
	}

	require.NoError(t, New(env.Container, nil).Handle(context.Background(), commandstest.Message(3, "привет")))

	msg := lastMessage(t, env.Tg)
	assert.Empty(t, msg.ParseMode)
	assert.Equal(t, "**bold**\n\n🤖 Ответ от GigaChat", msg.Text)
	assert.True(t, env.Log.HasEntry("warn", "Telegram rejected HTML, sending plain text"))
}
