package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroasura/neuroasura/internal/commands/commandstest"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

type recorder struct {
	name    string
	aliases []string
	err     error

	mu      sync.Mutex
	updates []telegram.Update
}

func (r *recorder) Name() string {
	return r.name
}

func (r *recorder) Aliases() []string {
	return r.aliases
}

func (r *recorder) Handle(ctx context.Context, update telegram.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	return r.err
}

func (r *recorder) Execute(ctx context.Context, update telegram.Update) error {
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var texts []string
	for _, update := range r.updates {
		if update.Message != nil {
			texts = append(texts, update.Message.Text)
		}
	}
	return texts
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func newBot(t *testing.T, values map[string]any) (*Bot, *commandstest.Env) {
	env := commandstest.NewEnv(t, values)
	return NewBot(env.Tg, env.Log, env.Cfg, env.Localizer), env
}

func groupMessage(text string) telegram.Update {
	update := commandstest.Message(3, text)
	update.Message.Chat = tgbotapi.Chat{ID: -100, Type: "supergroup"}
	return update
}

func TestHandleUpdate_Commands(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		calls int
	}{
		{"by name", "/help", 1},
		{"upper case", "/HELP", 1},
		{"alias", "/h", 1},
		{"addressed to this bot", "/help@Neuroasura_bot", 1},
		{"addressed to another bot", "/help@other_bot", 0},
		{"with args", "/help me please", 1},
		{"unknown", "/nope", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, _ := newBot(t, nil)
			help := &recorder{name: "help", aliases: []string{"H"}}
			bot.RegisterCommand(help)

			bot.HandleUpdate(context.Background(), commandstest.Message(3, tt.text))
			bot.Wait()

			assert.Equal(t, tt.calls, help.calls())
		})
	}
}

func TestHandleUpdate_UnknownCommandIsSilent(t *testing.T) {
	bot, env := newBot(t, nil)
	bot.SetTextHandler(&recorder{name: "chat"})

	bot.HandleUpdate(context.Background(), commandstest.Message(3, "/nope"))
	bot.Wait()

	assert.Empty(t, env.Tg.Sent())
	assert.True(t, env.Log.HasEntry("debug", "Unknown command"))
}

func TestHandleUpdate_Caption(t *testing.T) {
	bot, _ := newBot(t, nil)
	describe := &recorder{name: "describe"}
	bot.RegisterCommand(describe)

	update := commandstest.Message(3, "")
	update.Message.Caption = "/describe кот"
	bot.HandleUpdate(context.Background(), update)
	bot.Wait()

	assert.Equal(t, 1, describe.calls())
}

func TestHandleUpdate_Text(t *testing.T) {
	tests := []struct {
		name     string
		update   func() telegram.Update
		expected []string
	}{
		{
			name:     "private",
			update:   func() telegram.Update { return commandstest.Message(3, "  привет ") },
			expected: []string{"привет"},
		},
		{
			name:   "quoted",
			update: func() telegram.Update { return commandstest.Message(3, "> не мне") },
		},
		{
			name:   "group without mention",
			update: func() telegram.Update { return groupMessage("всем привет") },
		},
		{
			name:     "group mention",
			update:   func() telegram.Update { return groupMessage("@Neuroasura_bot расскажи анекдот") },
			expected: []string{"расскажи анекдот"},
		},
		{
			name: "group reply to bot",
			update: func() telegram.Update {
				update := groupMessage("а еще?")
				update.Message.ReplyToMessage = &tgbotapi.Message{From: &tgbotapi.User{ID: 1, IsBot: true}}
				return update
			},
			expected: []string{"а еще?"},
		},
		{
			name: "from a bot",
			update: func() telegram.Update {
				update := commandstest.Message(3, "привет")
				update.Message.From.IsBot = true
				return update
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, _ := newBot(t, nil)
			chat := &recorder{name: "chat"}
			bot.SetTextHandler(chat)

			bot.HandleUpdate(context.Background(), tt.update())
			bot.Wait()

			assert.Equal(t, tt.expected, chat.texts())
		})
	}
}

func TestHandleUpdate_Unauthorized(t *testing.T) {
	values := map[string]any{"telegram.allowed_chats": []int64{-500}}

	t.Run("private chat gets a reply", func(t *testing.T) {
		bot, env := newBot(t, values)
		chat := &recorder{name: "chat"}
		bot.SetTextHandler(chat)

		bot.HandleUpdate(context.Background(), commandstest.Message(3, "привет"))
		bot.Wait()

		assert.Zero(t, chat.calls())
		assert.Equal(t, "⛔ У вас нет доступа к этому боту.", env.Tg.LastText())
		assert.True(t, env.Log.HasEntry("warn", "Unauthorized access attempt"))
	})

	t.Run("group stays silent", func(t *testing.T) {
		bot, env := newBot(t, values)
		bot.SetTextHandler(&recorder{name: "chat"})

		bot.HandleUpdate(context.Background(), groupMessage("@neuroasura_bot привет"))
		bot.Wait()

		assert.Empty(t, env.Tg.Sent())
	})

	t.Run("whitelisted user", func(t *testing.T) {
		bot, _ := newBot(t, map[string]any{
			"telegram.allowed_chats": []int64{-500},
			"telegram.allowed_users": []int64{3},
		})
		chat := &recorder{name: "chat"}
		bot.SetTextHandler(chat)

		bot.HandleUpdate(context.Background(), commandstest.Message(3, "привет"))
		bot.Wait()

		assert.Equal(t, 1, chat.calls())
	})
}

func TestHandleUpdate_Callback(t *testing.T) {
	bot, env := newBot(t, nil)
	model := &recorder{name: "model"}
	bot.RegisterCommand(model)

	bot.HandleUpdate(context.Background(), commandstest.Callback(3, "model_secondary"))
	bot.HandleUpdate(context.Background(), commandstest.Callback(3, "unknown_payload"))
	bot.Wait()

	assert.Equal(t, 1, model.calls())

	requests := env.Tg.Requests()
	require.Len(t, requests, 1)
	answer, ok := requests[0].(telegram.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb", answer.CallbackQueryID)
}

func TestDispatch_Errors(t *testing.T) {
	t.Run("failure notifies the user", func(t *testing.T) {
		bot, env := newBot(t, nil)
		bot.RegisterCommand(&recorder{name: "models", err: errors.New("boom")})

		bot.HandleUpdate(context.Background(), commandstest.Message(3, "/models"))
		bot.Wait()

		assert.Equal(t, "❌ Произошла ошибка. Попробуйте позже.", env.Tg.LastText())
		assert.True(t, env.Log.HasEntry("error", "Failed to handle command"))
	})

	t.Run("cancellation is silent", func(t *testing.T) {
		bot, env := newBot(t, nil)
		bot.RegisterCommand(&recorder{name: "models", err: context.Canceled})

		bot.HandleUpdate(context.Background(), commandstest.Message(3, "/models"))
		bot.Wait()

		assert.Empty(t, env.Tg.Sent())
	})
}

func TestRegisterCommand(t *testing.T) {
	bot, env := newBot(t, nil)

	bot.RegisterCommand(nil)
	bot.RegisterCommand(&recorder{name: ""})
	bot.RegisterCommand(&recorder{name: "Draw", aliases: []string{"Image"}})

	assert.True(t, bot.HasCommand("draw"))
	assert.True(t, bot.HasCommand("IMAGE"))
	assert.False(t, bot.HasCommand("describe"))
	assert.Len(t, bot.GetCommands(), 1)
	assert.True(t, env.Log.HasEntry("error", "Attempting to register nil command"))
}

func TestStart(t *testing.T) {
	bot, env := newBot(t, nil)
	help := &recorder{name: "help"}
	bot.RegisterCommand(help)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Start(ctx) }()

	env.Tg.Push(commandstest.Message(3, "/help"))
	require.Eventually(t, func() bool { return help.calls() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	bot.Wait()
}

func TestStripBotMention(t *testing.T) {
	assert.Equal(t, "привет", stripBotMention("@Neuroasura_Bot привет", "neuroasura_bot"))
	assert.Equal(t, "спроси и ответь", stripBotMention("спроси @neuroasura_bot и ответь", "neuroasura_bot"))
	assert.Equal(t, "@neuroasura_botik hi", stripBotMention("@neuroasura_botik hi", "neuroasura_bot"))
	assert.False(t, containsBotMention("no mention", "neuroasura_bot"))
}
