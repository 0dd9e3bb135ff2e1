// Package commandstest builds a wired container around recording fakes for command tests.
package commandstest

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/neuroasura/neuroasura/internal/ai"
	"github.com/neuroasura/neuroasura/internal/app/di"
	"github.com/neuroasura/neuroasura/internal/cache"
	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/dialog"
	"github.com/neuroasura/neuroasura/internal/logger"
	"github.com/neuroasura/neuroasura/internal/prompts"
	"github.com/neuroasura/neuroasura/internal/ratelimit"
	"github.com/neuroasura/neuroasura/internal/router"
	"github.com/neuroasura/neuroasura/internal/service"
	"github.com/neuroasura/neuroasura/internal/session"
	"github.com/neuroasura/neuroasura/internal/telegram"
)

// Backend is a scripted ai.Backend that also lists models.
type Backend struct {
	name string

	mu       sync.Mutex
	reply    func(req ai.Request) (string, error)
	requests []ai.Request
	models   []ai.ModelInfo
	listErr  error
}

func NewBackend(name, reply string) *Backend {
	b := &Backend{name: name}
	b.Reply(reply, nil)
	return b
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Send(ctx context.Context, req ai.Request) (string, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	reply := b.reply
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return reply(req)
}

// Reply makes every following Send return text and err.
func (b *Backend) Reply(text string, err error) {
	b.ReplyFunc(func(ai.Request) (string, error) { return text, err })
}

func (b *Backend) ReplyFunc(fn func(req ai.Request) (string, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reply = fn
}

func (b *Backend) Requests() []ai.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ai.Request(nil), b.requests...)
}

func (b *Backend) SetModels(models []ai.ModelInfo, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.models = models
	b.listErr = err
}

func (b *Backend) ListModels(context.Context) ([]ai.ModelInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ai.ModelInfo(nil), b.models...), b.listErr
}

type Env struct {
	*di.Container

	Tg        *telegram.TestClient
	Log       *logger.TestLogger
	Primary   *Backend
	Secondary *Backend
}

// NewEnv wires the real dialog store, router, session and localizer on top of
// scripted backends and a recording Telegram client. values override config keys.
func NewEnv(t testing.TB, values map[string]any) *Env {
	t.Helper()

	cfg := config.New(values)
	log := logger.NewTestLogger()
	tg := telegram.NewTestClient()

	localizer, err := service.NewLocalizer(cfg.Global().InterfaceLanguage)
	if err != nil {
		t.Fatalf("localizer: %v", err)
	}

	primary := NewBackend("gigachat", "primary reply")
	secondary := NewBackend("deepseek", "secondary reply")

	registry := ai.NewRegistry(log)
	registry.Register(primary, "GigaChat")
	registry.Register(secondary, "DeepSeek")

	c := cache.NewMemoryCache(time.Hour, time.Hour)
	r := router.New(primary, secondary, time.Second, log)
	store := dialog.NewStore(cfg.Dialogs(), log)
	personas := prompts.NewManager(cfg.Prompts())

	container := &di.Container{
		BotClient: tg,
		Logger:    log,
		Cache:     c,
		Cfg:       cfg,
		Localizer: localizer,
		Registry:  registry,
		Catalog:   ai.NewCatalog(primary, c, time.Hour, log),
		Router:    r,
		Dialogs:   store,
		Prompts:   personas,
		Limiter:   ratelimit.Unlimited,
		Session:   session.NewService(store, r, personas, nil, session.OptionsFromConfig(cfg), log),
	}

	return &Env{
		Container: container,
		Tg:        tg,
		Log:       log,
		Primary:   primary,
		Secondary: secondary,
	}
}

// Message builds a private-chat text update from the user.
func Message(userID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: int(userID),
		Message: &tgbotapi.Message{
			MessageID: 100,
			From:      &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
			Chat:      tgbotapi.Chat{ID: userID, Type: "private"},
			Text:      text,
		},
	}
}

// Callback builds an inline button press on message 200 of the user's private chat.
func Callback(userID int64, data string) telegram.Update {
	return telegram.Update{
		UpdateID: int(userID),
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb",
			From: &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
			Message: &tgbotapi.Message{
				MessageID: 200,
				Chat:      tgbotapi.Chat{ID: userID, Type: "private"},
			},
			Data: data,
		},
	}
}
