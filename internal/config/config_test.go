package config

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvKeyMapper(t *testing.T) {
	mapper := envKeyMapper(defaults())

	tests := []struct {
		env  string
		want string
	}{
		{"NEUROASURA_TELEGRAM_TOKEN", TELEGRAM_TOKEN},
		{"NEUROASURA_DIALOGS_MAX_MESSAGES", DIALOGS_MAX_MESSAGES},
		{"NEUROASURA_RATELIMIT_REDIS_URL", RATELIMIT_REDIS_URL},
		{"NEUROASURA_COMMANDS_DRAW_ENABLED", "commands.draw.enabled"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			assert.Equal(t, tt.want, mapper(tt.env))
		})
	}
}

func TestWithDefaultPragmas(t *testing.T) {
	t.Run("adds defaults", func(t *testing.T) {
		dsn := withDefaultPragmas("bot.db")
		path, rawQuery, ok := stringsCut(dsn)
		require.True(t, ok)
		assert.Equal(t, "bot.db", path)

		params, err := url.ParseQuery(rawQuery)
		require.NoError(t, err)
		assert.ElementsMatch(t, defaultSQLitePragmas, params["_pragma"])
	})

	t.Run("keeps explicit pragma", func(t *testing.T) {
		dsn := withDefaultPragmas("data/bot.db?_pragma=busy_timeout(500)")
		_, rawQuery, _ := stringsCut(dsn)
		params, err := url.ParseQuery(rawQuery)
		require.NoError(t, err)

		assert.Contains(t, params["_pragma"], "busy_timeout(500)")
		assert.NotContains(t, params["_pragma"], "busy_timeout(10000)")
		assert.Contains(t, params["_pragma"], "journal_mode(WAL)")
	})
}

func stringsCut(dsn string) (string, string, bool) {
	for i := range dsn {
		if dsn[i] == '?' {
			return dsn[:i], dsn[i+1:], true
		}
	}
	return dsn, "", false
}

func TestDefaults(t *testing.T) {
	cfg := New(nil)

	dialogs := cfg.Dialogs()
	assert.Equal(t, 20, dialogs.MaxMessages)
	assert.Equal(t, 10, dialogs.MaxDialogs)
	assert.Equal(t, 5, dialogs.HistoryWindow)

	ai := cfg.AI()
	assert.Equal(t, DEFAULT_PRIMARY_PROVIDER, ai.Primary)
	assert.Equal(t, DEFAULT_SECONDARY_PROVIDER, ai.Secondary)
	assert.InDelta(t, 0.87, ai.Temperature, 0.0001)
	assert.Equal(t, 1024, ai.MaxTokens)
	assert.Equal(t, 60*time.Second, ai.RequestTimeout)
	require.Len(t, ai.Providers, 2)

	primary := ai.GetProvider(DEFAULT_PRIMARY_PROVIDER)
	require.NotNil(t, primary)
	assert.Equal(t, ProviderGigaChat, primary.Type)
	assert.Equal(t, "GigaChat", primary.Label())
	assert.Nil(t, ai.GetProvider("missing"))

	rl := cfg.RateLimit()
	assert.Equal(t, 10, rl.GlobalPerSecond)
	assert.Equal(t, 60, rl.UserPerMinute)

	assert.Equal(t, "dialog_logs", cfg.Transcript().Dir)
	assert.Equal(t, 500, cfg.Transcript().ExcerptLength)
	assert.Equal(t, "ru", cfg.Global().InterfaceLanguage)
}

func TestOverrides(t *testing.T) {
	cfg := New(map[string]any{
		DIALOGS_MAX_MESSAGES:         3,
		AI_REQUEST_TIMEOUT:           "5s",
		LOGGING_LEVEL:                "DEBUG",
		HTTP_PROXY:                   "socks5://127.0.0.1:1080",
		HTTP_NO_PROXY:                []string{"localhost"},
		TELEGRAM_ALLOWED_USERS:       []int64{42},
		"commands.draw.enabled":      false,
		"commands.help.rate_limited": false,
		"prompts.pirate.text":        "Arr",
		"prompts.pirate.description": "Pirate speak",
		AI_PROVIDERS: []map[string]any{
			{"name": "local", "type": ProviderOpenAI, "base_url": "http://localhost"},
		},
	})

	assert.Equal(t, 3, cfg.Dialogs().MaxMessages)
	assert.False(t, cfg.GetCommandConfig("draw").Enabled)
	assert.True(t, cfg.GetCommandConfig("draw").RateLimited)
	assert.False(t, cfg.GetCommandConfig("help").RateLimited)
	assert.True(t, cfg.GetCommandConfig("unknown").Enabled)
	assert.Equal(t, 5*time.Second, cfg.AI().RequestTimeout)
	assert.Equal(t, "debug", cfg.Log().Level())
	assert.True(t, cfg.Log().IsDebug())

	providers := cfg.AI().Providers
	require.Len(t, providers, 1)
	assert.Equal(t, "local", providers[0].Name)
	assert.Equal(t, "local", providers[0].Label())

	prompts := cfg.Prompts()
	require.Contains(t, prompts, "pirate")
	assert.Equal(t, "Arr", prompts["pirate"].Text)

	tg := cfg.Telegram()
	assert.True(t, tg.IsAllowed(42, 1))
	assert.True(t, tg.IsAllowed(7, 1))
	assert.False(t, tg.IsUserAllowed(7))

	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.HTTP().GetProxy())
	assert.Equal(t, []string{"localhost"}, cfg.HTTP().GetNoProxy())
}

func TestTelegramConfig_IsChatAllowed(t *testing.T) {
	cfg := TelegramConfig{AllowedChats: []int64{-100}}

	assert.True(t, cfg.IsChatAllowed(-100))
	assert.False(t, cfg.IsChatAllowed(-200))
	assert.False(t, cfg.IsAllowed(1, -200))
}

func TestAIProviderConfig_GetAPIKey(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "from-env")

	assert.Equal(t, "inline", (&AIProviderConfig{APIKey: "inline", EnvAPIKey: "TEST_PROVIDER_KEY"}).GetAPIKey())
	assert.Equal(t, "from-env", (&AIProviderConfig{EnvAPIKey: "TEST_PROVIDER_KEY"}).GetAPIKey())
	assert.Empty(t, (&AIProviderConfig{}).GetAPIKey())
}
