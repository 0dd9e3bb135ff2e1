package config

import (
	"os"
	"slices"
	"strings"
	"time"
)

const (
	ProviderGigaChat = "gigachat"
	ProviderOpenAI   = "openai-compatible"
)

type globalConfig struct {
	InterfaceLanguage string `koanf:"interface_language"`
}

type HTTPConfig struct {
	proxy   *string
	noProxy []string
	Timeout time.Duration
}

func NewHTTPConfig(proxy string, noProxy []string, timeout time.Duration) HTTPConfig {
	return HTTPConfig{proxy: &proxy, noProxy: noProxy, Timeout: timeout}
}

func (c HTTPConfig) GetProxy() string {
	if c.proxy != nil && *c.proxy != "" {
		return *c.proxy
	}
	for _, name := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		if proxyURL := os.Getenv(name); proxyURL != "" {
			return proxyURL
		}
	}
	return ""
}

func (c HTTPConfig) GetNoProxy() []string {
	if len(c.noProxy) > 0 {
		return c.noProxy
	}
	for _, name := range []string{"NO_PROXY", "no_proxy"} {
		if value := os.Getenv(name); value != "" {
			hosts := []string{}
			for host := range strings.SplitSeq(value, ",") {
				if host = strings.TrimSpace(host); host != "" {
					hosts = append(hosts, host)
				}
			}
			return hosts
		}
	}
	return nil
}

type LoggingConfig struct {
	LogLevel    string `koanf:"level"`
	WriteInFile bool   `koanf:"write_in_file"`
	FilePath    string `koanf:"file_path"`
	MaxSizeMB   int    `koanf:"max_size_mb"`
	MaxBackups  int    `koanf:"max_backups"`
	MaxAgeDays  int    `koanf:"max_age_days"`
	Compress    bool   `koanf:"compress"`
	// Format is "text" or "json"
	Format      string `koanf:"format"`
}

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

func (c LoggingConfig) Level() string {
	return strings.ToLower(c.LogLevel)
}

func (c LoggingConfig) IsDebug() bool {
	return c.Level() == "debug" || c.Level() == "trace"
}

type TelegramConfig struct {
	Token        string  `koanf:"token"`
	AllowedUsers []int64 `koanf:"allowed_users"`
	AllowedChats []int64 `koanf:"allowed_chats"`
	Debug        bool    `koanf:"debug"`
}

// IsAllowed reports whether the user or the chat is whitelisted.
// An empty chat whitelist allows every chat.
func (c TelegramConfig) IsAllowed(userID int64, chatID int64) bool {
	return c.IsUserAllowed(userID) || c.IsChatAllowed(chatID)
}

func (c TelegramConfig) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return false
	}
	return slices.Contains(c.AllowedUsers, userID)
}

func (c TelegramConfig) IsChatAllowed(chatID int64) bool {
	if len(c.AllowedChats) == 0 {
		return true
	}
	return slices.Contains(c.AllowedChats, chatID)
}

type DialogsConfig struct {
	MaxMessages   int
	MaxDialogs    int
	HistoryWindow int
}

type AIProviderConfig struct {
	Type               string `koanf:"type"`
	Name               string `koanf:"name"`
	DisplayName        string `koanf:"display_name"`
	BaseURL            string `koanf:"base_url"`
	AuthURL            string `koanf:"auth_url"`
	APIKey             string `koanf:"api_key"`
	EnvAPIKey          string `koanf:"env_api_key"`
	Scope              string `koanf:"scope"`
	Model              string `koanf:"model"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify"`
}

func (c *AIProviderConfig) GetAPIKey() string {
	if key := c.APIKey; key != "" {
		return key
	}
	if c.EnvAPIKey == "" {
		return ""
	}
	return os.Getenv(c.EnvAPIKey)
}

func (c AIProviderConfig) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

type AIConfig struct {
	Primary        string
	Secondary      string
	Temperature    float32
	MaxTokens      int
	RequestTimeout time.Duration
	ModelsCacheTTL time.Duration
	Providers      []AIProviderConfig
}

func (c AIConfig) GetProvider(name string) *AIProviderConfig {
	for _, p := range c.Providers {
		if p.Name == name {
			return &p
		}
	}
	return nil
}

func defaultProviders() []AIProviderConfig {
	return []AIProviderConfig{
		{
			Type:               ProviderGigaChat,
			Name:               DEFAULT_PRIMARY_PROVIDER,
			DisplayName:        "GigaChat",
			BaseURL:            "https://gigachat.devices.sberbank.ru/api/v1",
			AuthURL:            "https://ngw.devices.sberbank.ru:9443/api/v2/oauth",
			EnvAPIKey:          "GIGACHAT_CREDENTIALS",
			Scope:              "GIGACHAT_API_PERS",
			Model:              "GigaChat:latest",
			InsecureSkipVerify: true,
		},
		{
			Type:        ProviderOpenAI,
			Name:        DEFAULT_SECONDARY_PROVIDER,
			DisplayName: "DeepSeek",
			BaseURL:     "https://api.deepseek.com",
			EnvAPIKey:   "DEEPSEEK_API_KEY",
			Model:       "deepseek-chat",
		},
	}
}

type TranscriptConfig struct {
	Dir           string
	SQLite        bool
	ExcerptLength int
	MaxSizeMB     int
	MaxBackups    int
}

type RateLimitConfig struct {
	Enabled         bool
	RedisURL        string
	GlobalPerSecond int
	UserPerMinute   int
}

type ImagesConfig struct {
	Enabled         bool
	Timeout         time.Duration
	MaxPromptLength int
	MaxSize         int
	SearchURL       string
}

type PromptConfig struct {
	Text        string `koanf:"text"`
	Description string `koanf:"description"`
	Title       string `koanf:"title"`
}

type CommandConfig struct {
	Enabled     bool
	RateLimited bool
}
