package config

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

const EnvPrefix = "NEUROASURA_"

const (
	GLOBAL_LANGUAGE            = "global.interface_language"
	HTTP_PROXY                 = "http.proxy"
	HTTP_NO_PROXY              = "http.no_proxy"
	HTTP_TIMEOUT               = "http.timeout"
	TELEGRAM_TOKEN             = "telegram.token"
	TELEGRAM_ALLOWED_USERS     = "telegram.allowed_users"
	TELEGRAM_ALLOWED_CHATS     = "telegram.allowed_chats"
	TELEGRAM_DEBUG             = "telegram.debug"
	DIALOGS_MAX_MESSAGES       = "dialogs.max_messages"
	DIALOGS_MAX_DIALOGS        = "dialogs.max_dialogs"
	DIALOGS_HISTORY_WINDOW     = "dialogs.history_window"
	AI_PRIMARY                 = "ai.primary"
	AI_SECONDARY               = "ai.secondary"
	AI_TEMPERATURE             = "ai.temperature"
	AI_MAX_TOKENS              = "ai.max_tokens"
	AI_REQUEST_TIMEOUT         = "ai.request_timeout"
	AI_MODELS_CACHE_TTL        = "ai.models_cache_ttl"
	AI_PROVIDERS               = "ai.providers"
	TRANSCRIPT_DIR             = "transcript.dir"
	TRANSCRIPT_SQLITE          = "transcript.sqlite"
	TRANSCRIPT_EXCERPT_LENGTH  = "transcript.excerpt_length"
	TRANSCRIPT_MAX_SIZE_MB     = "transcript.max_size_mb"
	TRANSCRIPT_MAX_BACKUPS     = "transcript.max_backups"
	RATELIMIT_ENABLED          = "ratelimit.enabled"
	RATELIMIT_REDIS_URL        = "ratelimit.redis_url"
	RATELIMIT_GLOBAL_PER_SEC   = "ratelimit.global_per_second"
	RATELIMIT_USER_PER_MINUTE  = "ratelimit.user_per_minute"
	IMAGES_ENABLED             = "images.enabled"
	IMAGES_TIMEOUT             = "images.timeout"
	IMAGES_MAX_PROMPT_LENGTH   = "images.max_prompt_length"
	IMAGES_MAX_SIZE            = "images.max_size"
	IMAGES_SEARCH_URL          = "images.search_url"
	DATABASE_DSN               = "database.dsn"
	LOGGING_LEVEL              = "logging.level"
	LOGGING_WRITE_IN_FILE      = "logging.write_in_file"
	LOGGING_FILE_PATH          = "logging.file_path"
	LOGGING_MAX_SIZE_MB        = "logging.max_size_mb"
	LOGGING_MAX_BACKUPS        = "logging.max_backups"
	LOGGING_MAX_AGE_DAYS       = "logging.max_age_days"
	LOGGING_COMPRESS           = "logging.compress"
	LOGGING_FORMAT             = "logging.format"
	COMMANDS_PREFIX            = "commands"
	PROMPTS_PREFIX             = "prompts"
	DEFAULT_PRIMARY_PROVIDER   = "gigachat"
	DEFAULT_SECONDARY_PROVIDER = "deepseek"
)

// modernc.org/sqlite pragmas applied unless the DSN already sets them.
var defaultSQLitePragmas = []string{
	"busy_timeout(10000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

type Config struct {
	k *koanf.Koanf
}

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "Path to config file")
}

func defaults() map[string]any {
	return map[string]any{
		GLOBAL_LANGUAGE:           "ru",
		TELEGRAM_TOKEN:            "",
		TELEGRAM_DEBUG:            false,
		HTTP_PROXY:                nil,
		HTTP_TIMEOUT:              3 * time.Minute,
		DIALOGS_MAX_MESSAGES:      20,
		DIALOGS_MAX_DIALOGS:       10,
		DIALOGS_HISTORY_WINDOW:    5,
		AI_PRIMARY:                DEFAULT_PRIMARY_PROVIDER,
		AI_SECONDARY:              DEFAULT_SECONDARY_PROVIDER,
		AI_TEMPERATURE:            0.87,
		AI_MAX_TOKENS:             1024,
		AI_REQUEST_TIMEOUT:        60 * time.Second,
		AI_MODELS_CACHE_TTL:       time.Hour,
		TRANSCRIPT_DIR:            "dialog_logs",
		TRANSCRIPT_SQLITE:         true,
		TRANSCRIPT_EXCERPT_LENGTH: 500,
		TRANSCRIPT_MAX_SIZE_MB:    50,
		TRANSCRIPT_MAX_BACKUPS:    5,
		RATELIMIT_ENABLED:         true,
		RATELIMIT_REDIS_URL:       "",
		RATELIMIT_GLOBAL_PER_SEC:  10,
		RATELIMIT_USER_PER_MINUTE: 60,
		IMAGES_ENABLED:            true,
		IMAGES_TIMEOUT:            120 * time.Second,
		IMAGES_MAX_PROMPT_LENGTH:  1000,
		IMAGES_MAX_SIZE:           10 * 1024 * 1024,
		IMAGES_SEARCH_URL:         "https://www.bing.com/images/search",
		DATABASE_DSN:              "bot.db",
		LOGGING_LEVEL:             "info",
		LOGGING_WRITE_IN_FILE:     false,
		LOGGING_FILE_PATH:         "bot.log",
		LOGGING_MAX_SIZE_MB:       10,
		LOGGING_MAX_BACKUPS:       5,
		LOGGING_MAX_AGE_DAYS:      30,
		LOGGING_COMPRESS:          true,
		LOGGING_FORMAT:            LogFormatText,
	}
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaultValues := defaults()
	k.Load(confmap.Provider(defaultValues, "."), nil)

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config %s: %v", path, err)
			}
			break
		}
	}

	k.Load(env.Provider(EnvPrefix, ".", envKeyMapper(defaultValues)), nil)

	if k.String(TELEGRAM_TOKEN) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	return &Config{k: k}, nil
}

// New wraps already loaded values. Used by tests and tools that build config in code.
func New(values map[string]any) *Config {
	k := koanf.New(".")
	k.Load(confmap.Provider(defaults(), "."), nil)
	k.Load(confmap.Provider(values, "."), nil)
	return &Config{k: k}
}

// envKeyMapper maps NEUROASURA_DIALOGS_MAX_MESSAGES to dialogs.max_messages for known
// keys and falls back to replacing every underscore with a dot.
func envKeyMapper(known map[string]any) func(string) string {
	lookup := make(map[string]string, len(known))
	for key := range known {
		lookup[strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}
	return func(s string) string {
		name := strings.TrimPrefix(s, EnvPrefix)
		if key, ok := lookup[name]; ok {
			return key
		}
		return strings.ReplaceAll(strings.ToLower(name), "_", ".")
	}
}

func (c *Config) Global() globalConfig {
	return globalConfig{
		InterfaceLanguage: c.k.String(GLOBAL_LANGUAGE),
	}
}

func (c *Config) Telegram() TelegramConfig {
	var cfg TelegramConfig
	if err := c.k.Unmarshal("telegram", &cfg); err != nil {
		log.Fatalf("telegramConfig unmarshal error: %v", err)
		return TelegramConfig{}
	}
	return cfg
}

func (c *Config) Dialogs() DialogsConfig {
	return DialogsConfig{
		MaxMessages:   c.k.Int(DIALOGS_MAX_MESSAGES),
		MaxDialogs:    c.k.Int(DIALOGS_MAX_DIALOGS),
		HistoryWindow: c.k.Int(DIALOGS_HISTORY_WINDOW),
	}
}

func (c *Config) AI() AIConfig {
	cfg := AIConfig{
		Primary:        c.k.String(AI_PRIMARY),
		Secondary:      c.k.String(AI_SECONDARY),
		Temperature:    float32(c.k.Float64(AI_TEMPERATURE)),
		MaxTokens:      c.k.Int(AI_MAX_TOKENS),
		RequestTimeout: c.k.Duration(AI_REQUEST_TIMEOUT),
		ModelsCacheTTL: c.k.Duration(AI_MODELS_CACHE_TTL),
	}
	if c.k.Exists(AI_PROVIDERS) {
		if err := c.k.Unmarshal(AI_PROVIDERS, &cfg.Providers); err != nil {
			log.Fatalf("ai providers unmarshal error: %v", err)
		}
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = defaultProviders()
	}
	return cfg
}

func (c *Config) Transcript() TranscriptConfig {
	return TranscriptConfig{
		Dir:           c.k.String(TRANSCRIPT_DIR),
		SQLite:        c.k.Bool(TRANSCRIPT_SQLITE),
		ExcerptLength: c.k.Int(TRANSCRIPT_EXCERPT_LENGTH),
		MaxSizeMB:     c.k.Int(TRANSCRIPT_MAX_SIZE_MB),
		MaxBackups:    c.k.Int(TRANSCRIPT_MAX_BACKUPS),
	}
}

func (c *Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{
		Enabled:         c.k.Bool(RATELIMIT_ENABLED),
		RedisURL:        c.k.String(RATELIMIT_REDIS_URL),
		GlobalPerSecond: c.k.Int(RATELIMIT_GLOBAL_PER_SEC),
		UserPerMinute:   c.k.Int(RATELIMIT_USER_PER_MINUTE),
	}
}

func (c *Config) Images() ImagesConfig {
	return ImagesConfig{
		Enabled:         c.k.Bool(IMAGES_ENABLED),
		Timeout:         c.k.Duration(IMAGES_TIMEOUT),
		MaxPromptLength: c.k.Int(IMAGES_MAX_PROMPT_LENGTH),
		MaxSize:         c.k.Int(IMAGES_MAX_SIZE),
		SearchURL:       c.k.String(IMAGES_SEARCH_URL),
	}
}

// Prompts returns persona overrides declared as [prompts.<name>] tables.
func (c *Config) Prompts() map[string]PromptConfig {
	prompts := map[string]PromptConfig{}
	if !c.k.Exists(PROMPTS_PREFIX) {
		return prompts
	}
	if err := c.k.Unmarshal(PROMPTS_PREFIX, &prompts); err != nil {
		log.Printf("prompts unmarshal error: %v", err)
		return map[string]PromptConfig{}
	}
	return prompts
}

// GetCommandConfig reads commands.<name>.*. Commands are enabled unless disabled explicitly.
func (c *Config) GetCommandConfig(name string) *CommandConfig {
	enabledKey := fmt.Sprintf("%s.%s.enabled", COMMANDS_PREFIX, name)
	rateLimitedKey := fmt.Sprintf("%s.%s.rate_limited", COMMANDS_PREFIX, name)

	cfg := &CommandConfig{Enabled: true, RateLimited: true}
	if c.k.Exists(enabledKey) {
		cfg.Enabled = c.k.Bool(enabledKey)
	}
	if c.k.Exists(rateLimitedKey) {
		cfg.RateLimited = c.k.Bool(rateLimitedKey)
	}
	return cfg
}

func (c *Config) Log() LoggingConfig {
	return LoggingConfig{
		LogLevel:    c.k.String(LOGGING_LEVEL),
		WriteInFile: c.k.Bool(LOGGING_WRITE_IN_FILE),
		FilePath:    c.k.String(LOGGING_FILE_PATH),
		MaxSizeMB:   c.k.Int(LOGGING_MAX_SIZE_MB),
		MaxBackups:  c.k.Int(LOGGING_MAX_BACKUPS),
		MaxAgeDays:  c.k.Int(LOGGING_MAX_AGE_DAYS),
		Compress:    c.k.Bool(LOGGING_COMPRESS),
		Format:      strings.ToLower(c.k.String(LOGGING_FORMAT)),
	}
}

func (c *Config) HTTP() HTTPConfig {
	var proxy string
	if proxyValue, ok := c.k.Get(HTTP_PROXY).(string); ok {
		proxy = proxyValue
	}

	return HTTPConfig{
		proxy:   &proxy,
		noProxy: c.k.Strings(HTTP_NO_PROXY),
		Timeout: c.k.Duration(HTTP_TIMEOUT),
	}
}

// GetDatabaseDSN appends the default pragmas the DSN does not set itself.
func (c *Config) GetDatabaseDSN() string {
	return withDefaultPragmas(c.k.String(DATABASE_DSN))
}

func withDefaultPragmas(dsn string) string {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return dsn
	}

	existing := map[string]bool{}
	for _, pragma := range params["_pragma"] {
		name, _, _ := strings.Cut(pragma, "(")
		existing[strings.ToLower(name)] = true
	}
	for _, pragma := range defaultSQLitePragmas {
		name, _, _ := strings.Cut(pragma, "(")
		if !existing[name] {
			params.Add("_pragma", pragma)
		}
	}

	return path + "?" + params.Encode()
}

func getConfigPaths() []string {
	if configPath != "" {
		return []string{configPath}
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, _ := os.UserHomeDir()
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		"neuroasura.toml",
		"config.toml",
		filepath.Join(xdgConfig, "neuroasura", "config.toml"),
		"/etc/neuroasura/config.toml",
	}
}
