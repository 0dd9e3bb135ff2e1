package ai

import (
	"context"
	"net/http"

	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
)

const (
	DefaultDeepSeekBaseURL = "https://api.deepseek.com"
	DefaultDeepSeekModel   = "deepseek-chat"
)

// OpenAICompatibleClient talks to any /chat/completions API with a bearer key (DeepSeek by default).
type OpenAICompatibleClient struct {
	name         string
	defaultModel string
	httpClient   *baseHTTPClient
	logger       logger.Logger
}

func NewOpenAICompatibleClient(cfg config.AIProviderConfig, httpClient *http.Client, log logger.Logger) *OpenAICompatibleClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultDeepSeekBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultDeepSeekModel
	}

	log = log.WithField("backend", cfg.Name)
	return &OpenAICompatibleClient{
		name:         cfg.Name,
		defaultModel: model,
		httpClient:   newBaseHTTPClient(httpClient, cfg.Name, baseURL, cfg.GetAPIKey(), log),
		logger:       log,
	}
}

func (c *OpenAICompatibleClient) Name() string {
	return c.name
}

func (c *OpenAICompatibleClient) DefaultModel() string {
	return c.defaultModel
}

func (c *OpenAICompatibleClient) Send(ctx context.Context, req Request) (string, error) {
	return c.httpClient.chat(ctx, "chat/completions", newChatRequest(req, c.defaultModel))
}

func (c *OpenAICompatibleClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return c.httpClient.listModels(ctx, "models")
}
