package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
)

const (
	DefaultGigaChatBaseURL = "https://gigachat.devices.sberbank.ru/api/v1"
	DefaultGigaChatAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	DefaultGigaChatScope   = "GIGACHAT_API_PERS"
	DefaultGigaChatModel   = "GigaChat:latest"

	gigaChatTokenLifetime = 30 * time.Minute
	gigaChatTokenLeeway   = time.Minute
	gigaChatTokenTimeout  = 30 * time.Second
)

// GigaChatClient authenticates with the Sber OAuth endpoint and calls the chat API.
type GigaChatClient struct {
	name         string
	defaultModel string
	tokens       oauth2.TokenSource
	httpClient   *baseHTTPClient
	logger       logger.Logger
}

func NewGigaChatClient(cfg config.AIProviderConfig, httpClient *http.Client, log logger.Logger) *GigaChatClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGigaChatBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGigaChatModel
	}

	log = log.WithField("backend", cfg.Name)
	source := &gigaChatTokenSource{
		client:      httpClient,
		authURL:     cfg.AuthURL,
		credentials: cfg.GetAPIKey(),
		scope:       cfg.Scope,
		timeout:     gigaChatTokenTimeout,
		now:         time.Now,
		logger:      log,
	}
	if source.authURL == "" {
		source.authURL = DefaultGigaChatAuthURL
	}
	if source.scope == "" {
		source.scope = DefaultGigaChatScope
	}

	tokens := oauth2.ReuseTokenSourceWithExpiry(nil, source, gigaChatTokenLeeway)
	authorized := &http.Client{
		Transport: &oauth2.Transport{
			Source: tokens,
			Base:   httpClient.Transport,
		},
		Timeout: httpClient.Timeout,
	}

	return &GigaChatClient{
		name:         cfg.Name,
		defaultModel: model,
		tokens:       tokens,
		httpClient:   newBaseHTTPClient(authorized, cfg.Name, baseURL, "", log),
		logger:       log,
	}
}

func (c *GigaChatClient) Name() string {
	return c.name
}

func (c *GigaChatClient) DefaultModel() string {
	return c.defaultModel
}

func (c *GigaChatClient) Send(ctx context.Context, req Request) (string, error) {
	if err := c.authorize(ctx); err != nil {
		return "", err
	}
	return c.httpClient.chat(ctx, "chat/completions", newChatRequest(req, c.defaultModel))
}

func (c *GigaChatClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if err := c.authorize(ctx); err != nil {
		return nil, err
	}
	return c.httpClient.listModels(ctx, "models")
}

// authorize makes sure a token is cached before the API call. oauth2.TokenSource
// takes no context, so a cancelled ctx stops the wait and the fetch finishes in
// the background under its own timeout; the next call reuses its token.
func (c *GigaChatClient) authorize(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, err := c.tokens.Token()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &BackendError{OriginalErr: ctx.Err(), Backend: c.name, Message: "oauth request abandoned"}
	}
}

// Token exposes the cached access token, refreshing it when needed.
func (c *GigaChatClient) Token() (*oauth2.Token, error) {
	return c.tokens.Token()
}

type gigaChatTokenSource struct {
	client      *http.Client
	authURL     string
	credentials string
	scope       string
	timeout     time.Duration
	now         func() time.Time
	logger      logger.Logger
}

type gigaChatTokenResponse struct {
	AccessToken string `json:"access_token"`
	// unix milliseconds
	ExpiresAt int64 `json:"expires_at"`
}

func (s *gigaChatTokenSource) Token() (*oauth2.Token, error) {
	if s.credentials == "" {
		return nil, &BackendError{Backend: "gigachat", Message: "authorization key is not configured"}
	}

	s.logger.Info("Requesting new access token via OAuth")

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	form := url.Values{"scope": {s.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create oauth request error: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+s.credentials)
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &BackendError{OriginalErr: err, Backend: "gigachat", Message: "oauth request failed"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{OriginalErr: err, Backend: "gigachat", Message: "failed to read oauth response"}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{
			Backend:        "gigachat",
			HTTPStatusCode: resp.StatusCode,
			Message:        fmt.Sprintf("oauth request failed: %s", strings.TrimSpace(string(body))),
		}
	}

	var result gigaChatTokenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &BackendError{OriginalErr: err, Backend: "gigachat", Message: "invalid oauth response"}
	}
	if result.AccessToken == "" {
		return nil, &BackendError{Backend: "gigachat", Message: "invalid oauth response: access_token not found"}
	}

	expiry := s.now().Add(gigaChatTokenLifetime)
	if result.ExpiresAt > 0 {
		expiry = time.UnixMilli(result.ExpiresAt)
	}

	s.logger.WithField("expires_at", expiry).Info("New access token obtained")

	return &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
