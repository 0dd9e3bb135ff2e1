package imagegen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/neuroasura/neuroasura/internal/logger"
)

const (
	DefaultAIArtURL     = "https://www.aiartapps.com/generate"
	DefaultFreeAIAPIURL = "https://freeaiapi.com/generate"
)

type payloadFunc func(prompt string) map[string]any

// EndpointProvider posts the prompt to a JSON API answering with an image link.
type EndpointProvider struct {
	baseProvider
	endpoint string
	payload  payloadFunc
}

type endpointResponse struct {
	ImageURL string `json:"image_url"`
	URL      string `json:"url"`
}

func NewEndpointProvider(name, endpoint string, payload payloadFunc, client HTTPClient, maxSize int, l logger.Logger) *EndpointProvider {
	return &EndpointProvider{
		baseProvider: newBaseProvider(name, client, maxSize, l),
		endpoint:     endpoint,
		payload:      payload,
	}
}

func NewAIArtProvider(endpoint string, client HTTPClient, maxSize int, l logger.Logger) *EndpointProvider {
	if endpoint == "" {
		endpoint = DefaultAIArtURL
	}
	return NewEndpointProvider(ProviderNameAIArt, endpoint, func(prompt string) map[string]any {
		return map[string]any{"prompt": prompt, "style": "digital-art"}
	}, client, maxSize, l)
}

func NewFreeAIAPIProvider(endpoint string, client HTTPClient, maxSize int, l logger.Logger) *EndpointProvider {
	if endpoint == "" {
		endpoint = DefaultFreeAIAPIURL
	}
	return NewEndpointProvider(ProviderNameFreeAIAPI, endpoint, func(prompt string) map[string]any {
		return map[string]any{"text": prompt, "model": "stable-diffusion"}
	}, client, maxSize, l)
}

func (p *EndpointProvider) Generate(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := p.postJSON(ctx, p.endpoint, p.payload(prompt), map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading body failed: %w", err)
	}

	var result endpointResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	imageURL := result.ImageURL
	if imageURL == "" {
		imageURL = result.URL
	}
	if imageURL == "" {
		return nil, ErrNoImage
	}

	p.logger.WithField("url", imageURL).Debug("Downloading generated image")
	return p.download(ctx, imageURL, nil)
}
