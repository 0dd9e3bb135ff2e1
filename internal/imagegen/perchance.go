package imagegen

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/neuroasura/neuroasura/internal/logger"
)

const DefaultPerchanceURL = "https://perchance.org/api/generate"

type PerchanceProvider struct {
	baseProvider
	endpoint string
}

func NewPerchanceProvider(endpoint string, client HTTPClient, maxSize int, l logger.Logger) *PerchanceProvider {
	if endpoint == "" {
		endpoint = DefaultPerchanceURL
	}
	return &PerchanceProvider{
		baseProvider: newBaseProvider(ProviderNamePerchance, client, maxSize, l),
		endpoint:     endpoint,
	}
}

func (p *PerchanceProvider) Generate(ctx context.Context, prompt string) ([]byte, error) {
	payload := map[string]any{
		"prompt":   prompt + ", high quality, detailed",
		"width":    1024,
		"height":   1024,
		"quality":  "high",
		"generate": "image",
		"seed":     rand.IntN(1000000) + 1,
	}

	resp, err := p.postJSON(ctx, p.endpoint, payload, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if contentType := resp.Header.Get("Content-Type"); !isImageContentType(contentType) {
		return nil, fmt.Errorf("%w: content type %q", ErrNoImage, contentType)
	}
	return p.readLimited(resp.Body)
}
