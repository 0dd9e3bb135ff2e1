package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/neuroasura/neuroasura/internal/logger"
)

type baseProvider struct {
	name    string
	client  HTTPClient
	maxSize int
	logger  logger.Logger
}

func newBaseProvider(name string, client HTTPClient, maxSize int, l logger.Logger) baseProvider {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	return baseProvider{
		name:    name,
		client:  client,
		maxSize: maxSize,
		logger:  l.WithField("provider", name),
	}
}

func (p baseProvider) Name() string {
	return p.name
}

func (p baseProvider) do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", RandomUserAgent())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("connection reset by peer (EOF) - possible server issue with %s", req.URL.Host)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("rate limit exceeded (429) for %s", req.URL.Host)
		case http.StatusForbidden:
			return nil, fmt.Errorf("access forbidden (403) for %s", req.URL.Host)
		default:
			return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, req.URL.Host)
		}
	}
	return resp, nil
}

// readLimited reads at most maxSize bytes and fails when the body is larger.
func (p baseProvider) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(p.maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("reading body failed: %w", err)
	}
	if len(data) > p.maxSize {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func (p baseProvider) postJSON(ctx context.Context, endpoint string, payload any, headers map[string]string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return p.do(req)
}

func (p baseProvider) download(ctx context.Context, imageURL string, headers map[string]string) ([]byte, error) {
	if _, err := url.ParseRequestURI(imageURL); err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return p.readLimited(resp.Body)
}

func isImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}
