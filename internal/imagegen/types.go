package imagegen

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
)

const (
	ProviderNamePerchance = "perchance"
	ProviderNameAIArt     = "aiartapps"
	ProviderNameFreeAIAPI = "freeaiapi"
	ProviderNameSearch    = "search"
)

const (
	DefaultMaxPromptLength = 1000
	DefaultMaxImageSize    = 10 * 1024 * 1024
	minImageSize           = 1024
)

var (
	ErrPromptEmpty    = errors.New("prompt is empty")
	ErrPromptTooLong  = errors.New("prompt is too long")
	ErrImageTooLarge  = errors.New("image is too large")
	ErrInvalidImage   = errors.New("response is not a valid image")
	ErrNoImage        = errors.New("provider returned no image")
	ErrAllUnavailable = errors.New("all image providers are unavailable")
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

type Image struct {
	Data        []byte
	ContentType string
	Provider    string
}

var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
}

func RandomUserAgent() string {
	return UserAgents[rand.IntN(len(UserAgents))]
}
