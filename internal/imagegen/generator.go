package imagegen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
)

type Options struct {
	MaxPromptLength int
	MaxImageSize    int
}

// Generator tries its providers in random order and returns the first valid image.
type Generator struct {
	providers   []Provider
	providerMap map[string]Provider
	opts        Options
	shuffle     func([]Provider)
	logger      logger.Logger
}

func NewGenerator(opts Options, l logger.Logger) *Generator {
	if opts.MaxPromptLength <= 0 {
		opts.MaxPromptLength = DefaultMaxPromptLength
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = DefaultMaxImageSize
	}
	return &Generator{
		providerMap: make(map[string]Provider),
		opts:        opts,
		shuffle: func(p []Provider) {
			rand.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
		},
		logger: logger.Component(l, "imagegen"),
	}
}

// NewDefaultGenerator registers every built-in provider on one HTTP client.
func NewDefaultGenerator(cfg config.ImagesConfig, client HTTPClient, l logger.Logger) *Generator {
	g := NewGenerator(Options{
		MaxPromptLength: cfg.MaxPromptLength,
		MaxImageSize:    cfg.MaxSize,
	}, l)
	maxSize := g.opts.MaxImageSize
	g.RegisterProvider(NewPerchanceProvider("", client, maxSize, l))
	g.RegisterProvider(NewAIArtProvider("", client, maxSize, l))
	g.RegisterProvider(NewFreeAIAPIProvider("", client, maxSize, l))
	g.RegisterProvider(NewSearchProvider(cfg.SearchURL, client, maxSize, l))
	return g
}

func (g *Generator) RegisterProvider(provider Provider) {
	if _, exists := g.providerMap[provider.Name()]; exists {
		return
	}
	g.providers = append(g.providers, provider)
	g.providerMap[provider.Name()] = provider
}

func (g *Generator) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for _, p := range g.providers {
		names = append(names, p.Name())
	}
	return names
}

// ValidatePrompt trims the prompt and checks its length in characters.
func (g *Generator) ValidatePrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrPromptEmpty
	}
	if n := utf8.RuneCountInString(prompt); n > g.opts.MaxPromptLength {
		return "", fmt.Errorf("%w: %d > %d", ErrPromptTooLong, n, g.opts.MaxPromptLength)
	}
	return prompt, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (*Image, error) {
	prompt, err := g.ValidatePrompt(prompt)
	if err != nil {
		return nil, err
	}

	order := append([]Provider(nil), g.providers...)
	g.shuffle(order)

	var lastErr error
	for _, provider := range order {
		log := g.logger.WithField("provider", provider.Name())
		log.WithField("prompt", truncatePrompt(prompt)).Info("Trying image provider")

		data, err := provider.Generate(ctx, prompt)
		if err == nil {
			var contentType string
			contentType, err = Validate(data, g.opts.MaxImageSize)
			if err == nil {
				log.WithField("size", len(data)).Info("Image generated")
				return &Image{Data: data, ContentType: contentType, Provider: provider.Name()}, nil
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.WithError(err).Warn("Image provider failed")
		lastErr = err
	}

	if lastErr == nil {
		return nil, ErrAllUnavailable
	}
	if errors.Is(lastErr, ErrImageTooLarge) {
		return nil, fmt.Errorf("%w: %w", ErrAllUnavailable, ErrImageTooLarge)
	}
	return nil, fmt.Errorf("%w: %v", ErrAllUnavailable, lastErr)
}

func truncatePrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return prompt
}
