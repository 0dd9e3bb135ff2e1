package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/neuroasura/neuroasura/internal/cache"
	"github.com/neuroasura/neuroasura/internal/logger"
)

const (
	DefaultCatalogTTL = time.Hour

	catalogKey      = "models"
	catalogStaleKey = "models:stale"
	latestLimit     = 5
)

var modelDescriptions = []struct {
	keyword     string
	description string
}{
	{"gigachat", "Основная модель GigaChat для общего использования"},
	{"pro", "Продвинутая версия с улучшенными возможностями"},
	{"max", "Максимальная версия с наибольшим контекстом"},
	{"latest", "Самая последняя версия модели"},
	{"embedding", "Модель для создания векторных представлений"},
	{"multimodal", "Мультимодальная модель для работы с текстом и изображениями"},
}

var recommendedKeywords = []string{"gigachat", "latest", "pro", "max"}

type CatalogStats struct {
	Total   int
	ByType  map[string]int
	ByOwner map[string]int
	Latest  []string
}

// Catalog caches the model list of one backend and serves a stale copy when a refresh fails.
type Catalog struct {
	source ModelLister
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
	logger logger.Logger
}

func NewCatalog(source ModelLister, c cache.Cache, ttl time.Duration, log logger.Logger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &Catalog{
		source: source,
		cache:  c,
		ttl:    ttl,
		logger: logger.Component(log, "catalog"),
	}
}

func (c *Catalog) Models(ctx context.Context, force bool) ([]ModelInfo, error) {
	if !force {
		if models, ok := c.cache.Get(catalogKey); ok {
			return models.([]ModelInfo), nil
		}
	}

	result, err, _ := c.group.Do(catalogKey, func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		if stale, ok := c.cache.Get(catalogStaleKey); ok {
			c.logger.WithError(err).Warn("Failed to refresh models, serving stale list")
			return stale.([]ModelInfo), nil
		}
		return nil, err
	}
	return result.([]ModelInfo), nil
}

func (c *Catalog) refresh(ctx context.Context) ([]ModelInfo, error) {
	raw, err := c.source.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}

	models := make([]ModelInfo, 0, len(raw))
	for _, model := range raw {
		if model.ID == "" {
			continue
		}
		model.Description = describeModel(model.ID)
		models = append(models, model)
	}

	c.cache.Set(catalogKey, models, c.ttl)
	c.cache.Set(catalogStaleKey, models, cache.NoExpiration)
	c.logger.WithField("count", len(models)).Info("Models catalog refreshed")
	return models, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*ModelInfo, error) {
	models, err := c.Models(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, model := range models {
		if model.ID == id {
			return &model, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
}

// Search matches the term against ids and descriptions, case-insensitively.
func (c *Catalog) Search(ctx context.Context, term string) ([]ModelInfo, error) {
	models, err := c.Models(ctx, false)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(term)
	var found []ModelInfo
	for _, model := range models {
		if strings.Contains(strings.ToLower(model.ID), term) || strings.Contains(strings.ToLower(model.Description), term) {
			found = append(found, model)
		}
	}
	return found, nil
}

// Recommended lists flagship models first, preserving the API order inside each group.
func (c *Catalog) Recommended(ctx context.Context) ([]ModelInfo, error) {
	models, err := c.Models(ctx, false)
	if err != nil {
		return nil, err
	}

	priority := make([]ModelInfo, 0, len(models))
	var other []ModelInfo
	for _, model := range models {
		if containsAny(strings.ToLower(model.ID), recommendedKeywords) {
			priority = append(priority, model)
		} else {
			other = append(other, model)
		}
	}
	return append(priority, other...), nil
}

func (c *Catalog) Validate(ctx context.Context, id string) bool {
	_, err := c.Get(ctx, id)
	return err == nil
}

func (c *Catalog) Stats(ctx context.Context) (CatalogStats, error) {
	models, err := c.Models(ctx, false)
	if err != nil {
		return CatalogStats{}, err
	}

	stats := CatalogStats{
		Total:   len(models),
		ByType:  map[string]int{},
		ByOwner: map[string]int{},
	}
	for _, model := range models {
		stats.ByType[modelType(model.ID)]++

		owner := model.OwnedBy
		if owner == "" {
			owner = "unknown"
		}
		stats.ByOwner[owner]++

		if strings.Contains(strings.ToLower(model.ID), "latest") && len(stats.Latest) < latestLimit {
			stats.Latest = append(stats.Latest, model.ID)
		}
	}
	return stats, nil
}

func (c *Catalog) Clear() {
	c.cache.Delete(catalogKey)
	c.cache.Delete(catalogStaleKey)
}

func describeModel(id string) string {
	id = strings.ToLower(id)
	var parts []string
	for _, d := range modelDescriptions {
		if strings.Contains(id, d.keyword) {
			parts = append(parts, d.description)
		}
	}
	if len(parts) == 0 {
		return "Модель искусственного интеллекта"
	}
	return strings.Join(parts, ". ")
}

func modelType(id string) string {
	id = strings.ToLower(id)
	switch {
	case strings.Contains(id, "embedding"):
		return "embedding"
	case strings.Contains(id, "multimodal"), strings.Contains(id, "vision"):
		return "multimodal"
	case strings.Contains(id, "pro"):
		return "pro"
	case strings.Contains(id, "max"):
		return "max"
	case strings.Contains(id, "latest"):
		return "latest"
	case strings.Contains(id, "gigachat"):
		return "standard"
	default:
		return "other"
	}
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
