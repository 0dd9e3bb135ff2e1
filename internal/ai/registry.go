package ai

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/neuroasura/neuroasura/internal/config"
	"github.com/neuroasura/neuroasura/internal/logger"
)

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrUnknownProviderType = errors.New("unknown provider type")
	ErrModelNotFound       = errors.New("model not found")
)

type Registry struct {
	backends      map[string]Backend
	labels        map[string]string
	backendsMutex sync.RWMutex
	logger        logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		backends: make(map[string]Backend),
		labels:   make(map[string]string),
		logger:   log,
	}
}

// NewBackend builds a client for the provider config.
func NewBackend(cfg config.AIProviderConfig, httpClient *http.Client, log logger.Logger) (Backend, error) {
	switch cfg.Type {
	case config.ProviderGigaChat:
		return NewGigaChatClient(cfg, httpClient, log), nil
	case config.ProviderOpenAI, "":
		return NewOpenAICompatibleClient(cfg, httpClient, log), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProviderType, cfg.Type)
	}
}

func (r *Registry) Register(backend Backend, label string) {
	r.backendsMutex.Lock()
	defer r.backendsMutex.Unlock()
	r.backends[backend.Name()] = backend
	if label == "" {
		label = backend.Name()
	}
	r.labels[backend.Name()] = label

	r.logger.WithFields(logger.Fields{
		"backend": backend.Name(),
		"label":   label,
	}).Debug("Backend registered")
}

func (r *Registry) Get(name string) (Backend, error) {
	r.backendsMutex.RLock()
	defer r.backendsMutex.RUnlock()

	if backend, ok := r.backends[name]; ok {
		return backend, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
}

// Label is the display name of a backend, or its name when not registered.
func (r *Registry) Label(name string) string {
	r.backendsMutex.RLock()
	defer r.backendsMutex.RUnlock()

	if label, ok := r.labels[name]; ok {
		return label
	}
	return name
}

func (r *Registry) Names() []string {
	r.backendsMutex.RLock()
	defer r.backendsMutex.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
