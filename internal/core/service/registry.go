package service

import (
	"fmt"
	"sync"

	"github.com/convergekit/converge/internal/core/ports"
	"github.com/convergekit/converge/internal/errors"
)

// ComponentRegistry holds the pluggable pieces the engine is assembled from:
// provider adapters and reporters, both keyed by their type string.
type ComponentRegistry struct {
	mu        sync.RWMutex
	providers map[string]ports.ProviderAdapter
	reporters map[string]ports.Reporter
}

func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		providers: make(map[string]ports.ProviderAdapter),
		reporters: make(map[string]ports.Reporter),
	}
}

func (r *ComponentRegistry) RegisterProvider(provider ports.ProviderAdapter) error {
	if provider == nil {
		return errors.New(errors.CodeInternal, "attempted to register nil provider adapter")
	}
	providerType := provider.Type()
	if providerType == "" {
		return errors.New(errors.CodeInternal, "provider adapter type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[providerType]; exists {
		return errors.New(errors.CodeInternal, fmt.Sprintf("provider adapter type '%s' already registered", providerType))
	}
	r.providers[providerType] = provider
	return nil
}

func (r *ComponentRegistry) GetProvider(providerType string) (ports.ProviderAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[providerType]
	if !exists {
		return nil, errors.New(errors.CodeConfigValidation, fmt.Sprintf("provider adapter type '%s' not found", providerType))
	}
	return provider, nil
}

func (r *ComponentRegistry) RegisterReporter(reporterType string, reporter ports.Reporter) error {
	if reporter == nil {
		return errors.New(errors.CodeInternal, "attempted to register nil reporter")
	}
	if reporterType == "" {
		return errors.New(errors.CodeInternal, "reporter type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reporters[reporterType]; exists {
		return errors.New(errors.CodeInternal, fmt.Sprintf("reporter type '%s' already registered", reporterType))
	}
	r.reporters[reporterType] = reporter
	return nil
}

func (r *ComponentRegistry) GetReporter(reporterType string) (ports.Reporter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reporter, exists := r.reporters[reporterType]
	if !exists {
		return nil, errors.New(errors.CodeConfigValidation, fmt.Sprintf("reporter type '%s' not found", reporterType))
	}
	return reporter, nil
}
