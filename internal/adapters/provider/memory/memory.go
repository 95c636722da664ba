// Package memory implements a provider adapter backed by process memory. It
// serves local experimentation and dry runs against a predictable backend, and
// is the only adapter that supports every declaration kind.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/core/ports"
	"github.com/convergekit/converge/internal/errors"
)

const Type = "memory"

// Adapter stores one attribute map per declaration ID. Derived attributes
// (hostnames, URIs, nameservers) are synthesized on create so reference
// resolution behaves like it does against a real platform.
type Adapter struct {
	mu        sync.RWMutex
	resources map[string]map[string]any
	logger    ports.Logger
}

type Option func(*Adapter)

// WithResource seeds the adapter with pre-existing state, as if the resource
// had been created in an earlier run.
func WithResource(id string, attributes map[string]any) Option {
	return func(a *Adapter) {
		a.resources[id] = copyAttrs(attributes)
	}
}

func NewAdapter(logger ports.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		resources: make(map[string]map[string]any),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Type() string { return Type }

func (a *Adapter) Lookup(ctx context.Context, decl domain.Declaration) (domain.ResourceState, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	attrs, ok := a.resources[decl.ID]
	if !ok {
		return domain.ResourceState{Exists: false}, nil
	}
	return domain.ResourceState{Exists: true, Attributes: copyAttrs(attrs)}, nil
}

func (a *Adapter) Create(ctx context.Context, decl domain.Declaration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.resources[decl.ID]; exists {
		return errors.Newf(errors.CodeProviderFatal, "resource %q already exists", decl.ID)
	}

	if decl.Kind == domain.KindDBDatabase {
		instanceID := decl.StringParam(domain.DBDatabaseInstanceKey)
		if _, ok := a.resources[instanceID]; !ok {
			return errors.Newf(errors.CodeResourceNotFound,
				"database instance %q not found for database %q", instanceID, decl.ID)
		}
	}

	attrs := copyAttrs(decl.Parameters)
	for k, v := range derivedAttributes(decl) {
		attrs[k] = v
	}
	a.resources[decl.ID] = attrs

	a.logger.Debugf(ctx, "memory: created %s", decl)
	return nil
}

func (a *Adapter) Update(ctx context.Context, decl domain.Declaration, diffs []domain.AttributeDiff) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	attrs, ok := a.resources[decl.ID]
	if !ok {
		return errors.Newf(errors.CodeResourceNotFound, "cannot update missing resource %q", decl.ID)
	}
	for _, diff := range diffs {
		attrs[diff.AttributeName] = diff.DeclaredValue
	}

	a.logger.Debugf(ctx, "memory: updated %s (%d attributes)", decl, len(diffs))
	return nil
}

func (a *Adapter) Resolve(ctx context.Context, decl domain.Declaration, attribute string) (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	attrs, ok := a.resources[decl.ID]
	if !ok {
		return nil, errors.Newf(errors.CodeResourceNotFound, "resource %q not found", decl.ID)
	}
	value, ok := attrs[attribute]
	if !ok {
		return nil, errors.Newf(errors.CodeResourceNotFound,
			"resource %q has no attribute %q", decl.ID, attribute)
	}
	return value, nil
}

// derivedAttributes returns the platform-assigned attributes a freshly created
// resource of this kind would expose.
func derivedAttributes(decl domain.Declaration) map[string]any {
	name := resourceName(decl)
	switch decl.Kind {
	case domain.KindZone:
		return map[string]any{
			domain.ZoneNameserversKey: []any{"ns1.converge.internal", "ns2.converge.internal"},
		}
	case domain.KindDBInstance:
		return map[string]any{
			domain.DBInstanceHostnameKey: fmt.Sprintf("%s.db.converge.internal", name),
		}
	case domain.KindContainer:
		attrs := map[string]any{
			domain.ContainerURIKey: fmt.Sprintf("https://storage.converge.internal/%s", name),
		}
		if enabled, ok := decl.Param(domain.ContainerCDNEnabledKey); ok && enabled == true {
			attrs[domain.ContainerCDNURIKey] = fmt.Sprintf("https://cdn.converge.internal/%s", name)
		}
		return attrs
	}
	return nil
}

func resourceName(decl domain.Declaration) string {
	if name := decl.StringParam(domain.KeyName); name != "" {
		return name
	}
	return decl.ID
}

func copyAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
