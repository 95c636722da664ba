package ports

import (
	"context"

	"github.com/convergekit/converge/internal/core/domain"
)

// ProviderAdapter is the narrow boundary to the platform API. The engine only
// ever talks to the platform through this interface.
//
// Error classification is the adapter's responsibility: transient failures are
// reported with errors.CodeProviderTransient (the engine retries them), every
// other error is treated as fatal for the declaration. Absence of a resource
// is not an error; Lookup reports it with ResourceState.Exists == false.
type ProviderAdapter interface {
	Type() string

	// Lookup fetches the observed state for the declaration's resource.
	Lookup(ctx context.Context, decl domain.Declaration) (domain.ResourceState, error)

	// Create brings the declared resource into existence.
	Create(ctx context.Context, decl domain.Declaration) error

	// Update reconciles the drifted attributes of an existing resource.
	Update(ctx context.Context, decl domain.Declaration, diffs []domain.AttributeDiff) error

	// Resolve returns a derived attribute of a declaration's resource, e.g. a
	// database instance hostname or a container URI. The engine calls it only
	// after decl has reached a terminal non-failed state.
	Resolve(ctx context.Context, decl domain.Declaration, attribute string) (any, error)
}
