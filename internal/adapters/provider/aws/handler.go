package aws

import (
	"context"

	"github.com/convergekit/converge/internal/core/domain"
)

// resourceHandler converges one declaration kind against its AWS service.
// Handlers classify their own API errors via classifyAPIError before
// returning, so the engine sees transport-agnostic error codes.
type resourceHandler interface {
	Kind() domain.ResourceKind
	Lookup(ctx context.Context, decl domain.Declaration) (domain.ResourceState, error)
	Create(ctx context.Context, decl domain.Declaration) error
	Update(ctx context.Context, decl domain.Declaration, diffs []domain.AttributeDiff) error
	Resolve(ctx context.Context, decl domain.Declaration, attribute string) (any, error)
}
