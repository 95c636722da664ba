package ports

import (
	"context"

	"github.com/convergekit/converge/internal/core/domain"
)

type Reporter interface {
	Report(ctx context.Context, report *domain.RunReport) error
}
