package ports

import (
	"context"

	"github.com/convergekit/converge/internal/core/domain"
)

type ConvergenceEngine interface {
	Run(ctx context.Context) (*domain.RunReport, error)
}
