package app

import (
	"context"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/core/ports"
)

// Application ties the convergence engine to the reporter chosen by config.
type Application struct {
	Engine   ports.ConvergenceEngine
	Reporter ports.Reporter
	Logger   ports.Logger
}

func NewApplication(engine ports.ConvergenceEngine, reporter ports.Reporter, logger ports.Logger) *Application {
	return &Application{
		Engine:   engine,
		Reporter: reporter,
		Logger:   logger,
	}
}

// Run converges the manifest and renders the report. The returned report is
// non-nil whenever the engine ran, even if individual declarations failed.
func (a *Application) Run(ctx context.Context) (*domain.RunReport, error) {
	a.Logger.Infof(ctx, "Starting convergence run...")

	report, err := a.Engine.Run(ctx)
	if err != nil {
		a.Logger.Errorf(ctx, err, "Convergence run aborted")
		return nil, err
	}

	if reportErr := a.Reporter.Report(ctx, report); reportErr != nil {
		a.Logger.Errorf(ctx, reportErr, "Failed to render run report")
		return report, reportErr
	}

	if report.OverallSuccess() {
		a.Logger.Infof(ctx, "Convergence run completed successfully")
	} else {
		a.Logger.Warnf(ctx, "Convergence run completed with failures")
	}
	return report, nil
}
