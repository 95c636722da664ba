package json

import (
	"context"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/core/ports"
	"github.com/convergekit/converge/internal/errors"
)

const ReporterTypeJSON = "json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct{}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) (*Reporter, error) {
	return &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}, nil
}

type jsonReport struct {
	Summary  jsonSummary   `json:"summary"`
	Outcomes []jsonOutcome `json:"outcomes"`
}

type jsonSummary struct {
	TotalDeclarations int  `json:"total_declarations"`
	Unchanged         int  `json:"unchanged"`
	Created           int  `json:"created"`
	Updated           int  `json:"updated"`
	Failed            int  `json:"failed"`
	Cancelled         int  `json:"cancelled"`
	Success           bool `json:"success"`
}

type jsonOutcome struct {
	DeclarationID string               `json:"declaration_id"`
	Kind          domain.ResourceKind  `json:"kind"`
	Status        domain.OutcomeStatus `json:"status"`
	Planned       bool                 `json:"planned,omitempty"`
	Differences   []jsonAttributeDiff  `json:"differences,omitempty"`
	ErrorCode     string               `json:"error_code,omitempty"`
	ErrorMessage  string               `json:"error_message,omitempty"`
	DurationMS    int64                `json:"duration_ms"`
}

type jsonAttributeDiff struct {
	AttributeName string `json:"attribute_name"`
	DeclaredValue any    `json:"declared_value"`
	ObservedValue any    `json:"observed_value"`
	Details       string `json:"details,omitempty"`
}

func (r *Reporter) Report(ctx context.Context, report *domain.RunReport) error {
	counts := report.CountByStatus()
	out := jsonReport{
		Summary: jsonSummary{
			TotalDeclarations: report.Len(),
			Unchanged:         counts[domain.StatusUnchanged],
			Created:           counts[domain.StatusCreated],
			Updated:           counts[domain.StatusUpdated],
			Failed:            counts[domain.StatusFailed],
			Cancelled:         counts[domain.StatusCancelled],
			Success:           report.OverallSuccess(),
		},
		Outcomes: make([]jsonOutcome, 0, report.Len()),
	}

	for _, outcome := range report.Outcomes {
		if ctx.Err() != nil {
			r.logger.Warnf(ctx, "JSON report generation cancelled.")
			return ctx.Err()
		}

		item := jsonOutcome{
			DeclarationID: outcome.DeclarationID,
			Kind:          outcome.Kind,
			Status:        outcome.Status,
			Planned:       outcome.Planned,
			DurationMS:    outcome.Duration.Milliseconds(),
		}
		if outcome.Error != nil {
			item.ErrorCode = errors.GetCode(outcome.Error).String()
			item.ErrorMessage = outcome.Error.Error()
		}
		if len(outcome.Differences) > 0 {
			item.Differences = make([]jsonAttributeDiff, len(outcome.Differences))
			for i, diff := range outcome.Differences {
				item.Differences[i] = jsonAttributeDiff{
					AttributeName: diff.AttributeName,
					DeclaredValue: diff.DeclaredValue,
					ObservedValue: diff.ObservedValue,
					Details:       diff.Details,
				}
			}
		}
		out.Outcomes = append(out.Outcomes, item)
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		r.logger.Errorf(ctx, err, "Failed to encode JSON report")
		return errors.Wrap(err, errors.CodeInternal, "failed to encode JSON report")
	}

	r.logger.Debugf(ctx, "JSON report successfully generated.")
	return nil
}
