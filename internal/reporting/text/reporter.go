package text

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/core/ports"
	apperrors "github.com/convergekit/converge/internal/errors"
)

const ReporterTypeText = "text"

type Config struct {
	NoColor bool `mapstructure:"no_color"`
}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) (*Reporter, error) {
	if cfg.NoColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}

	return &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}, nil
}

func isTerminal(f *os.File) bool {
	stat, _ := f.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func (r *Reporter) Report(ctx context.Context, report *domain.RunReport) error {
	if report.Len() == 0 {
		fmt.Fprintln(r.writer, "Nothing to converge: the manifest is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintln(tw, "Convergence Report")
	fmt.Fprintln(tw, "==================")
	fmt.Fprintln(tw, "Status\tKind\tDeclaration\tDetails")
	fmt.Fprintln(tw, "------\t----\t-----------\t-------")

	for _, outcome := range report.Outcomes {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var statusStr, details string
		switch outcome.Status {
		case domain.StatusUnchanged:
			statusStr = green("[OK]")
			details = "Already converged."
		case domain.StatusCreated:
			statusStr = cyan("[CREATED]")
			details = "Resource created."
		case domain.StatusUpdated:
			statusStr = cyan("[UPDATED]")
			details = r.formatDiffDetails(outcome.Differences)
		case domain.StatusFailed:
			statusStr = red("[FAILED]")
			details = fmt.Sprintf("Convergence failed: %v", outcome.Error)
			if msg, suggestion, ok := apperrors.GetUserFacingMessage(outcome.Error); ok {
				details = fmt.Sprintf("%s (%s)", msg, suggestion)
			}
		case domain.StatusCancelled:
			statusStr = yellow("[CANCELLED]")
			details = "Run cancelled before this declaration converged."
		default:
			statusStr = "[UNKNOWN]"
			details = "Unknown outcome status."
		}

		if outcome.Planned {
			details = "Dry run: " + strings.TrimSuffix(details, ".") + ", no changes applied."
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", statusStr, outcome.Kind, outcome.DeclarationID, details)
	}

	counts := report.CountByStatus()
	fmt.Fprintln(tw, "\nSummary:")
	fmt.Fprintln(tw, "-------")
	fmt.Fprintf(tw, "Total Declarations:\t%d\n", report.Len())
	fmt.Fprintf(tw, "Unchanged:\t%s\n", green(counts[domain.StatusUnchanged]))
	fmt.Fprintf(tw, "Created:\t%s\n", cyan(counts[domain.StatusCreated]))
	fmt.Fprintf(tw, "Updated:\t%s\n", cyan(counts[domain.StatusUpdated]))
	fmt.Fprintf(tw, "Failed:\t%s\n", red(counts[domain.StatusFailed]))
	fmt.Fprintf(tw, "Cancelled:\t%s\n", yellow(counts[domain.StatusCancelled]))

	if report.OverallSuccess() {
		fmt.Fprintf(tw, "Result:\t%s\n", green("SUCCESS"))
	} else {
		fmt.Fprintf(tw, "Result:\t%s\n", red("FAILURE"))
	}

	return nil
}

func (r *Reporter) formatDiffDetails(diffs []domain.AttributeDiff) string {
	if len(diffs) == 0 {
		return "Resource updated."
	}
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%d attributes reconciled: ", len(diffs)))
	for i, diff := range diffs {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(fmt.Sprintf("%s=[Declared: %v, Observed: %v]",
			diff.AttributeName,
			r.formatValue(diff.DeclaredValue),
			r.formatValue(diff.ObservedValue)))
		if diff.Details != "" {
			builder.WriteString(fmt.Sprintf(" (%s)", diff.Details))
		}
	}
	return builder.String()
}

func (r *Reporter) formatValue(value any) string {
	const maxLen = 100
	str := fmt.Sprintf("%v", value)
	if len(str) > maxLen {
		return str[:maxLen-3] + "..."
	}
	return str
}
