package service

import (
	"context"
	"sync"
	"time"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/core/graph"
	"github.com/convergekit/converge/internal/core/ports"
	"github.com/convergekit/converge/internal/errors"
	"github.com/convergekit/converge/internal/retry"
)

const defaultConcurrency = 10

type Options struct {
	Concurrency int
	DryRun      bool
	Retry       retry.Policy
}

// Engine walks the dependency graph, converging each declaration once all of
// its dependencies are terminal. Independent subgraphs converge concurrently
// under a bounded worker pool; the outcome map is write-once per declaration.
type Engine struct {
	graph    *graph.Graph
	provider ports.ProviderAdapter
	logger   ports.Logger
	opts     Options
}

func NewEngine(g *graph.Graph, provider ports.ProviderAdapter, logger ports.Logger, opts Options) (*Engine, error) {
	if g == nil {
		return nil, errors.New(errors.CodeInternal, "dependency graph cannot be nil")
	}
	if provider == nil {
		return nil, errors.New(errors.CodeConfigValidation, "provider adapter cannot be nil")
	}
	if logger == nil {
		return nil, errors.New(errors.CodeConfigValidation, "logger cannot be nil")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Engine{graph: g, provider: provider, logger: logger, opts: opts}, nil
}

// Run converges every declaration and returns the aggregated report.
// Individual declaration failures land in the report, not in the returned
// error; the error is reserved for the engine itself being unable to run.
func (e *Engine) Run(ctx context.Context) (*domain.RunReport, error) {
	total := e.graph.Len()
	e.logger.Infof(ctx, "Starting convergence of %d declarations via %s provider (dry-run: %v)",
		total, e.provider.Type(), e.opts.DryRun)

	var (
		mu      sync.Mutex
		results = make(map[string]domain.Outcome, total)
		order   = make([]string, 0, total)
	)
	cond := sync.NewCond(&mu)

	// Wake readiness waiters when the run is cancelled.
	wakerDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cond.Broadcast()
		case <-wakerDone:
		}
	}()

	sem := make(chan struct{}, e.opts.Concurrency)
	var wg sync.WaitGroup

	for _, id := range e.graph.Order() {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			decl, ok := e.graph.Declaration(id)
			if !ok {
				return
			}

			finish := func(outcome domain.Outcome) {
				mu.Lock()
				if _, dup := results[id]; !dup {
					results[id] = outcome
					order = append(order, id)
				}
				mu.Unlock()
				cond.Broadcast()
			}

			// Readiness: every dependency terminal, none failed or cancelled.
			mu.Lock()
			for {
				if ctx.Err() != nil {
					mu.Unlock()
					finish(domain.Outcome{DeclarationID: id, Kind: decl.Kind, Status: domain.StatusCancelled})
					return
				}

				ready := true
				var blocked *domain.Outcome
				for _, dep := range e.graph.Dependencies(id) {
					out, done := results[dep]
					if !done || !out.Status.Terminal() {
						ready = false
						break
					}
					if out.Status == domain.StatusFailed || out.Status == domain.StatusCancelled {
						blocked = &out
						break
					}
				}

				if blocked != nil {
					mu.Unlock()
					if blocked.Status == domain.StatusCancelled {
						finish(domain.Outcome{DeclarationID: id, Kind: decl.Kind, Status: domain.StatusCancelled})
					} else {
						finish(domain.Outcome{
							DeclarationID: id,
							Kind:          decl.Kind,
							Status:        domain.StatusFailed,
							Error: errors.Newf(errors.CodeUpstreamFailure,
								"upstream dependency failed: %s", blocked.DeclarationID),
						})
					}
					return
				}
				if ready {
					break
				}
				cond.Wait()
			}
			mu.Unlock()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				finish(domain.Outcome{DeclarationID: id, Kind: decl.Kind, Status: domain.StatusCancelled})
				return
			}
			defer func() { <-sem }()

			start := time.Now()
			outcome := e.converge(ctx, decl)
			outcome.Duration = time.Since(start)
			finish(outcome)
		}(id)
	}

	wg.Wait()
	close(wakerDone)

	report := domain.NewRunReport()
	for _, id := range order {
		report.Add(results[id])
	}

	counts := report.CountByStatus()
	e.logger.Infof(ctx, "Convergence finished: %d unchanged, %d created, %d updated, %d failed, %d cancelled",
		counts[domain.StatusUnchanged], counts[domain.StatusCreated], counts[domain.StatusUpdated],
		counts[domain.StatusFailed], counts[domain.StatusCancelled])

	return report, nil
}

// converge reconciles a single declaration: lookup, then the minimal mutation.
func (e *Engine) converge(ctx context.Context, decl domain.Declaration) domain.Outcome {
	log := e.logger.WithFields(map[string]any{
		"declaration": decl.ID,
		"kind":        decl.Kind,
	})
	outcome := domain.Outcome{DeclarationID: decl.ID, Kind: decl.Kind}

	// fail marks the outcome, downgrading to Cancelled when the failure was
	// caused by the run being cancelled rather than by the provider.
	fail := func(err error, msg string) domain.Outcome {
		if ctx.Err() != nil {
			outcome.Status = domain.StatusCancelled
			return outcome
		}
		log.Errorf(ctx, err, msg)
		outcome.Status = domain.StatusFailed
		outcome.Error = err
		return outcome
	}

	resolved, err := e.resolveParameters(ctx, decl)
	if err != nil {
		return fail(err, "Failed to resolve parameter references")
	}

	var state domain.ResourceState
	err = retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
		var lookupErr error
		state, lookupErr = e.provider.Lookup(ctx, resolved)
		return lookupErr
	})
	if err != nil {
		return fail(err, "Lookup failed")
	}

	if !state.Exists {
		log.Debugf(ctx, "Resource absent, creating")
		if e.opts.DryRun {
			outcome.Status = domain.StatusCreated
			outcome.Planned = true
			return outcome
		}
		err = retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
			return e.provider.Create(ctx, resolved)
		})
		if err != nil {
			return fail(err, "Create failed")
		}
		outcome.Status = domain.StatusCreated
		return outcome
	}

	diffs := diffDeclared(resolved, state)
	if len(diffs) == 0 {
		log.Debugf(ctx, "No drift detected")
		outcome.Status = domain.StatusUnchanged
		return outcome
	}

	log.Debugf(ctx, "Drift detected on %d attributes, updating", len(diffs))
	outcome.Differences = diffs
	if e.opts.DryRun {
		outcome.Status = domain.StatusUpdated
		outcome.Planned = true
		return outcome
	}
	err = retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
		return e.provider.Update(ctx, resolved, diffs)
	})
	if err != nil {
		return fail(err, "Update failed")
	}
	outcome.Status = domain.StatusUpdated
	return outcome
}

// resolveParameters replaces every ref:// parameter with the derived attribute
// of its target declaration. Targets are guaranteed terminal and non-failed by
// the readiness condition, since references are graph edges.
func (e *Engine) resolveParameters(ctx context.Context, decl domain.Declaration) (domain.Declaration, error) {
	refs := decl.FindReferences()
	if len(refs) == 0 {
		return decl, nil
	}

	params := make(map[string]any, len(decl.Parameters))
	for k, v := range decl.Parameters {
		params[k] = v
	}

	for name, ref := range refs {
		target, ok := e.graph.Declaration(ref.TargetID)
		if !ok {
			return decl, errors.Newf(errors.CodeUnresolvedDependency,
				"parameter %q references unknown declaration %q", name, ref.TargetID)
		}
		var value any
		err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
			var resolveErr error
			value, resolveErr = e.provider.Resolve(ctx, target, ref.Attribute)
			return resolveErr
		})
		if err != nil {
			return decl, errors.Wrapf(err, errors.CodeProviderFatal,
				"failed to resolve %s of declaration %q", ref.Attribute, ref.TargetID)
		}
		params[name] = value
	}

	resolved := decl
	resolved.Parameters = params
	return resolved, nil
}
