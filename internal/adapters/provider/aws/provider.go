// Package aws converges declarations against AWS: zones and records on
// Route53, database instances on RDS, containers on S3. Databases inside an
// instance have no AWS control-plane analogue and are rejected as unsupported.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/core/ports"
	"github.com/convergekit/converge/internal/errors"
)

const Type = "aws"

type Config struct {
	Region       string
	RateLimitRPS int
}

type Provider struct {
	awsConfig awssdk.Config
	handlers  map[domain.ResourceKind]resourceHandler
	limiter   *apiLimiter
	logger    ports.Logger
}

func NewProvider(ctx context.Context, logger ports.Logger, cfg Config) (*Provider, error) {
	if logger == nil {
		return nil, errors.New(errors.CodeConfigValidation, "logger cannot be nil for AWS provider")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigValidation, "failed to load default AWS config")
	}

	// Fail fast on dead credentials instead of surfacing an auth error per
	// declaration halfway through a run.
	identity, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, classifyAPIError(ctx, err, "sts", "GetCallerIdentity")
	}
	logger.Debugf(ctx, "AWS credentials verified for account %s", awssdk.ToString(identity.Account))

	p := &Provider{
		awsConfig: awsCfg,
		handlers:  make(map[domain.ResourceKind]resourceHandler),
		limiter:   newAPILimiter(cfg.RateLimitRPS),
		logger:    logger,
	}

	dns := route53.NewFromConfig(awsCfg)
	catalog := newZoneCatalog(dns, p.limiter)
	p.registerHandler(newZoneHandler(dns, catalog, p.limiter))
	p.registerHandler(newRecordHandler(dns, catalog, p.limiter))
	p.registerHandler(newDBInstanceHandler(rds.NewFromConfig(awsCfg), p.limiter))
	p.registerHandler(newContainerHandler(s3.NewFromConfig(awsCfg), awsCfg.Region, p.limiter))

	return p, nil
}

func (p *Provider) registerHandler(handler resourceHandler) {
	if handler != nil {
		p.handlers[handler.Kind()] = handler
	}
}

func (p *Provider) Type() string { return Type }

func (p *Provider) handlerFor(decl domain.Declaration) (resourceHandler, error) {
	handler, found := p.handlers[decl.Kind]
	if !found {
		return nil, errors.New(errors.CodeUnsupportedKind,
			fmt.Sprintf("kind '%s' is not supported by the AWS provider", decl.Kind))
	}
	return handler, nil
}

func (p *Provider) Lookup(ctx context.Context, decl domain.Declaration) (domain.ResourceState, error) {
	handler, err := p.handlerFor(decl)
	if err != nil {
		return domain.ResourceState{}, err
	}
	p.logger.Debugf(ctx, "AWS lookup for %s", decl)
	return handler.Lookup(ctx, decl)
}

func (p *Provider) Create(ctx context.Context, decl domain.Declaration) error {
	handler, err := p.handlerFor(decl)
	if err != nil {
		return err
	}
	p.logger.Infof(ctx, "AWS create for %s", decl)
	return handler.Create(ctx, decl)
}

func (p *Provider) Update(ctx context.Context, decl domain.Declaration, diffs []domain.AttributeDiff) error {
	handler, err := p.handlerFor(decl)
	if err != nil {
		return err
	}
	p.logger.Infof(ctx, "AWS update for %s (%d attributes)", decl, len(diffs))
	return handler.Update(ctx, decl, diffs)
}

func (p *Provider) Resolve(ctx context.Context, decl domain.Declaration, attribute string) (any, error) {
	handler, err := p.handlerFor(decl)
	if err != nil {
		return nil, err
	}
	return handler.Resolve(ctx, decl, attribute)
}
