package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
)

const dbEngine = "mysql"

type rdsAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	CreateDBInstance(ctx context.Context, params *rds.CreateDBInstanceInput, optFns ...func(*rds.Options)) (*rds.CreateDBInstanceOutput, error)
	ModifyDBInstance(ctx context.Context, params *rds.ModifyDBInstanceInput, optFns ...func(*rds.Options)) (*rds.ModifyDBInstanceOutput, error)
}

// dbInstanceHandler converges database instances on RDS. The declared flavor
// maps onto the DB instance class and size onto allocated storage in GB.
// Master credentials are delegated to Secrets Manager rather than carried in
// manifests.
type dbInstanceHandler struct {
	client  rdsAPI
	limiter *apiLimiter
}

func newDBInstanceHandler(client rdsAPI, limiter *apiLimiter) *dbInstanceHandler {
	return &dbInstanceHandler{client: client, limiter: limiter}
}

func (h *dbInstanceHandler) Kind() domain.ResourceKind { return domain.KindDBInstance }

func instanceIdentifier(decl domain.Declaration) string {
	if name := decl.StringParam(domain.KeyName); name != "" {
		return name
	}
	return decl.ID
}

func (h *dbInstanceHandler) Lookup(ctx context.Context, decl domain.Declaration) (domain.ResourceState, error) {
	if err := h.limiter.wait(ctx); err != nil {
		return domain.ResourceState{}, err
	}
	out, err := h.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: awssdk.String(instanceIdentifier(decl)),
	})
	if err != nil {
		err = classifyAPIError(ctx, err, "rds", "DescribeDBInstances")
		if isNotFound(err) {
			return domain.ResourceState{Exists: false}, nil
		}
		return domain.ResourceState{}, err
	}
	if len(out.DBInstances) == 0 {
		return domain.ResourceState{Exists: false}, nil
	}

	instance := out.DBInstances[0]
	// The instance was matched by identifier; RDS stores identifiers
	// lowercased, so the declared spelling is echoed back.
	attrs := map[string]any{
		domain.KeyName:             instanceIdentifier(decl),
		domain.DBInstanceFlavorKey: awssdk.ToString(instance.DBInstanceClass),
	}
	if instance.AllocatedStorage != nil {
		attrs[domain.DBInstanceSizeKey] = int64(*instance.AllocatedStorage)
	}
	if instance.Endpoint != nil {
		attrs[domain.DBInstanceHostnameKey] = awssdk.ToString(instance.Endpoint.Address)
	}
	return domain.ResourceState{Exists: true, Attributes: attrs}, nil
}

func (h *dbInstanceHandler) Create(ctx context.Context, decl domain.Declaration) error {
	size := paramInt(decl, domain.DBInstanceSizeKey, 0)
	if size <= 0 || size > domain.MaxDBVolumeSize {
		return errors.Newf(errors.CodeProviderFatal,
			"database volume size %d GB outside supported range (1-%d)", size, domain.MaxDBVolumeSize)
	}

	if err := h.limiter.wait(ctx); err != nil {
		return err
	}
	_, err := h.client.CreateDBInstance(ctx, &rds.CreateDBInstanceInput{
		DBInstanceIdentifier:     awssdk.String(instanceIdentifier(decl)),
		DBInstanceClass:          awssdk.String(decl.StringParam(domain.DBInstanceFlavorKey)),
		Engine:                   awssdk.String(dbEngine),
		AllocatedStorage:         awssdk.Int32(int32(size)),
		MasterUsername:           awssdk.String("converge"),
		ManageMasterUserPassword: awssdk.Bool(true),
	})
	if err != nil {
		return classifyAPIError(ctx, err, "rds", "CreateDBInstance")
	}
	return nil
}

func (h *dbInstanceHandler) Update(ctx context.Context, decl domain.Declaration, diffs []domain.AttributeDiff) error {
	input := &rds.ModifyDBInstanceInput{
		DBInstanceIdentifier: awssdk.String(instanceIdentifier(decl)),
		ApplyImmediately:     awssdk.Bool(true),
	}
	changed := false
	for _, diff := range diffs {
		switch diff.AttributeName {
		case domain.DBInstanceFlavorKey:
			input.DBInstanceClass = awssdk.String(decl.StringParam(domain.DBInstanceFlavorKey))
			changed = true
		case domain.DBInstanceSizeKey:
			size := paramInt(decl, domain.DBInstanceSizeKey, 0)
			if size <= 0 || size > domain.MaxDBVolumeSize {
				return errors.Newf(errors.CodeProviderFatal,
					"database volume size %d GB outside supported range (1-%d)", size, domain.MaxDBVolumeSize)
			}
			input.AllocatedStorage = awssdk.Int32(int32(size))
			changed = true
		default:
			// Silently skipping would report Updated on every run without
			// ever converging.
			return errors.Newf(errors.CodeProviderFatal,
				"cannot reconcile attribute %q of database instance %q", diff.AttributeName, decl.ID)
		}
	}
	if !changed {
		return nil
	}

	if err := h.limiter.wait(ctx); err != nil {
		return err
	}
	if _, err := h.client.ModifyDBInstance(ctx, input); err != nil {
		return classifyAPIError(ctx, err, "rds", "ModifyDBInstance")
	}
	return nil
}

func (h *dbInstanceHandler) Resolve(ctx context.Context, decl domain.Declaration, attribute string) (any, error) {
	state, err := h.Lookup(ctx, decl)
	if err != nil {
		return nil, err
	}
	if !state.Exists {
		return nil, errors.Newf(errors.CodeResourceNotFound, "database instance for %s not found", decl)
	}
	value, ok := state.Attribute(attribute)
	if !ok {
		return nil, errors.Newf(errors.CodeResourceNotFound, "%s has no attribute %q", decl, attribute)
	}
	return value, nil
}
