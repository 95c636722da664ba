package aws

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
)

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	GetBucketWebsite(ctx context.Context, params *s3.GetBucketWebsiteInput, optFns ...func(*s3.Options)) (*s3.GetBucketWebsiteOutput, error)
	PutBucketWebsite(ctx context.Context, params *s3.PutBucketWebsiteInput, optFns ...func(*s3.Options)) (*s3.PutBucketWebsiteOutput, error)
	DeleteBucketWebsite(ctx context.Context, params *s3.DeleteBucketWebsiteInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketWebsiteOutput, error)
}

// containerHandler converges containers onto S3 buckets. cdn_enabled maps
// onto static website hosting, which is the closest public-delivery analogue
// the storage service offers; the cdn_uri attribute is the website endpoint.
type containerHandler struct {
	client  s3API
	region  string
	limiter *apiLimiter
}

func newContainerHandler(client s3API, region string, limiter *apiLimiter) *containerHandler {
	return &containerHandler{client: client, region: region, limiter: limiter}
}

func (h *containerHandler) Kind() domain.ResourceKind { return domain.KindContainer }

func bucketName(decl domain.Declaration) string {
	if name := decl.StringParam(domain.KeyName); name != "" {
		return strings.ToLower(name)
	}
	return strings.ToLower(strings.ReplaceAll(decl.ID, "_", "-"))
}

func containerName(decl domain.Declaration) string {
	if name := decl.StringParam(domain.KeyName); name != "" {
		return name
	}
	return decl.ID
}

func (h *containerHandler) Lookup(ctx context.Context, decl domain.Declaration) (domain.ResourceState, error) {
	bucket := bucketName(decl)

	if err := h.limiter.wait(ctx); err != nil {
		return domain.ResourceState{}, err
	}
	_, err := h.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: awssdk.String(bucket)})
	if err != nil {
		err = classifyAPIError(ctx, err, "s3", "HeadBucket")
		if isNotFound(err) {
			return domain.ResourceState{Exists: false}, nil
		}
		return domain.ResourceState{}, err
	}

	// The bucket name is derived from the declared name by lowercasing, so
	// the name is echoed in declared spelling rather than bucket form.
	attrs := map[string]any{
		domain.KeyName:         containerName(decl),
		domain.ContainerURIKey: h.bucketURI(bucket),
	}

	cdnEnabled, err := h.websiteEnabled(ctx, bucket)
	if err != nil {
		return domain.ResourceState{}, err
	}
	attrs[domain.ContainerCDNEnabledKey] = cdnEnabled
	if cdnEnabled {
		attrs[domain.ContainerCDNURIKey] = h.websiteURI(bucket)
	}
	return domain.ResourceState{Exists: true, Attributes: attrs}, nil
}

func (h *containerHandler) websiteEnabled(ctx context.Context, bucket string) (bool, error) {
	if err := h.limiter.wait(ctx); err != nil {
		return false, err
	}
	_, err := h.client.GetBucketWebsite(ctx, &s3.GetBucketWebsiteInput{Bucket: awssdk.String(bucket)})
	if err != nil {
		err = classifyAPIError(ctx, err, "s3", "GetBucketWebsite")
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (h *containerHandler) Create(ctx context.Context, decl domain.Declaration) error {
	bucket := bucketName(decl)

	input := &s3.CreateBucketInput{Bucket: awssdk.String(bucket)}
	// us-east-1 rejects an explicit location constraint.
	if h.region != "" && h.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(h.region),
		}
	}

	if err := h.limiter.wait(ctx); err != nil {
		return err
	}
	if _, err := h.client.CreateBucket(ctx, input); err != nil {
		return classifyAPIError(ctx, err, "s3", "CreateBucket")
	}

	if paramBool(decl, domain.ContainerCDNEnabledKey) {
		return h.enableWebsite(ctx, bucket)
	}
	return nil
}

func (h *containerHandler) Update(ctx context.Context, decl domain.Declaration, diffs []domain.AttributeDiff) error {
	bucket := bucketName(decl)
	for _, diff := range diffs {
		if diff.AttributeName != domain.ContainerCDNEnabledKey {
			return errors.Newf(errors.CodeProviderFatal,
				"cannot reconcile attribute %q of container %q", diff.AttributeName, decl.ID)
		}
	}
	if paramBool(decl, domain.ContainerCDNEnabledKey) {
		return h.enableWebsite(ctx, bucket)
	}
	return h.disableWebsite(ctx, bucket)
}

func (h *containerHandler) enableWebsite(ctx context.Context, bucket string) error {
	if err := h.limiter.wait(ctx); err != nil {
		return err
	}
	_, err := h.client.PutBucketWebsite(ctx, &s3.PutBucketWebsiteInput{
		Bucket: awssdk.String(bucket),
		WebsiteConfiguration: &s3types.WebsiteConfiguration{
			IndexDocument: &s3types.IndexDocument{Suffix: awssdk.String("index.html")},
		},
	})
	if err != nil {
		return classifyAPIError(ctx, err, "s3", "PutBucketWebsite")
	}
	return nil
}

func (h *containerHandler) disableWebsite(ctx context.Context, bucket string) error {
	if err := h.limiter.wait(ctx); err != nil {
		return err
	}
	_, err := h.client.DeleteBucketWebsite(ctx, &s3.DeleteBucketWebsiteInput{Bucket: awssdk.String(bucket)})
	if err != nil {
		return classifyAPIError(ctx, err, "s3", "DeleteBucketWebsite")
	}
	return nil
}

func (h *containerHandler) Resolve(ctx context.Context, decl domain.Declaration, attribute string) (any, error) {
	bucket := bucketName(decl)
	switch attribute {
	case domain.ContainerURIKey:
		return h.bucketURI(bucket), nil
	case domain.ContainerCDNURIKey:
		enabled, err := h.websiteEnabled(ctx, bucket)
		if err != nil {
			return nil, err
		}
		if !enabled {
			return nil, errors.Newf(errors.CodeResourceNotFound,
				"container %q has no CDN endpoint: cdn_enabled is off", decl.ID)
		}
		return h.websiteURI(bucket), nil
	}

	state, err := h.Lookup(ctx, decl)
	if err != nil {
		return nil, err
	}
	if !state.Exists {
		return nil, errors.Newf(errors.CodeResourceNotFound, "container for %s not found", decl)
	}
	value, ok := state.Attribute(attribute)
	if !ok {
		return nil, errors.Newf(errors.CodeResourceNotFound, "%s has no attribute %q", decl, attribute)
	}
	return value, nil
}

func (h *containerHandler) bucketURI(bucket string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, h.region)
}

func (h *containerHandler) websiteURI(bucket string) string {
	return fmt.Sprintf("http://%s.s3-website-%s.amazonaws.com", bucket, h.region)
}
