package aws

import (
	"context"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
)

type fakeS3 struct {
	buckets  map[string]struct{}
	websites map[string]struct{}

	createInputs   []*s3.CreateBucketInput
	putWebsites    []string
	deleteWebsites []string
}

func (f *fakeS3) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if _, ok := f.buckets[awssdk.ToString(params.Bucket)]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createInputs = append(f.createInputs, params)
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) GetBucketWebsite(_ context.Context, params *s3.GetBucketWebsiteInput, _ ...func(*s3.Options)) (*s3.GetBucketWebsiteOutput, error) {
	if _, ok := f.websites[awssdk.ToString(params.Bucket)]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchWebsiteConfiguration"}
	}
	return &s3.GetBucketWebsiteOutput{}, nil
}

func (f *fakeS3) PutBucketWebsite(_ context.Context, params *s3.PutBucketWebsiteInput, _ ...func(*s3.Options)) (*s3.PutBucketWebsiteOutput, error) {
	f.putWebsites = append(f.putWebsites, awssdk.ToString(params.Bucket))
	return &s3.PutBucketWebsiteOutput{}, nil
}

func (f *fakeS3) DeleteBucketWebsite(_ context.Context, params *s3.DeleteBucketWebsiteInput, _ ...func(*s3.Options)) (*s3.DeleteBucketWebsiteOutput, error) {
	f.deleteWebsites = append(f.deleteWebsites, awssdk.ToString(params.Bucket))
	return &s3.DeleteBucketWebsiteOutput{}, nil
}

func newTestContainerHandler(client s3API) *containerHandler {
	return newContainerHandler(client, "eu-west-1", newAPILimiter(maxRateLimitRPS))
}

func containerDecl(params map[string]any) domain.Declaration {
	return domain.Declaration{ID: "assets", Kind: domain.KindContainer, Parameters: params}
}

func TestContainerHandler_LookupEchoesDeclaredName(t *testing.T) {
	fake := &fakeS3{buckets: map[string]struct{}{"static-assets": {}}}
	h := newTestContainerHandler(fake)

	state, err := h.Lookup(context.Background(), containerDecl(map[string]any{
		domain.KeyName:                "Static-Assets",
		domain.ContainerCDNEnabledKey: false,
	}))
	require.NoError(t, err)
	require.True(t, state.Exists)

	// Bucket names are the lowercased declared name; case alone is not drift.
	name, _ := state.Attribute(domain.KeyName)
	assert.Equal(t, "Static-Assets", name)
	cdnEnabled, _ := state.Attribute(domain.ContainerCDNEnabledKey)
	assert.Equal(t, false, cdnEnabled)
	uri, _ := state.Attribute(domain.ContainerURIKey)
	assert.Equal(t, "https://static-assets.s3.eu-west-1.amazonaws.com", uri)
}

func TestContainerHandler_LookupAbsentBucket(t *testing.T) {
	fake := &fakeS3{}
	h := newTestContainerHandler(fake)

	state, err := h.Lookup(context.Background(), containerDecl(map[string]any{
		domain.ContainerCDNEnabledKey: true,
	}))
	require.NoError(t, err)
	assert.False(t, state.Exists)
}

func TestContainerHandler_CreateEnablesWebsite(t *testing.T) {
	fake := &fakeS3{}
	h := newTestContainerHandler(fake)

	err := h.Create(context.Background(), containerDecl(map[string]any{
		domain.ContainerCDNEnabledKey: true,
	}))
	require.NoError(t, err)

	require.Len(t, fake.createInputs, 1)
	assert.Equal(t, "assets", awssdk.ToString(fake.createInputs[0].Bucket))
	assert.Equal(t, []string{"assets"}, fake.putWebsites)
}

func TestContainerHandler_UpdateTogglesWebsite(t *testing.T) {
	fake := &fakeS3{buckets: map[string]struct{}{"assets": {}}}
	h := newTestContainerHandler(fake)

	diffs := []domain.AttributeDiff{
		{AttributeName: domain.ContainerCDNEnabledKey, DeclaredValue: false, ObservedValue: true},
	}
	err := h.Update(context.Background(), containerDecl(map[string]any{
		domain.ContainerCDNEnabledKey: false,
	}), diffs)
	require.NoError(t, err)
	assert.Equal(t, []string{"assets"}, fake.deleteWebsites)
	assert.Empty(t, fake.putWebsites)
}

func TestContainerHandler_UpdateRejectsUnreconcilableAttribute(t *testing.T) {
	fake := &fakeS3{buckets: map[string]struct{}{"assets": {}}}
	h := newTestContainerHandler(fake)

	err := h.Update(context.Background(), containerDecl(map[string]any{
		domain.ContainerCDNEnabledKey: true,
		"versioning":                  true,
	}), []domain.AttributeDiff{
		{AttributeName: "versioning", DeclaredValue: true, Details: "not reported by provider"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeProviderFatal))
	assert.Contains(t, err.Error(), "versioning")
	assert.Empty(t, fake.putWebsites)
	assert.Empty(t, fake.deleteWebsites)
}
