package aws

import (
	"context"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	route53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
)

type fakeRoute53 struct {
	zones   map[string]*route53.GetHostedZoneOutput
	zoneIDs map[string]string
	rrsets  []route53types.ResourceRecordSet

	changeInputs []*route53.ChangeResourceRecordSetsInput
	createInputs []*route53.CreateHostedZoneInput
}

func (f *fakeRoute53) CreateHostedZone(_ context.Context, params *route53.CreateHostedZoneInput, _ ...func(*route53.Options)) (*route53.CreateHostedZoneOutput, error) {
	f.createInputs = append(f.createInputs, params)
	return &route53.CreateHostedZoneOutput{
		HostedZone: &route53types.HostedZone{
			Id:   awssdk.String("/hostedzone/Z123"),
			Name: params.Name,
		},
	}, nil
}

func (f *fakeRoute53) GetHostedZone(_ context.Context, params *route53.GetHostedZoneInput, _ ...func(*route53.Options)) (*route53.GetHostedZoneOutput, error) {
	out, ok := f.zones[awssdk.ToString(params.Id)]
	if !ok {
		return nil, &route53types.NoSuchHostedZone{}
	}
	return out, nil
}

func (f *fakeRoute53) ListHostedZonesByName(_ context.Context, params *route53.ListHostedZonesByNameInput, _ ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error) {
	name := awssdk.ToString(params.DNSName)
	id, ok := f.zoneIDs[name]
	if !ok {
		return &route53.ListHostedZonesByNameOutput{}, nil
	}
	return &route53.ListHostedZonesByNameOutput{
		HostedZones: []route53types.HostedZone{
			{Id: awssdk.String("/hostedzone/" + id), Name: awssdk.String(name)},
		},
	}, nil
}

func (f *fakeRoute53) UpdateHostedZoneComment(_ context.Context, _ *route53.UpdateHostedZoneCommentInput, _ ...func(*route53.Options)) (*route53.UpdateHostedZoneCommentOutput, error) {
	return &route53.UpdateHostedZoneCommentOutput{}, nil
}

func (f *fakeRoute53) ChangeResourceRecordSets(_ context.Context, params *route53.ChangeResourceRecordSetsInput, _ ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error) {
	f.changeInputs = append(f.changeInputs, params)
	return &route53.ChangeResourceRecordSetsOutput{}, nil
}

func (f *fakeRoute53) ListResourceRecordSets(_ context.Context, _ *route53.ListResourceRecordSetsInput, _ ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error) {
	return &route53.ListResourceRecordSetsOutput{ResourceRecordSets: f.rrsets}, nil
}

func newTestHandlers(client route53API) (*zoneHandler, *recordHandler) {
	limiter := newAPILimiter(maxRateLimitRPS)
	catalog := newZoneCatalog(client, limiter)
	return newZoneHandler(client, catalog, limiter), newRecordHandler(client, catalog, limiter)
}

func TestZoneHandler_LookupParsesCommentAndNameservers(t *testing.T) {
	fake := &fakeRoute53{
		zoneIDs: map[string]string{"example.com.": "Z123"},
		zones: map[string]*route53.GetHostedZoneOutput{
			"Z123": {
				HostedZone: &route53types.HostedZone{
					Id:     awssdk.String("/hostedzone/Z123"),
					Name:   awssdk.String("example.com."),
					Config: &route53types.HostedZoneConfig{Comment: awssdk.String("email=dns@example.com ttl=300")},
				},
				DelegationSet: &route53types.DelegationSet{
					NameServers: []string{"ns-1.awsdns.example", "ns-2.awsdns.example"},
				},
			},
		},
	}
	zones, _ := newTestHandlers(fake)

	state, err := zones.Lookup(context.Background(), domain.Declaration{
		ID:         "zone_example",
		Kind:       domain.KindZone,
		Parameters: map[string]any{domain.KeyName: "example.com"},
	})
	require.NoError(t, err)
	require.True(t, state.Exists)

	email, _ := state.Attribute(domain.ZoneEmailKey)
	assert.Equal(t, "dns@example.com", email)
	ttl, _ := state.Attribute(domain.KeyTTL)
	assert.EqualValues(t, 300, ttl)
	nameservers, _ := state.Attribute(domain.ZoneNameserversKey)
	assert.Len(t, nameservers, 2)
}

func TestZoneHandler_LookupEchoesDeclaredName(t *testing.T) {
	fake := &fakeRoute53{
		zoneIDs: map[string]string{"example.com.": "Z123"},
		zones: map[string]*route53.GetHostedZoneOutput{
			"Z123": {
				HostedZone: &route53types.HostedZone{
					Id:   awssdk.String("/hostedzone/Z123"),
					Name: awssdk.String("example.com."),
				},
			},
		},
	}
	zones, _ := newTestHandlers(fake)

	state, err := zones.Lookup(context.Background(), domain.Declaration{
		ID:         "zone_example",
		Kind:       domain.KindZone,
		Parameters: map[string]any{domain.KeyName: "Example.COM"},
	})
	require.NoError(t, err)
	require.True(t, state.Exists)

	// Hosted zone names come back lowercased with a trailing dot; a case-only
	// difference in the declared name is not drift.
	name, _ := state.Attribute(domain.KeyName)
	assert.Equal(t, "Example.COM", name)
}

func TestZoneHandler_UpdateRejectsUnreconcilableAttribute(t *testing.T) {
	fake := &fakeRoute53{zoneIDs: map[string]string{"example.com.": "Z123"}}
	zones, _ := newTestHandlers(fake)

	err := zones.Update(context.Background(), domain.Declaration{
		ID:   "zone_example",
		Kind: domain.KindZone,
		Parameters: map[string]any{
			domain.KeyName:      "example.com",
			domain.ZoneEmailKey: "dns@example.com",
			"delegation_set":    "N1PA6795SAMPLE",
		},
	}, []domain.AttributeDiff{
		{AttributeName: "delegation_set", DeclaredValue: "N1PA6795SAMPLE", Details: "not reported by provider"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeProviderFatal))
	assert.Contains(t, err.Error(), "delegation_set")
}

func TestRecordHandler_UpdateRejectsUnreconcilableAttribute(t *testing.T) {
	fake := &fakeRoute53{zoneIDs: map[string]string{"example.com.": "Z123"}}
	_, records := newTestHandlers(fake)

	err := records.Update(context.Background(), domain.Declaration{
		ID:   "record_www",
		Kind: domain.KindRecord,
		Parameters: map[string]any{
			domain.RecordZoneNameKey: "example.com",
			domain.RecordTypeKey:     "A",
			domain.RecordDataKey:     "203.0.113.10",
			"health_check":           "hc-1",
		},
	}, []domain.AttributeDiff{
		{AttributeName: "health_check", DeclaredValue: "hc-1", Details: "not reported by provider"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeProviderFatal))
	assert.Empty(t, fake.changeInputs, "no change batch may be issued for an unreconcilable diff")
}

func TestZoneHandler_LookupAbsentZone(t *testing.T) {
	fake := &fakeRoute53{zoneIDs: map[string]string{}}
	zones, _ := newTestHandlers(fake)

	state, err := zones.Lookup(context.Background(), domain.Declaration{
		ID:   "zone_example",
		Kind: domain.KindZone,
		Parameters: map[string]any{
			domain.KeyName: "example.com",
		},
	})
	require.NoError(t, err)
	assert.False(t, state.Exists)
}

func TestZoneHandler_CreateEncodesComment(t *testing.T) {
	fake := &fakeRoute53{}
	zones, _ := newTestHandlers(fake)

	err := zones.Create(context.Background(), domain.Declaration{
		ID:   "zone_example",
		Kind: domain.KindZone,
		Parameters: map[string]any{
			domain.KeyName:      "example.com",
			domain.ZoneEmailKey: "dns@example.com",
			domain.KeyTTL:       300,
		},
	})
	require.NoError(t, err)

	require.Len(t, fake.createInputs, 1)
	input := fake.createInputs[0]
	assert.Equal(t, "example.com.", awssdk.ToString(input.Name))
	assert.Equal(t, "email=dns@example.com ttl=300", awssdk.ToString(input.HostedZoneConfig.Comment))
}

func TestRecordHandler_UpsertFormatsMXValue(t *testing.T) {
	fake := &fakeRoute53{zoneIDs: map[string]string{"example.com.": "Z123"}}
	_, records := newTestHandlers(fake)

	err := records.Create(context.Background(), domain.Declaration{
		ID:   "record_mail",
		Kind: domain.KindRecord,
		Parameters: map[string]any{
			domain.KeyName:           "example.com",
			domain.RecordZoneNameKey: "example.com",
			domain.RecordTypeKey:     "MX",
			domain.RecordDataKey:     "mail.example.com",
			domain.RecordPriorityKey: 10,
		},
	})
	require.NoError(t, err)

	require.Len(t, fake.changeInputs, 1)
	change := fake.changeInputs[0].ChangeBatch.Changes[0]
	assert.Equal(t, route53types.ChangeActionUpsert, change.Action)
	rrset := change.ResourceRecordSet
	assert.Equal(t, route53types.RRType("MX"), rrset.Type)
	require.Len(t, rrset.ResourceRecords, 1)
	assert.Equal(t, "10 mail.example.com", awssdk.ToString(rrset.ResourceRecords[0].Value))
	assert.EqualValues(t, defaultRecordTTL, awssdk.ToInt64(rrset.TTL))
}

func TestRecordHandler_LookupSplitsMXValue(t *testing.T) {
	fake := &fakeRoute53{
		zoneIDs: map[string]string{"example.com.": "Z123"},
		rrsets: []route53types.ResourceRecordSet{{
			Name: awssdk.String("example.com."),
			Type: route53types.RRType("MX"),
			TTL:  awssdk.Int64(3600),
			ResourceRecords: []route53types.ResourceRecord{
				{Value: awssdk.String("10 mail.example.com")},
			},
		}},
	}
	_, records := newTestHandlers(fake)

	state, err := records.Lookup(context.Background(), domain.Declaration{
		ID:   "record_mail",
		Kind: domain.KindRecord,
		Parameters: map[string]any{
			domain.KeyName:           "example.com",
			domain.RecordZoneNameKey: "example.com",
			domain.RecordTypeKey:     "MX",
			domain.RecordDataKey:     "mail.example.com",
			domain.RecordPriorityKey: 10,
		},
	})
	require.NoError(t, err)
	require.True(t, state.Exists)

	data, _ := state.Attribute(domain.RecordDataKey)
	assert.Equal(t, "mail.example.com", data)
	priority, _ := state.Attribute(domain.RecordPriorityKey)
	assert.EqualValues(t, 10, priority)
}

func TestZoneCommentRoundTrip(t *testing.T) {
	decl := domain.Declaration{
		ID:   "zone_example",
		Kind: domain.KindZone,
		Parameters: map[string]any{
			domain.ZoneEmailKey: "dns@example.com",
			domain.KeyTTL:       600,
		},
	}
	attrs := parseZoneComment(encodeZoneComment(decl))
	assert.Equal(t, "dns@example.com", attrs[domain.ZoneEmailKey])
	assert.EqualValues(t, 600, attrs[domain.KeyTTL])
}
