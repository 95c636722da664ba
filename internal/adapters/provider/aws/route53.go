package aws

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	route53types "github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
)

const defaultRecordTTL = 3600

// route53API is the slice of the Route53 client the handlers call.
type route53API interface {
	CreateHostedZone(ctx context.Context, params *route53.CreateHostedZoneInput, optFns ...func(*route53.Options)) (*route53.CreateHostedZoneOutput, error)
	GetHostedZone(ctx context.Context, params *route53.GetHostedZoneInput, optFns ...func(*route53.Options)) (*route53.GetHostedZoneOutput, error)
	ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
	UpdateHostedZoneComment(ctx context.Context, params *route53.UpdateHostedZoneCommentInput, optFns ...func(*route53.Options)) (*route53.UpdateHostedZoneCommentOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
}

// zoneCatalog resolves zone names to hosted zone IDs, caching hits for the
// lifetime of one provider instance. Both DNS handlers share one catalog.
type zoneCatalog struct {
	client  route53API
	limiter *apiLimiter

	mu     sync.Mutex
	byName map[string]string
}

func newZoneCatalog(client route53API, limiter *apiLimiter) *zoneCatalog {
	return &zoneCatalog{client: client, limiter: limiter, byName: make(map[string]string)}
}

// zoneID returns the hosted zone ID for name, or "" when no such zone exists.
func (c *zoneCatalog) zoneID(ctx context.Context, name string) (string, error) {
	fq := fqdn(name)

	c.mu.Lock()
	if id, ok := c.byName[fq]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	if err := c.limiter.wait(ctx); err != nil {
		return "", err
	}
	out, err := c.client.ListHostedZonesByName(ctx, &route53.ListHostedZonesByNameInput{
		DNSName:  awssdk.String(fq),
		MaxItems: awssdk.Int32(1),
	})
	if err != nil {
		return "", classifyAPIError(ctx, err, "route53", "ListHostedZonesByName")
	}
	if len(out.HostedZones) == 0 || fqdn(awssdk.ToString(out.HostedZones[0].Name)) != fq {
		return "", nil
	}

	id := strings.TrimPrefix(awssdk.ToString(out.HostedZones[0].Id), "/hostedzone/")
	c.mu.Lock()
	c.byName[fq] = id
	c.mu.Unlock()
	return id, nil
}

func (c *zoneCatalog) forget(name string) {
	c.mu.Lock()
	delete(c.byName, fqdn(name))
	c.mu.Unlock()
}

// zoneHandler manages hosted zones. Route53 has no native contact email or
// zone-level TTL, so both are carried in the hosted zone comment and read
// back from it on lookup.
type zoneHandler struct {
	client  route53API
	catalog *zoneCatalog
	limiter *apiLimiter
}

func newZoneHandler(client route53API, catalog *zoneCatalog, limiter *apiLimiter) *zoneHandler {
	return &zoneHandler{client: client, catalog: catalog, limiter: limiter}
}

func (h *zoneHandler) Kind() domain.ResourceKind { return domain.KindZone }

func (h *zoneHandler) Lookup(ctx context.Context, decl domain.Declaration) (domain.ResourceState, error) {
	name := zoneName(decl)
	id, err := h.catalog.zoneID(ctx, name)
	if err != nil {
		return domain.ResourceState{}, err
	}
	if id == "" {
		return domain.ResourceState{Exists: false}, nil
	}

	if err := h.limiter.wait(ctx); err != nil {
		return domain.ResourceState{}, err
	}
	out, err := h.client.GetHostedZone(ctx, &route53.GetHostedZoneInput{Id: awssdk.String(id)})
	if err != nil {
		err = classifyAPIError(ctx, err, "route53", "GetHostedZone")
		if isNotFound(err) {
			h.catalog.forget(name)
			return domain.ResourceState{Exists: false}, nil
		}
		return domain.ResourceState{}, err
	}

	// The zone was matched by name, so the name cannot drift; it is echoed in
	// the declared spelling since Route53 reports it lowercased with a
	// trailing dot.
	attrs := map[string]any{
		domain.KeyName: name,
	}
	if out.HostedZone.Config != nil {
		for k, v := range parseZoneComment(awssdk.ToString(out.HostedZone.Config.Comment)) {
			attrs[k] = v
		}
	}
	if out.DelegationSet != nil {
		nameservers := make([]any, 0, len(out.DelegationSet.NameServers))
		for _, ns := range out.DelegationSet.NameServers {
			nameservers = append(nameservers, ns)
		}
		attrs[domain.ZoneNameserversKey] = nameservers
	}
	return domain.ResourceState{Exists: true, Attributes: attrs}, nil
}

func (h *zoneHandler) Create(ctx context.Context, decl domain.Declaration) error {
	name := zoneName(decl)
	if err := h.limiter.wait(ctx); err != nil {
		return err
	}
	_, err := h.client.CreateHostedZone(ctx, &route53.CreateHostedZoneInput{
		Name:            awssdk.String(fqdn(name)),
		CallerReference: awssdk.String(fmt.Sprintf("converge-%s-%d", name, time.Now().UnixNano())),
		HostedZoneConfig: &route53types.HostedZoneConfig{
			Comment: awssdk.String(encodeZoneComment(decl)),
		},
	})
	if err != nil {
		return classifyAPIError(ctx, err, "route53", "CreateHostedZone")
	}
	return nil
}

func (h *zoneHandler) Update(ctx context.Context, decl domain.Declaration, diffs []domain.AttributeDiff) error {
	for _, diff := range diffs {
		switch diff.AttributeName {
		case domain.ZoneEmailKey, domain.KeyTTL, domain.ZoneCommentKey:
		default:
			return errors.Newf(errors.CodeProviderFatal,
				"cannot reconcile attribute %q of hosted zone %q", diff.AttributeName, decl.ID)
		}
	}

	name := zoneName(decl)
	id, err := h.catalog.zoneID(ctx, name)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.Newf(errors.CodeResourceNotFound, "hosted zone %q disappeared during convergence", name)
	}

	if err := h.limiter.wait(ctx); err != nil {
		return err
	}
	_, err = h.client.UpdateHostedZoneComment(ctx, &route53.UpdateHostedZoneCommentInput{
		Id:      awssdk.String(id),
		Comment: awssdk.String(encodeZoneComment(decl)),
	})
	if err != nil {
		return classifyAPIError(ctx, err, "route53", "UpdateHostedZoneComment")
	}
	return nil
}

func (h *zoneHandler) Resolve(ctx context.Context, decl domain.Declaration, attribute string) (any, error) {
	state, err := h.Lookup(ctx, decl)
	if err != nil {
		return nil, err
	}
	if !state.Exists {
		return nil, errors.Newf(errors.CodeResourceNotFound, "hosted zone for %s not found", decl)
	}
	value, ok := state.Attribute(attribute)
	if !ok {
		return nil, errors.Newf(errors.CodeResourceNotFound, "%s has no attribute %q", decl, attribute)
	}
	return value, nil
}

// recordHandler manages resource record sets. A record's identity is
// (zone_name, name, record_type); both create and update go through the same
// UPSERT change batch.
type recordHandler struct {
	client  route53API
	catalog *zoneCatalog
	limiter *apiLimiter
}

func newRecordHandler(client route53API, catalog *zoneCatalog, limiter *apiLimiter) *recordHandler {
	return &recordHandler{client: client, catalog: catalog, limiter: limiter}
}

func (h *recordHandler) Kind() domain.ResourceKind { return domain.KindRecord }

func (h *recordHandler) Lookup(ctx context.Context, decl domain.Declaration) (domain.ResourceState, error) {
	zone := decl.StringParam(domain.RecordZoneNameKey)
	zoneID, err := h.catalog.zoneID(ctx, zone)
	if err != nil {
		return domain.ResourceState{}, err
	}
	if zoneID == "" {
		return domain.ResourceState{Exists: false}, nil
	}

	name := recordName(decl)
	recordType := strings.ToUpper(decl.StringParam(domain.RecordTypeKey))

	if err := h.limiter.wait(ctx); err != nil {
		return domain.ResourceState{}, err
	}
	out, err := h.client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    awssdk.String(zoneID),
		StartRecordName: awssdk.String(fqdn(name)),
		StartRecordType: route53types.RRType(recordType),
		MaxItems:        awssdk.Int32(1),
	})
	if err != nil {
		return domain.ResourceState{}, classifyAPIError(ctx, err, "route53", "ListResourceRecordSets")
	}
	if len(out.ResourceRecordSets) == 0 {
		return domain.ResourceState{Exists: false}, nil
	}
	rrset := out.ResourceRecordSets[0]
	if fqdn(awssdk.ToString(rrset.Name)) != fqdn(name) || string(rrset.Type) != recordType {
		return domain.ResourceState{Exists: false}, nil
	}

	attrs := map[string]any{
		domain.KeyName:           name,
		domain.RecordZoneNameKey: zone,
		domain.RecordTypeKey:     recordType,
	}
	if rrset.TTL != nil {
		attrs[domain.KeyTTL] = *rrset.TTL
	}
	if len(rrset.ResourceRecords) > 0 {
		value := awssdk.ToString(rrset.ResourceRecords[0].Value)
		if recordType == "MX" {
			// MX values are stored as "<priority> <exchange>".
			if priority, data, ok := splitMXValue(value); ok {
				attrs[domain.RecordPriorityKey] = priority
				attrs[domain.RecordDataKey] = data
			} else {
				attrs[domain.RecordDataKey] = value
			}
		} else {
			attrs[domain.RecordDataKey] = value
		}
	}
	return domain.ResourceState{Exists: true, Attributes: attrs}, nil
}

func (h *recordHandler) Create(ctx context.Context, decl domain.Declaration) error {
	return h.upsert(ctx, decl)
}

func (h *recordHandler) Update(ctx context.Context, decl domain.Declaration, diffs []domain.AttributeDiff) error {
	for _, diff := range diffs {
		switch diff.AttributeName {
		case domain.RecordDataKey, domain.KeyTTL, domain.RecordPriorityKey:
		default:
			return errors.Newf(errors.CodeProviderFatal,
				"cannot reconcile attribute %q of record %q", diff.AttributeName, decl.ID)
		}
	}
	return h.upsert(ctx, decl)
}

func (h *recordHandler) upsert(ctx context.Context, decl domain.Declaration) error {
	zone := decl.StringParam(domain.RecordZoneNameKey)
	zoneID, err := h.catalog.zoneID(ctx, zone)
	if err != nil {
		return err
	}
	if zoneID == "" {
		return errors.Newf(errors.CodeResourceNotFound, "hosted zone %q not found for record %q", zone, decl.ID)
	}

	recordType := strings.ToUpper(decl.StringParam(domain.RecordTypeKey))
	value := decl.StringParam(domain.RecordDataKey)
	if recordType == "MX" {
		value = fmt.Sprintf("%d %s", paramInt(decl, domain.RecordPriorityKey, 0), value)
	}

	if err := h.limiter.wait(ctx); err != nil {
		return err
	}
	_, err = h.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: awssdk.String(zoneID),
		ChangeBatch: &route53types.ChangeBatch{
			Changes: []route53types.Change{{
				Action: route53types.ChangeActionUpsert,
				ResourceRecordSet: &route53types.ResourceRecordSet{
					Name:            awssdk.String(fqdn(recordName(decl))),
					Type:            route53types.RRType(recordType),
					TTL:             awssdk.Int64(paramInt(decl, domain.KeyTTL, defaultRecordTTL)),
					ResourceRecords: []route53types.ResourceRecord{{Value: awssdk.String(value)}},
				},
			}},
		},
	})
	if err != nil {
		return classifyAPIError(ctx, err, "route53", "ChangeResourceRecordSets")
	}
	return nil
}

func (h *recordHandler) Resolve(ctx context.Context, decl domain.Declaration, attribute string) (any, error) {
	state, err := h.Lookup(ctx, decl)
	if err != nil {
		return nil, err
	}
	if !state.Exists {
		return nil, errors.Newf(errors.CodeResourceNotFound, "record for %s not found", decl)
	}
	value, ok := state.Attribute(attribute)
	if !ok {
		return nil, errors.Newf(errors.CodeResourceNotFound, "%s has no attribute %q", decl, attribute)
	}
	return value, nil
}

func zoneName(decl domain.Declaration) string {
	if name := decl.StringParam(domain.KeyName); name != "" {
		return name
	}
	return decl.ID
}

func recordName(decl domain.Declaration) string {
	if name := decl.StringParam(domain.KeyName); name != "" {
		return name
	}
	return decl.ID
}

func fqdn(name string) string {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	return name + "."
}

func splitMXValue(value string) (int64, string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	priority, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return priority, parts[1], true
}

// encodeZoneComment carries the zone parameters Route53 cannot represent
// natively inside the hosted zone comment: "email=<addr> ttl=<n>".
func encodeZoneComment(decl domain.Declaration) string {
	var fields []string
	if email := decl.StringParam(domain.ZoneEmailKey); email != "" {
		fields = append(fields, "email="+email)
	}
	if ttl := paramInt(decl, domain.KeyTTL, 0); ttl > 0 {
		fields = append(fields, fmt.Sprintf("ttl=%d", ttl))
	}
	if comment := decl.StringParam(domain.ZoneCommentKey); comment != "" {
		fields = append(fields, "comment="+comment)
	}
	return strings.Join(fields, " ")
}

func parseZoneComment(comment string) map[string]any {
	attrs := make(map[string]any)
	for _, field := range strings.Fields(comment) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		switch key {
		case domain.ZoneEmailKey, domain.ZoneCommentKey:
			attrs[key] = value
		case domain.KeyTTL:
			if ttl, err := strconv.ParseInt(value, 10, 64); err == nil {
				attrs[key] = ttl
			}
		}
	}
	return attrs
}
