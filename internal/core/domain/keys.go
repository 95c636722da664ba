package domain

// Parameter keys shared by all kinds.
const (
	KeyName = "name"
	KeyTTL  = "ttl"
)

// Zone parameter keys.
const (
	ZoneEmailKey       = "email"
	ZoneCommentKey     = "comment"
	ZoneNameserversKey = "nameservers"
)

// Record parameter keys. Identity of a record is (zone_name, name, record_type).
const (
	RecordZoneNameKey = "zone_name"
	RecordTypeKey     = "record_type"
	RecordDataKey     = "data"
	RecordPriorityKey = "priority" // required for MX records
)

// Database instance parameter keys.
const (
	DBInstanceFlavorKey   = "flavor"
	DBInstanceSizeKey     = "size" // volume size in GB
	DBInstanceHostnameKey = "hostname"
)

// Database parameter keys (a database inside an instance).
const (
	DBDatabaseInstanceKey  = "instance_id"
	DBDatabaseCharacterSet = "character_set"
)

// Container parameter keys.
const (
	ContainerCDNEnabledKey = "cdn_enabled"
	ContainerURIKey        = "uri"
	ContainerCDNURIKey     = "cdn_uri"
)

// Provider-facing validation bounds carried over from the platform APIs.
const (
	MinimumTTL      = 300
	MaxDBVolumeSize = 150
)

// requiredParams lists the parameters a declaration of each kind must carry.
// KeyName is implied by the declaration ID and therefore not listed.
var requiredParams = map[ResourceKind][]string{
	KindZone:       {ZoneEmailKey},
	KindRecord:     {RecordZoneNameKey, RecordTypeKey, RecordDataKey},
	KindDBInstance: {DBInstanceFlavorKey, DBInstanceSizeKey},
	KindDBDatabase: {DBDatabaseInstanceKey},
	KindContainer:  {},
}

// RequiredParams returns the required parameter names for kind.
func RequiredParams(kind ResourceKind) []string {
	return requiredParams[kind]
}
