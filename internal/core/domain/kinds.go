package domain

type ResourceKind string

const (
	KindZone       ResourceKind = "Zone"
	KindRecord     ResourceKind = "Record"
	KindDBInstance ResourceKind = "DBInstance"
	KindDBDatabase ResourceKind = "DBDatabase"
	KindContainer  ResourceKind = "Container"
)

func (rk ResourceKind) String() string {
	return string(rk)
}

// KnownKinds returns every resource kind the engine understands, in a fixed order.
func KnownKinds() []ResourceKind {
	return []ResourceKind{KindZone, KindRecord, KindDBInstance, KindDBDatabase, KindContainer}
}

func IsKnownKind(kind ResourceKind) bool {
	for _, k := range KnownKinds() {
		if k == kind {
			return true
		}
	}
	return false
}
