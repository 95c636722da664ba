package domain

import "fmt"

// Declaration is one unit of desired state parsed from a manifest.
// It is immutable once parsed; the engine and graph builder only read it.
type Declaration struct {
	ID         string
	Kind       ResourceKind
	Parameters map[string]any
	Requires   []string
	// Position is the zero-based index of the declaration in the manifest.
	// It is the tie-break for ordering independent declarations.
	Position int
}

func (d Declaration) Param(name string) (any, bool) {
	v, ok := d.Parameters[name]
	return v, ok
}

func (d Declaration) StringParam(name string) string {
	if v, ok := d.Parameters[name]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func (d Declaration) String() string {
	return fmt.Sprintf("%s/%s", d.Kind, d.ID)
}

// ResourceState is the provider-observed snapshot for one declaration.
// It is fetched per run and never cached across runs.
type ResourceState struct {
	Exists     bool
	Attributes map[string]any
}

func (s ResourceState) Attribute(name string) (any, bool) {
	v, ok := s.Attributes[name]
	return v, ok
}
