package domain

import "strings"

// RefScheme prefixes a parameter value that refers to a derived attribute of
// another declaration, e.g. "ref://site_db/hostname".
const RefScheme = "ref://"

// Reference points at a derived attribute of another declaration. References
// are resolved through the provider adapter only after the target declaration
// has reached a terminal non-failed state.
type Reference struct {
	TargetID  string
	Attribute string
}

// ParseReference reports whether v is a reference value and, if so, its parts.
// A reference missing either the target ID or the attribute is not a reference.
func ParseReference(v any) (Reference, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, RefScheme) {
		return Reference{}, false
	}
	rest := strings.TrimPrefix(s, RefScheme)
	id, attr, found := strings.Cut(rest, "/")
	if !found || id == "" || attr == "" {
		return Reference{}, false
	}
	return Reference{TargetID: id, Attribute: attr}, true
}

// FindReferences returns every reference among the declaration's parameter
// values, keyed by parameter name.
func (d Declaration) FindReferences() map[string]Reference {
	var refs map[string]Reference
	for name, v := range d.Parameters {
		if ref, ok := ParseReference(v); ok {
			if refs == nil {
				refs = make(map[string]Reference)
			}
			refs[name] = ref
		}
	}
	return refs
}
