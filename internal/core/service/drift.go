package service

import (
	"sort"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/pkg/compare"
)

// diffDeclared compares the declared parameter set against the observed
// resource state, field by field. Only declared parameters participate:
// provider-managed attributes the manifest never mentions are ignored, since a
// declaration is not a full snapshot of the resource. A declared parameter the
// provider does not report counts as drift; adapters reject diffs on
// attributes they cannot reconcile.
func diffDeclared(decl domain.Declaration, state domain.ResourceState) []domain.AttributeDiff {
	var diffs []domain.AttributeDiff
	for _, name := range sortedParamNames(decl) {
		declared := decl.Parameters[name]
		observed, reported := state.Attribute(name)
		if !reported {
			diffs = append(diffs, domain.AttributeDiff{
				AttributeName: name,
				DeclaredValue: declared,
				Details:       "not reported by provider",
			})
			continue
		}
		if !compare.Equal(declared, observed) {
			diffs = append(diffs, domain.AttributeDiff{
				AttributeName: name,
				DeclaredValue: declared,
				ObservedValue: observed,
			})
		}
	}
	return diffs
}

func sortedParamNames(decl domain.Declaration) []string {
	names := make([]string, 0, len(decl.Parameters))
	for name := range decl.Parameters {
		names = append(names, name)
	}
	// Deterministic diff order keeps reports reproducible.
	sort.Strings(names)
	return names
}
