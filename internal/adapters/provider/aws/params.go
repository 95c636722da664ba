package aws

import (
	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/pkg/compare"
)

// paramInt reads a numeric declaration parameter, tolerating the int/int64/
// float64 shapes different manifest formats decode into.
func paramInt(decl domain.Declaration, key string, fallback int64) int64 {
	v, ok := decl.Param(key)
	if !ok {
		return fallback
	}
	n, ok := compare.Number(v)
	if !ok {
		return fallback
	}
	return int64(n)
}

// paramBool reads a boolean declaration parameter.
func paramBool(decl domain.Declaration, key string) bool {
	v, ok := decl.Param(key)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
