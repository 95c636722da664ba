package manifest

import (
	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
	"github.com/convergekit/converge/pkg/compare"
)

// validateDeclaration applies the kind-specific structural rules. A parameter
// holding a ref:// value is opaque until convergence time, so value-level
// checks only run on concrete values; presence checks treat a reference as
// present.
func validateDeclaration(d domain.Declaration) error {
	for _, dep := range d.Requires {
		if dep == "" {
			return errors.Newf(errors.CodeMalformedDeclaration,
				"declaration %q has an empty dependency identifier", d.ID)
		}
		if dep == d.ID {
			return errors.Newf(errors.CodeMalformedDeclaration,
				"declaration %q depends on itself", d.ID)
		}
	}

	for _, name := range domain.RequiredParams(d.Kind) {
		if _, ok := d.Param(name); !ok {
			return errors.Newf(errors.CodeMalformedDeclaration,
				"declaration %q (%s) is missing required parameter %q", d.ID, d.Kind, name)
		}
	}

	switch d.Kind {
	case domain.KindZone, domain.KindRecord, domain.KindContainer:
		if err := validateTTL(d); err != nil {
			return err
		}
	}

	if d.Kind == domain.KindRecord {
		if recordType, ok := concreteString(d, domain.RecordTypeKey); ok && recordType == "MX" {
			if _, ok := d.Param(domain.RecordPriorityKey); !ok {
				return errors.Newf(errors.CodeMalformedDeclaration,
					"declaration %q: MX records require the %q parameter", d.ID, domain.RecordPriorityKey)
			}
		}
	}

	if d.Kind == domain.KindDBInstance {
		if size, ok := concreteNumber(d, domain.DBInstanceSizeKey); ok {
			if size <= 0 || size > domain.MaxDBVolumeSize {
				return errors.Newf(errors.CodeMalformedDeclaration,
					"declaration %q: volume size must be between 1 and %d GB", d.ID, domain.MaxDBVolumeSize)
			}
		}
	}

	return nil
}

func validateTTL(d domain.Declaration) error {
	ttl, ok := concreteNumber(d, domain.KeyTTL)
	if !ok {
		return nil
	}
	if ttl < domain.MinimumTTL {
		return errors.Newf(errors.CodeMalformedDeclaration,
			"declaration %q: ttl has a minimum value of %d", d.ID, domain.MinimumTTL)
	}
	return nil
}

func concreteString(d domain.Declaration, name string) (string, bool) {
	v, ok := d.Param(name)
	if !ok {
		return "", false
	}
	if _, isRef := domain.ParseReference(v); isRef {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func concreteNumber(d domain.Declaration, name string) (float64, bool) {
	v, ok := d.Param(name)
	if !ok {
		return 0, false
	}
	if _, isRef := domain.ParseReference(v); isRef {
		return 0, false
	}
	return compare.Number(v)
}
