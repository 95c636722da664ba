package manifest

import (
	"math"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/convergekit/converge/internal/errors"
)

// HCL manifests declare resources as blocks:
//
//	declaration "Zone" "zone_example" {
//	  email = "dns@example.com"
//	  ttl   = 300
//	}
//
//	declaration "Record" "record_www" {
//	  zone_name   = "example.com"
//	  record_type = "A"
//	  data        = "203.0.113.10"
//	  requires    = ["zone_example"]
//	}
//
// The "requires" attribute is lifted out of the parameter set; every other
// attribute becomes a declaration parameter.
const (
	blockTypeDeclaration = "declaration"
	attrRequires         = "requires"
)

var manifestSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: blockTypeDeclaration, LabelNames: []string{"kind", "id"}},
	},
}

func parseHCLFile(path string) ([]rawRecord, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, errors.CodeManifestParseError, "failed to parse manifest file %s", path)
	}

	content, diags := file.Body.Content(manifestSchema)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, errors.CodeManifestParseError, "unexpected content in manifest file %s", path)
	}

	records := make([]rawRecord, 0, len(content.Blocks))
	for _, block := range content.Blocks {
		rec, err := decodeDeclarationBlock(block)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeDeclarationBlock(block *hcl.Block) (rawRecord, error) {
	rec := rawRecord{
		Kind:       block.Labels[0],
		ID:         block.Labels[1],
		Parameters: map[string]any{},
	}

	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return rawRecord{}, errors.Wrapf(diags, errors.CodeManifestParseError,
			"invalid declaration block %q", rec.ID)
	}

	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return rawRecord{}, errors.Wrapf(diags, errors.CodeManifestParseError,
				"invalid value for %q in declaration %q", name, rec.ID)
		}

		if name == attrRequires {
			reqs, err := ctyStringSlice(val)
			if err != nil {
				return rawRecord{}, errors.Wrapf(err, errors.CodeManifestParseError,
					"requires of declaration %q must be a list of identifiers", rec.ID)
			}
			rec.Requires = reqs
			continue
		}

		goVal, err := ctyToGo(val)
		if err != nil {
			return rawRecord{}, errors.Wrapf(err, errors.CodeManifestParseError,
				"cannot convert value of %q in declaration %q", name, rec.ID)
		}
		rec.Parameters[name] = goVal
	}
	return rec, nil
}

func ctyStringSlice(val cty.Value) ([]string, error) {
	if val.IsNull() || !val.CanIterateElements() {
		return nil, errors.New(errors.CodeManifestParseError, "expected a list of strings")
	}
	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.Type() != cty.String || elem.IsNull() {
			return nil, errors.New(errors.CodeManifestParseError, "expected a list of strings")
		}
		out = append(out, elem.AsString())
	}
	return out, nil
}

// ctyToGo converts an evaluated cty value to the plain Go shape used for
// declaration parameters. Whole numbers come back as int64 so TTLs and sizes
// compare naturally; everything else round-trips through cty's JSON encoding.
func ctyToGo(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	switch val.Type() {
	case cty.String:
		return val.AsString(), nil
	case cty.Bool:
		return val.True(), nil
	case cty.Number:
		bf := val.AsBigFloat()
		if i64, acc := bf.Int64(); acc == big.Exact {
			return i64, nil
		}
		f64, _ := bf.Float64()
		if !math.IsInf(f64, 0) {
			return f64, nil
		}
		return bf.Text('g', -1), nil
	}

	jsonBytes, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		return nil, err
	}
	return out, nil
}
