package manifest

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/convergekit/converge/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonDocument is the wrapped form; a bare top-level array is also accepted.
type jsonDocument struct {
	Declarations []map[string]any `json:"declarations"`
}

func parseJSONFile(path string) ([]rawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeManifestReadError, "failed to read manifest file %s", path)
	}
	if len(data) == 0 {
		return nil, errors.Newf(errors.CodeManifestParseError, "manifest file %s is empty", path)
	}

	var entries []map[string]any
	if data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, errors.Wrapf(err, errors.CodeManifestParseError, "failed to parse manifest file %s", path)
		}
	} else {
		var doc jsonDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrapf(err, errors.CodeManifestParseError, "failed to parse manifest file %s", path)
		}
		entries = doc.Declarations
	}

	records := make([]rawRecord, 0, len(entries))
	for i, entry := range entries {
		rec, err := decodeRecord(entry)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeManifestParseError,
				"malformed manifest entry at position %d", i)
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeRecord maps a raw manifest entry onto rawRecord, rejecting unknown
// top-level fields so typos surface at parse time instead of converging wrong.
func decodeRecord(entry map[string]any) (rawRecord, error) {
	var rec rawRecord
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &rec,
		ErrorUnused: true,
	})
	if err != nil {
		return rawRecord{}, fmt.Errorf("building record decoder: %w", err)
	}
	if err := decoder.Decode(entry); err != nil {
		return rawRecord{}, err
	}
	return rec, nil
}
