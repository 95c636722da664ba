// Package manifest parses desired-state manifests into typed declarations.
// Two formats are supported: JSON documents and HCL declaration blocks.
// Templating and parameter substitution happen before a manifest reaches this
// package; the input is always a flat, already-resolved declaration list.
package manifest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
)

// rawRecord is one manifest entry before kind-specific validation.
type rawRecord struct {
	ID         string         `mapstructure:"id" json:"id"`
	Kind       string         `mapstructure:"kind" json:"kind"`
	Parameters map[string]any `mapstructure:"parameters" json:"parameters"`
	Requires   []string       `mapstructure:"requires" json:"requires"`
}

// Load reads the manifest at path and returns the validated declarations in
// manifest order. The format is chosen by file extension: .hcl is parsed as
// HCL declaration blocks, everything else as JSON. A directory path loads
// every .json and .hcl file inside it, concatenated in file-name order.
func Load(path string) ([]domain.Declaration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeManifestReadError, "cannot read manifest %s", path)
	}

	var records []rawRecord
	if info.IsDir() {
		records, err = parseDir(path)
	} else {
		records, err = parseFile(path)
	}
	if err != nil {
		return nil, err
	}
	return toDeclarations(records)
}

func parseFile(path string) ([]rawRecord, error) {
	if strings.ToLower(filepath.Ext(path)) == ".hcl" {
		return parseHCLFile(path)
	}
	return parseJSONFile(path)
}

// parseDir parses every manifest file in dir concurrently. Records keep
// file-name order regardless of which parse finishes first, so identifiers
// and positions stay stable across runs.
func parseDir(dir string) ([]rawRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeManifestReadError, "cannot read manifest directory %s", dir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".hcl":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, errors.Newf(errors.CodeManifestReadError,
			"manifest directory %s contains no .json or .hcl files", dir)
	}
	sort.Strings(paths)

	perFile := make([][]rawRecord, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		g.Go(func() error {
			records, err := parseFile(p)
			if err != nil {
				return err
			}
			perFile[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []rawRecord
	for _, fileRecords := range perFile {
		records = append(records, fileRecords...)
	}
	return records, nil
}

func toDeclarations(records []rawRecord) ([]domain.Declaration, error) {
	decls := make([]domain.Declaration, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for i, rec := range records {
		if rec.ID == "" {
			return nil, errors.Newf(errors.CodeMalformedDeclaration,
				"declaration at position %d has no identifier", i)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, errors.Newf(errors.CodeMalformedDeclaration,
				"duplicate declaration identifier %q", rec.ID)
		}
		seen[rec.ID] = struct{}{}

		kind := domain.ResourceKind(rec.Kind)
		if !domain.IsKnownKind(kind) {
			return nil, errors.Newf(errors.CodeMalformedDeclaration,
				"declaration %q has unrecognized kind %q", rec.ID, rec.Kind)
		}

		params := rec.Parameters
		if params == nil {
			params = map[string]any{}
		}

		decl := domain.Declaration{
			ID:         rec.ID,
			Kind:       kind,
			Parameters: params,
			Requires:   rec.Requires,
			Position:   i,
		}
		if err := validateDeclaration(decl); err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}
