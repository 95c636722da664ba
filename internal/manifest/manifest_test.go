package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeManifest(t, "site.json", `{
	  "declarations": [
	    {"id": "zone_example", "kind": "Zone", "parameters": {"name": "example.com", "email": "dns@example.com", "ttl": 300}},
	    {"id": "record_www", "kind": "Record",
	     "parameters": {"name": "www.example.com", "zone_name": "example.com", "record_type": "A", "data": "203.0.113.10"},
	     "requires": ["zone_example"]}
	  ]
	}`)

	decls, err := Load(path)
	require.NoError(t, err)
	require.Len(t, decls, 2)

	assert.Equal(t, "zone_example", decls[0].ID)
	assert.Equal(t, domain.KindZone, decls[0].Kind)
	assert.Equal(t, 0, decls[0].Position)

	assert.Equal(t, domain.KindRecord, decls[1].Kind)
	assert.Equal(t, []string{"zone_example"}, decls[1].Requires)
	assert.Equal(t, "A", decls[1].StringParam(domain.RecordTypeKey))
}

func TestLoad_JSONBareArray(t *testing.T) {
	path := writeManifest(t, "flat.json",
		`[{"id": "assets", "kind": "Container", "parameters": {"cdn_enabled": true}}]`)

	decls, err := Load(path)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, domain.KindContainer, decls[0].Kind)
}

func TestLoad_HCL(t *testing.T) {
	path := writeManifest(t, "site.hcl", `
declaration "Zone" "zone_example" {
  name  = "example.com"
  email = "dns@example.com"
  ttl   = 300
}

declaration "Record" "record_mail" {
  zone_name   = "example.com"
  name        = "example.com"
  record_type = "MX"
  data        = "mail.example.com"
  priority    = 10
  requires    = ["zone_example"]
}

declaration "DBInstance" "site_db" {
  name   = "site-db"
  flavor = "1GB Instance"
  size   = 20
}
`)

	decls, err := Load(path)
	require.NoError(t, err)
	require.Len(t, decls, 3)

	assert.Equal(t, "zone_example", decls[0].ID)
	ttl, ok := decls[0].Param(domain.KeyTTL)
	require.True(t, ok)
	assert.EqualValues(t, 300, ttl)

	assert.Equal(t, []string{"zone_example"}, decls[1].Requires)
	priority, ok := decls[1].Param(domain.RecordPriorityKey)
	require.True(t, ok)
	assert.EqualValues(t, 10, priority)

	assert.Equal(t, domain.KindDBInstance, decls[2].Kind)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10-dns.json"),
		[]byte(`[{"id": "zone_example", "kind": "Zone", "parameters": {"name": "example.com", "email": "dns@example.com"}}]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20-storage.hcl"),
		[]byte("declaration \"Container\" \"assets\" {\n  cdn_enabled = true\n}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	decls, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, "zone_example", decls[0].ID)
	assert.Equal(t, "assets", decls[1].ID)
	assert.Equal(t, 1, decls[1].Position)

	_, err = Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestReadError))
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{
			name:    "unknown kind",
			content: `[{"id": "x", "kind": "LoadBalancer", "parameters": {}}]`,
			errPart: "unrecognized kind",
		},
		{
			name: "duplicate id",
			content: `[{"id": "setup_db", "kind": "DBInstance", "parameters": {"flavor": "1GB", "size": 10}},
			           {"id": "setup_db", "kind": "DBInstance", "parameters": {"flavor": "2GB", "size": 20}}]`,
			errPart: "duplicate declaration identifier",
		},
		{
			name:    "missing required parameter",
			content: `[{"id": "r", "kind": "Record", "parameters": {"zone_name": "example.com", "record_type": "A"}}]`,
			errPart: "missing required parameter",
		},
		{
			name:    "self dependency",
			content: `[{"id": "z", "kind": "Zone", "parameters": {"email": "a@b.c"}, "requires": ["z"]}]`,
			errPart: "depends on itself",
		},
		{
			name:    "empty dependency",
			content: `[{"id": "z", "kind": "Zone", "parameters": {"email": "a@b.c"}, "requires": [""]}]`,
			errPart: "empty dependency",
		},
		{
			name:    "missing id",
			content: `[{"kind": "Zone", "parameters": {"email": "a@b.c"}}]`,
			errPart: "no identifier",
		},
		{
			name: "mx without priority",
			content: `[{"id": "mx", "kind": "Record",
			  "parameters": {"zone_name": "example.com", "record_type": "MX", "data": "mail.example.com"}}]`,
			errPart: "MX records require",
		},
		{
			name:    "ttl below minimum",
			content: `[{"id": "z", "kind": "Zone", "parameters": {"email": "a@b.c", "ttl": 60}}]`,
			errPart: "minimum",
		},
		{
			name:    "oversized db volume",
			content: `[{"id": "db", "kind": "DBInstance", "parameters": {"flavor": "1GB", "size": 500}}]`,
			errPart: "volume size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, "bad.json", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeMalformedDeclaration), "got %v", err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestLoad_ReferenceValueSkipsConcreteChecks(t *testing.T) {
	path := writeManifest(t, "ref.json", `[
	  {"id": "assets", "kind": "Container", "parameters": {"cdn_enabled": true}},
	  {"id": "record_cdn", "kind": "Record",
	   "parameters": {"zone_name": "example.com", "record_type": "CNAME", "data": "ref://assets/cdn_uri"}}
	]`)

	decls, err := Load(path)
	require.NoError(t, err)
	require.Len(t, decls, 2)

	refs := decls[1].FindReferences()
	require.Len(t, refs, 1)
	assert.Equal(t, "assets", refs[domain.RecordDataKey].TargetID)
}

func TestLoad_ReadAndParseErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestReadError))

	path := writeManifest(t, "broken.json", `{"declarations": [`)
	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestParseError))

	path = writeManifest(t, "broken.hcl", `declaration "Zone" {`)
	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestParseError))

	path = writeManifest(t, "unknown_field.json", `[{"id": "z", "kind": "Zone", "parameters": {"email": "a@b.c"}, "require": ["x"]}]`)
	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestParseError))
}
