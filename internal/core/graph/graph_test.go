package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
)

func decl(id string, kind domain.ResourceKind, pos int, requires ...string) domain.Declaration {
	return domain.Declaration{
		ID:         id,
		Kind:       kind,
		Parameters: map[string]any{},
		Requires:   requires,
		Position:   pos,
	}
}

func TestBuild_TopologicalOrder(t *testing.T) {
	decls := []domain.Declaration{
		decl("record_www", domain.KindRecord, 0, "zone_example"),
		decl("zone_example", domain.KindZone, 1),
		decl("db_main", domain.KindDBInstance, 2),
		decl("db_app", domain.KindDBDatabase, 3, "db_main"),
	}

	g, err := Build(decls)
	require.NoError(t, err)

	order := g.Order()
	require.Len(t, order, 4)

	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	assert.Less(t, index["zone_example"], index["record_www"])
	assert.Less(t, index["db_main"], index["db_app"])
}

func TestBuild_Deterministic(t *testing.T) {
	decls := []domain.Declaration{
		decl("c", domain.KindContainer, 0),
		decl("a", domain.KindZone, 1),
		decl("b", domain.KindDBInstance, 2),
	}

	g1, err := Build(decls)
	require.NoError(t, err)
	g2, err := Build(decls)
	require.NoError(t, err)

	// Independent declarations keep manifest order.
	assert.Equal(t, []string{"c", "a", "b"}, g1.Order())
	assert.Equal(t, g1.Order(), g2.Order())
}

func TestBuild_ReferenceImpliesEdge(t *testing.T) {
	decls := []domain.Declaration{
		{
			ID:   "record_cdn",
			Kind: domain.KindRecord,
			Parameters: map[string]any{
				domain.RecordDataKey: "ref://assets/cdn_uri",
			},
			Position: 0,
		},
		decl("assets", domain.KindContainer, 1),
	}

	g, err := Build(decls)
	require.NoError(t, err)
	assert.Equal(t, []string{"assets", "record_cdn"}, g.Order())
	assert.Contains(t, g.Dependents("assets"), "record_cdn")
}

func TestBuild_UnresolvedDependency(t *testing.T) {
	decls := []domain.Declaration{
		decl("record_www", domain.KindRecord, 0, "zone_missing"),
	}

	_, err := Build(decls)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeUnresolvedDependency))
	assert.Contains(t, err.Error(), "zone_missing")
}

func TestBuild_CyclicDependency(t *testing.T) {
	decls := []domain.Declaration{
		decl("a", domain.KindZone, 0, "b"),
		decl("b", domain.KindRecord, 1, "c"),
		decl("c", domain.KindContainer, 2, "a"),
	}

	g, err := Build(decls)
	require.Error(t, err)
	assert.Nil(t, g, "no partial order on cycle")
	assert.True(t, errors.Is(err, errors.CodeCyclicDependency))
	assert.Contains(t, err.Error(), "a")
}

func TestBuild_DuplicateID(t *testing.T) {
	decls := []domain.Declaration{
		decl("dup", domain.KindZone, 0),
		decl("dup", domain.KindContainer, 1),
	}

	_, err := Build(decls)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeMalformedDeclaration))
}

func TestBuild_SelfReference(t *testing.T) {
	decls := []domain.Declaration{
		{
			ID:   "loop",
			Kind: domain.KindContainer,
			Parameters: map[string]any{
				domain.ContainerURIKey: "ref://loop/uri",
			},
		},
	}

	_, err := Build(decls)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeMalformedDeclaration))
}
