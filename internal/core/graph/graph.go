// Package graph resolves declaration dependencies into a DAG and produces the
// deterministic topological order the convergence engine dispatches from.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/convergekit/converge/internal/core/domain"
	"github.com/convergekit/converge/internal/errors"
)

// Graph is the resolved dependency graph over a declaration set.
// Edges run dependent -> dependency; the graph is validated acyclic at build.
type Graph struct {
	decls      map[string]domain.Declaration
	order      []string
	deps       map[string][]string
	dependents map[string][]string
}

// Build resolves every dependency edge and topologically sorts the set.
// Edges come from explicit Requires entries and from ref:// parameter values,
// which imply an ordering constraint just as an explicit requirement does.
//
// The returned order lists dependencies before their dependents. Independent
// declarations keep their original manifest order, so the result is stable
// across runs on identical input.
func Build(decls []domain.Declaration) (*Graph, error) {
	g := &Graph{
		decls:      make(map[string]domain.Declaration, len(decls)),
		deps:       make(map[string][]string, len(decls)),
		dependents: make(map[string][]string),
	}

	for _, d := range decls {
		if _, exists := g.decls[d.ID]; exists {
			return nil, errors.Newf(errors.CodeMalformedDeclaration, "duplicate declaration identifier %q", d.ID)
		}
		g.decls[d.ID] = d
	}

	for _, d := range decls {
		seen := make(map[string]struct{})
		addEdge := func(target string) error {
			if _, ok := g.decls[target]; !ok {
				return errors.Newf(errors.CodeUnresolvedDependency,
					"declaration %q requires unknown declaration %q", d.ID, target)
			}
			if _, dup := seen[target]; dup {
				return nil
			}
			seen[target] = struct{}{}
			g.deps[d.ID] = append(g.deps[d.ID], target)
			g.dependents[target] = append(g.dependents[target], d.ID)
			return nil
		}

		for _, req := range d.Requires {
			if err := addEdge(req); err != nil {
				return nil, err
			}
		}
		for _, ref := range sortedReferences(d) {
			if ref.TargetID == d.ID {
				return nil, errors.Newf(errors.CodeMalformedDeclaration,
					"declaration %q references itself", d.ID)
			}
			if err := addEdge(ref.TargetID); err != nil {
				return nil, err
			}
		}
	}

	order, err := g.topoSort(decls)
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// topoSort is a depth-first traversal with three-color marking: unvisited,
// in-progress (on the current stack), done. An in-progress node reached again
// closes a cycle.
func (g *Graph) topoSort(decls []domain.Declaration) ([]string, error) {
	const (
		unvisited uint8 = iota
		inProgress
		done
	)

	state := make(map[string]uint8, len(decls))
	stack := make([]string, 0, len(decls))
	stackPos := make(map[string]int, len(decls))
	order := make([]string, 0, len(decls))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case inProgress:
			pos := stackPos[id]
			cycle := append(append([]string(nil), stack[pos:]...), id)
			return errors.Newf(errors.CodeCyclicDependency,
				"dependency cycle detected: %s", strings.Join(cycle, " -> "))
		}

		state[id] = inProgress
		stackPos[id] = len(stack)
		stack = append(stack, id)

		for _, dep := range g.deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(stackPos, id)
		state[id] = done
		order = append(order, id)
		return nil
	}

	for _, d := range decls {
		if state[d.ID] == done {
			continue
		}
		if err := visit(d.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Order returns the topological order, dependencies first.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Declaration returns the declaration for id.
func (g *Graph) Declaration(id string) (domain.Declaration, bool) {
	d, ok := g.decls[id]
	return d, ok
}

// Dependencies returns the direct dependencies of id.
func (g *Graph) Dependencies(id string) []string {
	return g.deps[id]
}

// Dependents returns the declarations that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// Len returns the number of declarations in the graph.
func (g *Graph) Len() int {
	return len(g.decls)
}

// sortedReferences returns d's parameter references in a fixed order so edge
// insertion, and with it error reporting, stays deterministic.
func sortedReferences(d domain.Declaration) []domain.Reference {
	refs := d.FindReferences()
	if len(refs) == 0 {
		return nil
	}
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]domain.Reference, 0, len(names))
	for _, name := range names {
		out = append(out, refs[name])
	}
	return out
}

// DOT renders the graph in Graphviz DOT form, creation order left to right.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph converge {\n  rankdir=LR;\n")
	for _, id := range g.order {
		d := g.decls[id]
		b.WriteString(fmt.Sprintf("  %q [label=\"%s\\n(%s)\"];\n", id, id, d.Kind))
	}
	for _, id := range g.order {
		for _, dep := range g.deps[id] {
			b.WriteString(fmt.Sprintf("  %q -> %q;\n", id, dep))
		}
	}
	b.WriteString("}\n")
	return b.String()
}
