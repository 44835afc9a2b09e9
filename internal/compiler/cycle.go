package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mirdump/internal/ir"
)

// TypeCycle is a set of types that contain each other by value. Such a type
// has no finite layout, and expanding its places never terminates.
//
// Recursion through a reference (&T, *const T) is fine and is not reported.
type TypeCycle struct {
	Path    []string `json:"path"`    // ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeTypeCycles finds types that contain themselves by value.
//
// It builds a graph from each type to the named types its fields and
// variants hold inline, then reports every strongly connected component
// with more than one node or a self-loop. Results are sorted by the first
// type of each path.
func AnalyzeTypeCycles(types map[string]ir.TypeDef) []TypeCycle {
	if len(types) == 0 {
		return []TypeCycle{}
	}

	graph := buildContainmentGraph(types)
	sccs := tarjanSCC(graph)

	cycles := []TypeCycle{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, cycleSCCToTypeCycle(scc, graph))
		}
	}
	slices.SortFunc(cycles, func(a, b TypeCycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

// containmentGraph maps a type name to the named types it holds by value.
type containmentGraph map[string][]string

func buildContainmentGraph(types map[string]ir.TypeDef) containmentGraph {
	graph := make(containmentGraph, len(types))
	for name, def := range types {
		edges := []string{}
		for _, f := range def.Fields {
			edges = append(edges, inlineTypes(f.Type, types)...)
		}
		for _, v := range def.Variants {
			for _, f := range v.Fields {
				edges = append(edges, inlineTypes(f.Type, types)...)
			}
		}
		slices.Sort(edges)
		graph[name] = slices.Compact(edges)
	}
	return graph
}

// inlineTypes returns the table types stored inline by a value of type ty.
func inlineTypes(ty string, types map[string]ir.TypeDef) []string {
	if _, ok := ir.RefTarget(ty); ok {
		return nil
	}
	if elems, ok := ir.TupleElems(ty); ok {
		var out []string
		for _, e := range elems {
			out = append(out, inlineTypes(e, types)...)
		}
		return out
	}
	ty = strings.TrimSpace(ty)
	if _, ok := types[ty]; ok {
		return []string{ty}
	}
	return nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph containmentGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in sorted order so the output is deterministic.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph containmentGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// Root of an SCC: pop it off the stack.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToTypeCycle(scc []string, graph containmentGraph) TypeCycle {
	if len(scc) == 1 {
		name := scc[0]
		return TypeCycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("type %s contains itself by value", name),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return TypeCycle{
		Path:    path,
		Message: fmt.Sprintf("types contain each other by value: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath builds a cycle path from an SCC by following edges
// between members from the first node until it returns to the start.
func reconstructCyclePath(scc []string, graph containmentGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
