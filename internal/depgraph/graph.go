/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package depgraph is the Dependency Graph Analyzer (spec §4.H): a
// directed graph over workspace package/module names, built from the
// dependency edges a workspace's manifests declare, answering has_path,
// find_path, and is_in_cycle_with for "consolidate one package into
// another" planning. Plain adjacency-list DFS/BFS over a
// map[string][]string: no third-party graph library appears anywhere in
// the example pack, and a handful of nodes (workspace member count) never
// justifies one — this is the one place in the repo built straight on
// the standard library by design, not by omission.
package depgraph

// Graph is a directed graph of dependency edges: Graph[a] contains b
// whenever a depends on b.
type Graph struct {
	edges map[string][]string
}

// New builds an empty Graph.
func New() *Graph {
	return &Graph{edges: make(map[string][]string)}
}

// AddEdge records that from depends on to.
func (g *Graph) AddEdge(from, to string) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
	if _, ok := g.edges[to]; !ok {
		g.edges[to] = nil
	}
}

// Nodes returns every node that has appeared as an edge endpoint.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.edges))
	for n := range g.edges {
		nodes = append(nodes, n)
	}
	return nodes
}

// HasPath reports whether a reaches b by any number of edges (b == a
// counts as reachable in zero steps).
func (g *Graph) HasPath(a, b string) bool {
	if a == b {
		return true
	}
	visited := map[string]bool{a: true}
	stack := []string{a}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.edges[n] {
			if next == b {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// FindPath returns the shortest edge sequence from a to b (inclusive of
// both endpoints), or nil if b is unreachable from a, via breadth-first
// search.
func (g *Graph) FindPath(a, b string) []string {
	if a == b {
		return []string{a}
	}
	visited := map[string]bool{a: true}
	prev := map[string]string{}
	queue := []string{a}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range g.edges[n] {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = n
			if next == b {
				return reconstructPath(prev, a, b)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func reconstructPath(prev map[string]string, a, b string) []string {
	path := []string{b}
	for path[len(path)-1] != a {
		path = append(path, prev[path[len(path)-1]])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// IsInCycleWith reports whether a and b are mutually reachable, meaning
// an edge between them (in either direction) would close a cycle that
// already exists through some other path.
func (g *Graph) IsInCycleWith(a, b string) bool {
	return g.HasPath(a, b) && g.HasPath(b, a)
}

// WouldIntroduceCycle reports whether adding an edge from -> to would
// create a cycle, i.e. to can already reach from. On true, the returned
// path is the existing to-to-from chain the new edge would close,
// suitable for a consolidation-rejection warning.
func (g *Graph) WouldIntroduceCycle(from, to string) (bool, []string) {
	if path := g.FindPath(to, from); path != nil {
		return true, path
	}
	return false, nil
}
