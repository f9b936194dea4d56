// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package graphutil adapts the direct call graph of an IR module to the
// graph libraries used by the analyses: Yourbasic's iterator interface and
// Gonum's directed graph interface.
package graphutil

import (
	"sort"

	"github.com/irtools/semdiff/analysis/ir"
	"gonum.org/v1/gonum/graph"
)

// FuncGraph is the direct call graph of one module. It implements the
// methods to satisfy graph.Iterator and Gonum's graph.Directed.
type FuncGraph struct {
	// The order of the graph
	order int

	// IDMap maps from node IDs to FNodes
	IDMap map[int64]FNode

	// Keys are all the node IDs, sorted
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means x directly calls y
	Edges map[int64]map[int64]bool

	// redges is the reverse adjacency, for the Directed interface
	redges map[int64]map[int64]bool
}

// NewFuncGraph builds the call graph of a module. Node IDs are the indices
// of the functions in module order; indirect calls contribute no edges.
func NewFuncGraph(m *ir.Module) FuncGraph {
	n := len(m.Funcs)
	ids := make(map[*ir.Func]int64, n)
	idmap := make(map[int64]FNode, n)
	edges := make(map[int64]map[int64]bool, n)
	redges := make(map[int64]map[int64]bool, n)
	keys := make([]int64, n)
	for i, f := range m.Funcs {
		ids[f] = int64(i)
		idmap[int64(i)] = FNode{Fun: f, id: int64(i)}
		edges[int64(i)] = map[int64]bool{}
		redges[int64(i)] = map[int64]bool{}
		keys[i] = int64(i)
	}
	for i, f := range m.Funcs {
		for _, b := range f.Blocks {
			for _, in := range b.Instrs {
				callee := in.CalledFunc()
				if callee == nil {
					continue
				}
				if j, ok := ids[callee]; ok {
					edges[int64(i)][j] = true
					redges[j][int64(i)] = true
				}
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return FuncGraph{
		order:  n,
		IDMap:  idmap,
		Keys:   keys,
		Edges:  edges,
		redges: redges,
	}
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and IDMap are the same as in the original, meaning that node indices stay consistent
// across subgraphs.
func Subgraph(original FuncGraph, include []int64) FuncGraph {
	idmap := make(map[int64]FNode, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	redges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))

	for j, i := range include {
		keys[j] = i
		idmap[i] = original.IDMap[i]
	}
	for _, i := range include {
		edges[i] = map[int64]bool{}
		redges[i] = map[int64]bool{}
	}
	for _, i := range include {
		for e := range original.Edges[i] {
			if _, ok := idmap[e]; ok {
				edges[i][e] = true
				redges[e][i] = true
			}
		}
	}

	return FuncGraph{
		order:  original.Order(),
		IDMap:  original.IDMap,
		Edges:  edges,
		redges: redges,
		Keys:   keys,
	}
}

// Order implements the order of the graph.Iterator interface for the FuncGraph
func (c FuncGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the FuncGraph
func (c FuncGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Gonum graph interface implementation **********************

// Node implements the Graph interface
func (c FuncGraph) Node(v int64) graph.Node {
	if n, ok := c.IDMap[v]; ok {
		return n
	}
	return nil
}

// Nodes returns the set of nodes in the graph
func (c FuncGraph) Nodes() graph.Nodes {
	keys := make([]int64, 0, len(c.IDMap))
	for k := range c.IDMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return &NodeSet{nodes: c.IDMap, ids: keys, cur: -1}
}

// From returns the set of nodes reachable by one edge from the id
func (c FuncGraph) From(id int64) graph.Nodes {
	var keys []int64
	for out := range c.Edges[id] {
		keys = append(keys, out)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return &NodeSet{nodes: c.IDMap, ids: keys, cur: -1}
}

// To returns the set of nodes with an edge into the id; it completes the
// graph.Directed interface
func (c FuncGraph) To(id int64) graph.Nodes {
	var keys []int64
	for in := range c.redges[id] {
		keys = append(keys, in)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return &NodeSet{nodes: c.IDMap, ids: keys, cur: -1}
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c FuncGraph) HasEdgeBetween(xid, yid int64) bool {
	xe := c.Edges[xid]
	ye := c.Edges[yid]
	return xe[yid] || ye[xid]
}

// HasEdgeFromTo returns whether a directed edge exists from u to v
func (c FuncGraph) HasEdgeFromTo(uid, vid int64) bool {
	return c.Edges[uid][vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c FuncGraph) Edge(uid, vid int64) graph.Edge {
	if c.Edges[uid][vid] {
		return FEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
	}
	return nil
}

// *************** Nodes implementation **********************

// FNode is a wrapper around an *ir.Func that implements the graph.Node interface
type FNode struct {
	Fun *ir.Func
	id  int64
}

// ID returns the id of the node
func (n FNode) ID() int64 {
	return n.id
}

func (n FNode) String() string {
	if n.Fun == nil {
		return ""
	}
	return n.Fun.Name
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]FNode

	// ids is the set of node ids in the iterator
	ids []int64

	// cur is the current index of the iterator; -1 before the first Next
	cur int
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the length of the node set
func (ns *NodeSet) Len() int {
	return len(ns.ids)
}

// Reset resets the id of the current node in the set
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.ids) {
		return nil
	}
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// FEdge implements the graph.Edge interface
type FEdge struct {
	from FNode
	to   FNode
}

// From returns the origin of the edge
func (e FEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e FEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e FEdge) ReversedEdge() graph.Edge {
	return FEdge{from: e.to, to: e.from}
}
