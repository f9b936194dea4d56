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

package graphutil

import (
	"testing"

	"github.com/irtools/semdiff/analysis/ir"
)

const callModule = `
module "m"
define @a() void {
entry:
  call void @b()
  ret void
}
define @b() void {
entry:
  call void @c()
  call void @a()
  ret void
}
define @c() void {
entry:
  ret void
}
`

func buildGraph(t *testing.T) FuncGraph {
	t.Helper()
	m, err := ir.Parse("m.ir", callModule)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return NewFuncGraph(m)
}

func TestFuncGraphEdges(t *testing.T) {
	g := buildGraph(t)
	if g.Order() != 3 {
		t.Fatalf("expected 3 nodes, got %d", g.Order())
	}
	// a=0, b=1, c=2 in module order.
	if !g.HasEdgeFromTo(0, 1) || !g.HasEdgeFromTo(1, 2) || !g.HasEdgeFromTo(1, 0) {
		t.Errorf("missing expected call edges")
	}
	if g.HasEdgeFromTo(2, 0) {
		t.Errorf("unexpected edge from c")
	}
}

func TestFuncGraphNodesIterator(t *testing.T) {
	g := buildGraph(t)
	nodes := g.Nodes()
	if nodes.Len() != 3 {
		t.Fatalf("expected 3 nodes in iterator")
	}
	count := 0
	for nodes.Next() {
		if nodes.Node() == nil {
			t.Fatalf("nil node during iteration")
		}
		count++
	}
	if count != 3 {
		t.Errorf("iterated %d nodes, expected 3", count)
	}
}

func TestFuncGraphDirectedInterface(t *testing.T) {
	g := buildGraph(t)
	from := g.From(1)
	if from.Len() != 2 {
		t.Errorf("b should have two callees, got %d", from.Len())
	}
	to := g.To(0)
	if to.Len() != 1 {
		t.Errorf("a should have one caller, got %d", to.Len())
	}
	if g.Edge(0, 1) == nil || g.Edge(2, 0) != nil {
		t.Errorf("Edge lookups wrong")
	}
}

func TestFindAllElementaryCycles(t *testing.T) {
	g := buildGraph(t)
	cycles := FindAllElementaryCycles(g)
	if len(cycles) != 1 {
		t.Fatalf("expected exactly one elementary cycle, got %v", cycles)
	}
}
