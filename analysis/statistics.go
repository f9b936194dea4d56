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

package analysis

import (
	"fmt"
	"io"
	"sort"

	"github.com/irtools/semdiff/analysis/ir"
	"github.com/irtools/semdiff/internal/funcutil"
	"github.com/irtools/semdiff/internal/graphutil"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// ModuleStatistics summarizes one loaded module: object counts and the
// recursive structure of its call graph. Mutually recursive groups matter
// to the comparator, whose result cache breaks their comparison cycles.
type ModuleStatistics struct {
	Functions    int
	Definitions  int
	Declarations int
	Blocks       int
	Instructions int

	// RecursiveGroups lists the strongly connected call-graph components
	// with more than one member, plus self-recursive functions.
	RecursiveGroups [][]string

	// ElementaryCycles is the number of elementary call cycles.
	ElementaryCycles int
}

// ComputeStatistics gathers the statistics of one module.
func ComputeStatistics(m *ir.Module) *ModuleStatistics {
	stats := &ModuleStatistics{Functions: len(m.Funcs)}
	for _, f := range m.Funcs {
		if f.IsDeclaration() {
			stats.Declarations++
			continue
		}
		stats.Definitions++
		stats.Blocks += len(f.Blocks)
		for _, b := range f.Blocks {
			stats.Instructions += len(b.Instrs)
		}
	}

	g := graphutil.NewFuncGraph(m)
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) == 1 {
			id := scc[0].ID()
			if !g.HasEdgeFromTo(id, id) {
				continue
			}
		}
		names := funcutil.Map(scc, func(n graph.Node) string {
			return n.(graphutil.FNode).Fun.Name
		})
		sort.Strings(names)
		stats.RecursiveGroups = append(stats.RecursiveGroups, names)
	}
	stats.ElementaryCycles = len(graphutil.FindAllElementaryCycles(g))
	return stats
}

// Print writes a human-readable statistics summary.
func (s *ModuleStatistics) Print(w io.Writer, name string) {
	fmt.Fprintf(w, "%s: %d functions (%d definitions, %d declarations), %d blocks, %d instructions\n",
		name, s.Functions, s.Definitions, s.Declarations, s.Blocks, s.Instructions)
	if len(s.RecursiveGroups) > 0 {
		fmt.Fprintf(w, "%s: %d recursive groups, %d elementary call cycles\n",
			name, len(s.RecursiveGroups), s.ElementaryCycles)
	}
}
