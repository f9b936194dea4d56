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
	"sort"

	"github.com/irtools/semdiff/analysis/ir"
)

// DebugInfoIndex is the per-module debug-information index the comparator
// consults: aggregate type definition sites and the size-to-names map used
// when equal layouts carry different names across versions.
type DebugInfoIndex struct {
	typeLocs map[string]ir.Loc
	bySize   map[int][]string
}

// NewDebugInfoIndex builds the index for one module from the attached type
// metadata.
func NewDebugInfoIndex(m *ir.Module) *DebugInfoIndex {
	idx := &DebugInfoIndex{
		typeLocs: make(map[string]ir.Loc),
		bySize:   make(map[int][]string),
	}
	for _, t := range m.Types {
		if t.Fields == nil {
			continue
		}
		if t.Loc != nil {
			idx.typeLocs[t.Name] = *t.Loc
		}
		size := ir.SizeOf(t)
		idx.bySize[size] = append(idx.bySize[size], t.Name)
	}
	for _, names := range idx.bySize {
		sort.Strings(names)
	}
	return idx
}

// TypeLoc returns the definition site of a named aggregate type.
func (idx *DebugInfoIndex) TypeLoc(name string) (ir.Loc, bool) {
	loc, ok := idx.typeLocs[name]
	return loc, ok
}

// StructsBySize returns the names of the aggregate types with the given
// byte size, sorted.
func (idx *DebugInfoIndex) StructsBySize(size int) []string {
	return idx.bySize[size]
}
