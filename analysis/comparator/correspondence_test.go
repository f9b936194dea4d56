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

package comparator

import (
	"testing"

	"github.com/irtools/semdiff/analysis/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelateInstallsBothDirections(t *testing.T) {
	c := NewCorrespondence()
	l := ir.IntConst(ir.I32, 1)
	r := ir.IntConst(ir.I32, 2)
	require.True(t, c.Relate(l, r))

	got, ok := c.LookupLeft(l)
	require.True(t, ok)
	assert.Same(t, r, got)
	back, ok := c.LookupRight(r)
	require.True(t, ok)
	assert.Same(t, l, back)

	// Relating the same pair again stays consistent.
	assert.True(t, c.Relate(l, r))
}

func TestRelateConflicts(t *testing.T) {
	c := NewCorrespondence()
	l1 := ir.IntConst(ir.I32, 1)
	l2 := ir.IntConst(ir.I32, 2)
	r1 := ir.IntConst(ir.I32, 3)
	r2 := ir.IntConst(ir.I32, 4)
	require.True(t, c.Relate(l1, r1))

	assert.False(t, c.Relate(l1, r2), "left side already bound elsewhere")
	assert.False(t, c.Relate(l2, r1), "right side already bound elsewhere")
	assert.True(t, c.Relate(l2, r2))
}

func TestRelateBlocksBijective(t *testing.T) {
	c := NewCorrespondence()
	b1, b2, b3 := &ir.Block{Name: "a"}, &ir.Block{Name: "b"}, &ir.Block{Name: "c"}
	require.True(t, c.RelateBlocks(b1, b2))
	assert.True(t, c.RelateBlocks(b1, b2))
	assert.False(t, c.RelateBlocks(b1, b3))
	assert.False(t, c.RelateBlocks(b3, b2))
}

func TestSnapshotRollback(t *testing.T) {
	c := NewCorrespondence()
	l1 := ir.IntConst(ir.I32, 1)
	r1 := ir.IntConst(ir.I32, 2)
	require.True(t, c.Relate(l1, r1))

	snap := c.Snapshot()
	l2 := ir.IntConst(ir.I32, 3)
	r2 := ir.IntConst(ir.I32, 4)
	b1, b2 := &ir.Block{Name: "a"}, &ir.Block{Name: "b"}
	require.True(t, c.Relate(l2, r2))
	require.True(t, c.RelateBlocks(b1, b2))

	c.Rollback(snap)
	_, ok := c.LookupLeft(l2)
	assert.False(t, ok, "rolled back value relation must be gone")
	_, ok = c.LookupBlock(b1)
	assert.False(t, ok, "rolled back block relation must be gone")
	_, ok = c.LookupLeft(l1)
	assert.True(t, ok, "relations before the snapshot must survive")
}

func TestRelateTypesStructural(t *testing.T) {
	c := NewCorrespondence()
	assert.True(t, c.RelateTypes(ir.I32, ir.I32))
	assert.False(t, c.RelateTypes(ir.I32, ir.I64))
	assert.True(t, c.RelateTypes(&ir.PtrType{Elem: ir.I8}, &ir.PtrType{Elem: ir.I8}))

	a := &ir.StructType{Name: "pair", Fields: []ir.Type{ir.I32, ir.I64}}
	b := &ir.StructType{Name: "pair", Fields: []ir.Type{ir.I32, ir.I64}}
	assert.True(t, c.RelateTypes(a, b))

	// A renamed struct with a numeric suffix still corresponds.
	renamed := &ir.StructType{Name: "pair.3", Fields: []ir.Type{ir.I32, ir.I64}}
	assert.True(t, c.RelateTypes(a, renamed))

	differing := &ir.StructType{Name: "pair", Fields: []ir.Type{ir.I32, ir.I32}}
	assert.False(t, c.RelateTypes(a, differing))
	assert.True(t, c.StructLayoutsDiffer(a, differing))
}

// fakeSizeIndex is a stand-in for the host's aggregate size/name index.
type fakeSizeIndex struct {
	names map[int][]string
}

func (f fakeSizeIndex) TypeLoc(string) (ir.Loc, bool) { return ir.Loc{}, false }

func (f fakeSizeIndex) StructsBySize(size int) []string { return f.names[size] }

func TestRelateTypesRenamedAggregate(t *testing.T) {
	oldBuf := &ir.StructType{Name: "old_buf", Fields: []ir.Type{ir.I32, ir.I64}}
	newBuf := &ir.StructType{Name: "new_buf", Fields: []ir.Type{ir.I32, ir.I64}}

	// Without the size indexes a rename is a plain name mismatch.
	c := NewCorrespondence()
	assert.False(t, c.RelateTypes(oldBuf, newBuf))

	// The size indexes confirm that both modules define a 16-byte
	// aggregate under these names, resolving the correspondence.
	c = NewCorrespondence()
	c.SetSizeIndexes(
		fakeSizeIndex{names: map[int][]string{16: {"old_buf"}}},
		fakeSizeIndex{names: map[int][]string{16: {"new_buf"}}},
	)
	assert.True(t, c.RelateTypes(oldBuf, newBuf))

	// A layout mismatch is never resolved by the index.
	shorter := &ir.StructType{Name: "tiny_buf", Fields: []ir.Type{ir.I32}}
	assert.False(t, c.RelateTypes(oldBuf, shorter))

	// An aggregate missing from one side's index stays unmatched.
	c = NewCorrespondence()
	c.SetSizeIndexes(
		fakeSizeIndex{names: map[int][]string{16: {"old_buf"}}},
		fakeSizeIndex{names: map[int][]string{}},
	)
	assert.False(t, c.RelateTypes(oldBuf, newBuf))
}

func TestRelateTypesRecursiveStructs(t *testing.T) {
	c := NewCorrespondence()
	a := &ir.StructType{Name: "node"}
	a.Fields = []ir.Type{ir.I64, &ir.PtrType{Elem: a}}
	b := &ir.StructType{Name: "node"}
	b.Fields = []ir.Type{ir.I64, &ir.PtrType{Elem: b}}
	assert.True(t, c.RelateTypes(a, b))
}
