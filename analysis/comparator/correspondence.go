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
	"github.com/irtools/semdiff/analysis/ir"
	"github.com/irtools/semdiff/internal/funcutil"
)

// Correspondence maintains the left/right association of values, basic
// blocks, and types built up during one comparison walk. The value and block
// relations are partial bijections: relating a value that is already bound
// to a different partner is a conflict and must abort the walk.
type Correspondence struct {
	leftToRight map[ir.Value]ir.Value
	rightToLeft map[ir.Value]ir.Value

	blockLR map[*ir.Block]*ir.Block
	blockRL map[*ir.Block]*ir.Block

	// typeCache memoizes structural type comparisons for named struct
	// pairs, which are the only types compared repeatedly.
	typeCache map[structPair]bool

	// journal records installed relations so that a failed comparison
	// probe can be rolled back without polluting the bijection.
	journal []journalEntry

	// sizeIdxL and sizeIdxR are the per-module aggregate size indexes,
	// consulted when two aggregates of equal layout carry different names
	// across versions. Nil disables the size-based rename matching.
	sizeIdxL DebugInfo
	sizeIdxR DebugInfo
}

type journalEntry struct {
	l, r   ir.Value
	bl, br *ir.Block
}

type structPair struct {
	l, r *ir.StructType
}

// NewCorrespondence returns an empty correspondence.
func NewCorrespondence() *Correspondence {
	return &Correspondence{
		leftToRight: make(map[ir.Value]ir.Value),
		rightToLeft: make(map[ir.Value]ir.Value),
		blockLR:     make(map[*ir.Block]*ir.Block),
		blockRL:     make(map[*ir.Block]*ir.Block),
		typeCache:   make(map[structPair]bool),
	}
}

// Reset clears all associations; called at the start of every top-level
// function-pair comparison.
func (c *Correspondence) Reset() {
	c.leftToRight = make(map[ir.Value]ir.Value)
	c.rightToLeft = make(map[ir.Value]ir.Value)
	c.blockLR = make(map[*ir.Block]*ir.Block)
	c.blockRL = make(map[*ir.Block]*ir.Block)
	c.typeCache = make(map[structPair]bool)
	c.journal = nil
}

// Relate installs the association l<->r. It returns true when the relation
// stays consistent: either neither side was bound, or both sides were
// already bound to each other.
func (c *Correspondence) Relate(l, r ir.Value) bool {
	boundR, okL := c.leftToRight[l]
	boundL, okR := c.rightToLeft[r]
	if !okL && !okR {
		c.leftToRight[l] = r
		c.rightToLeft[r] = l
		c.journal = append(c.journal, journalEntry{l: l, r: r})
		return true
	}
	return okL && okR && boundR == r && boundL == l
}

// RelateBlocks installs the association of a block pair, with the same
// bijection rule as Relate.
func (c *Correspondence) RelateBlocks(l, r *ir.Block) bool {
	boundR, okL := c.blockLR[l]
	boundL, okR := c.blockRL[r]
	if !okL && !okR {
		c.blockLR[l] = r
		c.blockRL[r] = l
		c.journal = append(c.journal, journalEntry{bl: l, br: r})
		return true
	}
	return okL && okR && boundR == r && boundL == l
}

// Snapshot marks the current extent of the relation; Rollback undoes every
// relation installed after the mark.
func (c *Correspondence) Snapshot() int {
	return len(c.journal)
}

// Rollback removes all relations installed since the snapshot was taken.
func (c *Correspondence) Rollback(snapshot int) {
	for i := len(c.journal) - 1; i >= snapshot; i-- {
		e := c.journal[i]
		if e.bl != nil {
			delete(c.blockLR, e.bl)
			delete(c.blockRL, e.br)
		} else {
			delete(c.leftToRight, e.l)
			delete(c.rightToLeft, e.r)
		}
	}
	c.journal = c.journal[:snapshot]
}

// LookupLeft returns the right-side partner of a left value.
func (c *Correspondence) LookupLeft(l ir.Value) (ir.Value, bool) {
	r, ok := c.leftToRight[l]
	return r, ok
}

// LookupRight returns the left-side partner of a right value.
func (c *Correspondence) LookupRight(r ir.Value) (ir.Value, bool) {
	l, ok := c.rightToLeft[r]
	return l, ok
}

// LookupBlock returns the right-side partner of a left block.
func (c *Correspondence) LookupBlock(l *ir.Block) (*ir.Block, bool) {
	r, ok := c.blockLR[l]
	return r, ok
}

// RelateTypes compares two types structurally, caching results for named
// struct pairs. Structs are corresponding when their base names and field
// structures agree; the recursion is guarded by seeding the cache before
// descending into fields.
func (c *Correspondence) RelateTypes(tl, tr ir.Type) bool {
	switch tl := tl.(type) {
	case ir.VoidType:
		_, ok := tr.(ir.VoidType)
		return ok
	case *ir.IntType:
		trr, ok := tr.(*ir.IntType)
		return ok && tl.Bits == trr.Bits
	case *ir.FloatType:
		trr, ok := tr.(*ir.FloatType)
		return ok && tl.Bits == trr.Bits
	case *ir.PtrType:
		trr, ok := tr.(*ir.PtrType)
		return ok && c.RelateTypes(tl.Elem, trr.Elem)
	case *ir.ArrayType:
		trr, ok := tr.(*ir.ArrayType)
		return ok && tl.Len == trr.Len && c.RelateTypes(tl.Elem, trr.Elem)
	case *ir.StructType:
		trr, ok := tr.(*ir.StructType)
		if !ok {
			return false
		}
		return c.relateStructs(tl, trr)
	case *ir.FuncType:
		trr, ok := tr.(*ir.FuncType)
		if !ok || tl.Variadic != trr.Variadic || len(tl.Params) != len(trr.Params) {
			return false
		}
		if !c.RelateTypes(tl.Ret, trr.Ret) {
			return false
		}
		for i := range tl.Params {
			if !c.RelateTypes(tl.Params[i], trr.Params[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// SetSizeIndexes attaches the aggregate size/name indexes of the two
// compared modules; they resolve correspondences between equal-layout
// aggregates that were renamed across versions.
func (c *Correspondence) SetSizeIndexes(l, r DebugInfo) {
	c.sizeIdxL = l
	c.sizeIdxR = r
}

func (c *Correspondence) relateStructs(tl, tr *ir.StructType) bool {
	key := structPair{tl, tr}
	if res, ok := c.typeCache[key]; ok {
		return res
	}
	// Seed with true so that recursive struct references terminate; the
	// final verdict overwrites the seed.
	c.typeCache[key] = true
	var res bool
	if ir.DropSuffix(tl.Name) == ir.DropSuffix(tr.Name) {
		res = c.structFieldsMatch(tl, tr)
	} else {
		// Equal layouts may carry different names across versions; the
		// size index confirms that both modules define an aggregate of
		// that size under these names.
		res = c.structFieldsMatch(tl, tr) && c.sizeIndexesAgree(tl, tr)
	}
	c.typeCache[key] = res
	return res
}

// sizeIndexesAgree checks the rename of an aggregate through the size
// indexes: both sides must list their type at the same byte size.
func (c *Correspondence) sizeIndexesAgree(tl, tr *ir.StructType) bool {
	if c.sizeIdxL == nil || c.sizeIdxR == nil || tl.Fields == nil || tr.Fields == nil {
		return false
	}
	size := ir.SizeOf(tl)
	if size != ir.SizeOf(tr) {
		return false
	}
	return indexedName(c.sizeIdxL.StructsBySize(size), tl.Name) &&
		indexedName(c.sizeIdxR.StructsBySize(size), tr.Name)
}

func indexedName(names []string, name string) bool {
	base := ir.DropSuffix(name)
	return funcutil.Exists(names, func(n string) bool { return ir.DropSuffix(n) == base })
}

// structFieldsMatch compares struct layouts field by field. Opaque
// references (no field list) are taken as matching.
func (c *Correspondence) structFieldsMatch(tl, tr *ir.StructType) bool {
	if tl.Fields == nil || tr.Fields == nil {
		return true
	}
	if len(tl.Fields) != len(tr.Fields) {
		return false
	}
	for i := range tl.Fields {
		if !c.RelateTypes(tl.Fields[i], tr.Fields[i]) {
			return false
		}
	}
	return true
}

// StructLayoutsDiffer reports whether two named structs with corresponding
// names have differing layouts; used to surface type differences on the
// side channel.
func (c *Correspondence) StructLayoutsDiffer(tl, tr *ir.StructType) bool {
	if ir.DropSuffix(tl.Name) != ir.DropSuffix(tr.Name) {
		return false
	}
	return !c.structFieldsMatch(tl, tr)
}
