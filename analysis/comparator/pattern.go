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
	"github.com/irtools/semdiff/analysis/config"
	"github.com/irtools/semdiff/analysis/ir"
)

// PatternSideComparator matches one side of a difference pattern against
// live module instructions. It shares the instruction comparison of the
// generic walker; the walk itself starts mid-block at the pattern-start
// instruction and is bounded by the pattern's basic-block limit.
//
// The left function of the embedded comparator is the module function, the
// right one the pattern side.
type PatternSideComparator struct {
	*FunctionComparator

	// matched maps each pattern instruction to the module instruction it
	// consumed.
	matched map[*ir.Instr]*ir.Instr
	// consumed lists the matched module instructions in walk order.
	consumed []*ir.Instr
	// endReached is set when the pattern-end marker was consumed.
	endReached bool
}

// NewPatternSideComparator prepares a matcher walk of one pattern side
// against a module function. The correspondence is per-match: pattern
// arguments may bind to arbitrary module values.
func NewPatternSideComparator(modFn, patFn *ir.Func,
	logger *config.LogGroup) *PatternSideComparator {
	psc := &PatternSideComparator{
		FunctionComparator: NewFunctionComparator(modFn, patFn, NewCorrespondence(), logger),
		matched:            make(map[*ir.Instr]*ir.Instr),
	}
	psc.setHooks(psc)
	return psc
}

// ModuleInstrFor returns the module instruction matched by a pattern
// instruction.
func (psc *PatternSideComparator) ModuleInstrFor(pat *ir.Instr) (*ir.Instr, bool) {
	in, ok := psc.matched[pat]
	return in, ok
}

// ModuleValueFor resolves a pattern value to the module value it was bound
// to during the match.
func (psc *PatternSideComparator) ModuleValueFor(v ir.Value) (ir.Value, bool) {
	if in, ok := v.(*ir.Instr); ok {
		mod, found := psc.matched[in]
		return mod, found
	}
	return psc.Corr.LookupRight(v)
}

// Consumed returns the module instructions consumed by the match.
func (psc *PatternSideComparator) Consumed() []*ir.Instr { return psc.consumed }

type patternCursor struct {
	modBlock *ir.Block
	patBlock *ir.Block
	modIdx   int
	patIdx   int
}

// CompareFrom walks the pattern side from its start instruction against the
// module function from the given instruction. It returns true when the walk
// reaches the pattern end consistently within the block limit.
func (psc *PatternSideComparator) CompareFrom(modStart, patStart *ir.Instr) bool {
	if modStart == nil || patStart == nil || modStart.Parent == nil || patStart.Parent == nil {
		return false
	}
	limit := -1
	if pm := patStart.PatternMeta(); pm != nil {
		limit = pm.BasicBlockLimit
	}
	worklist := []patternCursor{{
		modBlock: modStart.Parent,
		patBlock: patStart.Parent,
		modIdx:   modStart.Index(),
		patIdx:   patStart.Index(),
	}}
	visited := make(map[blockPair]bool)
	followed := 0

	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]
		pair := blockPair{cur.modBlock, cur.patBlock}
		if cur.modIdx == 0 && cur.patIdx == 0 {
			if visited[pair] {
				continue
			}
			visited[pair] = true
			if !psc.Corr.RelateBlocks(cur.modBlock, cur.patBlock) {
				return false
			}
		} else if !psc.Corr.RelateBlocks(cur.modBlock, cur.patBlock) {
			return false
		}

		i, j := cur.modIdx, cur.patIdx
		for j < len(cur.patBlock.Instrs) {
			if i >= len(cur.modBlock.Instrs) {
				return false
			}
			modIn := cur.modBlock.Instrs[i]
			patIn := cur.patBlock.Instrs[j]
			if psc.hooks.cmpOperationsWithOperands(modIn, patIn) != 0 {
				return false
			}
			psc.matched[patIn] = modIn
			psc.consumed = append(psc.consumed, modIn)

			pm := patIn.PatternMeta()
			if pm != nil && pm.End {
				psc.endReached = true
				return true
			}
			if patIn.IsTerminator() {
				if pm != nil && pm.BasicBlockLimitEnd {
					// Halt successor enqueue at this terminator.
					break
				}
				for k := range patIn.Succs {
					if limit >= 0 && followed >= limit {
						break
					}
					followed++
					worklist = append(worklist, patternCursor{
						modBlock: modIn.Succs[k],
						patBlock: patIn.Succs[k],
					})
				}
				break
			}
			i, j = i+1, j+1
		}
	}
	return psc.endReached
}

// cmpOperationsWithOperands compares a module instruction with a pattern
// instruction. Successor handling is done by the pattern walk, not here.
func (psc *PatternSideComparator) cmpOperationsWithOperands(modIn, patIn *ir.Instr) int {
	if res := psc.cmpOperations(modIn, patIn); res != 0 {
		return res
	}
	if (modIn.Callee == nil) != (patIn.Callee == nil) {
		return 1
	}
	if modIn.Callee != nil {
		if res := psc.cmpGlobalValues(modIn.Callee, patIn.Callee); res != 0 {
			return res
		}
	}
	if len(modIn.Succs) != len(patIn.Succs) {
		return 1
	}
	for i := range modIn.Args {
		if res := psc.cmpPatternValues(modIn.Args[i], patIn.Args[i]); res != 0 {
			return res
		}
	}
	if modIn.HasResult() && patIn.HasResult() {
		if !psc.Corr.Relate(modIn, patIn) {
			return 1
		}
	}
	return 0
}

// cmpPatternValues compares a module operand with a pattern operand.
// Pattern function arguments match arbitrary module values; everything
// else follows the generic comparison.
func (psc *PatternSideComparator) cmpPatternValues(modV, patV ir.Value) int {
	if p, ok := patV.(*ir.Param); ok {
		if !psc.Corr.Relate(modV, p) {
			return 1
		}
		return 0
	}
	return psc.cmpValues(modV, patV)
}

// cmpBasicBlocks is unused by the pattern walk but required by the hook
// interface; it delegates to the generic implementation.
func (psc *PatternSideComparator) cmpBasicBlocks(bl, br *ir.Block) int {
	return psc.FunctionComparator.cmpBasicBlocks(bl, br)
}

// cmpGlobalValues compares pattern globals against module globals by name,
// sharing any established correspondence.
func (psc *PatternSideComparator) cmpGlobalValues(l, r ir.Value) int {
	return psc.FunctionComparator.cmpGlobalValues(l, r)
}
